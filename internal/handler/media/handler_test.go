package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authhandler "github.com/bulatminnakhmetov/property-site/internal/handler/auth"
	"github.com/bulatminnakhmetov/property-site/internal/handler/respond"
	core "github.com/bulatminnakhmetov/property-site/internal/media"
	authservice "github.com/bulatminnakhmetov/property-site/internal/service/auth"
	service "github.com/bulatminnakhmetov/property-site/internal/service/media"
)

// MockMediaService is a mock implementation of MediaService
type MockMediaService struct {
	mock.Mock
}

func (m *MockMediaService) listing(args mock.Arguments) (*service.Listing, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Listing), args.Error(1)
}

func (m *MockMediaService) List(ctx context.Context, slug string) (*service.Listing, error) {
	return m.listing(m.Called(ctx, slug))
}

func (m *MockMediaService) SaveManifest(ctx context.Context, slug string, manifest *core.Manifest, expectedVersion *int64, editor core.Editor) (*service.Listing, error) {
	return m.listing(m.Called(ctx, slug, manifest, expectedVersion, editor))
}

func (m *MockMediaService) Delete(ctx context.Context, slug, key string, editor core.Editor) (*service.DeleteResult, error) {
	args := m.Called(ctx, slug, key, editor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DeleteResult), args.Error(1)
}

func (m *MockMediaService) Upload(ctx context.Context, slug string, folder core.Folder, file service.UploadedFile, editor core.Editor) (*service.UploadResult, error) {
	args := m.Called(ctx, slug, folder, file, editor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadResult), args.Error(1)
}

func (m *MockMediaService) UploadBatch(ctx context.Context, req service.BatchRequest, editor core.Editor) (*service.BatchResult, error) {
	args := m.Called(ctx, req, editor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.BatchResult), args.Error(1)
}

func (m *MockMediaService) UploadURL(ctx context.Context, req service.UploadURLRequest) (*service.UploadURL, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UploadURL), args.Error(1)
}

func (m *MockMediaService) AssignSpace(ctx context.Context, slug, key, space string, editor core.Editor) (*service.Listing, error) {
	return m.listing(m.Called(ctx, slug, key, space, editor))
}

func (m *MockMediaService) AddSpace(ctx context.Context, slug, name string, editor core.Editor) (*service.Listing, error) {
	return m.listing(m.Called(ctx, slug, name, editor))
}

func (m *MockMediaService) MoveGroup(ctx context.Context, slug, from, to string, editor core.Editor) (*service.Listing, error) {
	return m.listing(m.Called(ctx, slug, from, to, editor))
}

func (m *MockMediaService) Reorder(ctx context.Context, slug string, folder core.Folder, from, to int, editor core.Editor) (*service.Listing, error) {
	return m.listing(m.Called(ctx, slug, folder, from, to, editor))
}

func (m *MockMediaService) RenameDocument(ctx context.Context, slug, key, label string, editor core.Editor) (*service.Listing, error) {
	return m.listing(m.Called(ctx, slug, key, label, editor))
}

var owner = core.Editor{UID: "u1", Email: "owner@example.com"}

func newHandler(svc MediaService, maxBytes int64) *MediaHandler {
	return NewMediaHandler(svc, respond.NewResponder(nil, authservice.ConfigStatus{}), maxBytes, nil)
}

func withOwner(req *http.Request) *http.Request {
	ctx := authhandler.WithIdentity(req.Context(), &authservice.Identity{UID: "u1", Email: "owner@example.com"})
	return req.WithContext(ctx)
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return withOwner(req)
}

// Helper function to create a multipart request with file uploads
func multipartRequest(t *testing.T, target string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for name, value := range fields {
		require.NoError(t, writer.WriteField(name, value))
	}
	for filename, content := range files {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = io.Copy(part, bytes.NewReader(content))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return withOwner(req)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestMediaHandler_List(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockMediaService)
		mockService.On("List", mock.Anything, "maple").Return(&service.Listing{
			Slug:    "maple",
			Version: 3,
			Folders: map[core.Folder][]service.Item{
				core.FolderPhotos: {{ObjectPath: "listings/maple/photos/a.jpg", Name: "a.jpg", SignedURL: "https://signed/a"}},
			},
		}, nil)

		rr := httptest.NewRecorder()
		newHandler(mockService, 0).List(rr, withOwner(httptest.NewRequest(http.MethodGet, "/api/admin/media?slug=maple", nil)))

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, "maple", body["slug"])
		assert.Equal(t, float64(3), body["version"])
		photos := body["folders"].(map[string]interface{})["photos"].([]interface{})
		assert.Equal(t, "https://signed/a", photos[0].(map[string]interface{})["signedUrl"])
		mockService.AssertExpectations(t)
	})

	errorCases := []struct {
		name         string
		err          error
		expectedCode int
		expected     string
	}{
		{"Missing slug", fmt.Errorf("%w: slug is required", core.ErrInvalidPayload), http.StatusBadRequest, "slug is required"},
		{"Signing failure", errors.New("iam.serviceAccounts.signBlob denied"), http.StatusInternalServerError, "roles/iam.serviceAccountTokenCreator"},
		{"Wrong project", errors.New("rpc error: code = NotFound desc = database does not exist"), http.StatusInternalServerError, "wrong GCP project"},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			mockService := new(MockMediaService)
			mockService.On("List", mock.Anything, mock.Anything).Return(nil, tc.err)

			rr := httptest.NewRecorder()
			newHandler(mockService, 0).List(rr, withOwner(httptest.NewRequest(http.MethodGet, "/api/admin/media", nil)))

			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.expected)
			assert.Contains(t, rr.Body.String(), `"ok":false`)
		})
	}
}

func TestMediaHandler_SaveManifest(t *testing.T) {
	t.Run("Passes version and editor", func(t *testing.T) {
		mockService := new(MockMediaService)
		mockService.On("SaveManifest", mock.Anything, "maple", mock.MatchedBy(func(m *core.Manifest) bool {
			return len(m.Photos) == 2 && m.Photos[0] == "listings/maple/photos/b.jpg"
		}), mock.MatchedBy(func(v *int64) bool { return v != nil && *v == 4 }), owner).
			Return(&service.Listing{Slug: "maple", Version: 5}, nil)

		req := jsonRequest(t, http.MethodPost, "/api/admin/media", map[string]interface{}{
			"slug":     "maple",
			"version":  4,
			"manifest": map[string]interface{}{"photos": []string{"listings/maple/photos/b.jpg", "listings/maple/photos/a.jpg"}},
		})
		rr := httptest.NewRecorder()
		newHandler(mockService, 0).SaveManifest(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, float64(5), decodeBody(t, rr)["version"])
		mockService.AssertExpectations(t)
	})

	t.Run("Version conflict", func(t *testing.T) {
		mockService := new(MockMediaService)
		mockService.On("SaveManifest", mock.Anything, "maple", mock.Anything, mock.Anything, owner).Return(nil, core.ErrConflict)

		req := jsonRequest(t, http.MethodPost, "/api/admin/media", map[string]interface{}{
			"slug":     "maple",
			"version":  1,
			"manifest": map[string]interface{}{},
		})
		rr := httptest.NewRecorder()
		newHandler(mockService, 0).SaveManifest(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("Missing manifest", func(t *testing.T) {
		mockService := new(MockMediaService)
		rr := httptest.NewRecorder()
		newHandler(mockService, 0).SaveManifest(rr, jsonRequest(t, http.MethodPost, "/api/admin/media", map[string]string{"slug": "maple"}))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "manifest: is required")
		mockService.AssertNotCalled(t, "SaveManifest")
	})

	t.Run("Malformed body", func(t *testing.T) {
		mockService := new(MockMediaService)
		req := withOwner(httptest.NewRequest(http.MethodPost, "/api/admin/media", strings.NewReader("{")))
		rr := httptest.NewRecorder()
		newHandler(mockService, 0).SaveManifest(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Invalid request body")
	})
}

func TestMediaHandler_Delete(t *testing.T) {
	key := "listings/maple/photos/a.jpg"

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockMediaService)
		mockService.On("Delete", mock.Anything, "maple", key, owner).
			Return(&service.DeleteResult{State: service.DeleteDone, Listing: &service.Listing{Slug: "maple"}}, nil)

		rr := httptest.NewRecorder()
		newHandler(mockService, 0).Delete(rr, jsonRequest(t, http.MethodDelete, "/api/admin/media", DeleteRequest{Slug: "maple", ObjectPath: key}))

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, "done", body["state"])
	})

	t.Run("Prune failure", func(t *testing.T) {
		mockService := new(MockMediaService)
		mockService.On("Delete", mock.Anything, "maple", key, owner).
			Return(&service.DeleteResult{State: service.DeleteObjectDeleted}, errors.New("transaction aborted"))

		rr := httptest.NewRecorder()
		newHandler(mockService, 0).Delete(rr, jsonRequest(t, http.MethodDelete, "/api/admin/media", DeleteRequest{Slug: "maple", ObjectPath: key}))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Contains(t, rr.Body.String(), "Upstream request failed.")
		assert.NotContains(t, rr.Body.String(), "transaction aborted")
	})

	t.Run("Reads objectPath from the body", func(t *testing.T) {
		mockService := new(MockMediaService)
		mockService.On("Delete", mock.Anything, "maple", key, owner).
			Return(&service.DeleteResult{State: service.DeleteDone, Listing: &service.Listing{Slug: "maple"}}, nil)

		req := httptest.NewRequest(http.MethodDelete, "/api/admin/media",
			strings.NewReader(`{"slug":"maple","objectPath":"`+key+`"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		newHandler(mockService, 0).Delete(rr, withOwner(req))

		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Legacy key field is rejected", func(t *testing.T) {
		mockService := new(MockMediaService)
		req := httptest.NewRequest(http.MethodDelete, "/api/admin/media",
			strings.NewReader(`{"slug":"maple","key":"`+key+`"}`))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		newHandler(mockService, 0).Delete(rr, withOwner(req))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "objectPath: is required")
		mockService.AssertNotCalled(t, "Delete")
	})
}

func TestMediaHandler_Upload(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockMediaService)
		mockService.On("Upload", mock.Anything, "maple", core.FolderPhotos, mock.AnythingOfType("*media.FileHeaderWrapper"), owner).
			Return(&service.UploadResult{ObjectPath: "listings/maple/photos/a.jpg", ContentType: "image/jpeg", Size: 5, Version: 2}, nil)

		req := multipartRequest(t, "/api/admin/upload", map[string]string{"slug": "maple", "folder": "photos"}, map[string][]byte{"a.jpg": []byte("image")})
		rr := httptest.NewRecorder()
		newHandler(mockService, 0).Upload(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, "listings/maple/photos/a.jpg", body["objectPath"])
		mockService.AssertExpectations(t)
	})

	t.Run("Missing file", func(t *testing.T) {
		mockService := new(MockMediaService)
		req := multipartRequest(t, "/api/admin/upload", map[string]string{"slug": "maple", "folder": "photos"}, nil)
		rr := httptest.NewRecorder()
		newHandler(mockService, 0).Upload(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "Could not get file")
		mockService.AssertNotCalled(t, "Upload")
	})

	t.Run("Request too large", func(t *testing.T) {
		mockService := new(MockMediaService)
		big := bytes.Repeat([]byte("x"), formOverhead+1024)
		req := multipartRequest(t, "/api/admin/upload", map[string]string{"slug": "maple", "folder": "photos"}, map[string][]byte{"big.jpg": big})
		rr := httptest.NewRecorder()
		newHandler(mockService, 1).Upload(rr, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		mockService.AssertNotCalled(t, "Upload")
	})

	serviceErrors := []struct {
		name         string
		err          error
		expectedCode int
	}{
		{"Unsupported type", fmt.Errorf("%w: docs accepts application/pdf", core.ErrUnsupportedType), http.StatusBadRequest},
		{"Empty file", core.ErrEmptyFile, http.StatusBadRequest},
		{"Too large", core.ErrTooLarge, http.StatusRequestEntityTooLarge},
		{"Generic error", errors.New("some internal error"), http.StatusInternalServerError},
	}
	for _, tc := range serviceErrors {
		t.Run(tc.name, func(t *testing.T) {
			mockService := new(MockMediaService)
			mockService.On("Upload", mock.Anything, "maple", core.FolderDocs, mock.Anything, owner).Return(nil, tc.err)

			req := multipartRequest(t, "/api/admin/upload", map[string]string{"slug": "maple", "folder": "docs"}, map[string][]byte{"a.jpg": []byte("image")})
			rr := httptest.NewRecorder()
			newHandler(mockService, 0).Upload(rr, req)

			assert.Equal(t, tc.expectedCode, rr.Code)
			mockService.AssertExpectations(t)
		})
	}
}

func TestMediaHandler_UploadBatch(t *testing.T) {
	files := map[string][]byte{"a.jpg": []byte("a"), "b.jpg": []byte("b")}
	fields := map[string]string{"slug": "maple", "folder": "photos", "space": "Kitchen"}

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockMediaService)
		mockService.On("UploadBatch", mock.Anything, mock.MatchedBy(func(req service.BatchRequest) bool {
			return req.Slug == "maple" && req.Folder == core.FolderPhotos && req.Space == "Kitchen" && len(req.Files) == 2 && req.Progress != nil
		}), owner).Return(&service.BatchResult{
			Slug:     "maple",
			Folder:   "photos",
			Uploaded: []string{"listings/maple/photos/a.jpg", "listings/maple/photos/b.jpg"},
			Status:   "Uploaded 2 file(s) to photos (Kitchen).",
		}, nil)

		rr := httptest.NewRecorder()
		newHandler(mockService, 0).UploadBatch(rr, multipartRequest(t, "/api/admin/upload/batch", fields, files))

		assert.Equal(t, http.StatusOK, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, true, body["ok"])
		assert.Equal(t, "Uploaded 2 file(s) to photos (Kitchen).", body["status"])
	})

	t.Run("Partial failure keeps the result", func(t *testing.T) {
		mockService := new(MockMediaService)
		batchErr := &core.BatchError{Index: 2, Total: 2, Filename: "b.jpg", Err: errors.New("connection reset")}
		mockService.On("UploadBatch", mock.Anything, mock.Anything, owner).Return(&service.BatchResult{
			Slug:     "maple",
			Uploaded: []string{"listings/maple/photos/a.jpg"},
			Status:   "Upload 2/2 failed (b.jpg). 1 file(s) uploaded.",
		}, batchErr)

		rr := httptest.NewRecorder()
		newHandler(mockService, 0).UploadBatch(rr, multipartRequest(t, "/api/admin/upload/batch", fields, files))

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		body := decodeBody(t, rr)
		assert.Equal(t, false, body["ok"])
		assert.Contains(t, body["error"], "upload 2/2 (b.jpg) failed")
		assert.Len(t, body["uploaded"], 1)
	})

	t.Run("Rejected before upload", func(t *testing.T) {
		mockService := new(MockMediaService)
		batchErr := &core.BatchError{Index: 1, Total: 2, Filename: "a.jpg", Err: core.ErrTooLarge}
		mockService.On("UploadBatch", mock.Anything, mock.Anything, owner).Return(nil, batchErr)

		rr := httptest.NewRecorder()
		newHandler(mockService, 0).UploadBatch(rr, multipartRequest(t, "/api/admin/upload/batch", fields, files))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
		assert.Contains(t, rr.Body.String(), "upload 1/2 (a.jpg) failed")
	})
}

func TestMediaHandler_UploadURL(t *testing.T) {
	mockService := new(MockMediaService)
	mockService.On("UploadURL", mock.Anything, service.UploadURLRequest{
		Slug:        "maple",
		Folder:      core.FolderDocs,
		Filename:    "plan.pdf",
		ContentType: "application/pdf",
		Size:        10,
	}).Return(&service.UploadURL{ObjectPath: "listings/maple/docs/plan.pdf", UploadURL: "https://signed/put"}, nil)

	rr := httptest.NewRecorder()
	newHandler(mockService, 0).UploadURL(rr, jsonRequest(t, http.MethodPost, "/api/admin/upload-url", UploadURLRequest{
		Slug: "maple", Folder: "docs", Filename: "plan.pdf", ContentType: "application/pdf", Size: 10,
	}))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "https://signed/put", decodeBody(t, rr)["uploadUrl"])

	rr = httptest.NewRecorder()
	newHandler(mockService, 0).UploadURL(rr, jsonRequest(t, http.MethodPost, "/api/admin/upload-url", UploadURLRequest{
		Slug: "maple", Folder: "attic", Filename: "plan.pdf",
	}))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "folder: must be one of")
	mockService.AssertNumberOfCalls(t, "UploadURL", 1)
}

func TestMediaHandler_SpaceOperations(t *testing.T) {
	result := &service.Listing{Slug: "maple", Version: 7}
	key := "listings/maple/photos/a.jpg"

	mockService := new(MockMediaService)
	mockService.On("AssignSpace", mock.Anything, "maple", key, "Kitchen", owner).Return(result, nil)
	mockService.On("AddSpace", mock.Anything, "maple", "Garden", owner).Return(result, nil)
	mockService.On("MoveGroup", mock.Anything, "maple", "Garden", "Kitchen", owner).Return(result, nil)
	mockService.On("Reorder", mock.Anything, "maple", core.FolderPhotos, 2, 0, owner).Return(result, nil)
	mockService.On("RenameDocument", mock.Anything, "maple", "listings/maple/docs/plan.pdf", "Site plan", owner).Return(result, nil)
	h := newHandler(mockService, 0)

	cases := []struct {
		name    string
		handler http.HandlerFunc
		body    interface{}
	}{
		{"Assign", h.AssignSpace, AssignSpaceRequest{Slug: "maple", ObjectPath: key, Space: "Kitchen"}},
		{"Add", h.AddSpace, AddSpaceRequest{Slug: "maple", Name: "Garden"}},
		{"Move", h.MoveGroup, MoveGroupRequest{Slug: "maple", From: "Garden", To: "Kitchen"}},
		{"Reorder", h.Reorder, ReorderRequest{Slug: "maple", Folder: "photos", From: 2, To: 0}},
		{"Rename", h.RenameDocument, RenameDocumentRequest{Slug: "maple", ObjectPath: "listings/maple/docs/plan.pdf", Label: "Site plan"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tc.handler(rr, jsonRequest(t, http.MethodPost, "/api/admin/media", tc.body))
			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, float64(7), decodeBody(t, rr)["version"])
		})
	}
	mockService.AssertExpectations(t)

	t.Run("Negative index", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.Reorder(rr, jsonRequest(t, http.MethodPost, "/api/admin/media/reorder", ReorderRequest{Slug: "maple", Folder: "photos", From: -1}))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
