package property

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	authhandler "github.com/bulatminnakhmetov/property-site/internal/handler/auth"
	"github.com/bulatminnakhmetov/property-site/internal/handler/respond"
	core "github.com/bulatminnakhmetov/property-site/internal/media"
	model "github.com/bulatminnakhmetov/property-site/internal/property"
	authservice "github.com/bulatminnakhmetov/property-site/internal/service/auth"
)

type MockPropertyService struct {
	mock.Mock
}

func (m *MockPropertyService) property(args mock.Arguments) (*model.Property, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Property), args.Error(1)
}

func (m *MockPropertyService) Get(ctx context.Context, slug string) (*model.Property, error) {
	return m.property(m.Called(ctx, slug))
}

func (m *MockPropertyService) Save(ctx context.Context, slug string, p *model.Property, editor core.Editor) (*model.Property, error) {
	return m.property(m.Called(ctx, slug, p, editor))
}

func (m *MockPropertyService) Public(ctx context.Context, slug string) (*model.Property, error) {
	return m.property(m.Called(ctx, slug))
}

func (m *MockPropertyService) Summaries(ctx context.Context) ([]model.Summary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Summary), args.Error(1)
}

func newHandler(svc PropertyService) *PropertyHandler {
	return NewPropertyHandler(svc, respond.NewResponder(nil, authservice.ConfigStatus{}))
}

func TestPropertyHandler_Get(t *testing.T) {
	mockService := new(MockPropertyService)
	mockService.On("Get", mock.Anything, "maple").Return(&model.Property{Slug: "maple", Description: "Bright."}, nil)
	mockService.On("Get", mock.Anything, "nowhere").Return(nil, core.ErrNotFound)
	h := newHandler(mockService)

	rr := httptest.NewRecorder()
	h.Get(rr, httptest.NewRequest(http.MethodGet, "/api/admin/property?slug=maple", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"description":"Bright."`)

	rr = httptest.NewRecorder()
	h.Get(rr, httptest.NewRequest(http.MethodGet, "/api/admin/property?slug=nowhere", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPropertyHandler_Save(t *testing.T) {
	editor := core.Editor{UID: "u1", Email: "owner@example.com"}

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockPropertyService)
		mockService.On("Save", mock.Anything, "maple", mock.MatchedBy(func(p *model.Property) bool {
			return p.Address.City == "Springfield"
		}), editor).Return(&model.Property{Slug: "maple", UpdatedBy: &editor}, nil)

		raw, err := json.Marshal(SavePropertyRequest{Slug: "maple", Property: &model.Property{Address: model.Address{City: "Springfield"}}})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/admin/property", bytes.NewReader(raw))
		req = req.WithContext(authhandler.WithIdentity(req.Context(), &authservice.Identity{UID: "u1", Email: "owner@example.com"}))

		rr := httptest.NewRecorder()
		newHandler(mockService).Save(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("Validation error", func(t *testing.T) {
		mockService := new(MockPropertyService)
		mockService.On("Save", mock.Anything, "maple", mock.Anything, mock.Anything).
			Return(nil, fmt.Errorf("%w: address.city: is required", core.ErrInvalidPayload))

		req := httptest.NewRequest(http.MethodPost, "/api/admin/property", bytes.NewBufferString(`{"slug":"maple","property":{}}`))
		rr := httptest.NewRecorder()
		newHandler(mockService).Save(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "address.city")
	})

	t.Run("Malformed body", func(t *testing.T) {
		mockService := new(MockPropertyService)
		rr := httptest.NewRecorder()
		newHandler(mockService).Save(rr, httptest.NewRequest(http.MethodPost, "/api/admin/property", bytes.NewBufferString("[")))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertNotCalled(t, "Save")
	})
}

func TestPropertyHandler_List(t *testing.T) {
	mockService := new(MockPropertyService)
	mockService.On("Summaries", mock.Anything).Return([]model.Summary{{Slug: "maple", HeroImage: "https://signed/hero"}}, nil)

	rr := httptest.NewRecorder()
	newHandler(mockService).List(rr, httptest.NewRequest(http.MethodGet, "/api/properties", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp SummariesResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	require.Len(t, resp.Properties, 1)
	assert.Equal(t, "https://signed/hero", resp.Properties[0].HeroImage)
}

func TestPropertyHandler_Public(t *testing.T) {
	mockService := new(MockPropertyService)
	mockService.On("Public", mock.Anything, "maple").Return(&model.Property{
		Slug:  "maple",
		Media: model.Media{Photos: []string{"https://signed/a"}},
	}, nil)
	mockService.On("Public", mock.Anything, "nowhere").Return(nil, core.ErrNotFound)
	mockService.On("Public", mock.Anything, "broken").Return(nil, errors.New("rpc error: code = NotFound desc = database (default) does not exist"))

	r := chi.NewRouter()
	r.Get("/api/properties/{slug}", newHandler(mockService).Public)

	cases := []struct {
		slug         string
		expectedCode int
		expected     string
	}{
		{"maple", http.StatusOK, "https://signed/a"},
		{"nowhere", http.StatusNotFound, "Not found"},
		{"broken", http.StatusInternalServerError, "wrong GCP project"},
	}
	for _, tc := range cases {
		t.Run(tc.slug, func(t *testing.T) {
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/properties/"+tc.slug, nil))
			assert.Equal(t, tc.expectedCode, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.expected)
		})
	}
}
