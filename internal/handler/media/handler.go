package media

import (
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	authhandler "github.com/bulatminnakhmetov/property-site/internal/handler/auth"
	"github.com/bulatminnakhmetov/property-site/internal/handler/respond"
	core "github.com/bulatminnakhmetov/property-site/internal/media"
	service "github.com/bulatminnakhmetov/property-site/internal/service/media"
	"github.com/bulatminnakhmetov/property-site/internal/validate"
)

const (
	// formOverhead covers multipart boundaries and the text fields.
	formOverhead = 1 << 20
	// maxBatchFiles bounds the request size of a batch upload.
	maxBatchFiles = 50
	formMemory    = 32 << 20
)

// MediaService is the media API used by the handler.
type MediaService interface {
	List(ctx context.Context, slug string) (*service.Listing, error)
	SaveManifest(ctx context.Context, slug string, m *core.Manifest, expectedVersion *int64, editor core.Editor) (*service.Listing, error)
	Delete(ctx context.Context, slug, key string, editor core.Editor) (*service.DeleteResult, error)
	Upload(ctx context.Context, slug string, folder core.Folder, file service.UploadedFile, editor core.Editor) (*service.UploadResult, error)
	UploadBatch(ctx context.Context, req service.BatchRequest, editor core.Editor) (*service.BatchResult, error)
	UploadURL(ctx context.Context, req service.UploadURLRequest) (*service.UploadURL, error)
	AssignSpace(ctx context.Context, slug, key, space string, editor core.Editor) (*service.Listing, error)
	AddSpace(ctx context.Context, slug, name string, editor core.Editor) (*service.Listing, error)
	MoveGroup(ctx context.Context, slug, from, to string, editor core.Editor) (*service.Listing, error)
	Reorder(ctx context.Context, slug string, folder core.Folder, from, to int, editor core.Editor) (*service.Listing, error)
	RenameDocument(ctx context.Context, slug, key, label string, editor core.Editor) (*service.Listing, error)
}

// MediaHandler serves the owner media API.
type MediaHandler struct {
	service   MediaService
	respond   *respond.Responder
	validator *validate.Validator
	logger    *zap.SugaredLogger
	maxBytes  int64
}

func NewMediaHandler(service MediaService, responder *respond.Responder, maxBytes int64, logger *zap.SugaredLogger) *MediaHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if maxBytes <= 0 {
		maxBytes = core.MaxUploadSize
	}
	return &MediaHandler{
		service:   service,
		respond:   responder,
		validator: validate.New(),
		logger:    logger,
		maxBytes:  maxBytes,
	}
}

// decode reads a JSON body into req and validates it.
func (h *MediaHandler) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		h.respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validator.Struct(req); err != nil {
		h.respond.Error(w, r, err)
		return false
	}
	return true
}

func (h *MediaHandler) listing(w http.ResponseWriter, r *http.Request, listing *service.Listing, err error, fields ...interface{}) {
	if err != nil {
		h.respond.Error(w, r, err, fields...)
		return
	}
	h.respond.JSON(w, http.StatusOK, ListingResponse{OK: true, Listing: listing})
}

// @Summary      List media
// @Description  Reconcile the object store listing with the stored order and sign read URLs
// @Tags         media
// @Produce      json
// @Param        slug  query     string  true  "Listing slug"
// @Success      200   {object}  ListingResponse
// @Failure      400   {object}  respond.ErrorResponse  "Missing slug"
// @Failure      401   {object}  respond.ErrorResponse  "Unauthorized"
// @Failure      403   {object}  respond.ErrorResponse  "Forbidden"
// @Failure      500   {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /admin/media [get]
// @Security     BearerAuth
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	listing, err := h.service.List(r.Context(), slug)
	h.listing(w, r, listing, err, "slug", slug)
}

// @Summary      Save media order
// @Description  Persist ordering, spaces and labels. With version set the write fails with 409 if another session saved first
// @Tags         media
// @Accept       json
// @Produce      json
// @Param        request  body      SaveManifestRequest  true  "Manifest"
// @Success      200      {object}  ListingResponse
// @Failure      400      {object}  respond.ErrorResponse  "Invalid payload"
// @Failure      401      {object}  respond.ErrorResponse  "Unauthorized"
// @Failure      403      {object}  respond.ErrorResponse  "Forbidden"
// @Failure      409      {object}  respond.ErrorResponse  "Version conflict"
// @Failure      500      {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /admin/media [post]
// @Security     BearerAuth
func (h *MediaHandler) SaveManifest(w http.ResponseWriter, r *http.Request) {
	var req SaveManifestRequest
	if !h.decode(w, r, &req) {
		return
	}
	listing, err := h.service.SaveManifest(r.Context(), req.Slug, req.Manifest, req.Version, authhandler.EditorFrom(r.Context()))
	h.listing(w, r, listing, err, "slug", req.Slug)
}

// @Summary      Delete media
// @Description  Delete the object, then prune it from the stored order
// @Tags         media
// @Accept       json
// @Produce      json
// @Param        request  body      DeleteRequest  true  "Object to delete"
// @Success      200      {object}  DeleteResponse
// @Failure      400      {object}  respond.ErrorResponse  "Invalid payload"
// @Failure      401      {object}  respond.ErrorResponse  "Unauthorized"
// @Failure      403      {object}  respond.ErrorResponse  "Forbidden"
// @Failure      500      {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /admin/media [delete]
// @Security     BearerAuth
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req DeleteRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.Delete(r.Context(), req.Slug, req.ObjectPath, authhandler.EditorFrom(r.Context()))
	if err != nil {
		state := service.DeleteFailed
		if result != nil {
			state = result.State
		}
		h.respond.Error(w, r, err, "slug", req.Slug, "objectPath", req.ObjectPath, "state", state)
		return
	}
	h.respond.JSON(w, http.StatusOK, DeleteResponse{OK: true, DeleteResult: result})
}

// @Summary      Upload media
// @Description  Upload one file into a media folder of a listing
// @Tags         media
// @Accept       multipart/form-data
// @Produce      json
// @Param        slug    formData  string  true  "Listing slug"
// @Param        folder  formData  string  true  "Media folder"  Enums(hero, photos, floorplans, backgrounds, contactvideo, docs)
// @Param        file    formData  file    true  "File to upload"
// @Success      200     {object}  UploadResponse
// @Failure      400     {object}  respond.ErrorResponse  "Invalid file"
// @Failure      401     {object}  respond.ErrorResponse  "Unauthorized"
// @Failure      403     {object}  respond.ErrorResponse  "Forbidden"
// @Failure      413     {object}  respond.ErrorResponse  "File too large"
// @Failure      500     {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /admin/upload [post]
// @Security     BearerAuth
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseForm(w, r, h.maxBytes+formOverhead)
	if !ok {
		return
	}
	headers := form.File["file"]
	if len(headers) == 0 {
		h.respond.Fail(w, http.StatusBadRequest, "Could not get file")
		return
	}

	slug := r.FormValue("slug")
	folder := core.Folder(r.FormValue("folder"))
	result, err := h.service.Upload(r.Context(), slug, folder, &service.FileHeaderWrapper{FileHeader: headers[0]}, authhandler.EditorFrom(r.Context()))
	if err != nil {
		h.respond.Error(w, r, err, "slug", slug, "folder", folder, "filename", headers[0].Filename)
		return
	}
	h.respond.JSON(w, http.StatusOK, UploadResponse{OK: true, UploadResult: result})
}

// @Summary      Upload a batch of media
// @Description  Upload files one at a time, stopping at the first failure, then save the order once. New photos can be assigned to a space
// @Tags         media
// @Accept       multipart/form-data
// @Produce      json
// @Param        slug    formData  string  true   "Listing slug"
// @Param        folder  formData  string  true   "Media folder"  Enums(hero, photos, floorplans, backgrounds, contactvideo, docs)
// @Param        space   formData  string  false  "Space for new photos"
// @Param        file    formData  file    true   "Files to upload"
// @Success      200     {object}  BatchResponse
// @Failure      400     {object}  BatchResponse  "Invalid file"
// @Failure      401     {object}  respond.ErrorResponse  "Unauthorized"
// @Failure      403     {object}  respond.ErrorResponse  "Forbidden"
// @Failure      413     {object}  BatchResponse  "File too large"
// @Failure      500     {object}  BatchResponse  "Upload failed"
// @Router       /admin/upload/batch [post]
// @Security     BearerAuth
func (h *MediaHandler) UploadBatch(w http.ResponseWriter, r *http.Request) {
	form, ok := h.parseForm(w, r, h.maxBytes*maxBatchFiles+formOverhead)
	if !ok {
		return
	}
	headers := form.File["file"]
	if len(headers) == 0 {
		h.respond.Fail(w, http.StatusBadRequest, "Could not get file")
		return
	}
	if len(headers) > maxBatchFiles {
		h.respond.Fail(w, http.StatusBadRequest, "Too many files")
		return
	}

	files := make([]service.UploadedFile, len(headers))
	for i, header := range headers {
		files[i] = &service.FileHeaderWrapper{FileHeader: header}
	}
	req := service.BatchRequest{
		Slug:   r.FormValue("slug"),
		Folder: core.Folder(r.FormValue("folder")),
		Files:  files,
		Space:  r.FormValue("space"),
		Progress: func(p service.Progress) {
			h.logger.Debugw("Batch upload progress", "slug", r.FormValue("slug"), "index", p.Index, "total", p.Total, "filename", p.Filename)
		},
	}

	result, err := h.service.UploadBatch(r.Context(), req, authhandler.EditorFrom(r.Context()))
	if err != nil {
		if result == nil {
			h.respond.Error(w, r, err, "slug", req.Slug, "folder", req.Folder)
			return
		}
		h.logger.Warnw("Batch upload stopped", "slug", req.Slug, "folder", req.Folder, "uploaded", len(result.Uploaded), "error", err)
		h.respond.JSON(w, h.respond.Status(err), BatchResponse{Error: err.Error(), BatchResult: result})
		return
	}
	h.respond.JSON(w, http.StatusOK, BatchResponse{OK: true, BatchResult: result})
}

// parseForm reads a multipart body of at most limit bytes.
func (h *MediaHandler) parseForm(w http.ResponseWriter, r *http.Request, limit int64) (*multipart.Form, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(formMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respond.Fail(w, http.StatusRequestEntityTooLarge, "Request too large")
			return nil, false
		}
		h.respond.Fail(w, http.StatusBadRequest, "Could not parse form")
		return nil, false
	}
	return r.MultipartForm, true
}

// @Summary      Signed upload URL
// @Description  Issue a 15 minute signed URL for a direct upload to the object store
// @Tags         media
// @Accept       json
// @Produce      json
// @Param        request  body      UploadURLRequest  true  "Object to upload"
// @Success      200      {object}  UploadURLResponse
// @Failure      400      {object}  respond.ErrorResponse  "Invalid payload"
// @Failure      401      {object}  respond.ErrorResponse  "Unauthorized"
// @Failure      403      {object}  respond.ErrorResponse  "Forbidden"
// @Failure      413      {object}  respond.ErrorResponse  "File too large"
// @Failure      500      {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /admin/upload-url [post]
// @Security     BearerAuth
func (h *MediaHandler) UploadURL(w http.ResponseWriter, r *http.Request) {
	var req UploadURLRequest
	if !h.decode(w, r, &req) {
		return
	}
	url, err := h.service.UploadURL(r.Context(), service.UploadURLRequest{
		Slug:        req.Slug,
		Folder:      core.Folder(req.Folder),
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Size:        req.Size,
	})
	if err != nil {
		h.respond.Error(w, r, err, "slug", req.Slug, "filename", req.Filename)
		return
	}
	h.respond.JSON(w, http.StatusOK, UploadURLResponse{OK: true, UploadURL: url})
}

// @Summary      Assign a photo to a space
// @Tags         media
// @Accept       json
// @Produce      json
// @Param        request  body      AssignSpaceRequest  true  "Assignment"
// @Success      200      {object}  ListingResponse
// @Failure      400      {object}  respond.ErrorResponse  "Invalid payload"
// @Failure      500      {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /admin/media/spaces/assign [post]
// @Security     BearerAuth
func (h *MediaHandler) AssignSpace(w http.ResponseWriter, r *http.Request) {
	var req AssignSpaceRequest
	if !h.decode(w, r, &req) {
		return
	}
	listing, err := h.service.AssignSpace(r.Context(), req.Slug, req.ObjectPath, req.Space, authhandler.EditorFrom(r.Context()))
	h.listing(w, r, listing, err, "slug", req.Slug)
}

// @Summary      Add a space
// @Tags         media
// @Accept       json
// @Produce      json
// @Param        request  body      AddSpaceRequest  true  "Space"
// @Success      200      {object}  ListingResponse
// @Failure      400      {object}  respond.ErrorResponse  "Invalid payload"
// @Failure      500      {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /admin/media/spaces [post]
// @Security     BearerAuth
func (h *MediaHandler) AddSpace(w http.ResponseWriter, r *http.Request) {
	var req AddSpaceRequest
	if !h.decode(w, r, &req) {
		return
	}
	listing, err := h.service.AddSpace(r.Context(), req.Slug, req.Name, authhandler.EditorFrom(r.Context()))
	h.listing(w, r, listing, err, "slug", req.Slug)
}

// @Summary      Move a space group
// @Description  Move the group "from" to the position of "to" and re-sort photos by space
// @Tags         media
// @Accept       json
// @Produce      json
// @Param        request  body      MoveGroupRequest  true  "Move"
// @Success      200      {object}  ListingResponse
// @Failure      400      {object}  respond.ErrorResponse  "Invalid payload"
// @Failure      500      {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /admin/media/spaces/move [post]
// @Security     BearerAuth
func (h *MediaHandler) MoveGroup(w http.ResponseWriter, r *http.Request) {
	var req MoveGroupRequest
	if !h.decode(w, r, &req) {
		return
	}
	listing, err := h.service.MoveGroup(r.Context(), req.Slug, req.From, req.To, authhandler.EditorFrom(r.Context()))
	h.listing(w, r, listing, err, "slug", req.Slug)
}

// @Summary      Reorder a folder
// @Description  Move the item at index "from" to index "to" within one folder
// @Tags         media
// @Accept       json
// @Produce      json
// @Param        request  body      ReorderRequest  true  "Move"
// @Success      200      {object}  ListingResponse
// @Failure      400      {object}  respond.ErrorResponse  "Invalid payload"
// @Failure      500      {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /admin/media/reorder [post]
// @Security     BearerAuth
func (h *MediaHandler) Reorder(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !h.decode(w, r, &req) {
		return
	}
	listing, err := h.service.Reorder(r.Context(), req.Slug, core.Folder(req.Folder), req.From, req.To, authhandler.EditorFrom(r.Context()))
	h.listing(w, r, listing, err, "slug", req.Slug)
}

// @Summary      Relabel a document
// @Tags         media
// @Accept       json
// @Produce      json
// @Param        request  body      RenameDocumentRequest  true  "Label"
// @Success      200      {object}  ListingResponse
// @Failure      400      {object}  respond.ErrorResponse  "Invalid payload"
// @Failure      500      {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /admin/media/documents/label [post]
// @Security     BearerAuth
func (h *MediaHandler) RenameDocument(w http.ResponseWriter, r *http.Request) {
	var req RenameDocumentRequest
	if !h.decode(w, r, &req) {
		return
	}
	listing, err := h.service.RenameDocument(r.Context(), req.Slug, req.ObjectPath, req.Label, authhandler.EditorFrom(r.Context()))
	h.listing(w, r, listing, err, "slug", req.Slug)
}
