package property

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	authhandler "github.com/bulatminnakhmetov/property-site/internal/handler/auth"
	"github.com/bulatminnakhmetov/property-site/internal/handler/respond"
	core "github.com/bulatminnakhmetov/property-site/internal/media"
	model "github.com/bulatminnakhmetov/property-site/internal/property"
)

type PropertyService interface {
	Get(ctx context.Context, slug string) (*model.Property, error)
	Save(ctx context.Context, slug string, p *model.Property, editor core.Editor) (*model.Property, error)
	Public(ctx context.Context, slug string) (*model.Property, error)
	Summaries(ctx context.Context) ([]model.Summary, error)
}

type PropertyHandler struct {
	service PropertyService
	respond *respond.Responder
}

func NewPropertyHandler(service PropertyService, responder *respond.Responder) *PropertyHandler {
	return &PropertyHandler{
		service: service,
		respond: responder,
	}
}

// SavePropertyRequest carries listing fields. Media lists other than the
// video and tours are managed by the media API and ignored here.
type SavePropertyRequest struct {
	Slug     string          `json:"slug"`
	Property *model.Property `json:"property"`
}

type PropertyResponse struct {
	OK       bool            `json:"ok"`
	Property *model.Property `json:"property"`
}

type SummariesResponse struct {
	OK         bool            `json:"ok"`
	Properties []model.Summary `json:"properties"`
}

// @Summary      Get listing for editing
// @Description  Return the stored listing fields without signing media references
// @Tags         property
// @Produce      json
// @Param        slug  query     string  true  "Listing slug"
// @Success      200   {object}  PropertyResponse
// @Failure      400   {object}  respond.ErrorResponse  "Missing slug"
// @Failure      401   {object}  respond.ErrorResponse  "Unauthorized"
// @Failure      403   {object}  respond.ErrorResponse  "Forbidden"
// @Failure      404   {object}  respond.ErrorResponse  "Listing not found"
// @Failure      500   {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /admin/property [get]
// @Security     BearerAuth
func (h *PropertyHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	p, err := h.service.Get(r.Context(), slug)
	if err != nil {
		h.respond.Error(w, r, err, "slug", slug)
		return
	}
	h.respond.JSON(w, http.StatusOK, PropertyResponse{OK: true, Property: p})
}

// @Summary      Save listing fields
// @Description  Merge listing fields into the stored listing. The media manifest is left untouched
// @Tags         property
// @Accept       json
// @Produce      json
// @Param        request  body      SavePropertyRequest  true  "Listing"
// @Success      200      {object}  PropertyResponse
// @Failure      400      {object}  respond.ErrorResponse  "Invalid payload"
// @Failure      401      {object}  respond.ErrorResponse  "Unauthorized"
// @Failure      403      {object}  respond.ErrorResponse  "Forbidden"
// @Failure      500      {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /admin/property [post]
// @Security     BearerAuth
func (h *PropertyHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SavePropertyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.Fail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	p, err := h.service.Save(r.Context(), req.Slug, req.Property, authhandler.EditorFrom(r.Context()))
	if err != nil {
		h.respond.Error(w, r, err, "slug", req.Slug)
		return
	}
	h.respond.JSON(w, http.StatusOK, PropertyResponse{OK: true, Property: p})
}

// @Summary      List properties
// @Description  Index cards of every listing with a signed hero image
// @Tags         public
// @Produce      json
// @Success      200  {object}  SummariesResponse
// @Failure      500  {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /properties [get]
func (h *PropertyHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.Summaries(r.Context())
	if err != nil {
		h.respond.Error(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []model.Summary{}
	}
	h.respond.JSON(w, http.StatusOK, SummariesResponse{OK: true, Properties: summaries})
}

// @Summary      Get property
// @Description  Listing with media resolved to signed read URLs
// @Tags         public
// @Produce      json
// @Param        slug  path      string  true  "Listing slug"
// @Success      200   {object}  PropertyResponse
// @Failure      404   {object}  respond.ErrorResponse  "Listing not found"
// @Failure      500   {object}  respond.ErrorResponse  "Upstream failure"
// @Router       /properties/{slug} [get]
func (h *PropertyHandler) Public(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	p, err := h.service.Public(r.Context(), slug)
	if err != nil {
		h.respond.Error(w, r, err, "slug", slug)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=300")
	h.respond.JSON(w, http.StatusOK, PropertyResponse{OK: true, Property: p})
}
