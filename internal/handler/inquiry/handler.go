package inquiry

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bulatminnakhmetov/property-site/internal/client/email"
	"github.com/bulatminnakhmetov/property-site/internal/handler/respond"
	core "github.com/bulatminnakhmetov/property-site/internal/media"
	"github.com/bulatminnakhmetov/property-site/internal/validate"
)

const missingFields = "Missing required fields."

type InquiryRequest struct {
	PropertySlug string `json:"propertySlug" validate:"required"`
	Name         string `json:"name" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone"`
	Message      string `json:"message"`
}

func (r *InquiryRequest) trim() {
	r.PropertySlug = strings.TrimSpace(r.PropertySlug)
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Message = strings.TrimSpace(r.Message)
}

type InquiryResponse struct {
	OK bool   `json:"ok"`
	ID string `json:"id"`
}

type InquiryHandler struct {
	provider  email.Provider
	respond   *respond.Responder
	validator *validate.Validator
	logger    *zap.SugaredLogger
	// agentEmail receives inquiries. Empty disables forwarding.
	agentEmail string
}

func NewInquiryHandler(provider email.Provider, agentEmail string, responder *respond.Responder, logger *zap.SugaredLogger) *InquiryHandler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &InquiryHandler{
		provider:   provider,
		respond:    responder,
		validator:  validate.New(),
		logger:     logger,
		agentEmail: agentEmail,
	}
}

// @Summary      Send an inquiry
// @Description  Record a lead for a listing
// @Tags         public
// @Accept       json
// @Produce      json
// @Param        request  body      InquiryRequest  true  "Inquiry"
// @Success      200      {object}  InquiryResponse
// @Failure      400      {object}  respond.ErrorResponse  "Missing required fields"
// @Router       /inquire [post]
func (h *InquiryHandler) Inquire(w http.ResponseWriter, r *http.Request) {
	var req InquiryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respond.Fail(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	req.trim()

	if err := h.validator.Struct(&req); err != nil {
		if missing(err) {
			h.respond.Fail(w, http.StatusBadRequest, missingFields)
			return
		}
		h.respond.Error(w, r, err)
		return
	}

	id := uuid.New().String()
	slug := core.SanitizeSlug(req.PropertySlug)
	h.logger.Infow("Inquiry received",
		"id", id,
		"propertySlug", slug,
		"name", req.Name,
		"email", req.Email,
		"hasPhone", req.Phone != "",
		"messageLength", len(req.Message),
	)

	if h.provider != nil && h.agentEmail != "" {
		msg := email.Message{
			To:      h.agentEmail,
			ReplyTo: req.Email,
			Subject: fmt.Sprintf("Inquiry about %s from %s", slug, req.Name),
			Body:    body(id, slug, req, time.Now().UTC()),
		}
		if err := h.provider.Send(r.Context(), msg); err != nil {
			h.logger.Warnw("Failed to forward inquiry", "id", id, "error", err)
		}
	}

	h.respond.JSON(w, http.StatusOK, InquiryResponse{OK: true, ID: id})
}

func missing(err error) bool {
	var ve *validate.ValidationError
	if !errors.As(err, &ve) {
		return false
	}
	for _, msg := range ve.Errors {
		if msg == "is required" {
			return true
		}
	}
	return false
}

func body(id, slug string, req InquiryRequest, at time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Inquiry %s\n", id)
	fmt.Fprintf(&b, "Listing: %s\n", slug)
	fmt.Fprintf(&b, "Received: %s\n", at.Format(time.RFC3339))
	fmt.Fprintf(&b, "Name: %s\n", req.Name)
	fmt.Fprintf(&b, "Email: %s\n", req.Email)
	if req.Phone != "" {
		fmt.Fprintf(&b, "Phone: %s\n", req.Phone)
	}
	if req.Message != "" {
		fmt.Fprintf(&b, "\n%s\n", req.Message)
	}
	return b.String()
}
