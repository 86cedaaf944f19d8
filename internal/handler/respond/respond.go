package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/bulatminnakhmetov/property-site/internal/media"
	"github.com/bulatminnakhmetov/property-site/internal/service/auth"
)

const (
	SigningHint = "The server's service account likely needs roles/iam.serviceAccountTokenCreator to sign URLs."
	ProjectHint = "Firestore returned NOT_FOUND. This usually means the server is targeting the wrong GCP project, or Firestore isn't enabled for the target project."

	upstreamMessage = "Upstream request failed."
)

// Envelope is embedded in every JSON response.
type Envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Envelope
	Allowed *bool              `json:"allowed,omitempty"`
	Hint    string             `json:"hint,omitempty"`
	Config  *auth.ConfigStatus `json:"config,omitempty"`
}

// Responder writes JSON responses and maps errors to status codes.
type Responder struct {
	logger *zap.SugaredLogger
	status auth.ConfigStatus
}

func NewResponder(logger *zap.SugaredLogger, status auth.ConfigStatus) *Responder {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Responder{logger: logger, status: status}
}

// JSON writes v with the given status.
func (rs *Responder) JSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		rs.logger.Warnw("Failed to encode response", "error", err)
	}
}

// Fail writes an error envelope with a fixed message.
func (rs *Responder) Fail(w http.ResponseWriter, code int, msg string) {
	rs.JSON(w, code, ErrorResponse{Envelope: Envelope{Error: msg}})
}

// Error maps err onto a status code and a caller-safe message. Upstream
// failures are logged with the raw error and the credential status.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error, fields ...interface{}) {
	code, body := rs.classify(err)
	if code >= http.StatusInternalServerError {
		kv := append([]interface{}{
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"hasExplicitJson", rs.status.HasExplicitJSON,
			"hasBucket", rs.status.HasBucket,
			"error", err,
		}, fields...)
		rs.logger.Errorw("Request failed", kv...)
	}
	rs.JSON(w, code, body)
}

// Status returns the status code Error would write for err.
func (rs *Responder) Status(err error) int {
	code, _ := rs.classify(err)
	return code
}

func (rs *Responder) classify(err error) (int, ErrorResponse) {
	body := ErrorResponse{}
	switch {
	case errors.Is(err, auth.ErrMisconfigured):
		body.Error = auth.MisconfiguredMessage
		cfg := rs.status
		body.Config = &cfg
		return http.StatusInternalServerError, body
	case errors.Is(err, auth.ErrUnauthenticated):
		body.Error = "Unauthorized"
		return http.StatusUnauthorized, body
	case errors.Is(err, auth.ErrForbidden):
		body.Error = "Forbidden"
		return http.StatusForbidden, body
	case errors.Is(err, media.ErrTooLarge):
		body.Error = err.Error()
		return http.StatusRequestEntityTooLarge, body
	case errors.Is(err, media.ErrInvalidPayload),
		errors.Is(err, media.ErrUnsupportedType),
		errors.Is(err, media.ErrEmptyFile):
		body.Error = err.Error()
		return http.StatusBadRequest, body
	case errors.Is(err, media.ErrNotFound):
		body.Error = "Not found"
		return http.StatusNotFound, body
	case errors.Is(err, media.ErrConflict):
		body.Error = "The media was changed by another session. Reload and try again."
		return http.StatusConflict, body
	}

	body.Error = upstreamMessage
	body.Hint = Hint(err)
	var batchErr *media.BatchError
	if errors.As(err, &batchErr) {
		body.Error = batchErr.Error()
	}
	return http.StatusInternalServerError, body
}

// Hint returns operator guidance for recognizable upstream failures.
func Hint(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "signblob") || strings.Contains(lower, "permission") {
		return SigningHint
	}
	if status.Code(unwrapStatus(err)) == codes.NotFound ||
		strings.Contains(lower, "does not exist") ||
		strings.Contains(msg, "NOT_FOUND") {
		return ProjectHint + " (" + msg + ")"
	}
	return ""
}

// unwrapStatus finds a gRPC status error in the chain.
func unwrapStatus(err error) error {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if _, ok := status.FromError(e); ok {
			return e
		}
	}
	return err
}
