package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/bulatminnakhmetov/property-site/internal/handler/respond"
	"github.com/bulatminnakhmetov/property-site/internal/media"
	authservice "github.com/bulatminnakhmetov/property-site/internal/service/auth"
)

type contextKey struct{}

// identityKey holds the verified *authservice.Identity of an admin request.
var identityKey = contextKey{}

type AuthHandler struct {
	authService *authservice.AuthService
	respond     *respond.Responder
}

func NewAuthHandler(authService *authservice.AuthService, responder *respond.Responder) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		respond:     responder,
	}
}

// @Summary      Current identity
// @Description  Verify the bearer token and report whether the caller may use the owner console
// @Tags         auth
// @Produce      json
// @Success      200  {object}  authservice.Me
// @Failure      401  {object}  respond.ErrorResponse  "Missing or invalid token"
// @Failure      500  {object}  respond.ErrorResponse  "Identity provider not configured"
// @Router       /admin/me [get]
// @Security     BearerAuth
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	me, err := h.authService.WhoAmI(r.Context(), extractToken(r))
	if err != nil {
		if errors.Is(err, authservice.ErrUnauthenticated) {
			allowed := false
			h.respond.JSON(w, http.StatusUnauthorized, respond.ErrorResponse{
				Envelope: respond.Envelope{Error: "Unauthorized"},
				Allowed:  &allowed,
			})
			return
		}
		h.respond.Error(w, r, err)
		return
	}
	h.respond.JSON(w, http.StatusOK, me)
}

// Middleware admits allow-listed owners only and stores their identity in
// the request context.
func (h *AuthHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := h.authService.Authenticate(r.Context(), extractToken(r))
		if err != nil {
			h.respond.Error(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom returns the identity stored by Middleware.
func IdentityFrom(ctx context.Context) (*authservice.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*authservice.Identity)
	return id, ok && id != nil
}

// WithIdentity stores id in ctx the way Middleware does.
func WithIdentity(ctx context.Context, id *authservice.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// EditorFrom describes the caller for updatedBy fields.
func EditorFrom(ctx context.Context) media.Editor {
	id, ok := IdentityFrom(ctx)
	if !ok {
		return media.Editor{Source: "api"}
	}
	return media.Editor{UID: id.UID, Email: id.Email}
}

// extractToken reads "Authorization: Bearer <token>". Websocket clients
// cannot set headers and pass access_token in the query instead.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return r.URL.Query().Get("access_token")
}
