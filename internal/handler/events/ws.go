package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	authhandler "github.com/bulatminnakhmetov/property-site/internal/handler/auth"
	"github.com/bulatminnakhmetov/property-site/internal/handler/respond"
	core "github.com/bulatminnakhmetov/property-site/internal/media"
)

const (
	MsgTypeManifestUpdated = "manifest.updated"

	writeTimeout = 10 * time.Second
)

// ChangeEvent tells owner sessions that the media of a listing changed.
type ChangeEvent struct {
	Type    string `json:"type"`
	Slug    string `json:"slug"`
	Version int64  `json:"version"`
	Reason  string `json:"reason"`
}

// WSConn is the part of *websocket.Conn used by the hub.
type WSConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

type deadliner interface {
	SetWriteDeadline(t time.Time) error
}

type Client struct {
	conn  WSConn
	slug  string
	email string
	// writeMu serializes writes; websocket connections allow one writer.
	writeMu sync.Mutex
}

func (c *Client) write(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if d, ok := c.conn.(deadliner); ok {
		_ = d.SetWriteDeadline(time.Now().Add(writeTimeout))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Handler keeps websocket subscribers per listing and fans out manifest
// changes to them.
type Handler struct {
	upgrader     websocket.Upgrader
	clients      map[string]map[*Client]struct{}
	clientsMutex sync.RWMutex
	respond      *respond.Responder
	logger       *zap.SugaredLogger
}

func NewHandler(responder *respond.Responder, logger *zap.SugaredLogger) *Handler {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[string]map[*Client]struct{}),
		respond: responder,
		logger:  logger,
	}
}

// @Summary      Media change feed
// @Description  Websocket that receives {type:"manifest.updated", slug, version, reason} after every media write of the listing. Browsers pass the token as access_token
// @Tags         media
// @Param        slug          query  string  true   "Listing slug"
// @Param        access_token  query  string  false  "ID token when the Authorization header cannot be set"
// @Success      101
// @Failure      400  {object}  respond.ErrorResponse  "Missing slug"
// @Failure      401  {object}  respond.ErrorResponse  "Unauthorized"
// @Failure      403  {object}  respond.ErrorResponse  "Forbidden"
// @Router       /admin/events [get]
// @Security     BearerAuth
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	slug := core.SanitizeSlug(r.URL.Query().Get("slug"))
	if slug == "" {
		h.respond.Fail(w, http.StatusBadRequest, "Missing slug")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("Failed to upgrade to websocket", "slug", slug, "error", err)
		return
	}

	email := ""
	if id, ok := authhandler.IdentityFrom(r.Context()); ok {
		email = id.Email
	}
	h.handleWSConnection(conn, slug, email)
}

func (h *Handler) handleWSConnection(conn WSConn, slug, email string) *Client {
	client := &Client{
		conn:  conn,
		slug:  slug,
		email: email,
	}

	h.clientsMutex.Lock()
	if h.clients[slug] == nil {
		h.clients[slug] = make(map[*Client]struct{})
	}
	h.clients[slug][client] = struct{}{}
	h.clientsMutex.Unlock()

	h.logger.Infow("Owner subscribed to media changes", "slug", slug, "email", email)
	go h.handleClient(client)
	return client
}

// handleClient drains the connection until the peer goes away. Subscribers
// never send anything meaningful.
func (h *Handler) handleClient(client *Client) {
	defer h.remove(client)

	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warnw("WebSocket error", "slug", client.slug, "error", err)
			}
			return
		}
	}
}

func (h *Handler) remove(client *Client) {
	h.clientsMutex.Lock()
	subscribers, ok := h.clients[client.slug]
	if ok {
		if _, ok = subscribers[client]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, client.slug)
			}
		}
	}
	h.clientsMutex.Unlock()
	if ok {
		client.conn.Close()
	}
}

// Subscribers returns the number of open connections for slug.
func (h *Handler) Subscribers(slug string) int {
	h.clientsMutex.RLock()
	defer h.clientsMutex.RUnlock()
	return len(h.clients[slug])
}

// ManifestChanged broadcasts a change event to every subscriber of slug.
// Connections that cannot be written to are dropped.
func (h *Handler) ManifestChanged(slug string, version int64, reason string) {
	data, err := json.Marshal(ChangeEvent{
		Type:    MsgTypeManifestUpdated,
		Slug:    slug,
		Version: version,
		Reason:  reason,
	})
	if err != nil {
		h.logger.Errorw("Failed to marshal change event", "slug", slug, "error", err)
		return
	}

	h.clientsMutex.RLock()
	targets := make([]*Client, 0, len(h.clients[slug]))
	for client := range h.clients[slug] {
		targets = append(targets, client)
	}
	h.clientsMutex.RUnlock()

	for _, client := range targets {
		if err := client.write(data); err != nil {
			h.logger.Warnw("Dropping subscriber", "slug", slug, "email", client.email, "error", err)
			h.remove(client)
		}
	}
}
