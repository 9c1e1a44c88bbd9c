package handlers

import (
	"errors"
	"net/http"

	"chat-server/internal/auth"
	"chat-server/internal/database"
	"chat-server/internal/models"
	"chat-server/internal/registry"
	"chat-server/internal/ws"
	"chat-server/pkg/logger"

	"github.com/gorilla/sessions"
	"github.com/gorilla/websocket"
)

type WebSocketHandlers struct {
	authService *auth.Service
	store       database.Store
	registry    *registry.Registry
	broadcaster *ws.Broadcaster
	presence    *ws.PresenceWriter
	sessions    sessions.Store
	mainRoomID  string
	upgrader    websocket.Upgrader
}

func NewWebSocketHandlers(authService *auth.Service, store database.Store, reg *registry.Registry,
	broadcaster *ws.Broadcaster, presence *ws.PresenceWriter, sessionStore sessions.Store,
	mainRoomID string) *WebSocketHandlers {
	return &WebSocketHandlers{
		authService: authService,
		store:       store,
		registry:    reg,
		broadcaster: broadcaster,
		presence:    presence,
		sessions:    sessionStore,
		mainRoomID:  mainRoomID,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// HandleWebSocket authenticates the request, upgrades it and hands the
// connection to a session that lives for as long as the socket does.
// The session cookie is the primary credential; a JWT in the token query
// parameter is accepted for clients that cannot carry cookies.
func (h *WebSocketHandlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := h.authenticate(r)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			h.purgeSession(w, r)
		}
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade connection: %v", err)
		return
	}

	session := ws.NewSession(conn, user, h.mainRoomID, h.store, h.registry, h.broadcaster, h.presence)
	session.Start()
}

func (h *WebSocketHandlers) authenticate(r *http.Request) (*models.User, error) {
	if userID := h.sessionUserID(r); userID != "" {
		return h.store.FindUserByID(r.Context(), userID)
	}
	if token := r.URL.Query().Get("token"); token != "" {
		user, err := h.authService.UserFromToken(r.Context(), token)
		if err != nil {
			logger.Warn("Invalid websocket token: %v", err)
		}
		return user, err
	}
	return nil, database.ErrNotFound
}

func (h *WebSocketHandlers) sessionUserID(r *http.Request) string {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return ""
	}
	userID, _ := session.Values[sessionKey].(string)
	return userID
}

func (h *WebSocketHandlers) purgeSession(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		logger.Error("Failed to purge session: %v", err)
	}
}
