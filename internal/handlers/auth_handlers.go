package handlers

import (
	"encoding/json"
	"net/http"
	"path/filepath"

	"chat-server/internal/auth"
	"chat-server/internal/database"
	"chat-server/internal/models"
	"chat-server/internal/ws"
	"chat-server/pkg/logger"

	"github.com/gorilla/sessions"
)

const (
	sessionName = "session"
	sessionKey  = "key"
)

type AuthHandlers struct {
	authService *auth.Service
	store       database.Store
	broadcaster *ws.Broadcaster
	sessions    sessions.Store
	mainRoomID  string
	staticDir   string
}

func NewAuthHandlers(authService *auth.Service, store database.Store, broadcaster *ws.Broadcaster,
	sessionStore sessions.Store, mainRoomID, staticDir string) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
		store:       store,
		broadcaster: broadcaster,
		sessions:    sessionStore,
		mainRoomID:  mainRoomID,
		staticDir:   staticDir,
	}
}

// Signup creates the account, adds it to the main room and only then
// announces the new user, so the announcement never races membership.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.authService.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		logger.Error("Signup error: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.AddMember(r.Context(), h.mainRoomID, user.UserID); err != nil {
		logger.Error("Failed to add user %s to main room: %v", user.UserID, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	payload, err := models.EncodeFrame(&models.Frame{NewUser: &models.NewUserMessage{
		UserID:   user.UserID,
		Username: user.DisplayUsername,
	}})
	if err != nil {
		logger.Error("Failed to encode NewUser frame: %v", err)
	} else {
		h.broadcaster.Broadcast(r.Context(), payload, h.mainRoomID, user.UserID)
	}

	if err := h.setSession(w, r, user.UserID); err != nil {
		logger.Error("Failed to save session: %v", err)
	}

	h.respondWithToken(w, user, http.StatusCreated)
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.CredentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	user, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		logger.Error("Login error: %v", err)
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := h.setSession(w, r, user.UserID); err != nil {
		logger.Error("Failed to save session: %v", err)
	}

	h.respondWithToken(w, user, http.StatusOK)
}

func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	session, _ := h.sessions.Get(r, sessionName)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		logger.Error("Failed to purge session: %v", err)
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

func (h *AuthHandlers) HomePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if h.sessionUserID(r) == "" {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	http.ServeFile(w, r, filepath.Join(h.staticDir, "home_page.html"))
}

func (h *AuthHandlers) LoginPage(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.staticDir, "login_page.html"))
}

func (h *AuthHandlers) SignupPage(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.staticDir, "create_login_page.html"))
}

func (h *AuthHandlers) respondWithToken(w http.ResponseWriter, user *models.User, status int) {
	token, err := h.authService.GenerateToken(user)
	if err != nil {
		logger.Error("Failed to generate token: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	user.PasswordHash = ""
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.LoginResponse{Token: token, User: *user})
}

func (h *AuthHandlers) setSession(w http.ResponseWriter, r *http.Request, userID string) error {
	session, _ := h.sessions.Get(r, sessionName)
	session.Values[sessionKey] = userID
	return session.Save(r, w)
}

func (h *AuthHandlers) sessionUserID(r *http.Request) string {
	session, err := h.sessions.Get(r, sessionName)
	if err != nil {
		return ""
	}
	userID, _ := session.Values[sessionKey].(string)
	return userID
}
