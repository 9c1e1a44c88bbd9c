package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"chat-server/internal/auth"
	"chat-server/internal/config"
	"chat-server/internal/database"
	"chat-server/internal/models"
	"chat-server/internal/registry"
	"chat-server/internal/ws"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/require"
)

const mainRoomID = "aaaa0000aaaa0000aaaa0000aaaa0000"

// fakeStore overrides just the store methods the handlers reach; anything
// else panics through the embedded nil interface.
type fakeStore struct {
	database.Store

	mu    sync.Mutex
	users map[string]*models.User
	rooms map[string]*models.Room

	addMemberErr error
}

func newFakeStore() *fakeStore {
	f := &fakeStore{
		users: make(map[string]*models.User),
		rooms: make(map[string]*models.Room),
	}
	f.rooms[mainRoomID] = &models.Room{RoomID: mainRoomID, Name: "main", Members: []string{}}
	return f
}

// seedMember adds an existing user who is already in the main room.
func (f *fakeStore) seedMember(u *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Rooms = append(u.Rooms, mainRoomID)
	f.users[u.UserID] = u
	room := f.rooms[mainRoomID]
	room.Members = append(room.Members, u.UserID)
}

func (f *fakeStore) mainRoomMembers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.rooms[mainRoomID].Members)
}

func (f *fakeStore) FindUserByLogin(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.LoginUsername == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, database.ErrNotFound
}

func (f *fakeStore) FindUserByID(ctx context.Context, userID string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *user
	f.users[user.UserID] = &copied
	return nil
}

func (f *fakeStore) AddMember(ctx context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addMemberErr != nil {
		return f.addMemberErr
	}
	room, ok := f.rooms[roomID]
	if !ok {
		return database.ErrNotFound
	}
	if !slices.Contains(room.Members, userID) {
		room.Members = append(room.Members, userID)
	}
	if u, ok := f.users[userID]; ok && !slices.Contains(u.Rooms, roomID) {
		u.Rooms = append(u.Rooms, roomID)
	}
	return nil
}

func (f *fakeStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	room, ok := f.rooms[roomID]
	if !ok {
		return nil, database.ErrNotFound
	}
	copied := *room
	copied.Members = slices.Clone(room.Members)
	return &copied, nil
}

type recordingHandle struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (h *recordingHandle) Deliver(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payloads = append(h.payloads, slices.Clone(payload))
}

func (h *recordingHandle) received() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.payloads)
}

type testEnv struct {
	store        *fakeStore
	registry     *registry.Registry
	sessions     *sessions.CookieStore
	authService  *auth.Service
	authHandlers *AuthHandlers
	wsHandlers   *WebSocketHandlers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newFakeStore()
	reg := registry.New()
	broadcaster := ws.NewBroadcaster(store, reg)
	presence := ws.NewPresenceWriter(store)
	cfg := &config.Config{
		JWT: config.JWTConfig{Secret: []byte("test-jwt-secret"), ExpiresIn: time.Hour},
	}
	authService := auth.NewService(store, cfg)
	sessionStore := sessions.NewCookieStore([]byte("test-session-secret"))

	return &testEnv{
		store:        store,
		registry:     reg,
		sessions:     sessionStore,
		authService:  authService,
		authHandlers: NewAuthHandlers(authService, store, broadcaster, sessionStore, mainRoomID, "static"),
		wsHandlers:   NewWebSocketHandlers(authService, store, reg, broadcaster, presence, sessionStore, mainRoomID),
	}
}

// sessionCookie bakes a valid session cookie carrying the given user id.
func (e *testEnv) sessionCookie(t *testing.T, userID string) *http.Cookie {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	sess, err := e.sessions.Get(req, sessionName)
	require.NoError(t, err)
	sess.Values[sessionKey] = userID
	require.NoError(t, sess.Save(req, rec))

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies[0]
}
