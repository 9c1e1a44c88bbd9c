package ws

import (
	"context"
	"slices"
	"sort"
	"sync"

	"chat-server/internal/database"
	"chat-server/internal/models"
)

// fakeStore is an in-memory database.Store with per-call error injection.
type fakeStore struct {
	mu       sync.Mutex
	users    map[string]*models.User
	rooms    map[string]*models.Room
	messages []models.StoredMessage

	statusLog []models.ConnectionStatus

	getRoomErr        error
	historyErr        error
	appendErr         error
	setStatusErr      error
	usersInRoomErr    error
	updateUsernameErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]*models.User),
		rooms: make(map[string]*models.Room),
	}
}

func (f *fakeStore) removeUser(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, userID)
}

func (f *fakeStore) addUser(u *models.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[u.UserID] = u
}

func (f *fakeStore) addRoom(r *models.Room) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rooms[r.RoomID] = r
}

func (f *fakeStore) FindUserByLogin(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.LoginUsername == email {
			clone := *u
			return &clone, nil
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
	clone := *u
	return &clone, nil
}

func (f *fakeStore) CreateUser(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.LoginUsername == user.LoginUsername {
			return database.ErrEmailTaken
		}
		if u.DisplayUsername == user.DisplayUsername {
			return database.ErrUsernameTaken
		}
	}
	clone := *user
	f.users[user.UserID] = &clone
	return nil
}

func (f *fakeStore) UpdateUsername(ctx context.Context, userID, newUsername string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateUsernameErr != nil {
		return f.updateUsernameErr
	}
	u, ok := f.users[userID]
	if !ok {
		return database.ErrNotFound
	}
	for uid, other := range f.users {
		if uid != userID && other.DisplayUsername == newUsername {
			return database.ErrUsernameTaken
		}
	}
	u.DisplayUsername = newUsername
	return nil
}

func (f *fakeStore) SetStatus(ctx context.Context, userID string, status models.ConnectionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setStatusErr != nil {
		return f.setStatusErr
	}
	f.statusLog = append(f.statusLog, status)
	if u, ok := f.users[userID]; ok {
		u.Status = status
	}
	return nil
}

func (f *fakeStore) CreateRoom(ctx context.Context, room *models.Room) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *room
	clone.Members = slices.Clone(room.Members)
	f.rooms[room.RoomID] = &clone
	return nil
}

func (f *fakeStore) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getRoomErr != nil {
		return nil, f.getRoomErr
	}
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, database.ErrNotFound
	}
	clone := *r
	clone.Members = slices.Clone(r.Members)
	return &clone, nil
}

func (f *fakeStore) GetOrCreateRoomByName(ctx context.Context, name string) (*models.Room, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rooms {
		if r.Name == name {
			clone := *r
			return &clone, nil
		}
	}
	room := &models.Room{RoomID: "room-" + name, Name: name, Members: []string{}}
	f.rooms[room.RoomID] = room
	clone := *room
	return &clone, nil
}

func (f *fakeStore) AddMember(ctx context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rooms[roomID]; ok && !slices.Contains(r.Members, userID) {
		r.Members = append(r.Members, userID)
	}
	if u, ok := f.users[userID]; ok && !slices.Contains(u.Rooms, roomID) {
		u.Rooms = append(u.Rooms, roomID)
	}
	return nil
}

func (f *fakeStore) RemoveMember(ctx context.Context, roomID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rooms[roomID]; ok {
		r.Members = slices.DeleteFunc(slices.Clone(r.Members), func(id string) bool { return id == userID })
	}
	if u, ok := f.users[userID]; ok {
		u.Rooms = slices.DeleteFunc(slices.Clone(u.Rooms), func(id string) bool { return id == roomID })
	}
	return nil
}

func (f *fakeStore) MembersOf(ctx context.Context, roomID string) ([]string, error) {
	room, err := f.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return room.Members, nil
}

func (f *fakeStore) UsersInRoom(ctx context.Context, roomID string) ([]models.RoomUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.usersInRoomErr != nil {
		return nil, f.usersInRoomErr
	}
	var out []models.RoomUser
	for _, u := range f.users {
		if slices.Contains(u.Rooms, roomID) {
			out = append(out, models.RoomUser{UserID: u.UserID, DisplayUsername: u.DisplayUsername})
		}
	}
	return out, nil
}

func (f *fakeStore) AppendMessage(ctx context.Context, msg *models.StoredMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeStore) History(ctx context.Context, roomID string) ([]models.StoredMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	var out []models.StoredMessage
	for _, m := range f.messages {
		if m.RoomID == roomID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (f *fakeStore) DeleteMessage(ctx context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = slices.DeleteFunc(f.messages, func(m models.StoredMessage) bool {
		return m.MessageID == messageID
	})
	return nil
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) storedMessages() []models.StoredMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.messages)
}

func (f *fakeStore) statuses() []models.ConnectionStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.statusLog)
}

// recordingHandle collects deliveries for assertions.
type recordingHandle struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (h *recordingHandle) Deliver(payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.payloads = append(h.payloads, payload)
}

func (h *recordingHandle) received() [][]byte {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.payloads)
}

// drainSession empties a session's mailbox without blocking.
func drainSession(s *Session) [][]byte {
	var out [][]byte
	for {
		select {
		case payload := <-s.send:
			out = append(out, payload)
		default:
			return out
		}
	}
}
