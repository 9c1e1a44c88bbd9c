package database

import (
	"context"
	"errors"

	"chat-server/internal/models"
)

// Sentinel errors returned by store implementations. The store is
// authoritative for uniqueness of login_username and display_username.
var (
	ErrNotFound      = errors.New("not found")
	ErrEmailTaken    = errors.New("login username already taken")
	ErrUsernameTaken = errors.New("display username already taken")
)

type UserStore interface {
	FindUserByLogin(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, userID string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	// UpdateUsername is a single conditional update. It fails with
	// ErrUsernameTaken if another user already holds newUsername and with
	// ErrNotFound if userID does not exist, leaving no state change either
	// way. Renaming to one's own current name succeeds.
	UpdateUsername(ctx context.Context, userID, newUsername string) error
	SetStatus(ctx context.Context, userID string, status models.ConnectionStatus) error
}

type RoomStore interface {
	CreateRoom(ctx context.Context, room *models.Room) error
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
	GetOrCreateRoomByName(ctx context.Context, name string) (*models.Room, error)
	AddMember(ctx context.Context, roomID, userID string) error
	RemoveMember(ctx context.Context, roomID, userID string) error
	MembersOf(ctx context.Context, roomID string) ([]string, error)
	UsersInRoom(ctx context.Context, roomID string) ([]models.RoomUser, error)
}

type MessageStore interface {
	AppendMessage(ctx context.Context, msg *models.StoredMessage) error
	// History returns the room's messages ordered by timestamp ascending.
	History(ctx context.Context, roomID string) ([]models.StoredMessage, error)
	DeleteMessage(ctx context.Context, messageID string) error
}

type Store interface {
	UserStore
	RoomStore
	MessageStore
	Close() error
}
