package models

// ConnectionStatus is the advisory presence marker stored on the user row.
type ConnectionStatus string

const (
	StatusOnline  ConnectionStatus = "Online"
	StatusOffline ConnectionStatus = "Offline"
)

type User struct {
	UserID          string           `json:"user_id"`
	LoginUsername   string           `json:"login_username"`
	DisplayUsername string           `json:"display_username"`
	PasswordHash    string           `json:"password_hash,omitempty"`
	Status          ConnectionStatus `json:"status"`
	Rooms           []string         `json:"rooms"`
}

type Room struct {
	RoomID  string   `json:"room_id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// StoredMessage is immutable once written.
type StoredMessage struct {
	MessageID    string `json:"message_id"`
	RoomID       string `json:"room_id"`
	SenderUserID string `json:"sender_user_id"`
	WsID         string `json:"ws_id"`
	Content      string `json:"content"`
	Timestamp    int64  `json:"timestamp"`
}

// RoomUser is the (user_id, display_username) pair sent in the
// Initialization frame's user map.
type RoomUser struct {
	UserID          string `json:"user_id"`
	DisplayUsername string `json:"display_username"`
}

type CredentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
