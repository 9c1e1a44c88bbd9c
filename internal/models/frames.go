package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// The wire protocol is a stream of UTF-8 JSON text frames. Each frame is an
// externally tagged union: a single-key object whose key names the variant,
// e.g. {"Basic":{"content":"hi","sender_id":"..."}}.

var (
	ErrUnknownVariant = errors.New("unknown frame variant")
	ErrNotTagged      = errors.New("frame must carry exactly one variant tag")
)

type BasicMessage struct {
	Content   string `json:"content"`
	SenderID  string `json:"sender_id"`
	Timestamp int64  `json:"timestamp"`
	MessageID string `json:"message_id"`
	RoomID    string `json:"room_id"`
	WsID      string `json:"ws_id"`
}

type UsernameChangeMessage struct {
	NewUsername string `json:"new_username"`
	SenderID    string `json:"sender_id"`
}

type CreateRoomChangeMessage struct {
	RoomName string `json:"room_name"`
	SenderID string `json:"sender_id"`
}

type ChangeRoomMessage struct {
	RoomID   string `json:"room_id"`
	SenderID string `json:"sender_id"`
}

type UserRemovalMessage struct {
	RemovedUser string `json:"removed_user"`
	RoomID      string `json:"room_id"`
	SenderID    string `json:"sender_id"`
}

// NewUserMessage is server→client only, broadcast to the main room on signup.
type NewUserMessage struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// InitializationMessage is server→client only, sent once on session startup.
type InitializationMessage struct {
	UserID   string            `json:"user_id"`
	WsID     string            `json:"ws_id"`
	Username string            `json:"username"`
	UserMap  map[string]string `json:"user_map"`
}

// Frame is the tagged union over all wire message variants. Exactly one
// field is non-nil on a valid frame.
type Frame struct {
	Basic            *BasicMessage            `json:"Basic,omitempty"`
	UsernameChange   *UsernameChangeMessage   `json:"UsernameChange,omitempty"`
	CreateRoomChange *CreateRoomChangeMessage `json:"CreateRoomChange,omitempty"`
	ChangeRoom       *ChangeRoomMessage       `json:"ChangeRoom,omitempty"`
	UserRemoval      *UserRemovalMessage      `json:"UserRemoval,omitempty"`
	NewUser          *NewUserMessage          `json:"NewUser,omitempty"`
	Initialization   *InitializationMessage   `json:"Initialization,omitempty"`
}

// ParseFrame decodes a single wire frame. Frames with zero tags, multiple
// tags, or an unrecognized tag are rejected.
func ParseFrame(data []byte) (*Frame, error) {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return nil, fmt.Errorf("decoding frame: %w", err)
	}
	if len(tagged) != 1 {
		return nil, ErrNotTagged
	}

	frame := &Frame{}
	for tag, payload := range tagged {
		var dst any
		switch tag {
		case "Basic":
			frame.Basic = &BasicMessage{}
			dst = frame.Basic
		case "UsernameChange":
			frame.UsernameChange = &UsernameChangeMessage{}
			dst = frame.UsernameChange
		case "CreateRoomChange":
			frame.CreateRoomChange = &CreateRoomChangeMessage{}
			dst = frame.CreateRoomChange
		case "ChangeRoom":
			frame.ChangeRoom = &ChangeRoomMessage{}
			dst = frame.ChangeRoom
		case "UserRemoval":
			frame.UserRemoval = &UserRemovalMessage{}
			dst = frame.UserRemoval
		case "NewUser":
			frame.NewUser = &NewUserMessage{}
			dst = frame.NewUser
		case "Initialization":
			frame.Initialization = &InitializationMessage{}
			dst = frame.Initialization
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, tag)
		}
		if err := json.Unmarshal(payload, dst); err != nil {
			return nil, fmt.Errorf("decoding %s payload: %w", tag, err)
		}
	}

	return frame, nil
}

// EncodeFrame serializes a frame back into its single-tag wire form.
func EncodeFrame(frame *Frame) ([]byte, error) {
	return json.Marshal(frame)
}

// SenderID returns the embedded sender of a client→server variant. The
// second result is false for server-only variants, which carry no sender
// and are never accepted inbound.
func (f *Frame) SenderID() (string, bool) {
	switch {
	case f.Basic != nil:
		return f.Basic.SenderID, true
	case f.UsernameChange != nil:
		return f.UsernameChange.SenderID, true
	case f.CreateRoomChange != nil:
		return f.CreateRoomChange.SenderID, true
	case f.ChangeRoom != nil:
		return f.ChangeRoom.SenderID, true
	case f.UserRemoval != nil:
		return f.UserRemoval.SenderID, true
	}
	return "", false
}
