package ws

import (
	"context"
	"errors"
	"slices"
	"time"

	"chat-server/internal/database"
	"chat-server/internal/models"
	"chat-server/internal/registry"
	"chat-server/pkg/ident"
	"chat-server/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	sendBufferSize = 256
)

// Session is the per-connection actor. Inbound frames are handled one at a
// time on the read pump; outbound deliveries drain through the send channel
// in enqueue order. The handle shared through the registry only ever touches
// the send channel, never the actor's state.
type Session struct {
	wsID        string
	userID      string
	username    string
	currentRoom string
	mainRoom    string
	rooms       []string

	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	store       database.Store
	registry    *registry.Registry
	broadcaster *Broadcaster
	presence    *PresenceWriter
}

func NewSession(conn *websocket.Conn, user *models.User, mainRoomID string,
	store database.Store, reg *registry.Registry, bc *Broadcaster, presence *PresenceWriter) *Session {
	return &Session{
		wsID:        ident.New(),
		userID:      user.UserID,
		username:    user.DisplayUsername,
		currentRoom: mainRoomID,
		mainRoom:    mainRoomID,
		rooms:       slices.Clone(user.Rooms),
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		done:        make(chan struct{}),
		store:       store,
		registry:    reg,
		broadcaster: bc,
		presence:    presence,
	}
}

func (s *Session) WsID() string { return s.wsID }

// Deliver enqueues an outbound payload without blocking. A consumer that
// cannot keep up loses the delivery, not the connection.
func (s *Session) Deliver(payload []byte) {
	select {
	case s.send <- payload:
	default:
		logger.Warn("Session %s mailbox full, dropping delivery", s.wsID)
	}
}

// Start registers the session and launches its pumps. The three startup
// tasks run concurrently and may interleave; the client tolerates history
// arriving before or after the init frame.
func (s *Session) Start() {
	s.registry.Attach(s.userID, s.wsID, s)

	go s.sendInit(s.username)
	go s.replayHistory(s.currentRoom)
	go func() { s.presence.MarkOnline(context.Background(), s.userID) }()

	go s.writePump()
	go s.readPump()
}

// sendInit tells the client who it is and who else is in the current room.
func (s *Session) sendInit(username string) {
	userMap := make(map[string]string)
	users, err := s.store.UsersInRoom(context.Background(), s.currentRoom)
	if err != nil {
		// The identity half of the frame is still useful to the client.
		logger.Error("Session %s failed to load user map for room %s: %v", s.wsID, s.currentRoom, err)
	}
	for _, u := range users {
		userMap[u.UserID] = u.DisplayUsername
	}

	payload, err := models.EncodeFrame(&models.Frame{Initialization: &models.InitializationMessage{
		UserID:   s.userID,
		WsID:     s.wsID,
		Username: username,
		UserMap:  userMap,
	}})
	if err != nil {
		logger.Error("Session %s failed to encode init frame: %v", s.wsID, err)
		return
	}
	s.Deliver(payload)
}

// replayHistory delivers the room's stored messages to this session only,
// in ascending timestamp order.
func (s *Session) replayHistory(roomID string) {
	messages, err := s.store.History(context.Background(), roomID)
	if err != nil {
		logger.Error("Session %s failed to load history for room %s: %v", s.wsID, roomID, err)
		return
	}

	for i := range messages {
		m := &messages[i]
		payload, err := models.EncodeFrame(&models.Frame{Basic: &models.BasicMessage{
			Content:   m.Content,
			SenderID:  m.SenderUserID,
			Timestamp: m.Timestamp,
			MessageID: m.MessageID,
			RoomID:    m.RoomID,
			WsID:      m.WsID,
		}})
		if err != nil {
			logger.Error("Session %s failed to encode history message %s: %v", s.wsID, m.MessageID, err)
			continue
		}
		s.Deliver(payload)
	}
}

func (s *Session) readPump() {
	defer func() {
		s.registry.Detach(s.userID, s.wsID)
		// Marking offline on any close is a known simplification when a
		// user holds several concurrent sessions.
		s.presence.MarkOffline(context.Background(), s.userID)
		close(s.done)
		s.conn.Close()
	}()

	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Error("Session %s read error: %v", s.wsID, err)
			}
			break
		}
		s.handleFrame(raw)
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case payload := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logger.Error("Session %s write error: %v", s.wsID, err)
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-s.done:
			s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleFrame dispatches one inbound text frame. Malformed frames are logged
// and dropped; forged sender ids are dropped silently. The connection stays
// open either way.
func (s *Session) handleFrame(raw []byte) {
	frame, err := models.ParseFrame(raw)
	if err != nil {
		logger.Warn("Session %s dropping malformed frame: %v", s.wsID, err)
		return
	}

	sender, ok := frame.SenderID()
	if !ok {
		// Server-only variants have no business arriving inbound.
		return
	}
	if sender != s.userID {
		return
	}

	ctx := context.Background()
	switch {
	case frame.Basic != nil:
		s.handleBasic(ctx, frame.Basic)
	case frame.UsernameChange != nil:
		s.handleUsernameChange(ctx, frame.UsernameChange)
	case frame.CreateRoomChange != nil:
		s.handleCreateRoom(ctx, frame.CreateRoomChange)
	case frame.ChangeRoom != nil:
		s.replayHistory(frame.ChangeRoom.RoomID)
	case frame.UserRemoval != nil:
		s.handleUserRemoval(ctx, frame.UserRemoval)
	}
}

// handleBasic persists the message, then broadcasts it to the current room.
func (s *Session) handleBasic(ctx context.Context, msg *models.BasicMessage) {
	stored := &models.StoredMessage{
		MessageID:    ident.New(),
		RoomID:       s.currentRoom,
		SenderUserID: s.userID,
		WsID:         s.wsID,
		Content:      msg.Content,
		Timestamp:    time.Now().Unix(),
	}

	if err := s.store.AppendMessage(ctx, stored); err != nil {
		logger.Error("Session %s failed to persist message: %v", s.wsID, err)
		return
	}

	payload, err := models.EncodeFrame(&models.Frame{Basic: &models.BasicMessage{
		Content:   stored.Content,
		SenderID:  stored.SenderUserID,
		Timestamp: stored.Timestamp,
		MessageID: stored.MessageID,
		RoomID:    stored.RoomID,
		WsID:      stored.WsID,
	}})
	if err != nil {
		logger.Error("Session %s failed to encode message %s: %v", s.wsID, stored.MessageID, err)
		return
	}
	s.broadcaster.Broadcast(ctx, payload, s.currentRoom, s.userID)
}

// handleUsernameChange performs the conditional rename. On conflict nothing
// changes and the client receives no rejection. On success the in-memory
// copy is updated and the change is announced to the main room.
func (s *Session) handleUsernameChange(ctx context.Context, msg *models.UsernameChangeMessage) {
	err := s.store.UpdateUsername(ctx, s.userID, msg.NewUsername)
	if errors.Is(err, database.ErrUsernameTaken) {
		logger.Warn("Session %s username change to %q rejected, name taken", s.wsID, msg.NewUsername)
		return
	}
	if err != nil {
		logger.Error("Session %s failed to update username: %v", s.wsID, err)
		return
	}

	s.username = msg.NewUsername

	payload, err := models.EncodeFrame(&models.Frame{UsernameChange: &models.UsernameChangeMessage{
		NewUsername: msg.NewUsername,
		SenderID:    s.userID,
	}})
	if err != nil {
		logger.Error("Session %s failed to encode username change: %v", s.wsID, err)
		return
	}
	s.broadcaster.Broadcast(ctx, payload, s.mainRoom, s.userID)
}

func (s *Session) handleCreateRoom(ctx context.Context, msg *models.CreateRoomChangeMessage) {
	room := &models.Room{
		RoomID:  ident.New(),
		Name:    msg.RoomName,
		Members: []string{s.userID},
	}

	if err := s.store.CreateRoom(ctx, room); err != nil {
		logger.Error("Session %s failed to create room %q: %v", s.wsID, msg.RoomName, err)
		return
	}
	// Record the room on the creator's user row as well; the room row
	// already lists them, so this only appends to users.rooms.
	if err := s.store.AddMember(ctx, room.RoomID, s.userID); err != nil {
		logger.Error("Session %s failed to record membership in room %s: %v", s.wsID, room.RoomID, err)
	}

	s.rooms = append(s.rooms, room.RoomID)
}

func (s *Session) handleUserRemoval(ctx context.Context, msg *models.UserRemovalMessage) {
	if err := s.store.RemoveMember(ctx, msg.RoomID, msg.RemovedUser); err != nil {
		logger.Error("Session %s failed to remove user %s from room %s: %v", s.wsID, msg.RemovedUser, msg.RoomID, err)
	}
}
