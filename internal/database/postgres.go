package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chat-server/internal/models"
	"chat-server/pkg/ident"
	"chat-server/pkg/logger"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(databaseURL string) (*PostgresDB, error) {
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &PostgresDB{pool: pool}
	if err := db.ensureSchema(context.Background()); err != nil {
		pool.Close()
		return nil, err
	}

	logger.Info("Connected to database successfully")
	return db, nil
}

func (db *PostgresDB) Close() error {
	db.pool.Close()
	return nil
}

// Field names mirror the wire protocol and are load-bearing for
// compatibility: users, rooms, messages.
func (db *PostgresDB) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id          TEXT PRIMARY KEY,
			login_username   TEXT NOT NULL UNIQUE,
			display_username TEXT NOT NULL UNIQUE,
			password_hash    TEXT NOT NULL,
			status           TEXT NOT NULL DEFAULT 'Offline',
			rooms            TEXT[] NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS rooms (
			room_id TEXT PRIMARY KEY,
			name    TEXT NOT NULL,
			members TEXT[] NOT NULL DEFAULT '{}'
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id     TEXT PRIMARY KEY,
			room_id        TEXT NOT NULL,
			sender_user_id TEXT NOT NULL,
			ws_id          TEXT NOT NULL,
			content        TEXT NOT NULL,
			timestamp      BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS messages_room_timestamp_idx ON messages (room_id, timestamp)`,
	}

	for _, stmt := range ddl {
		if _, err := db.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// mapUniqueViolation translates a Postgres unique-constraint violation into
// the matching sentinel error, so callers never see raw SQLSTATE codes.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		switch {
		case strings.Contains(pgErr.ConstraintName, "login_username"):
			return ErrEmailTaken
		case strings.Contains(pgErr.ConstraintName, "display_username"):
			return ErrUsernameTaken
		}
	}
	return err
}

// User Store Implementation

func (db *PostgresDB) FindUserByLogin(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT user_id, login_username, display_username, password_hash, status, rooms
		FROM users WHERE login_username = $1`
	return db.scanUser(db.pool.QueryRow(ctx, query, email))
}

func (db *PostgresDB) FindUserByID(ctx context.Context, userID string) (*models.User, error) {
	query := `SELECT user_id, login_username, display_username, password_hash, status, rooms
		FROM users WHERE user_id = $1`
	return db.scanUser(db.pool.QueryRow(ctx, query, userID))
}

func (db *PostgresDB) scanUser(row pgx.Row) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(
		&user.UserID, &user.LoginUsername, &user.DisplayUsername,
		&user.PasswordHash, &user.Status, &user.Rooms,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (db *PostgresDB) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (user_id, login_username, display_username, password_hash, status, rooms)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := db.pool.Exec(ctx, query,
		user.UserID, user.LoginUsername, user.DisplayUsername,
		user.PasswordHash, user.Status, user.Rooms,
	)
	if err != nil {
		return mapUniqueViolation(err)
	}
	return nil
}

func (db *PostgresDB) UpdateUsername(ctx context.Context, userID, newUsername string) error {
	// Single conditional update: no row is touched when another user holds
	// the name. Renaming to one's own current name is a no-op that succeeds.
	query := `
		UPDATE users SET display_username = $2
		WHERE user_id = $1
		  AND NOT EXISTS (SELECT 1 FROM users WHERE display_username = $2 AND user_id <> $1)`

	tag, err := db.pool.Exec(ctx, query, userID, newUsername)
	if err != nil {
		return mapUniqueViolation(err)
	}
	if tag.RowsAffected() == 0 {
		// Zero rows means the name is held by someone else or the user row
		// is gone; tell the two apart for the caller.
		var exists bool
		if err := db.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrUsernameTaken
	}
	return nil
}

func (db *PostgresDB) SetStatus(ctx context.Context, userID string, status models.ConnectionStatus) error {
	query := `UPDATE users SET status = $2 WHERE user_id = $1`
	_, err := db.pool.Exec(ctx, query, userID, status)
	return err
}

// Room Store Implementation

func (db *PostgresDB) CreateRoom(ctx context.Context, room *models.Room) error {
	query := `INSERT INTO rooms (room_id, name, members) VALUES ($1, $2, $3)`
	_, err := db.pool.Exec(ctx, query, room.RoomID, room.Name, room.Members)
	return err
}

func (db *PostgresDB) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	query := `SELECT room_id, name, members FROM rooms WHERE room_id = $1`

	room := &models.Room{}
	err := db.pool.QueryRow(ctx, query, roomID).Scan(&room.RoomID, &room.Name, &room.Members)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return room, nil
}

func (db *PostgresDB) GetOrCreateRoomByName(ctx context.Context, name string) (*models.Room, error) {
	query := `SELECT room_id, name, members FROM rooms WHERE name = $1 ORDER BY room_id LIMIT 1`

	room := &models.Room{}
	err := db.pool.QueryRow(ctx, query, name).Scan(&room.RoomID, &room.Name, &room.Members)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	room = &models.Room{RoomID: ident.New(), Name: name, Members: []string{}}
	if err := db.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

// AddMember records membership on both sides (rooms.members and users.rooms)
// in one transaction. Duplicates are not appended.
func (db *PostgresDB) AddMember(ctx context.Context, roomID, userID string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	roomQuery := `
		UPDATE rooms SET members = array_append(members, $2)
		WHERE room_id = $1 AND NOT ($2 = ANY(members))`
	if _, err := tx.Exec(ctx, roomQuery, roomID, userID); err != nil {
		return err
	}

	userQuery := `
		UPDATE users SET rooms = array_append(rooms, $1)
		WHERE user_id = $2 AND NOT ($1 = ANY(rooms))`
	if _, err := tx.Exec(ctx, userQuery, roomID, userID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (db *PostgresDB) RemoveMember(ctx context.Context, roomID, userID string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE rooms SET members = array_remove(members, $2) WHERE room_id = $1`,
		roomID, userID); err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET rooms = array_remove(rooms, $1) WHERE user_id = $2`,
		roomID, userID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (db *PostgresDB) MembersOf(ctx context.Context, roomID string) ([]string, error) {
	room, err := db.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return room.Members, nil
}

func (db *PostgresDB) UsersInRoom(ctx context.Context, roomID string) ([]models.RoomUser, error) {
	query := `SELECT user_id, display_username FROM users WHERE $1 = ANY(rooms)`

	rows, err := db.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []models.RoomUser
	for rows.Next() {
		var u models.RoomUser
		if err := rows.Scan(&u.UserID, &u.DisplayUsername); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Message Store Implementation

func (db *PostgresDB) AppendMessage(ctx context.Context, msg *models.StoredMessage) error {
	query := `
		INSERT INTO messages (message_id, room_id, sender_user_id, ws_id, content, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := db.pool.Exec(ctx, query,
		msg.MessageID, msg.RoomID, msg.SenderUserID, msg.WsID, msg.Content, msg.Timestamp,
	)
	return err
}

func (db *PostgresDB) History(ctx context.Context, roomID string) ([]models.StoredMessage, error) {
	// message_id breaks ties between messages written in the same second.
	query := `
		SELECT message_id, room_id, sender_user_id, ws_id, content, timestamp
		FROM messages WHERE room_id = $1
		ORDER BY timestamp ASC, message_id ASC`

	rows, err := db.pool.Query(ctx, query, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.StoredMessage
	for rows.Next() {
		var m models.StoredMessage
		if err := rows.Scan(&m.MessageID, &m.RoomID, &m.SenderUserID, &m.WsID, &m.Content, &m.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// DeleteMessage is supported by the store but not reachable from the wire
// protocol.
func (db *PostgresDB) DeleteMessage(ctx context.Context, messageID string) error {
	_, err := db.pool.Exec(ctx, `DELETE FROM messages WHERE message_id = $1`, messageID)
	return err
}
