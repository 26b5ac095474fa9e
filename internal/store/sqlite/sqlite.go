package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vovakirdan/wirechat-client/internal/store"
)

// Schema creates the dev backend tables. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id              TEXT PRIMARY KEY,
	current_room_id TEXT,
	created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	owner_id   TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (owner_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS room_members (
	room_id   TEXT NOT NULL,
	user_id   TEXT NOT NULL,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, user_id),
	FOREIGN KEY (room_id) REFERENCES rooms(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS invites (
	code       TEXT PRIMARY KEY,
	room_id    TEXT NOT NULL,
	created_by TEXT NOT NULL,
	expires_at DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (room_id) REFERENCES rooms(id)
);

CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members(user_id);
CREATE INDEX IF NOT EXISTS idx_invites_expires ON invites(expires_at);
`

// ApplySchema runs Schema against db. It matches the NewWithSetup hook.
func ApplySchema(db *sql.DB) error {
	if _, err := db.Exec(Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// New opens the database at dbPath and makes sure the schema exists.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, ApplySchema)
}

// NewWithSetup opens the database at dbPath and runs setup before the
// first ping. Tests pass ":memory:" with their own schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single connection keeps ":memory:" databases shared and
	// serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== UserStore implementation ====

// CreateUser creates a user with the given id.
func (s *SQLiteStore) CreateUser(ctx context.Context, id string) (*store.User, error) {
	query := `INSERT INTO users (id, created_at) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, query, id, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return s.GetUser(ctx, id)
}

// GetUser retrieves a user by id.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*store.User, error) {
	query := `
		SELECT id, COALESCE(current_room_id, ''), created_at
		FROM users
		WHERE id = ?
	`
	var user store.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.CurrentRoom, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// SetCurrentRoom records the room the user is looking at.
func (s *SQLiteStore) SetCurrentRoom(ctx context.Context, userID, roomID string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET current_room_id = ? WHERE id = ?`, roomID, userID)
	if err != nil {
		return fmt.Errorf("update current room: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("user %s: %w", userID, store.ErrNotFound)
	}
	return nil
}

// ==== RoomStore implementation ====

// CreateRoom creates a room and adds the owner as its first member.
func (s *SQLiteStore) CreateRoom(ctx context.Context, id, name, ownerID string) (*store.Room, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := s.now().UTC()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO rooms (id, name, owner_id, created_at) VALUES (?, ?, ?, ?)`,
		id, name, ownerID, now,
	); err != nil {
		return nil, fmt.Errorf("insert room: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO room_members (room_id, user_id, joined_at) VALUES (?, ?, ?)`,
		id, ownerID, now,
	); err != nil {
		return nil, fmt.Errorf("insert owner membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit room: %w", err)
	}

	return s.GetRoom(ctx, id)
}

// GetRoom retrieves a room by id.
func (s *SQLiteStore) GetRoom(ctx context.Context, id string) (*store.Room, error) {
	query := `
		SELECT id, name, owner_id, created_at
		FROM rooms
		WHERE id = ?
	`
	var room store.Room
	err := s.db.QueryRowContext(ctx, query, id).Scan(&room.ID, &room.Name, &room.OwnerID, &room.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("room %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query room: %w", err)
	}
	return &room, nil
}

// AddMember adds a user to a room.
func (s *SQLiteStore) AddMember(ctx context.Context, userID, roomID string) error {
	query := `
		INSERT OR IGNORE INTO room_members (room_id, user_id, joined_at)
		VALUES (?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, roomID, userID, s.now().UTC()); err != nil {
		return fmt.Errorf("insert room member: %w", err)
	}
	return nil
}

// IsMember checks if user is a member of the room.
func (s *SQLiteStore) IsMember(ctx context.Context, userID, roomID string) (bool, error) {
	query := `
		SELECT 1 FROM room_members
		WHERE user_id = ? AND room_id = ?
	`
	var exists int
	err := s.db.QueryRowContext(ctx, query, userID, roomID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query membership: %w", err)
	}
	return true, nil
}

// ListMembers lists all members of a room.
func (s *SQLiteStore) ListMembers(ctx context.Context, roomID string) ([]string, error) {
	query := `
		SELECT user_id FROM room_members
		WHERE room_id = ?
		ORDER BY rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []string
	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, userID)
	}
	return members, rows.Err()
}

// ListUserRooms lists the rooms a user belongs to in join order.
func (s *SQLiteStore) ListUserRooms(ctx context.Context, userID string) ([]*store.Room, error) {
	query := `
		SELECT r.id, r.name, r.owner_id, r.created_at
		FROM room_members rm
		JOIN rooms r ON r.id = rm.room_id
		WHERE rm.user_id = ?
		ORDER BY rm.rowid ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query user rooms: %w", err)
	}
	defer rows.Close()

	var rooms []*store.Room
	for rows.Next() {
		var room store.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.OwnerID, &room.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		rooms = append(rooms, &room)
	}
	return rooms, rows.Err()
}

// ==== InviteStore implementation ====

// CreateInvite persists an invite.
func (s *SQLiteStore) CreateInvite(ctx context.Context, invite *store.Invite) error {
	if invite.CreatedAt.IsZero() {
		invite.CreatedAt = s.now().UTC()
	}
	var expires any
	if invite.ExpiresAt != nil {
		expires = invite.ExpiresAt.UTC()
	}

	query := `
		INSERT INTO invites (code, room_id, created_by, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, invite.Code, invite.RoomID, invite.CreatedBy, expires, invite.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

// GetInvite retrieves an invite by code.
func (s *SQLiteStore) GetInvite(ctx context.Context, code string) (*store.Invite, error) {
	query := `
		SELECT code, room_id, created_by, expires_at, created_at
		FROM invites
		WHERE code = ?
	`
	var invite store.Invite
	var expires sql.NullTime
	err := s.db.QueryRowContext(ctx, query, code).Scan(
		&invite.Code,
		&invite.RoomID,
		&invite.CreatedBy,
		&expires,
		&invite.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("invite %s: %w", code, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query invite: %w", err)
	}
	if expires.Valid {
		invite.ExpiresAt = &expires.Time
	}
	return &invite, nil
}

// DeleteExpiredInvites removes invites that expired before now. Invites
// without an expiry are kept.
func (s *SQLiteStore) DeleteExpiredInvites(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM invites WHERE expires_at IS NOT NULL AND expires_at < ?`,
		now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired invites: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
