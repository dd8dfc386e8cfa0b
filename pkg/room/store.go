package room

import (
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Rooms pair a mobile and a PC client via a short shared code. The relay
// itself is room-agnostic; this store only backs the room HTTP API.
const schema = `
CREATE TABLE IF NOT EXISTS rooms (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id     TEXT NOT NULL UNIQUE,
	created_at  TEXT NOT NULL DEFAULT (datetime('now')),
	expires_at  TEXT
);

CREATE INDEX IF NOT EXISTS idx_rooms_room_id ON rooms(room_id);
`

// Uppercase letters and digits, excluding the confusable 0/O and 1/I
const roomIDAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const roomIDLength = 6

// ErrNotFound is returned when no room exists for a room ID
var ErrNotFound = errors.New("room not found")

// Room is one stored room record
type Room struct {
	ID        int64
	RoomID    string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Expired reports whether the room's lifetime has elapsed. Rooms without an
// expiry never expire.
func (r *Room) Expired() bool {
	if r.ExpiresAt == nil {
		return false
	}
	return time.Now().After(*r.ExpiresAt)
}

// Store is a SQLite-backed room store
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the room database and ensures the schema exists
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Create inserts a new room with a fresh room ID expiring after ttl. A ttl of
// zero creates a room that never expires.
func (s *Store) Create(ttl time.Duration) (*Room, error) {
	var expiresAt *time.Time
	if ttl > 0 {
		t := time.Now().UTC().Add(ttl)
		expiresAt = &t
	}

	// Retry on the unlikely event of an ID collision
	for attempt := 0; attempt < 5; attempt++ {
		roomID := generateRoomID(roomIDLength)
		createdAt := time.Now().UTC()

		res, err := s.db.Exec(
			"INSERT INTO rooms (room_id, created_at, expires_at) VALUES (?, ?, ?)",
			roomID, createdAt.Format(time.RFC3339), formatExpiry(expiresAt),
		)
		if err != nil {
			if isUniqueViolation(err) {
				continue
			}
			return nil, fmt.Errorf("insert room: %w", err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("room insert id: %w", err)
		}
		return &Room{ID: id, RoomID: roomID, CreatedAt: createdAt, ExpiresAt: expiresAt}, nil
	}

	return nil, errors.New("room id space exhausted")
}

// Get returns the room for a room ID, or ErrNotFound
func (s *Store) Get(roomID string) (*Room, error) {
	var (
		room      Room
		createdAt string
		expiresAt sql.NullString
	)
	err := s.db.QueryRow(
		"SELECT id, room_id, created_at, expires_at FROM rooms WHERE room_id = ?",
		roomID,
	).Scan(&room.ID, &room.RoomID, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query room: %w", err)
	}

	room.CreatedAt, err = parseTimestamp(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if expiresAt.Valid && expiresAt.String != "" {
		t, err := parseTimestamp(expiresAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse expires_at: %w", err)
		}
		room.ExpiresAt = &t
	}

	return &room, nil
}

// Validate checks whether a room ID refers to a live room. The reason is a
// human-readable explanation suitable for API responses.
func (s *Store) Validate(roomID string) (valid bool, reason string) {
	room, err := s.Get(roomID)
	if err == ErrNotFound {
		return false, "Room not found"
	}
	if err != nil {
		return false, err.Error()
	}
	if room.Expired() {
		return false, "Room expired"
	}
	return true, "Room valid"
}

func generateRoomID(length int) string {
	id := make([]byte, length)
	for i := range id {
		id[i] = roomIDAlphabet[rand.Intn(len(roomIDAlphabet))]
	}
	return string(id)
}

func formatExpiry(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

// parseTimestamp accepts both RFC3339 (written by this store) and the
// "datetime('now')" format SQLite uses for column defaults.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", s)
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite reports constraint failures in the error text
	return err != nil && strings.Contains(err.Error(), "UNIQUE")
}
