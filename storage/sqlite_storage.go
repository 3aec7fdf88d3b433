package storage

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStorage persists slots in SQLite underneath an in-memory
// Storage. The memory cache stays authoritative: every mutation goes
// through it first (so all booking invariants are enforced in one
// place) and is then written through to the database. Persistence is
// best effort: a failed write is logged and the in-memory result
// stands, so a booking never fails because the disk did.
type SQLiteStorage struct {
	db     *sql.DB
	cache  *Storage
	dbPath string
}

// NewSQLiteStorage opens (or creates) the database at dbPath and loads
// all stored slots into the in-memory cache.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dbPath == "" {
		dbPath = "tutorbot.db"
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	s := &SQLiteStorage{
		db:     db,
		cache:  New(),
		dbPath: dbPath,
	}

	if err := s.loadFromDB(); err != nil {
		log.Printf("Warning: failed to load slots from database: %v", err)
	}

	return s, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS slots (
			id TEXT PRIMARY KEY,
			start_at TEXT NOT NULL,
			end_at TEXT NOT NULL,
			is_booked INTEGER NOT NULL DEFAULT 0,
			booked_by INTEGER NOT NULL DEFAULT 0,
			user_name TEXT NOT NULL DEFAULT '',
			user_contact TEXT NOT NULL DEFAULT '',
			calendar_event_id TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create slots table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_slots_booked ON slots(is_booked)`)
	if err != nil {
		log.Printf("Warning: failed to create is_booked index: %v", err)
	}

	return nil
}

// loadFromDB reads all slots back in creation order (rowid preserves
// insertion order) and installs them into the memory cache.
func (s *SQLiteStorage) loadFromDB() error {
	rows, err := s.db.Query(`
		SELECT id, start_at, end_at, is_booked, booked_by, user_name, user_contact, calendar_event_id
		FROM slots ORDER BY rowid
	`)
	if err != nil {
		return fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var (
			slot           Slot
			startAt, endAt string
			isBooked       int
		)
		if err := rows.Scan(&slot.ID, &startAt, &endAt, &isBooked,
			&slot.BookedBy, &slot.UserName, &slot.UserContact, &slot.CalendarEventID); err != nil {
			return fmt.Errorf("failed to scan slot row: %w", err)
		}

		slot.StartAt, err = time.Parse(time.RFC3339, startAt)
		if err != nil {
			log.Printf("Warning: skipping slot %s with bad start_at %q: %v", slot.ID, startAt, err)
			continue
		}
		slot.EndAt, err = time.Parse(time.RFC3339, endAt)
		if err != nil {
			log.Printf("Warning: skipping slot %s with bad end_at %q: %v", slot.ID, endAt, err)
			continue
		}
		slot.IsBooked = isBooked != 0

		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating slot rows: %w", err)
	}

	s.cache.restore(slots)
	log.Printf("Loaded %d slots from database %s", len(slots), s.dbPath)
	return nil
}

// ListAll returns all slots, any state, in creation order.
func (s *SQLiteStorage) ListAll() []Slot {
	return s.cache.ListAll()
}

// Available returns all free slots, in creation order.
func (s *SQLiteStorage) Available() []Slot {
	return s.cache.Available()
}

// Add creates a new free slot and persists it.
func (s *SQLiteStorage) Add(startISO string, durationMinutes int) (*Slot, error) {
	slot, err := s.cache.Add(startISO, durationMinutes)
	if err != nil {
		return nil, err
	}

	_, dbErr := s.db.Exec(`
		INSERT INTO slots (id, start_at, end_at, is_booked, booked_by, user_name, user_contact, calendar_event_id)
		VALUES (?, ?, ?, 0, 0, '', '', '')
	`, slot.ID, slot.StartAt.Format(time.RFC3339), slot.EndAt.Format(time.RFC3339))
	if dbErr != nil {
		log.Printf("Warning: failed to persist new slot %s: %v", slot.ID, dbErr)
	}

	return slot, nil
}

// Remove deletes the slot from the cache and the database.
func (s *SQLiteStorage) Remove(id string) (*Slot, bool) {
	removed, ok := s.cache.Remove(id)
	if !ok {
		return nil, false
	}

	if _, err := s.db.Exec(`DELETE FROM slots WHERE id = ?`, id); err != nil {
		log.Printf("Warning: failed to delete slot %s from database: %v", id, err)
	}

	return removed, true
}

// Reserve books a free slot and persists the booking fields.
func (s *SQLiteStorage) Reserve(id string, userID int64, userName, userContact, calendarEventID string) *Slot {
	booked := s.cache.Reserve(id, userID, userName, userContact, calendarEventID)
	if booked == nil {
		return nil
	}

	s.persistBookingState(*booked)
	return booked
}

// Cancel releases a booking and persists the cleared slot.
func (s *SQLiteStorage) Cancel(id string, userID int64) *Slot {
	snapshot := s.cache.Cancel(id, userID)
	if snapshot == nil {
		return nil
	}

	// The cache already cleared the live slot; mirror the cleared state.
	cleared := *snapshot
	cleared.IsBooked = false
	cleared.BookedBy = 0
	cleared.UserName = ""
	cleared.UserContact = ""
	cleared.CalendarEventID = ""
	s.persistBookingState(cleared)

	return snapshot
}

// BookingsFor returns the slots currently booked by the client.
func (s *SQLiteStorage) BookingsFor(userID int64) []Slot {
	return s.cache.BookingsFor(userID)
}

// AllBooked returns all booked slots, in creation order.
func (s *SQLiteStorage) AllBooked() []Slot {
	return s.cache.AllBooked()
}

// Upcoming returns booked slots starting within the one-hour window
// that opens hoursAhead hours from now.
func (s *SQLiteStorage) Upcoming(hoursAhead int) []Slot {
	return s.cache.Upcoming(hoursAhead)
}

// persistBookingState writes the booking columns of one slot.
func (s *SQLiteStorage) persistBookingState(slot Slot) {
	isBooked := 0
	if slot.IsBooked {
		isBooked = 1
	}
	_, err := s.db.Exec(`
		UPDATE slots
		SET is_booked = ?, booked_by = ?, user_name = ?, user_contact = ?, calendar_event_id = ?
		WHERE id = ?
	`, isBooked, slot.BookedBy, slot.UserName, slot.UserContact, slot.CalendarEventID, slot.ID)
	if err != nil {
		log.Printf("Warning: failed to persist booking state for slot %s: %v", slot.ID, err)
	}
}

// Close closes the underlying database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
