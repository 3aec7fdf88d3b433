package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDurationMinutes is the length of a lesson when the admin
// does not specify one explicitly.
const DefaultDurationMinutes = 55

// Slot represents one bookable lesson interval.
// When IsBooked is false all booking fields are zero.
type Slot struct {
	ID              string
	StartAt         time.Time // absolute instant, stored in UTC
	EndAt           time.Time
	IsBooked        bool
	BookedBy        int64 // Telegram user ID of the client
	UserName        string
	UserContact     string
	CalendarEventID string // opaque handle from the calendar service, may be empty
}

// Storage is a thread-safe in-memory registry of slots.
// It is the single owner of the slot collection: every mutation runs
// under one lock, so check-then-act sequences (Reserve, Cancel) can
// never interleave. It implements SlotStorage.
type Storage struct {
	mu    sync.RWMutex
	slots []*Slot // creation order

	now func() time.Time // overridable in tests
}

// New creates an empty storage instance.
func New() *Storage {
	return &Storage{
		now: time.Now,
	}
}

// ListAll returns copies of all slots, any state, in creation order.
func (s *Storage) ListAll() []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]Slot, 0, len(s.slots))
	for _, slot := range s.slots {
		all = append(all, *slot)
	}
	return all
}

// Available returns copies of all slots that are not booked, in creation order.
func (s *Storage) Available() []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var free []Slot
	for _, slot := range s.slots {
		if !slot.IsBooked {
			free = append(free, *slot)
		}
	}
	return free
}

// Add parses startISO as an RFC 3339 timestamp and appends a new free
// slot of the given duration. A non-positive duration falls back to
// DefaultDurationMinutes. On a parse error no slot is created.
func (s *Storage) Add(startISO string, durationMinutes int) (*Slot, error) {
	startAt, err := time.Parse(time.RFC3339, startISO)
	if err != nil {
		return nil, fmt.Errorf("invalid start time %q: %w", startISO, err)
	}
	if durationMinutes <= 0 {
		durationMinutes = DefaultDurationMinutes
	}

	slot := &Slot{
		ID:      uuid.NewString(),
		StartAt: startAt.UTC(),
		EndAt:   startAt.UTC().Add(time.Duration(durationMinutes) * time.Minute),
	}

	s.mu.Lock()
	s.slots = append(s.slots, slot)
	s.mu.Unlock()

	snapshot := *slot
	return &snapshot, nil
}

// Remove deletes the slot with the given ID regardless of its booked
// state. It returns a snapshot of the removed slot so the caller can
// notify the affected client and release the calendar event, and a
// flag reporting whether the slot existed.
func (s *Storage) Remove(id string) (*Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, slot := range s.slots {
		if slot.ID == id {
			snapshot := *slot
			s.slots = append(s.slots[:i], s.slots[i+1:]...)
			return &snapshot, true
		}
	}
	return nil, false
}

// Reserve books the slot for the given client. It succeeds only if the
// slot exists and is free at the moment of the call; the existence and
// availability checks run under the same lock as the mutation, so two
// concurrent Reserve calls on one slot can never both succeed.
// On success it returns a snapshot of the booked slot, otherwise nil
// (the slot is unknown or already taken; callers cannot tell which).
func (s *Storage) Reserve(id string, userID int64, userName, userContact, calendarEventID string) *Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, slot := range s.slots {
		if slot.ID != id || slot.IsBooked {
			continue
		}
		slot.IsBooked = true
		slot.BookedBy = userID
		slot.UserName = userName
		slot.UserContact = userContact
		slot.CalendarEventID = calendarEventID

		snapshot := *slot
		return &snapshot
	}
	return nil
}

// BookingsFor returns copies of all slots currently booked by the
// given client, in creation order.
func (s *Storage) BookingsFor(userID int64) []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var bookings []Slot
	for _, slot := range s.slots {
		if slot.IsBooked && slot.BookedBy == userID {
			bookings = append(bookings, *slot)
		}
	}
	return bookings
}

// Cancel releases the booking on the slot. It succeeds only if the
// slot exists, is booked, and is booked by the given client; a client
// cannot cancel somebody else's lesson. On success the slot becomes
// free again and Cancel returns a snapshot taken before clearing, with
// the booking fields (including CalendarEventID) still set so the
// caller can release the external calendar event. On failure it
// returns nil and the slot is left untouched.
func (s *Storage) Cancel(id string, userID int64) *Slot {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, slot := range s.slots {
		if slot.ID != id || !slot.IsBooked || slot.BookedBy != userID {
			continue
		}
		snapshot := *slot

		slot.IsBooked = false
		slot.BookedBy = 0
		slot.UserName = ""
		slot.UserContact = ""
		slot.CalendarEventID = ""

		return &snapshot
	}
	return nil
}

// AllBooked returns copies of all booked slots, in creation order.
func (s *Storage) AllBooked() []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var booked []Slot
	for _, slot := range s.slots {
		if slot.IsBooked {
			booked = append(booked, *slot)
		}
	}
	return booked
}

// Upcoming returns booked slots starting within the one-hour window
// [now+hoursAhead, now+hoursAhead+1h]. Together with an hourly sweep
// this visits each booking at most once.
func (s *Storage) Upcoming(hoursAhead int) []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	from := s.now().Add(time.Duration(hoursAhead) * time.Hour)
	to := from.Add(time.Hour)

	var upcoming []Slot
	for _, slot := range s.slots {
		if !slot.IsBooked {
			continue
		}
		if !slot.StartAt.Before(from) && !slot.StartAt.After(to) {
			upcoming = append(upcoming, *slot)
		}
	}
	return upcoming
}

// restore replaces the whole collection, preserving the given order.
// Used by the SQLite layer when loading slots at startup.
func (s *Storage) restore(slots []Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.slots = make([]*Slot, 0, len(slots))
	for i := range slots {
		slot := slots[i]
		s.slots = append(s.slots, &slot)
	}
}
