package storage

// SlotStorage defines the interface for slot storage implementations.
type SlotStorage interface {
	// ListAll returns all slots, any state, in creation order.
	ListAll() []Slot

	// Available returns all free slots, in creation order.
	Available() []Slot

	// Add creates a new free slot from an RFC 3339 start time and a
	// duration in minutes (DefaultDurationMinutes when non-positive).
	// On a parse error no slot is created.
	Add(startISO string, durationMinutes int) (*Slot, error)

	// Remove deletes the slot with the given ID regardless of its
	// booked state, returning a snapshot of the removed slot and
	// whether it existed.
	Remove(id string) (*Slot, bool)

	// Reserve books a free slot for the client and returns a snapshot
	// of the result, or nil if the slot is unknown or already booked.
	Reserve(id string, userID int64, userName, userContact, calendarEventID string) *Slot

	// BookingsFor returns the slots currently booked by the client.
	BookingsFor(userID int64) []Slot

	// Cancel releases a booking owned by the client and returns a
	// pre-clearing snapshot (booking fields intact), or nil if the
	// slot is unknown, free, or booked by someone else.
	Cancel(id string, userID int64) *Slot

	// AllBooked returns all booked slots, in creation order.
	AllBooked() []Slot

	// Upcoming returns booked slots starting within the one-hour
	// window that opens hoursAhead hours from now.
	Upcoming(hoursAhead int) []Slot
}
