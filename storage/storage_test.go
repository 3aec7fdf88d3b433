package storage

import (
	"sync"
	"testing"
	"time"
)

func mustAdd(t *testing.T, s *Storage, startISO string) *Slot {
	t.Helper()
	slot, err := s.Add(startISO, 0)
	if err != nil {
		t.Fatalf("Add(%q) failed: %v", startISO, err)
	}
	return slot
}

func TestAddDefaultsDuration(t *testing.T) {
	s := New()
	slot := mustAdd(t, s, "2025-10-22T15:00:00Z")

	wantEnd := time.Date(2025, 10, 22, 15, 55, 0, 0, time.UTC)
	if !slot.EndAt.Equal(wantEnd) {
		t.Errorf("EndAt = %v, want %v", slot.EndAt, wantEnd)
	}
	if slot.ID == "" {
		t.Error("expected a non-empty slot ID")
	}
	if slot.IsBooked {
		t.Error("new slot must not be booked")
	}
}

func TestAddInvalidTime(t *testing.T) {
	s := New()
	mustAdd(t, s, "2025-10-22T15:00:00Z")

	if _, err := s.Add("not-a-date", 55); err == nil {
		t.Fatal("expected an error for unparseable start time")
	}
	if got := len(s.ListAll()); got != 1 {
		t.Errorf("ListAll() length = %d after failed Add, want 1", got)
	}
}

func TestAvailableFilter(t *testing.T) {
	s := New()
	s1 := mustAdd(t, s, "2025-10-22T15:00:00Z")
	s2 := mustAdd(t, s, "2025-10-23T14:00:00Z")

	if s.Reserve(s2.ID, 42, "Ann", "@ann", "") == nil {
		t.Fatalf("Reserve(%s) failed", s2.ID)
	}

	available := s.Available()
	if len(available) != 1 {
		t.Fatalf("Available() returned %d slots, want 1", len(available))
	}
	if available[0].ID != s1.ID {
		t.Errorf("Available() contains %s, want %s", available[0].ID, s1.ID)
	}
}

func TestNoDoubleBooking(t *testing.T) {
	s := New()
	slot := mustAdd(t, s, "2025-10-22T15:00:00Z")

	const attempts = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []int64
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(userID int64) {
			defer wg.Done()
			if booked := s.Reserve(slot.ID, userID, "User", "@user", ""); booked != nil {
				mu.Lock()
				successes = append(successes, booked.BookedBy)
				mu.Unlock()
			}
		}(int64(i + 1))
	}
	wg.Wait()

	if len(successes) != 1 {
		t.Fatalf("%d concurrent Reserve calls succeeded, want exactly 1", len(successes))
	}

	all := s.ListAll()
	if !all[0].IsBooked || all[0].BookedBy != successes[0] {
		t.Errorf("slot state inconsistent after race: booked=%t by=%d, winner=%d",
			all[0].IsBooked, all[0].BookedBy, successes[0])
	}
}

func TestReserveCancelRoundTrip(t *testing.T) {
	s := New()
	slot := mustAdd(t, s, "2025-10-22T15:00:00Z")

	booked := s.Reserve(slot.ID, 42, "Ann", "@ann", "evt-1")
	if booked == nil {
		t.Fatal("Reserve failed on a free slot")
	}
	if booked.BookedBy != 42 || booked.UserName != "Ann" || booked.CalendarEventID != "evt-1" {
		t.Errorf("Reserve snapshot = %+v, booking fields not set", booked)
	}

	snapshot := s.Cancel(slot.ID, 42)
	if snapshot == nil {
		t.Fatal("Cancel failed for the booking owner")
	}
	if snapshot.CalendarEventID != "evt-1" || snapshot.UserName != "Ann" {
		t.Errorf("Cancel snapshot = %+v, want pre-clearing booking fields", snapshot)
	}

	all := s.ListAll()
	if len(all) != 1 {
		t.Fatalf("slot disappeared after cancel")
	}
	got := all[0]
	if got.IsBooked || got.BookedBy != 0 || got.UserName != "" || got.UserContact != "" || got.CalendarEventID != "" {
		t.Errorf("slot not fully cleared after cancel: %+v", got)
	}

	// The slot must be bookable again.
	if s.Reserve(slot.ID, 7, "Bob", "@bob", "") == nil {
		t.Error("Reserve failed on a slot released by Cancel")
	}
}

func TestCancelOwnership(t *testing.T) {
	s := New()
	slot := mustAdd(t, s, "2025-10-22T15:00:00Z")
	if s.Reserve(slot.ID, 42, "Ann", "@ann", "") == nil {
		t.Fatal("Reserve failed")
	}

	if s.Cancel(slot.ID, 99) != nil {
		t.Error("Cancel succeeded for a non-owner")
	}

	all := s.ListAll()
	if !all[0].IsBooked || all[0].BookedBy != 42 {
		t.Errorf("slot changed by a rejected cancel: %+v", all[0])
	}
}

func TestCancelUnknownAndFreeSlot(t *testing.T) {
	s := New()
	slot := mustAdd(t, s, "2025-10-22T15:00:00Z")

	if s.Cancel("no-such-id", 42) != nil {
		t.Error("Cancel succeeded for an unknown slot")
	}
	if s.Cancel(slot.ID, 42) != nil {
		t.Error("Cancel succeeded for a free slot")
	}
}

func TestReserveUnknownAndBookedSlot(t *testing.T) {
	s := New()
	slot := mustAdd(t, s, "2025-10-22T15:00:00Z")

	if s.Reserve("no-such-id", 42, "Ann", "@ann", "") != nil {
		t.Error("Reserve succeeded for an unknown slot")
	}

	if s.Reserve(slot.ID, 42, "Ann", "@ann", "") == nil {
		t.Fatal("Reserve failed on a free slot")
	}
	if s.Reserve(slot.ID, 7, "Bob", "@bob", "") != nil {
		t.Error("Reserve succeeded on an already booked slot")
	}
}

func TestBookingsFor(t *testing.T) {
	s := New()
	s1 := mustAdd(t, s, "2025-10-22T15:00:00Z")
	s2 := mustAdd(t, s, "2025-10-23T14:00:00Z")
	s3 := mustAdd(t, s, "2025-10-24T14:00:00Z")

	s.Reserve(s1.ID, 42, "Ann", "@ann", "")
	s.Reserve(s2.ID, 7, "Bob", "@bob", "")
	s.Reserve(s3.ID, 42, "Ann", "@ann", "")

	bookings := s.BookingsFor(42)
	if len(bookings) != 2 {
		t.Fatalf("BookingsFor(42) returned %d slots, want 2", len(bookings))
	}
	// Creation order must be preserved.
	if bookings[0].ID != s1.ID || bookings[1].ID != s3.ID {
		t.Errorf("BookingsFor order = [%s, %s], want [%s, %s]",
			bookings[0].ID, bookings[1].ID, s1.ID, s3.ID)
	}
}

func TestRemoveReturnsBookingSnapshot(t *testing.T) {
	s := New()
	slot := mustAdd(t, s, "2025-10-22T15:00:00Z")
	s.Reserve(slot.ID, 42, "Ann", "@ann", "evt-9")

	removed, ok := s.Remove(slot.ID)
	if !ok {
		t.Fatal("Remove reported a missing slot")
	}
	if !removed.IsBooked || removed.BookedBy != 42 || removed.CalendarEventID != "evt-9" {
		t.Errorf("Remove snapshot = %+v, want the dropped booking intact", removed)
	}
	if got := len(s.ListAll()); got != 0 {
		t.Errorf("ListAll() length = %d after Remove, want 0", got)
	}

	if _, ok := s.Remove(slot.ID); ok {
		t.Error("Remove succeeded twice for the same ID")
	}
}

func TestUpcomingWindowBoundaries(t *testing.T) {
	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	s := New()
	s.now = func() time.Time { return now }

	cases := []struct {
		name    string
		startAt time.Time
		want    bool
	}{
		{"exactly 24h ahead", now.Add(24 * time.Hour), true},
		{"middle of the window", now.Add(24*time.Hour + 30*time.Minute), true},
		{"upper bound 25h", now.Add(25 * time.Hour), true},
		{"just past the window", now.Add(25*time.Hour + time.Second), false},
		{"just before the window", now.Add(23*time.Hour + 59*time.Minute), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			slot := mustAdd(t, s, tc.startAt.Format(time.RFC3339))
			if s.Reserve(slot.ID, 42, "Ann", "@ann", "") == nil {
				t.Fatal("Reserve failed")
			}

			found := false
			for _, got := range s.Upcoming(24) {
				if got.ID == slot.ID {
					found = true
				}
			}
			if found != tc.want {
				t.Errorf("Upcoming(24) contains slot starting at %v: %t, want %t",
					tc.startAt, found, tc.want)
			}
		})
	}
}

func TestUpcomingIgnoresFreeSlots(t *testing.T) {
	now := time.Date(2025, 10, 20, 12, 0, 0, 0, time.UTC)
	s := New()
	s.now = func() time.Time { return now }

	mustAdd(t, s, now.Add(24*time.Hour+30*time.Minute).Format(time.RFC3339))

	if got := s.Upcoming(24); len(got) != 0 {
		t.Errorf("Upcoming(24) returned %d free slots, want 0", len(got))
	}
}

func TestSnapshotsDoNotAliasStore(t *testing.T) {
	s := New()
	slot := mustAdd(t, s, "2025-10-22T15:00:00Z")

	booked := s.Reserve(slot.ID, 42, "Ann", "@ann", "")
	booked.UserName = "Mallory"
	booked.IsBooked = false

	got := s.ListAll()[0]
	if got.UserName != "Ann" || !got.IsBooked {
		t.Errorf("mutating a snapshot changed store state: %+v", got)
	}

	listed := s.ListAll()
	listed[0].BookedBy = 777
	if s.ListAll()[0].BookedBy != 42 {
		t.Error("mutating a listed copy changed store state")
	}
}

func TestEndToEndScenario(t *testing.T) {
	s := New()
	if got := len(s.ListAll()); got != 0 {
		t.Fatalf("new storage has %d slots", got)
	}

	slot, err := s.Add("2025-10-22T15:00:00Z", 55)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	wantEnd := time.Date(2025, 10, 22, 15, 55, 0, 0, time.UTC)
	if !slot.EndAt.Equal(wantEnd) {
		t.Fatalf("EndAt = %v, want %v", slot.EndAt, wantEnd)
	}

	booked := s.Reserve(slot.ID, 42, "Ann", "@ann", "")
	if booked == nil || booked.BookedBy != 42 {
		t.Fatalf("Reserve snapshot = %+v, want BookedBy=42", booked)
	}

	if got := s.Available(); len(got) != 0 {
		t.Fatalf("Available() returned %d slots after booking, want 0", len(got))
	}

	snapshot := s.Cancel(slot.ID, 42)
	if snapshot == nil || snapshot.BookedBy != 42 {
		t.Fatalf("Cancel snapshot = %+v, want the prior booking", snapshot)
	}

	available := s.Available()
	if len(available) != 1 || available[0].ID != slot.ID {
		t.Fatalf("Available() = %+v after cancel, want the released slot", available)
	}
}
