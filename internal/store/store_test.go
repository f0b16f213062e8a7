package store

import (
	"errors"
	"fmt"
	"sync"
	"testing"
)

// TestMemoryStoreCoasters tests coaster CRUD on the in-memory store
func TestMemoryStoreCoasters(t *testing.T) {
	t.Run("new store is empty", func(t *testing.T) {
		s := NewMemoryStore()

		if got := s.ListCoasters(); len(got) != 0 {
			t.Errorf("Expected empty store, got %d coasters", len(got))
		}

		if _, ok := s.GetCoaster("nope"); ok {
			t.Error("Expected absent result for unknown id")
		}
	})

	t.Run("put and get coasters", func(t *testing.T) {
		s := NewMemoryStore()

		c := Coaster{ID: "c1", StaffCount: 4, ClientCount: 100, TrackLength: 500, HoursFrom: "9:00", HoursTo: "17:00"}
		if err := s.PutCoaster(c); err != nil {
			t.Fatalf("Failed to put coaster: %v", err)
		}

		got, ok := s.GetCoaster("c1")
		if !ok {
			t.Fatal("Expected coaster c1 to exist")
		}
		if got != c {
			t.Errorf("Expected %+v, got %+v", c, got)
		}
	})

	t.Run("list is sorted by id", func(t *testing.T) {
		s := NewMemoryStore()
		for _, id := range []string{"c3", "c1", "c2"} {
			_ = s.PutCoaster(Coaster{ID: id, TrackLength: 100, HoursFrom: "9:00", HoursTo: "17:00"})
		}

		got := s.ListCoasters()
		if len(got) != 3 {
			t.Fatalf("Expected 3 coasters, got %d", len(got))
		}
		for i, want := range []string{"c1", "c2", "c3"} {
			if got[i].ID != want {
				t.Errorf("Position %d: expected %s, got %s", i, want, got[i].ID)
			}
		}
	})
}

// TestUpdateCoasterPreservesTrackLength verifies the track-length invariant:
// no partial update may change the stored track length.
func TestUpdateCoasterPreservesTrackLength(t *testing.T) {
	s := NewMemoryStore()
	_ = s.PutCoaster(Coaster{ID: "c1", StaffCount: 4, ClientCount: 100, TrackLength: 1800, HoursFrom: "8:00", HoursTo: "16:00"})

	staff := 10
	from := "10:00"
	updated, err := s.UpdateCoaster("c1", CoasterPatch{StaffCount: &staff, HoursFrom: &from})
	if err != nil {
		t.Fatalf("Failed to update c1: %v", err)
	}

	if updated.StaffCount != 10 {
		t.Errorf("Expected staffCount 10, got %d", updated.StaffCount)
	}
	if updated.HoursFrom != "10:00" {
		t.Errorf("Expected hoursFrom 10:00, got %s", updated.HoursFrom)
	}
	if updated.TrackLength != 1800 {
		t.Errorf("Expected trackLength preserved at 1800, got %v", updated.TrackLength)
	}
	if updated.ClientCount != 100 {
		t.Errorf("Expected untouched clientCount 100, got %d", updated.ClientCount)
	}

	if _, err := s.UpdateCoaster("missing", CoasterPatch{StaffCount: &staff}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown id, got %v", err)
	}
}

// TestUpdateCoasterRejectsInvalidPatch verifies the merged record is
// validated before the write: a patch that would make the record invalid
// fails and leaves the stored record exactly as it was.
func TestUpdateCoasterRejectsInvalidPatch(t *testing.T) {
	s := NewMemoryStore()
	original := Coaster{ID: "c1", StaffCount: 4, ClientCount: 100, TrackLength: 800, HoursFrom: "9:00", HoursTo: "17:00"}
	_ = s.PutCoaster(original)

	bad := "garbage"
	_, err := s.UpdateCoaster("c1", CoasterPatch{HoursFrom: &bad})
	if err == nil {
		t.Fatal("Expected validation error for unparsable hoursFrom")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("Expected *ValidationError, got %T", err)
	}

	got, ok := s.GetCoaster("c1")
	if !ok {
		t.Fatal("Expected coaster c1 to still exist")
	}
	if got != original {
		t.Errorf("Failed update must not change the store: expected %+v, got %+v", original, got)
	}

	// A partially invalid patch commits nothing either
	staff := 12
	if _, err := s.UpdateCoaster("c1", CoasterPatch{StaffCount: &staff, HoursTo: &bad}); err == nil {
		t.Fatal("Expected validation error for unparsable hoursTo")
	}
	got, _ = s.GetCoaster("c1")
	if got.StaffCount != 4 {
		t.Errorf("Expected staffCount untouched at 4, got %d", got.StaffCount)
	}
}

// TestMemoryStoreWagons tests wagon operations including the mismatched-pair
// delete case.
func TestMemoryStoreWagons(t *testing.T) {
	t.Run("put list and get wagons", func(t *testing.T) {
		s := NewMemoryStore()
		_ = s.PutWagon(Wagon{ID: "w1", CoasterID: "c1", SeatCount: 32, WagonSpeed: 1.2})
		_ = s.PutWagon(Wagon{ID: "w2", CoasterID: "c1", SeatCount: 28, WagonSpeed: 1.0})
		_ = s.PutWagon(Wagon{ID: "w3", CoasterID: "c2", SeatCount: 40, WagonSpeed: 1.5})

		if got := s.ListWagons("c1"); len(got) != 2 {
			t.Errorf("Expected 2 wagons for c1, got %d", len(got))
		}
		if got := s.ListWagons("c2"); len(got) != 1 {
			t.Errorf("Expected 1 wagon for c2, got %d", len(got))
		}
		if got := s.ListWagons("unknown"); len(got) != 0 {
			t.Errorf("Expected no wagons for unknown coaster, got %d", len(got))
		}

		w, ok := s.GetWagon("c1", "w2")
		if !ok || w.SeatCount != 28 {
			t.Errorf("Expected wagon w2 with 28 seats, got %+v (ok=%v)", w, ok)
		}
	})

	t.Run("delete wagon", func(t *testing.T) {
		s := NewMemoryStore()
		_ = s.PutWagon(Wagon{ID: "w1", CoasterID: "c1", SeatCount: 32, WagonSpeed: 1.2})

		if !s.DeleteWagon("c1", "w1") {
			t.Error("Expected delete of existing wagon to succeed")
		}
		if len(s.ListWagons("c1")) != 0 {
			t.Error("Expected wagon list to be empty after delete")
		}
	})

	t.Run("mismatched pair leaves list unchanged", func(t *testing.T) {
		s := NewMemoryStore()
		_ = s.PutWagon(Wagon{ID: "w1", CoasterID: "c1", SeatCount: 32, WagonSpeed: 1.2})

		if s.DeleteWagon("c2", "w1") {
			t.Error("Expected delete with wrong coaster id to fail")
		}
		if s.DeleteWagon("c1", "w9") {
			t.Error("Expected delete with wrong wagon id to fail")
		}
		if len(s.ListWagons("c1")) != 1 {
			t.Error("Expected wagon list unchanged after failed deletes")
		}
	})
}

// TestValidation covers the field checks performed before any mutation.
func TestValidation(t *testing.T) {
	valid := Coaster{ID: "c1", StaffCount: 4, ClientCount: 100, TrackLength: 500, HoursFrom: "9:00", HoursTo: "17:00"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Expected valid coaster, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(c *Coaster)
	}{
		{"negative staff", func(c *Coaster) { c.StaffCount = -1 }},
		{"negative clients", func(c *Coaster) { c.ClientCount = -1 }},
		{"zero track length", func(c *Coaster) { c.TrackLength = 0 }},
		{"bad hoursFrom", func(c *Coaster) { c.HoursFrom = "morning" }},
		{"out of range hoursTo", func(c *Coaster) { c.HoursTo = "25:00" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := valid
			tc.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if _, ok := err.(*ValidationError); !ok {
				t.Errorf("Expected *ValidationError, got %T", err)
			}
		})
	}

	w := Wagon{ID: "w1", CoasterID: "c1", SeatCount: 32, WagonSpeed: 1.2}
	if err := w.Validate(); err != nil {
		t.Fatalf("Expected valid wagon, got %v", err)
	}
	w.SeatCount = 0
	if err := w.Validate(); err == nil {
		t.Error("Expected validation error for zero seats")
	}
}

// TestConcurrentAccess verifies the store survives concurrent mixed
// local-style and replica-style writes without losing updates.
func TestConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	_ = s.PutCoaster(Coaster{ID: "c1", TrackLength: 1000, HoursFrom: "9:00", HoursTo: "17:00"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			_ = s.PutWagon(Wagon{ID: fmt.Sprintf("w%d", n), CoasterID: "c1", SeatCount: 30, WagonSpeed: 1.0})
		}(i)
		go func(n int) {
			defer wg.Done()
			staff := n
			s.UpdateCoaster("c1", CoasterPatch{StaffCount: &staff})
		}(i)
	}
	wg.Wait()

	if got := len(s.ListWagons("c1")); got != 10 {
		t.Errorf("Expected 10 wagons after concurrent puts, got %d", got)
	}
	c, _ := s.GetCoaster("c1")
	if c.TrackLength != 1000 {
		t.Errorf("Expected trackLength preserved under concurrency, got %v", c.TrackLength)
	}
}
