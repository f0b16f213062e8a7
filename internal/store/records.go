package store

import "fmt"

// Coaster describes one attraction in the fleet. The record is owned by the
// store; callers mutate it only through the store's operations.
//
// TrackLength is fixed at creation time. UpdateCoaster silently preserves the
// stored value no matter what a caller supplies.
type Coaster struct {
	ID          string  `json:"id"`
	StaffCount  int     `json:"staffCount"`
	ClientCount int     `json:"clientCount"`
	TrackLength float64 `json:"trackLength"`
	HoursFrom   string  `json:"hoursFrom"`
	HoursTo     string  `json:"hoursTo"`
}

// Wagon is one transport unit. It belongs to exactly one coaster for its
// lifetime and is removed only by an explicit delete.
type Wagon struct {
	ID         string  `json:"id"`
	CoasterID  string  `json:"coasterId"`
	SeatCount  int     `json:"seatCount"`
	WagonSpeed float64 `json:"wagonSpeed"`
}

// CoasterPatch carries the fields a caller may change on an existing coaster.
// Nil fields are left untouched. There is deliberately no TrackLength field:
// track length is immutable after creation.
type CoasterPatch struct {
	StaffCount  *int    `json:"staffCount"`
	ClientCount *int    `json:"clientCount"`
	HoursFrom   *string `json:"hoursFrom"`
	HoursTo     *string `json:"hoursTo"`
}

// ValidationError reports a malformed or missing field on an inbound record.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate checks the coaster's fields, returning a *ValidationError for the
// first problem found.
func (c Coaster) Validate() error {
	if c.StaffCount < 0 {
		return &ValidationError{Field: "staffCount", Reason: "must be >= 0"}
	}
	if c.ClientCount < 0 {
		return &ValidationError{Field: "clientCount", Reason: "must be >= 0"}
	}
	if c.TrackLength <= 0 {
		return &ValidationError{Field: "trackLength", Reason: "must be > 0"}
	}
	if err := validClock(c.HoursFrom); err != nil {
		return &ValidationError{Field: "hoursFrom", Reason: err.Error()}
	}
	if err := validClock(c.HoursTo); err != nil {
		return &ValidationError{Field: "hoursTo", Reason: err.Error()}
	}
	return nil
}

// Validate checks the wagon's fields, returning a *ValidationError for the
// first problem found. Foreign-key existence is checked by the caller, not
// here.
func (w Wagon) Validate() error {
	if w.CoasterID == "" {
		return &ValidationError{Field: "coasterId", Reason: "must not be empty"}
	}
	if w.SeatCount <= 0 {
		return &ValidationError{Field: "seatCount", Reason: "must be > 0"}
	}
	if w.WagonSpeed <= 0 {
		return &ValidationError{Field: "wagonSpeed", Reason: "must be > 0"}
	}
	return nil
}

// validClock accepts wall-clock times of the form H:MM or HH:MM.
func validClock(s string) error {
	var h, m int
	if _, err := fmt.Sscanf(s, "%d:%d", &h, &m); err != nil {
		return fmt.Errorf("want H:MM or HH:MM, got %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return fmt.Errorf("out of range clock time %q", s)
	}
	return nil
}
