package availability

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilityRule is one open interval on a doctor's calendar for a single
// date. Rules are never mutated in place: doctors delete and recreate.
type AvailabilityRule struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	Date      time.Time // midnight UTC of the calendar day
	StartTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
}

// Slot is one bookable interval derived from an AvailabilityRule. Slots are an
// ephemeral view, recomputed on every request, never persisted.
type Slot struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}
