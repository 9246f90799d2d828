package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ruleAt(doctorID uuid.UUID, day time.Time, fromHour, fromMin, toHour, toMin int) AvailabilityRule {
	return AvailabilityRule{
		ID:        uuid.New(),
		DoctorID:  doctorID,
		Date:      day,
		StartTime: day.Add(time.Duration(fromHour)*time.Hour + time.Duration(fromMin)*time.Minute),
		EndTime:   day.Add(time.Duration(toHour)*time.Hour + time.Duration(toMin)*time.Minute),
	}
}

func TestGenerateSlots_SlicesRuleIntoFixedSlots(t *testing.T) {
	doctorID := uuid.New()
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	rules := []AvailabilityRule{ruleAt(doctorID, day, 9, 0, 10, 0)}
	slots := GenerateSlots(rules, nil, 30*time.Minute)

	require.Len(t, slots, 2)
	assert.Equal(t, day.Add(9*time.Hour), slots[0].Start)
	assert.Equal(t, day.Add(9*time.Hour+30*time.Minute), slots[0].End)
	assert.Equal(t, day.Add(9*time.Hour+30*time.Minute), slots[1].Start)
	assert.Equal(t, day.Add(10*time.Hour), slots[1].End)
}

func TestGenerateSlots_SubtractsBusyIntervals(t *testing.T) {
	doctorID := uuid.New()
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	rules := []AvailabilityRule{ruleAt(doctorID, day, 9, 0, 10, 0)}
	busy := []Interval{{Start: day.Add(9 * time.Hour), End: day.Add(9*time.Hour + 30*time.Minute)}}

	slots := GenerateSlots(rules, busy, 30*time.Minute)

	require.Len(t, slots, 1)
	assert.Equal(t, day.Add(9*time.Hour+30*time.Minute), slots[0].Start)
}

func TestGenerateSlots_PartialOverlapDropsSlot(t *testing.T) {
	doctorID := uuid.New()
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	rules := []AvailabilityRule{ruleAt(doctorID, day, 9, 0, 10, 0)}
	// An appointment from 09:15 to 09:45 makes both 30-minute slots unusable.
	busy := []Interval{{Start: day.Add(9*time.Hour + 15*time.Minute), End: day.Add(9*time.Hour + 45*time.Minute)}}

	slots := GenerateSlots(rules, busy, 30*time.Minute)
	require.Empty(t, slots)
}

func TestGenerateSlots_TailShorterThanSlotIsDropped(t *testing.T) {
	doctorID := uuid.New()
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	// 09:00-09:50 holds one 30-minute slot, not two.
	rules := []AvailabilityRule{ruleAt(doctorID, day, 9, 0, 9, 50)}
	slots := GenerateSlots(rules, nil, 30*time.Minute)
	require.Len(t, slots, 1)
}

func TestGenerateSlots_Deterministic(t *testing.T) {
	doctorID := uuid.New()
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	rules := []AvailabilityRule{
		ruleAt(doctorID, day, 9, 0, 11, 0),
		ruleAt(doctorID, day, 14, 0, 15, 0),
	}
	busy := []Interval{{Start: day.Add(10 * time.Hour), End: day.Add(10*time.Hour + 30*time.Minute)}}

	first := GenerateSlots(rules, busy, 30*time.Minute)
	second := GenerateSlots(rules, busy, 30*time.Minute)
	require.Equal(t, first, second)
}
