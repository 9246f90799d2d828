package availability

import "time"

// GenerateSlots slices the given availability rules into fixed-duration slots
// and drops any slot that intersects a busy interval. Rules that do not fit a
// whole slot at the tail simply yield fewer slots. The output is deterministic
// for identical inputs.
func GenerateSlots(rules []AvailabilityRule, busy []Interval, duration time.Duration) []Slot {
	if duration <= 0 {
		return nil
	}

	var slots []Slot
	for _, rule := range rules {
		for start := rule.StartTime; !start.Add(duration).After(rule.EndTime); start = start.Add(duration) {
			candidate := Interval{Start: start, End: start.Add(duration)}
			if intersectsAny(candidate, busy) {
				continue
			}
			slots = append(slots, Slot{
				DoctorID: rule.DoctorID,
				Start:    candidate.Start,
				End:      candidate.End,
			})
		}
	}
	return slots
}

func intersectsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
