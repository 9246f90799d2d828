package availability

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medilink/telehealth-booking/internal/identity"
)

type fakeRuleRepo struct {
	mu    sync.Mutex
	rules map[uuid.UUID]AvailabilityRule
	busy  []Interval
}

func newFakeRuleRepo() *fakeRuleRepo {
	return &fakeRuleRepo{rules: make(map[uuid.UUID]AvailabilityRule)}
}

func (r *fakeRuleRepo) CreateRule(_ context.Context, rule *AvailabilityRule) (*AvailabilityRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	candidate := Interval{Start: rule.StartTime, End: rule.EndTime}
	for _, existing := range r.rules {
		if existing.DoctorID == rule.DoctorID && existing.Date.Equal(rule.Date) &&
			candidate.Overlaps(Interval{Start: existing.StartTime, End: existing.EndTime}) {
			return nil, ErrRuleOverlap
		}
	}
	stored := *rule
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now().UTC()
	r.rules[stored.ID] = stored
	return &stored, nil
}

func (r *fakeRuleRepo) DeleteRule(_ context.Context, doctorID, ruleID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rule, ok := r.rules[ruleID]
	if !ok || rule.DoctorID != doctorID {
		return ErrRuleNotFound
	}
	delete(r.rules, ruleID)
	return nil
}

func (r *fakeRuleRepo) ListRulesForDay(_ context.Context, doctorID uuid.UUID, day time.Time) ([]AvailabilityRule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []AvailabilityRule
	for _, rule := range r.rules {
		if rule.DoctorID == doctorID && rule.Date.Equal(day) {
			out = append(out, rule)
		}
	}
	return out, nil
}

func (r *fakeRuleRepo) ListBusyIntervals(_ context.Context, _ uuid.UUID, _ time.Time) ([]Interval, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.busy, nil
}

func doctorPrincipal() identity.Principal {
	return identity.Principal{UserID: uuid.New(), Role: identity.RoleDoctor}
}

func TestDeclareRule_HappyPath(t *testing.T) {
	repo := newFakeRuleRepo()
	svc := NewService(repo, 30*time.Minute, nil)
	doctor := doctorPrincipal()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	rule, err := svc.DeclareRule(context.Background(), doctor, day.Add(9*time.Hour), day.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, doctor.UserID, rule.DoctorID)
	assert.Equal(t, day, rule.Date)
	assert.NotEqual(t, uuid.Nil, rule.ID)
}

func TestDeclareRule_RejectsPatients(t *testing.T) {
	svc := NewService(newFakeRuleRepo(), 30*time.Minute, nil)
	patient := identity.Principal{UserID: uuid.New(), Role: identity.RolePatient}
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	_, err := svc.DeclareRule(context.Background(), patient, day.Add(9*time.Hour), day.Add(12*time.Hour))
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDeclareRule_Validation(t *testing.T) {
	svc := NewService(newFakeRuleRepo(), 30*time.Minute, nil)
	doctor := doctorPrincipal()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"start equals end", day.Add(9 * time.Hour), day.Add(9 * time.Hour)},
		{"start after end", day.Add(10 * time.Hour), day.Add(9 * time.Hour)},
		{"crosses midnight", day.Add(23 * time.Hour), day.Add(25 * time.Hour)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.DeclareRule(context.Background(), doctor, tt.start, tt.end)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestDeclareRule_OverlapSurfacesSentinel(t *testing.T) {
	repo := newFakeRuleRepo()
	svc := NewService(repo, 30*time.Minute, nil)
	doctor := doctorPrincipal()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	_, err := svc.DeclareRule(context.Background(), doctor, day.Add(9*time.Hour), day.Add(12*time.Hour))
	require.NoError(t, err)

	_, err = svc.DeclareRule(context.Background(), doctor, day.Add(11*time.Hour), day.Add(13*time.Hour))
	assert.ErrorIs(t, err, ErrRuleOverlap)
}

func TestRemoveRule(t *testing.T) {
	repo := newFakeRuleRepo()
	svc := NewService(repo, 30*time.Minute, nil)
	doctor := doctorPrincipal()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	rule, err := svc.DeclareRule(context.Background(), doctor, day.Add(9*time.Hour), day.Add(12*time.Hour))
	require.NoError(t, err)

	stranger := doctorPrincipal()
	assert.ErrorIs(t, svc.RemoveRule(context.Background(), stranger, rule.ID), ErrRuleNotFound)

	require.NoError(t, svc.RemoveRule(context.Background(), doctor, rule.ID))
	assert.ErrorIs(t, svc.RemoveRule(context.Background(), doctor, rule.ID), ErrRuleNotFound)
}

func TestListFreeSlots_EmptyDayIsNotAnError(t *testing.T) {
	svc := NewService(newFakeRuleRepo(), 30*time.Minute, nil)

	slots, err := svc.ListFreeSlots(context.Background(), uuid.New(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.NotNil(t, slots)
}

func TestListFreeSlots_SubtractsBookedAppointments(t *testing.T) {
	repo := newFakeRuleRepo()
	svc := NewService(repo, 30*time.Minute, nil)
	doctor := doctorPrincipal()
	day := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	_, err := svc.DeclareRule(context.Background(), doctor, day.Add(9*time.Hour), day.Add(10*time.Hour))
	require.NoError(t, err)
	repo.busy = []Interval{{Start: day.Add(9 * time.Hour), End: day.Add(9*time.Hour + 30*time.Minute)}}

	slots, err := svc.ListFreeSlots(context.Background(), doctor.UserID, day)
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, day.Add(9*time.Hour+30*time.Minute), slots[0].Start)
}
