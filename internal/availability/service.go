package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medilink/telehealth-booking/internal/identity"
	"github.com/medilink/telehealth-booking/pkg/logging"
)

var (
	ErrValidation   = errors.New("validation failed")
	ErrUnauthorized = errors.New("not allowed to manage this calendar")
)

type Service struct {
	repo         Repository
	slotDuration time.Duration
	logger       *logging.Logger
}

func NewService(repo Repository, slotDuration time.Duration, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:         repo,
		slotDuration: slotDuration,
		logger:       logger,
	}
}

// DeclareRule creates an availability rule on the doctor's own calendar. The
// interval must fall within one calendar day and must not overlap an existing
// rule for that day.
func (s *Service) DeclareRule(ctx context.Context, actor identity.Principal, start, end time.Time) (*AvailabilityRule, error) {
	if !actor.IsDoctor() {
		return nil, fmt.Errorf("%w: only doctors declare availability", ErrUnauthorized)
	}

	start = start.UTC()
	end = end.UTC()

	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start must be before end", ErrValidation)
	}
	if !truncateToDay(start).Equal(truncateToDay(end.Add(-time.Nanosecond))) {
		return nil, fmt.Errorf("%w: rule must not cross midnight", ErrValidation)
	}

	rule, err := s.repo.CreateRule(ctx, &AvailabilityRule{
		DoctorID:  actor.UserID,
		Date:      truncateToDay(start),
		StartTime: start,
		EndTime:   end,
	})
	if err != nil {
		if errors.Is(err, ErrRuleOverlap) {
			return nil, err
		}
		return nil, fmt.Errorf("create availability rule: %w", err)
	}

	s.logger.Info("availability rule declared", "doctor_id", actor.UserID, "start", start, "end", end)
	return rule, nil
}

// RemoveRule deletes one of the doctor's own rules. Rules are never edited in
// place; doctors delete and recreate.
func (s *Service) RemoveRule(ctx context.Context, actor identity.Principal, ruleID uuid.UUID) error {
	if !actor.IsDoctor() {
		return fmt.Errorf("%w: only doctors manage availability", ErrUnauthorized)
	}
	return s.repo.DeleteRule(ctx, actor.UserID, ruleID)
}

// ListFreeSlots returns the doctor's bookable slots for one day: the declared
// availability sliced into fixed-duration slots, minus anything a non-cancelled
// appointment already claims. A day without rules yields an empty list, not an
// error. The result is recomputed on every call.
func (s *Service) ListFreeSlots(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]Slot, error) {
	day = truncateToDay(day.UTC())

	rules, err := s.repo.ListRulesForDay(ctx, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("list availability rules: %w", err)
	}
	if len(rules) == 0 {
		return []Slot{}, nil
	}

	busy, err := s.repo.ListBusyIntervals(ctx, doctorID, day)
	if err != nil {
		return nil, fmt.Errorf("list busy intervals: %w", err)
	}

	slots := GenerateSlots(rules, busy, s.slotDuration)
	if slots == nil {
		slots = []Slot{}
	}
	return slots, nil
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
