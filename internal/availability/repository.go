package availability

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrRuleNotFound = errors.New("availability rule not found")

	// ErrRuleOverlap means the doctor already declared an overlapping interval
	// for that date.
	ErrRuleOverlap = errors.New("availability rule overlaps an existing rule")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	CreateRule(ctx context.Context, rule *AvailabilityRule) (*AvailabilityRule, error)
	DeleteRule(ctx context.Context, doctorID, ruleID uuid.UUID) error
	ListRulesForDay(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]AvailabilityRule, error)

	// ListBusyIntervals returns the time ranges already claimed by the
	// doctor's non-cancelled appointments on the given day.
	ListBusyIntervals(ctx context.Context, doctorID uuid.UUID, day time.Time) ([]Interval, error)
}
