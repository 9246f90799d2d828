package payment

import (
	"context"

	"github.com/google/uuid"
)

// Outcome is the gateway's verdict on a charge.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomePending   Outcome = "pending"
)

type CheckoutParams struct {
	PaymentID     uuid.UUID
	AppointmentID uuid.UUID
	AmountCents   int64
	Currency      string
	Method        string
}

// CheckoutSession is what the caller needs to send the patient to the
// gateway's hosted checkout.
type CheckoutSession struct {
	URL         string `json:"url"`
	ProviderRef string `json:"provider_ref"`
}

// Gateway is the external payment provider. The contract is create session,
// then an asynchronous callback with the outcome; LookupCharge exists for the
// reconciliation sweep when the callback never arrives.
type Gateway interface {
	CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)
	LookupCharge(ctx context.Context, providerRef string) (Outcome, error)
	Refund(ctx context.Context, providerRef string) error
}
