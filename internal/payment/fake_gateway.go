package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/medilink/telehealth-booking/pkg/logging"
)

// FakeGateway is a dev/demo provider that generates an internal checkout URL
// and reports every charge as pending until the demo endpoint "completes" it.
//
// This MUST be gated by configuration (ALLOW_FAKE_GATEWAY) and should never be
// enabled in production.
type FakeGateway struct {
	publicBaseURL string
	logger        *logging.Logger

	mu       sync.Mutex
	outcomes map[string]Outcome
}

func NewFakeGateway(publicBaseURL string, logger *logging.Logger) *FakeGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakeGateway{
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		logger:        logger,
		outcomes:      make(map[string]Outcome),
	}
}

func (g *FakeGateway) CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	ref := "fake:" + params.PaymentID.String()

	g.mu.Lock()
	g.outcomes[ref] = OutcomePending
	g.mu.Unlock()

	g.logger.Info("fake checkout created", "provider_ref", ref, "amount_cents", params.AmountCents)

	return &CheckoutSession{
		URL:         fmt.Sprintf("%s/payments/fake/%s", g.publicBaseURL, params.PaymentID),
		ProviderRef: ref,
	}, nil
}

func (g *FakeGateway) LookupCharge(ctx context.Context, providerRef string) (Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	outcome, ok := g.outcomes[providerRef]
	if !ok {
		return "", fmt.Errorf("unknown charge %q", providerRef)
	}
	return outcome, nil
}

func (g *FakeGateway) Refund(ctx context.Context, providerRef string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.outcomes[providerRef]; !ok {
		return fmt.Errorf("unknown charge %q", providerRef)
	}
	g.outcomes[providerRef] = OutcomeFailed
	return nil
}

// Complete sets the stored outcome, standing in for the user finishing (or
// abandoning) the hosted checkout.
func (g *FakeGateway) Complete(providerRef string, outcome Outcome) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.outcomes[providerRef] = outcome
}
