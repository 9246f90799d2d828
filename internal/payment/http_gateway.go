package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/medilink/telehealth-booking/pkg/logging"
)

// HTTPGateway talks to the external payment provider's REST API.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logging.Logger
}

func NewHTTPGateway(baseURL, apiKey string, logger *logging.Logger) *HTTPGateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

type checkoutRequest struct {
	Reference   string `json:"reference"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Method      string `json:"method,omitempty"`
}

type checkoutResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (g *HTTPGateway) CreateCheckout(ctx context.Context, params CheckoutParams) (*CheckoutSession, error) {
	body, err := json.Marshal(checkoutRequest{
		Reference:   params.PaymentID.String(),
		AmountCents: params.AmountCents,
		Currency:    params.Currency,
		Method:      params.Method,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal checkout request: %w", err)
	}

	var resp checkoutResponse
	if err := g.do(ctx, http.MethodPost, "/v1/checkouts", body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" || resp.URL == "" {
		return nil, fmt.Errorf("gateway returned incomplete checkout session")
	}

	return &CheckoutSession{URL: resp.URL, ProviderRef: resp.ID}, nil
}

type chargeResponse struct {
	Status string `json:"status"`
}

func (g *HTTPGateway) LookupCharge(ctx context.Context, providerRef string) (Outcome, error) {
	var resp chargeResponse
	if err := g.do(ctx, http.MethodGet, "/v1/charges/"+providerRef, nil, &resp); err != nil {
		return "", err
	}

	switch resp.Status {
	case "succeeded", "paid":
		return OutcomeSucceeded, nil
	case "failed", "cancelled", "expired":
		return OutcomeFailed, nil
	default:
		return OutcomePending, nil
	}
}

func (g *HTTPGateway) Refund(ctx context.Context, providerRef string) error {
	return g.do(ctx, http.MethodPost, "/v1/charges/"+providerRef+"/refund", nil, nil)
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("call gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		g.logger.Error("gateway rejected request", "method", method, "path", path, "status", resp.StatusCode, "body", string(payload))
		return fmt.Errorf("gateway responded %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
