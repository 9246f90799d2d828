package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/medilink/telehealth-booking/internal/appointment"
	"github.com/medilink/telehealth-booking/internal/payment"
	"github.com/medilink/telehealth-booking/pkg/logging"
)

func initiatePaymentHandler(svc PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		var req InitiatePaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		session, err := svc.Initiate(r.Context(), actor, id, req.Method)
		if err != nil {
			handlePaymentError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, session)
	}
}

func getPaymentHandler(svc PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		p, err := svc.GetStatus(r.Context(), actor, id)
		if err != nil {
			handlePaymentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPaymentResponse(p))
	}
}

func refundPaymentHandler(svc PaymentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, id, ok := actorAndID(w, r)
		if !ok {
			return
		}

		p, err := svc.Refund(r.Context(), actor, id)
		if err != nil {
			handlePaymentError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPaymentResponse(p))
	}
}

// gatewayWebhookHandler receives asynchronous charge outcomes from the
// payment provider. The request is unauthenticated session-wise; its
// authenticity rests on the HMAC-SHA256 signature over the raw body.
func gatewayWebhookHandler(svc PaymentService, secret string, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not read body")
			return
		}

		if !verifySignature(secret, body, r.Header.Get("X-Gateway-Signature")) {
			writeError(w, http.StatusUnauthorized, "invalid_signature", "signature verification failed")
			return
		}

		var payload GatewayWebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if payload.ProviderRef == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "provider_ref is required")
			return
		}

		outcome := payment.Outcome(payload.Status)
		switch outcome {
		case payment.OutcomeSucceeded, payment.OutcomeFailed, payment.OutcomePending:
		default:
			writeError(w, http.StatusBadRequest, "invalid_request", "unknown status")
			return
		}

		if err := svc.HandleGatewayCallback(r.Context(), payload.ProviderRef, payload.EventID, outcome); err != nil {
			if errors.Is(err, payment.ErrPaymentNotFound) {
				// Unknown ref: acknowledge so the provider stops retrying a
				// charge we will never know about.
				logger.Warn("webhook for unknown charge", "provider_ref", payload.ProviderRef)
				w.WriteHeader(http.StatusOK)
				return
			}
			logger.Error("webhook processing failed", "provider_ref", payload.ProviderRef, "error", err)
			writeError(w, http.StatusInternalServerError, "internal_error", "could not process event")
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

func verifySignature(secret string, body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

func handlePaymentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payment.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, payment.ErrPaymentNotFound):
		writeError(w, http.StatusNotFound, "payment_not_found", err.Error())
	case errors.Is(err, payment.ErrNotPayable):
		writeError(w, http.StatusConflict, "not_payable", err.Error())
	case errors.Is(err, payment.ErrNotRefundable):
		writeError(w, http.StatusConflict, "not_refundable", err.Error())
	case errors.Is(err, payment.ErrGatewayUnavailable):
		writeError(w, http.StatusBadGateway, "gateway_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
