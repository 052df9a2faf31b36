package payment

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// Webhook event types handled.
const (
	EventSucceeded = "payment_intent.succeeded"
	EventFailed    = "payment_intent.payment_failed"
)

// BalanceUpdater credits amount, in major units, to the user once paymentID has succeeded.
type BalanceUpdater func(ctx context.Context, userID string, amount float64, paymentID string) error

// LogBalanceUpdate is a BalanceUpdater that only logs. Balances are not persisted.
func LogBalanceUpdate(_ context.Context, userID string, amount float64, paymentID string) error {
	log.WithFields(log.Fields{"userId": userID, "amount": amount, "paymentId": paymentID}).
		Info("Updating user balance")

	return nil
}

// Webhook verifies and dispatches payment gateway notifications.
type Webhook struct {
	secret string
	update BalanceUpdater
}

// NewWebhook returns a Webhook verifying signatures with secret. A nil update defaults to LogBalanceUpdate.
func NewWebhook(secret string, update BalanceUpdater) *Webhook {
	if update == nil {
		update = LogBalanceUpdate
	}

	return &Webhook{secret: secret, update: update}
}

// Handle verifies the signature header of payload and processes the event. It returns the event type. Any
// verification failure, including a missing secret, is ErrSignature.
func (w *Webhook) Handle(ctx context.Context, payload []byte, signature string) (string, error) {
	if w.secret == "" || signature == "" {
		return "", ErrSignature
	}

	if err := webhook.ValidatePayload(payload, signature, w.secret); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSignature, err)
	}

	var ev stripe.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return "", fmt.Errorf("decoding event: %w", err)
	}

	typ := string(ev.Type)

	switch typ {
	case EventSucceeded, EventFailed:
		var pi stripe.PaymentIntent
		if ev.Data == nil {
			return typ, fmt.Errorf("event %s without data", ev.ID)
		}

		if err := json.Unmarshal(ev.Data.Raw, &pi); err != nil {
			return typ, fmt.Errorf("decoding payment intent: %w", err)
		}

		if typ == EventFailed {
			log.WithField("paymentId", pi.ID).Warn("Payment failed")

			return typ, nil
		}

		log.WithField("paymentId", pi.ID).Info("Payment succeeded")

		if err := w.update(ctx, pi.Metadata["userId"], MajorUnits(pi.Amount), pi.ID); err != nil {
			return typ, fmt.Errorf("updating balance for %s: %w", pi.ID, err)
		}
	default:
		log.WithField("type", typ).Info("Unhandled event type")
	}

	return typ, nil
}
