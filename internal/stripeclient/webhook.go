package stripeclient

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

// Event type handled by the payment sync.
const EventCheckoutSessionCompleted = "checkout.session.completed"

// WebhookEvent is a verified provider event. Session is populated for
// checkout.session.completed events.
type WebhookEvent struct {
	ID      string
	Type    string
	Session *Session
}

// WebhookVerifier checks inbound webhook signatures against the endpoint
// secret.
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier creates a verifier for the given endpoint secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: secret}
}

// VerifyWebhook verifies the Stripe-Signature header against the raw
// payload before any of it is trusted. Payload contents are only parsed
// after the signature checks out.
func (v *WebhookVerifier) VerifyWebhook(payload []byte, sigHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, sigHeader, v.secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("signature verification failed: %w", err)
	}

	out := &WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	if out.Type == EventCheckoutSessionCompleted {
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("invalid session payload: %w", err)
		}
		out.Session = fromStripeSession(&sess)
	}

	return out, nil
}
