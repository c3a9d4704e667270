// Package stripeclient adapts the Stripe SDK to the narrow surface the
// services need, so business logic never handles raw SDK types.
package stripeclient

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/subscription"
)

// Session is the provider-neutral view of a checkout session.
type Session struct {
	ID             string
	URL            string
	PaymentStatus  string
	CustomerID     string
	SubscriptionID string
	CustomerName   string
	CustomerEmail  string
	CustomerPhone  string
	ShippingLine   string
	ShippingCity   string
	ShippingPostal string
}

// ProviderSubscription is the provider-neutral view of a subscription.
type ProviderSubscription struct {
	ID         string
	CustomerID string
	Status     string
}

// CreateSessionParams describes a subscription-mode checkout to create.
type CreateSessionParams struct {
	PriceID       string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

type Client struct{}

// New wires the Stripe API key and returns a client.
func New(secretKey string) *Client {
	stripe.Key = secretKey
	return &Client{}
}

// CreateCheckoutSession starts a subscription-mode checkout session.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CreateSessionParams) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	if len(p.Metadata) > 0 {
		params.Metadata = p.Metadata
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return fromStripeSession(sess), nil
}

// GetCheckoutSession re-fetches a session directly from Stripe. Payment
// status is always taken from this call, never from the client.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := session.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch checkout session: %w", err)
	}
	return fromStripeSession(sess), nil
}

// FindCustomerByEmail returns the id of the first customer matching the
// email, or "" when none exists.
func (c *Client) FindCustomerByEmail(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := customer.List(params)
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("failed to search customers: %w", err)
	}
	return "", nil
}

// ListSubscriptions returns all subscriptions of a customer, any status.
func (c *Client) ListSubscriptions(ctx context.Context, customerID string) ([]ProviderSubscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx

	var subs []ProviderSubscription
	iter := subscription.List(params)
	for iter.Next() {
		s := iter.Subscription()
		subs = append(subs, ProviderSubscription{
			ID:         s.ID,
			CustomerID: customerID,
			Status:     string(s.Status),
		})
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

// CancelSubscription cancels a subscription immediately at the provider.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := subscription.Cancel(subscriptionID, params); err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	return nil
}

func fromStripeSession(sess *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            sess.ID,
		URL:           sess.URL,
		PaymentStatus: string(sess.PaymentStatus),
	}
	if sess.Customer != nil {
		out.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
	}
	if cd := sess.CustomerDetails; cd != nil {
		out.CustomerName = cd.Name
		out.CustomerEmail = cd.Email
		out.CustomerPhone = cd.Phone
		if cd.Address != nil {
			out.ShippingLine = cd.Address.Line1
			out.ShippingCity = cd.Address.City
			out.ShippingPostal = cd.Address.PostalCode
		}
	}
	if sd := sess.ShippingDetails; sd != nil && sd.Address != nil {
		out.ShippingLine = sd.Address.Line1
		out.ShippingCity = sd.Address.City
		out.ShippingPostal = sd.Address.PostalCode
	}
	return out
}
