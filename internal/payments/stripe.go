package payments

import (
	"context"
	"os"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
)

// StripeClient is a thin wrapper around stripe-go for wallet top-up
// PaymentIntents. Card deposits clear through Stripe; the ledger entry is
// appended only after the intent succeeds, so the intent ID doubles as the
// reconciliation handle.
type StripeClient struct{}

// NewStripeClient initializes the stripe client with the STRIPE_API_KEY env var.
func NewStripeClient() *StripeClient {
	stripe.Key = os.Getenv("STRIPE_API_KEY")
	return &StripeClient{}
}

// CreateDepositIntent opens a PaymentIntent for a wallet top-up and returns
// its ID and client secret for the mobile app to confirm.
func (s *StripeClient) CreateDepositIntent(ctx context.Context, amount int64, currency, ownerType, ownerID string) (string, string, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(currency),
	}
	params.AddMetadata("owner_type", ownerType)
	params.AddMetadata("owner_id", ownerID)
	pi, err := paymentintent.New(params)
	if err != nil {
		return "", "", err
	}
	return pi.ID, pi.ClientSecret, nil
}

// Verify fetches a PaymentIntent and reports whether it succeeded, along
// with the amount actually received.
func (s *StripeClient) Verify(ctx context.Context, paymentIntentID string) (bool, int64, error) {
	pi, err := paymentintent.Get(paymentIntentID, nil)
	if err != nil {
		return false, 0, err
	}
	return pi.Status == stripe.PaymentIntentStatusSucceeded, pi.AmountReceived, nil
}

// Cancel abandons an unconfirmed deposit intent.
func (s *StripeClient) Cancel(ctx context.Context, paymentIntentID string) error {
	_, err := paymentintent.Cancel(paymentIntentID, nil)
	return err
}
