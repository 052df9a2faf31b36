// Package payment implements fiat deposits through the Stripe payment gateway and the verification of the gateway
// webhook notifications.
package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/paymentintent"
)

// Deposit defaults.
const (
	DefaultCurrency      = "inr"
	DefaultPaymentMethod = "card"
	anonymous            = "anonymous"
	depositType          = "crypto_wallet_deposit"
)

// Errors returned by the gateway.
var (
	ErrNotConfigured  = errors.New("payment gateway not configured")
	ErrAuthentication = errors.New("payment gateway authentication failed")
	ErrSignature      = errors.New("invalid signature")
)

// DepositRequest is a request to charge Amount, in major currency units, to the user.
type DepositRequest struct {
	Amount        float64
	Currency      string
	PaymentMethod string
	UserID        string
}

// Intent is a created payment the client completes with ClientSecret.
type Intent struct {
	ClientSecret    string  `json:"clientSecret"`
	PaymentIntentID string  `json:"paymentIntentId"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	PaymentMethod   string  `json:"paymentMethod"`
}

// Gateway creates deposits.
type Gateway interface {
	CreateDeposit(ctx context.Context, req DepositRequest) (Intent, error)
}

// Stripe is a Gateway backed by Stripe payment intents.
type Stripe struct {
	pi paymentintent.Client
}

// Option configures the Stripe gateway.
type Option func(*stripe.BackendConfig)

// WithBackendURL points the gateway to another API root, mostly for tests.
func WithBackendURL(url string) Option {
	return func(c *stripe.BackendConfig) {
		c.URL = stripe.String(url)
		c.MaxNetworkRetries = stripe.Int64(0)
	}
}

// NewStripe returns a gateway using the secret key. ErrNotConfigured is returned when key is not a secret key.
func NewStripe(key string, opts ...Option) (*Stripe, error) {
	if !strings.HasPrefix(key, "sk_") {
		return nil, ErrNotConfigured
	}

	cfg := &stripe.BackendConfig{LeveledLogger: &stripe.LeveledLogger{Level: stripe.LevelError}}
	for _, o := range opts {
		o(cfg)
	}

	return &Stripe{pi: paymentintent.Client{B: stripe.GetBackendWithConfig(stripe.APIBackend, cfg), Key: key}}, nil
}

// CreateDeposit creates a payment intent for req. The amount is sent in minor units (paise for INR) and the currency
// lower-cased; the returned Intent echoes the currency as requested. Authentication failures are reported as
// ErrAuthentication.
func (s *Stripe) CreateDeposit(ctx context.Context, req DepositRequest) (Intent, error) {
	currency := req.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	method := req.PaymentMethod
	if method == "" {
		method = DefaultPaymentMethod
	}

	user := req.UserID
	if user == "" {
		user = anonymous
	}

	types := []string{"card"}
	if method == "upi" {
		types = []string{"upi"}
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(MinorUnits(req.Amount)),
		Currency:           stripe.String(strings.ToLower(currency)),
		PaymentMethodTypes: stripe.StringSlice(types),
	}
	params.Context = ctx
	params.AddMetadata("userId", user)
	params.AddMetadata("type", depositType)
	params.AddMetadata("paymentMethod", method)

	pi, err := s.pi.New(params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode == 401 {
			return Intent{}, fmt.Errorf("%w: %s", ErrAuthentication, se.Msg)
		}

		return Intent{}, fmt.Errorf("creating payment intent: %w", err)
	}

	return Intent{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
		Amount:          req.Amount,
		Currency:        currency,
		PaymentMethod:   method,
	}, nil
}

// MinorUnits converts an amount in major units to the nearest minor unit.
func MinorUnits(amount float64) int64 {
	return decimal.NewFromFloat(amount).Shift(2).Round(0).IntPart()
}

// MajorUnits converts minor units back to major units.
func MajorUnits(amount int64) float64 {
	return decimal.New(amount, -2).InexactFloat64()
}
