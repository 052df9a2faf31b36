package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stripeServer(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if check != nil {
			require.NoError(t, r.ParseForm())
			check(r)
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(status)
		_, _ = rw.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)

	return ts
}

func TestNewStripe(t *testing.T) {
	for _, key := range []string{"", "pk_test_123", "your_key_here"} {
		s, err := NewStripe(key)
		assert.ErrorIs(t, err, ErrNotConfigured, key)
		assert.Nil(t, s)
	}

	s, err := NewStripe("sk_test_123")
	require.NoError(t, err)
	assert.NotNil(t, s)
}

func TestCreateDeposit(t *testing.T) {
	ts := stripeServer(t, http.StatusOK,
		`{"id":"pi_123","object":"payment_intent","client_secret":"pi_123_secret_abc","amount":50000,"currency":"inr"}`,
		func(r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/v1/payment_intents", r.URL.Path)
			assert.Equal(t, "50000", r.Form.Get("amount"))
			assert.Equal(t, "inr", r.Form.Get("currency"))
			assert.Equal(t, "card", r.Form.Get("payment_method_types[0]"))
			assert.Equal(t, "anonymous", r.Form.Get("metadata[userId]"))
			assert.Equal(t, "crypto_wallet_deposit", r.Form.Get("metadata[type]"))
			assert.Equal(t, "card", r.Form.Get("metadata[paymentMethod]"))
		})

	s, err := NewStripe("sk_test_123", WithBackendURL(ts.URL))
	require.NoError(t, err)

	in, err := s.CreateDeposit(context.Background(), DepositRequest{Amount: 500})
	require.NoError(t, err)
	assert.Equal(t, Intent{
		ClientSecret:    "pi_123_secret_abc",
		PaymentIntentID: "pi_123",
		Amount:          500,
		Currency:        "inr",
		PaymentMethod:   "card",
	}, in)
}

func TestCreateDepositUPI(t *testing.T) {
	ts := stripeServer(t, http.StatusOK,
		`{"id":"pi_456","object":"payment_intent","client_secret":"pi_456_secret","amount":12345,"currency":"inr"}`,
		func(r *http.Request) {
			assert.Equal(t, "12345", r.Form.Get("amount"))
			assert.Equal(t, "inr", r.Form.Get("currency"))
			assert.Equal(t, "upi", r.Form.Get("payment_method_types[0]"))
			assert.Equal(t, "user-7", r.Form.Get("metadata[userId]"))
			assert.Equal(t, "upi", r.Form.Get("metadata[paymentMethod]"))
		})

	s, err := NewStripe("sk_test_123", WithBackendURL(ts.URL))
	require.NoError(t, err)

	in, err := s.CreateDeposit(context.Background(),
		DepositRequest{Amount: 123.45, Currency: "INR", PaymentMethod: "upi", UserID: "user-7"})
	require.NoError(t, err)
	assert.Equal(t, "pi_456", in.PaymentIntentID)
	assert.Equal(t, "upi", in.PaymentMethod)
	// the reply keeps the currency as requested
	assert.Equal(t, "INR", in.Currency)
}

func TestCreateDepositErrors(t *testing.T) {
	ts := stripeServer(t, http.StatusUnauthorized,
		`{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`, nil)

	s, err := NewStripe("sk_test_bad", WithBackendURL(ts.URL))
	require.NoError(t, err)

	_, err = s.CreateDeposit(context.Background(), DepositRequest{Amount: 500})
	assert.ErrorIs(t, err, ErrAuthentication)

	ts = stripeServer(t, http.StatusBadRequest,
		`{"error":{"type":"invalid_request_error","message":"Amount too small"}}`, nil)

	s, err = NewStripe("sk_test_123", WithBackendURL(ts.URL))
	require.NoError(t, err)

	_, err = s.CreateDeposit(context.Background(), DepositRequest{Amount: 500})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrAuthentication))
}

func TestUnits(t *testing.T) {
	assert.EqualValues(t, 50000, MinorUnits(500))
	assert.EqualValues(t, 12345, MinorUnits(123.45))
	assert.EqualValues(t, 10001, MinorUnits(100.005))
	assert.EqualValues(t, 0, MinorUnits(0))
	assert.Equal(t, 123.45, MajorUnits(12345))
	assert.Equal(t, 500.0, MajorUnits(50000))
}

func sign(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)

	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

type balanceCall struct {
	user   string
	amount float64
	id     string
}

func recorder(calls *[]balanceCall, err error) BalanceUpdater {
	return func(_ context.Context, userID string, amount float64, paymentID string) error {
		*calls = append(*calls, balanceCall{userID, amount, paymentID})

		return err
	}
}

const secret = "whsec_test"

func event(typ string) []byte {
	return []byte(fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"data":{"object":`+
		`{"id":"pi_789","object":"payment_intent","amount":250050,"currency":"inr","metadata":{"userId":"user-9"}}}}`,
		typ))
}

func TestWebhookSucceeded(t *testing.T) {
	var calls []balanceCall

	w := NewWebhook(secret, recorder(&calls, nil))
	payload := event(EventSucceeded)

	typ, err := w.Handle(context.Background(), payload, sign(secret, payload, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, EventSucceeded, typ)
	assert.Equal(t, []balanceCall{{"user-9", 2500.5, "pi_789"}}, calls)
}

func TestWebhookOtherEvents(t *testing.T) {
	var calls []balanceCall

	w := NewWebhook(secret, recorder(&calls, nil))

	for _, typ := range []string{EventFailed, "charge.refunded"} {
		payload := event(typ)

		got, err := w.Handle(context.Background(), payload, sign(secret, payload, time.Now()))
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}

	assert.Empty(t, calls)
}

func TestWebhookSignature(t *testing.T) {
	var calls []balanceCall

	payload := event(EventSucceeded)

	tests := []struct {
		name   string
		secret string
		header string
	}{
		{"missing header", secret, ""},
		{"missing secret", "", sign(secret, payload, time.Now())},
		{"wrong secret", secret, sign("whsec_other", payload, time.Now())},
		{"garbage header", secret, "not-a-signature"},
		{"expired", secret, sign(secret, payload, time.Now().Add(-time.Hour))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWebhook(tt.secret, recorder(&calls, nil)).Handle(context.Background(), payload, tt.header)
			assert.ErrorIs(t, err, ErrSignature)
		})
	}

	assert.Empty(t, calls)
}

func TestWebhookHandlerFailure(t *testing.T) {
	var calls []balanceCall

	w := NewWebhook(secret, recorder(&calls, errors.New("db down")))
	payload := event(EventSucceeded)

	_, err := w.Handle(context.Background(), payload, sign(secret, payload, time.Now()))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSignature))
	assert.Len(t, calls, 1)

	bad := []byte(`{"id":"evt_2","type":`)
	_, err = w.Handle(context.Background(), bad, sign(secret, bad, time.Now()))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSignature))
}
