package wallet

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/tarancss/cryptowallet/lib/payment"
)

// Messages replied to payment requests.
const (
	msgNotConfigured   = "Payment system not configured"
	msgNotConfiguredUI = "Payment gateway not configured. Using demo mode."
	msgAuthFailed      = "Payment system authentication failed"
	msgAuthFailedUI    = "Invalid payment gateway configuration. Using demo mode."
	msgDepositFailed   = "Failed to create payment intent"
	msgBadSignature    = "Invalid signature"
	msgWebhookFailed   = "Webhook handler failed"
	signatureHeader    = "Stripe-Signature"
)

// ErrDepositAmount is returned for deposits under the minimum.
var ErrDepositAmount = errors.New("deposit under minimum")

// DepositReq is the request to deposit Amount in Currency with PaymentMethod (card or upi).
type DepositReq struct {
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
	PaymentMethod string  `json:"paymentMethod"`
	UserID        string  `json:"userId"`
}

// DemoRes is replied with a 200 status when deposits cannot be taken, so the client falls back to a demo deposit.
type DemoRes struct {
	Error   string `json:"error"`
	Demo    bool   `json:"demo"`
	Message string `json:"message"`
}

// WebhookRes acknowledges a processed notification.
type WebhookRes struct {
	Received bool `json:"received"`
}

// depositHandler creates a payment intent for the deposit. When the gateway is not configured or rejects the
// credentials the client is told to use demo mode.
func (w *Wallet) depositHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var req DepositReq

	var res interface{}

	status := http.StatusOK

	defer func() {
		// reply to requester accordingly
		log.Printf("httpreq from %v %s status:%d method:%s err:%v", r.RemoteAddr, r.RequestURI, status,
			req.PaymentMethod, err)
		reply(rw, status, res)
	}()

	if err = decode(rw, r, &req); err != nil {
		status, res = http.StatusBadRequest, ErrorResponse{Error: msgBadBody}

		return
	}

	if req.Amount <= 0 || req.Amount < w.set.DepositMin {
		err = ErrDepositAmount
		status, res = http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("Amount must be at least ₹%s", usd(w.set.DepositMin))}

		return
	}

	if w.Gateway == nil {
		err = payment.ErrNotConfigured
		res = DemoRes{Error: msgNotConfigured, Demo: true, Message: msgNotConfiguredUI}

		return
	}

	var in payment.Intent

	in, err = w.Gateway.CreateDeposit(r.Context(), payment.DepositRequest{
		Amount:        req.Amount,
		Currency:      req.Currency,
		PaymentMethod: req.PaymentMethod,
		UserID:        req.UserID,
	})

	switch {
	case err == nil:
		res = in
	case errors.Is(err, payment.ErrAuthentication):
		res = DemoRes{Error: msgAuthFailed, Demo: true, Message: msgAuthFailedUI}
	default:
		status, res = http.StatusInternalServerError, ErrorResponse{Error: msgDepositFailed}
	}
}

// webhookHandler verifies the signature of a gateway notification and processes it.
func (w *Wallet) webhookHandler(rw http.ResponseWriter, r *http.Request) {
	var err error

	var typ string

	var res interface{} = WebhookRes{Received: true}

	status := http.StatusOK

	defer func() {
		// reply to requester accordingly
		log.Printf("httpreq from %v %s status:%d event:%s err:%v", r.RemoteAddr, r.RequestURI, status, typ, err)
		reply(rw, status, res)
	}()

	var payload []byte

	if payload, err = io.ReadAll(http.MaxBytesReader(rw, r.Body, maxBodyBytes)); err != nil {
		status, res = http.StatusBadRequest, ErrorResponse{Error: msgBadBody}

		return
	}

	if w.Webhook == nil {
		err = payment.ErrSignature
		status, res = http.StatusBadRequest, ErrorResponse{Error: msgBadSignature}

		return
	}

	typ, err = w.Webhook.Handle(r.Context(), payload, r.Header.Get(signatureHeader))

	switch {
	case err == nil:
	case errors.Is(err, payment.ErrSignature):
		status, res = http.StatusBadRequest, ErrorResponse{Error: msgBadSignature}
	default:
		status, res = http.StatusInternalServerError, ErrorResponse{Error: msgWebhookFailed}
	}
}
