// Package types common transaction types.
package types

import (
	"errors"
	"time"
)

// Transaction types.
const (
	TypeBuy  = "buy"
	TypeSend = "send"
)

// Transaction status values.
const (
	TrxPending   = "pending"
	TrxConfirmed = "confirmed"
	TrxCompleted = "completed"
)

// Trans is a simulated send of an asset to an external address. Amount and fees are in units of the asset.
type Trans struct {
	ID                        string    `json:"id"`
	Type                      string    `json:"type"`
	Symbol                    string    `json:"symbol"`
	Amount                    float64   `json:"amount"`
	NetworkFee                float64   `json:"networkFee"`
	TotalAmount               float64   `json:"totalAmount"`
	ToAddress                 string    `json:"toAddress"`
	TxHash                    string    `json:"txHash"`
	Timestamp                 time.Time `json:"timestamp"`
	Status                    string    `json:"status"`
	Confirmations             int       `json:"confirmations"`
	EstimatedConfirmationTime string    `json:"estimatedConfirmationTime"`
	UserID                    string    `json:"userId,omitempty"`
}

// Purchase is a simulated market buy of an asset paid in USD.
type Purchase struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Symbol       string    `json:"symbol"`
	CryptoAmount float64   `json:"cryptoAmount"`
	USDAmount    float64   `json:"usdAmount"`
	Fee          float64   `json:"fee"`
	TotalCost    float64   `json:"totalCost"`
	Price        float64   `json:"price"`
	Timestamp    time.Time `json:"timestamp"`
	Status       string    `json:"status"`
	UserID       string    `json:"userId,omitempty"`
}

// Error codes.
var (
	ErrBadAddress = errors.New("invalid wallet address format")
	ErrBadAmount  = errors.New("amount must be positive")
	ErrNoNet      = errors.New("network not available")
)
