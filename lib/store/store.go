// Package store defines the interface for database implementations used by the wallet service to share its price
// cache between instances.
package store

import (
	"context"
	"errors"

	"github.com/tarancss/cryptowallet/lib/price/types"
)

// DB defines required methods for the wallet price cache.
type DB interface {
	LoadQuotes(ctx context.Context, key string) (types.Snapshot, error)
	SaveQuotes(ctx context.Context, key string, s types.Snapshot) error
}

// Errors returned
var (
	ErrDataNotFound = errors.New("data was not found in store")
)
