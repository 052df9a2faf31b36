package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/tarancss/cryptowallet/lib/price/types"
)

// Record is the row layout of a snapshot in SQL databases. Quotes are kept as a JSON document and the capture time as
// unix nanoseconds.
type Record struct {
	Key        string
	Data       []byte
	Source     string
	CapturedAt int64
}

// NewRecord converts a snapshot for storage under key.
func NewRecord(key string, s types.Snapshot) (Record, error) {
	data, err := json.Marshal(s.Quotes)
	if err != nil {
		return Record{}, fmt.Errorf("encoding quotes: %w", err)
	}

	return Record{Key: key, Data: data, Source: string(s.Source), CapturedAt: s.CapturedAt.UnixNano()}, nil
}

// Snapshot converts a stored record back.
func (r Record) Snapshot() (types.Snapshot, error) {
	var qs types.QuoteSet
	if err := json.Unmarshal(r.Data, &qs); err != nil {
		return types.Snapshot{}, fmt.Errorf("decoding quotes for %s: %w", r.Key, err)
	}

	return types.Snapshot{Quotes: qs, Source: types.Source(r.Source), CapturedAt: time.Unix(0, r.CapturedAt)}, nil
}
