package cache

import (
	"encoding/json"
	"time"

	"quotecache/internal/provider"
)

// Snapshot is an immutable bundle of the latest known prices. It is built
// once per refresh cycle and replaced as a unit; accessors hand out copies.
type Snapshot struct {
	updatedAt time.Time
	crypto    provider.Prices
	stocks    provider.Prices
}

// NewSnapshot copies crypto and stocks into a new snapshot.
func NewSnapshot(updatedAt time.Time, crypto, stocks provider.Prices) *Snapshot {
	return &Snapshot{updatedAt: updatedAt, crypto: crypto.Clone(), stocks: stocks.Clone()}
}

func (s *Snapshot) UpdatedAt() time.Time { return s.updatedAt }

// UpdatedAtSeconds is UpdatedAt as float seconds since the epoch.
func (s *Snapshot) UpdatedAtSeconds() float64 { return epochSeconds(s.updatedAt) }

func (s *Snapshot) Crypto() provider.Prices { return s.crypto.Clone() }

func (s *Snapshot) Stocks() provider.Prices { return s.stocks.Clone() }

// StocksFor returns the prices of the given symbols that the snapshot has.
func (s *Snapshot) StocksFor(syms []string) provider.Prices {
	out := make(provider.Prices, len(syms))
	for _, sym := range syms {
		if p, ok := s.stocks[sym]; ok {
			out[sym] = p
		}
	}
	return out
}

type snapshotJSON struct {
	UpdatedAt float64         `json:"updated_at"`
	Crypto    provider.Prices `json:"crypto"`
	Stocks    provider.Prices `json:"stocks"`
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(snapshotJSON{
		UpdatedAt: s.UpdatedAtSeconds(),
		Crypto:    s.crypto.Clone(),
		Stocks:    s.stocks.Clone(),
	})
}

func epochSeconds(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}
