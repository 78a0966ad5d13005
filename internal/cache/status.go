package cache

import (
	"fmt"
	"time"
)

// OutcomeKind tags the result of one refresh cycle.
type OutcomeKind int

const (
	// Success: both sides updated.
	Success OutcomeKind = iota
	// Partial: one side updated, the other carried over.
	Partial
	// Failure: nothing published, both sides carried over.
	Failure
	// Skipped: another cycle was in flight.
	Skipped
)

func (k OutcomeKind) String() string {
	switch k {
	case Success:
		return "success"
	case Partial:
		return "partial"
	case Failure:
		return "failure"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome reports what a call to RunCycle did. Snapshot is whatever is
// current once the cycle is over, nil while the cache is cold.
type Outcome struct {
	Kind      OutcomeKind
	StartedAt time.Time
	Snapshot  *Snapshot
	CryptoErr error
	EquityErr error
}

// ProviderStatus is the refresh record of one upstream.
type ProviderStatus struct {
	Name                string     `json:"name"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	LastError           string     `json:"last_error,omitempty"`
	LastErrorAt         *time.Time `json:"last_error_at,omitempty"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

func (p *ProviderStatus) record(at time.Time, err error) {
	if err == nil {
		p.LastSuccess = &at
		p.ConsecutiveFailures = 0
		return
	}
	p.LastError = err.Error()
	p.LastErrorAt = &at
	p.ConsecutiveFailures++
}

// Status is the observability view of the cache.
type Status struct {
	Warm      bool           `json:"warm"`
	UpdatedAt float64        `json:"updated_at"`
	Cycles    uint64         `json:"cycles"`
	Skipped   uint64         `json:"skipped"`
	Crypto    ProviderStatus `json:"crypto"`
	Equity    ProviderStatus `json:"equity"`
}
