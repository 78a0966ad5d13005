package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
)

// Prices is the normalized shape returned by all fetchers: symbol -> price.
// Symbols the upstream did not return are simply absent.
type Prices map[string]float64

// Fetcher wraps one upstream quote source.
//
//go:generate mockgen -package=mock -destination=mock/mock_provider.go -source=provider.go Fetcher,HTTPClient
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, symbols []string) (Prices, error)
}

// HTTPClient describes an HTTP client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrUnexpectedStatus is wrapped by fetch errors caused by a non-2xx response.
var ErrUnexpectedStatus = errors.New("unexpected status code")

// FetchError reports a failed upstream call. Fetchers never retry; the
// caller decides what to do with a failed side.
type FetchError struct {
	Provider string
	Op       string
	Cause    error
}

func (e *FetchError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Provider, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Wrap returns err as a *FetchError for the named provider. Errors that are
// already fetch errors are returned unchanged.
func Wrap(name, op string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Provider: name, Op: op, Cause: err}
}

// StatusError builds the cause for a non-2xx upstream response.
func StatusError(code int, body string) error {
	body = strings.TrimSpace(body)
	if body == "" {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, code)
	}
	return fmt.Errorf("%w: %d: %s", ErrUnexpectedStatus, code, body)
}

// ParsePrice converts an upstream JSON number into a price. ok is false for
// missing or negative values.
func ParsePrice(n json.Number) (price float64, ok bool, err error) {
	s := strings.TrimSpace(n.String())
	if s == "" {
		return 0, false, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false, fmt.Errorf("parse price %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, false, nil
	}
	f, _ := d.Float64()
	if math.IsInf(f, 0) {
		return 0, false, nil
	}
	return f, true, nil
}

// Clone returns a copy of p that is never nil.
func (p Prices) Clone() Prices {
	out := make(Prices, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}
