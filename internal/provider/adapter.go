package provider

import (
	"context"
	"errors"

	catalogdomain "github.com/paratel/numlease/internal/catalog/domain"
)

// ErrUnavailable is returned after retries against a vendor are exhausted.
// The reservation manager treats it as "no number / no code yet", never as a
// fatal condition.
var ErrUnavailable = errors.New("provider unavailable")

// ErrNumberBurned reports that the vendor considers the number unusable.
// The pool marks such numbers exhausted instead of returning them to free.
var ErrNumberBurned = errors.New("provider reports number burned")

// Number is the vendor-side identity of a rented phone number.
type Number struct {
	Ref   string // vendor's id for this rental, used on all later calls
	Phone string // phone number string in E.164-ish form
}

// Adapter normalizes one external SMS-number vendor. Implementations must be
// safe for concurrent use; every method performs network I/O and honors ctx.
type Adapter interface {
	Name() string
	// RequestNumber activates a rental for the given pool phone number.
	RequestNumber(ctx context.Context, offering catalogdomain.Offering, phone string) (*Number, error)
	// Cancel releases the rental on the vendor side, best effort. It may
	// return ErrNumberBurned to signal the number must not be reused.
	Cancel(ctx context.Context, ref string) error
}

// PollingAdapter is implemented by vendors without push delivery. CheckCode
// returns raw inbound SMS text, or "" when nothing has arrived yet.
type PollingAdapter interface {
	Adapter
	CheckCode(ctx context.Context, ref string) (string, error)
}
