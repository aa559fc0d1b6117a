package domain

import (
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOfferingNotFound = errors.New("offering not found")
	ErrOfferingDisabled = errors.New("offering is disabled")
)

// DefaultCodePattern matches the 4-6 digit one-time codes most services send.
const DefaultCodePattern = `\b\d{4,6}\b`

// Offering is a priced (service, country, provider) combination a user can
// purchase. The catalog is maintained by the admin collaborator and is
// read-only to the reservation core.
type Offering struct {
	ID          uuid.UUID       `json:"id"`
	Service     string          `json:"service"`
	Country     string          `json:"country"`
	Provider    string          `json:"provider"`
	Price       decimal.Decimal `json:"price"`
	CodePattern string          `json:"code_pattern"`
	Enabled     bool            `json:"enabled"`
}

// Pattern returns the code-extraction regex for this offering, falling back
// to the default when the catalog row leaves it empty.
func (o Offering) Pattern() string {
	if o.CodePattern == "" {
		return DefaultCodePattern
	}
	return o.CodePattern
}
