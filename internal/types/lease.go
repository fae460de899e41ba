package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// LeaseRecord is the enrichment result fetched from the lease read API.
// It is constructed fresh per invocation on a successful fetch and is never
// cached by this pipeline. A nil *LeaseRecord is a valid, expected state:
// it means the record was absent or the fetch degraded, not that an error
// occurred.
type LeaseRecord struct {
	// TemplateName is the human-readable product/template name shown in
	// notification copy. Empty when the external record lacks one.
	TemplateName string

	AccountID string
	Owner     string
	Status    string
	MaxSpend  decimal.Decimal
	ExpiresAt time.Time
}

// SendInput carries everything the transactional email API needs for a
// single templated send.
type SendInput struct {
	TemplateID      string
	Recipient       string
	Personalisation map[string]string

	// Reference is the correlation id echoed back by the provider for
	// cross-system log correlation.
	Reference string
}
