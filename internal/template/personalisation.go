package template

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"leasenotify/internal/types"
)

// Display layouts. The long layout renders resource-expiry timestamps as
// e.g. "Tuesday, 10 February 2026 at 14:30" in the configured display
// timezone.
const (
	shortDateLayout = "02/01/2006"
	longDateLayout  = "Monday, 2 January 2006 at 15:04"
)

// BuildPersonalisation builds the flat key/value map for the event's
// template. Fields sourced from enrichment substitute the fallback name when
// the lease record is nil or lacks them; that is the one place degraded
// enrichment is absorbed. A required key missing or empty after substitution
// is a hard build failure for this event, distinct from degradation.
func (r *Registry) BuildPersonalisation(detail types.EventDetail, lease *types.LeaseRecord) (map[string]string, error) {
	entry, err := r.Lookup(detail.Type())
	if err != nil {
		return nil, err
	}

	p := make(map[string]string)

	switch d := detail.(type) {
	case types.LeaseRequestedDetail:
		p["leaseId"] = d.LeaseID
		if d.TemplateName != "" {
			p["templateName"] = d.TemplateName
		}
		if d.Comments != "" {
			p["comments"] = d.Comments
		}

	case types.LeaseApprovedDetail:
		p["accountId"] = d.AccountID
		p["expiresAt"] = r.shortDate(d.ExpiresAt)
		p["templateName"] = r.productName(lease)

	case types.LeaseTerminatedDetail:
		p["accountId"] = d.AccountID
		p["reason"] = d.Reason
		p["templateName"] = r.productName(lease)

	case types.LeaseBudgetThresholdDetail:
		p["accountId"] = d.AccountID
		p["spend"] = FormatCurrency(d.Spend)
		p["budget"] = FormatCurrency(d.Budget)
		p["thresholdPercent"] = strconv.Itoa(d.ThresholdPercent) + "%"
		p["templateName"] = r.productName(lease)

	case types.LeaseExpiresSoonDetail:
		p["accountId"] = d.AccountID
		p["expiresAt"] = r.shortDate(d.ExpiresAt)
		p["templateName"] = r.productName(lease)

	case types.AccountQuarantinedDetail:
		p["accountId"] = d.AccountID
		p["reason"] = d.Reason
		p["quarantinedAt"] = r.longDate(d.QuarantinedAt)

	case types.CostReportFailureDetail:
		p["reportDate"] = r.shortDate(d.ReportDate)
		p["errorCode"] = d.ErrorCode
		if d.Message != "" {
			p["message"] = d.Message
		}

	case types.LeaseCostsGeneratedDetail:
		p["totalCost"] = FormatCurrency(d.TotalCost)
		p["startDate"] = r.shortDate(d.StartDate)
		p["endDate"] = r.shortDate(d.EndDate)
		p["csvUrl"] = d.CSVURL
		p["urlExpiresAt"] = r.longDate(d.URLExpiresAt)
		p["templateName"] = r.productName(lease)

	default:
		return nil, types.NewAppError(
			types.ErrCodeBuildNoTemplate,
			fmt.Sprintf("no personalisation builder for event type %q", detail.Type()),
			nil,
		)
	}

	for _, key := range entry.Required {
		if p[key] == "" {
			return nil, types.NewAppErrorWithDetails(
				types.ErrCodeBuildMissingField,
				fmt.Sprintf("required personalisation field %q is missing or empty", key),
				nil,
				map[string]any{"event_type": string(detail.Type()), "field": key},
			)
		}
	}

	return p, nil
}

// productName resolves the human-readable product name from the lease
// record, or the fixed fallback when enrichment degraded or the record
// lacks one.
func (r *Registry) productName(lease *types.LeaseRecord) string {
	if lease == nil || lease.TemplateName == "" {
		return r.fallbackName
	}
	return lease.TemplateName
}

// shortDate renders an ISO date or timestamp as DD/MM/YYYY in the display
// timezone. An unparseable value renders empty, which the required-field
// check then surfaces as a build failure rather than sending garbled copy.
func (r *Registry) shortDate(iso string) string {
	t, ok := parseISO(iso)
	if !ok {
		return ""
	}
	return t.In(r.loc).Format(shortDateLayout)
}

// longDate renders a timestamp in long prose form in the display timezone.
func (r *Registry) longDate(iso string) string {
	t, ok := parseISO(iso)
	if !ok {
		return ""
	}
	return t.In(r.loc).Format(longDateLayout)
}

func parseISO(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// FormatCurrency renders a monetary amount with symbol and two decimals:
// 45.67 -> "$45.67". Negative amounts (credits, refunds) render with a
// leading sign: -12.5 -> "-$12.50".
func FormatCurrency(d decimal.Decimal) string {
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
