// Package template maps event types to provider template identifiers and
// builds the channel-specific personalisation for each send. The registry is
// loaded once at cold start and read-only thereafter.
package template

import (
	"fmt"
	"time"

	"leasenotify/internal/config"
	"leasenotify/internal/types"
)

// EntryConfig is the static per-event-type record: the target template id,
// the personalisation fields the template requires and optionally accepts,
// and whether the build wants a lease record for enrichment.
type EntryConfig struct {
	TemplateID string
	Required   []string
	Optional   []string
	NeedsLease bool
}

// Registry holds the per-type template configuration plus the display
// settings shared by every build.
type Registry struct {
	entries      map[types.EventType]EntryConfig
	fallbackName string
	loc          *time.Location
}

// NewRegistry builds the registry from the environment-sourced template ids.
// The timezone is the producer-configured display locale for human-readable
// timestamps; an unknown zone is a startup error, not a per-event degrade.
func NewRegistry(ids config.TemplateIDs, fallbackName, timeZone string) (*Registry, error) {
	loc, err := time.LoadLocation(timeZone)
	if err != nil {
		return nil, fmt.Errorf("template registry: unknown display timezone %q: %w", timeZone, err)
	}

	entries := map[types.EventType]EntryConfig{
		types.EventLeaseRequested: {
			TemplateID: ids.LeaseRequested,
			Required:   []string{"leaseId"},
			Optional:   []string{"templateName", "comments"},
		},
		types.EventLeaseApproved: {
			TemplateID: ids.LeaseApproved,
			Required:   []string{"accountId", "expiresAt", "templateName"},
			NeedsLease: true,
		},
		types.EventLeaseTerminated: {
			TemplateID: ids.LeaseTerminated,
			Required:   []string{"accountId", "reason", "templateName"},
			NeedsLease: true,
		},
		types.EventLeaseBudgetThreshold: {
			TemplateID: ids.BudgetThreshold,
			Required:   []string{"accountId", "spend", "budget", "thresholdPercent", "templateName"},
			NeedsLease: true,
		},
		types.EventLeaseExpiresSoon: {
			TemplateID: ids.LeaseExpiresSoon,
			Required:   []string{"accountId", "expiresAt", "templateName"},
			NeedsLease: true,
		},
		types.EventAccountQuarantined: {
			TemplateID: ids.AccountQuarantined,
			Required:   []string{"accountId", "reason", "quarantinedAt"},
		},
		types.EventCostReportFailure: {
			TemplateID: ids.CostReportFailure,
			Required:   []string{"reportDate", "errorCode"},
			Optional:   []string{"message"},
		},
		types.EventLeaseCostsGenerated: {
			TemplateID: ids.LeaseCostsGenerated,
			Required:   []string{"totalCost", "startDate", "endDate", "csvUrl", "urlExpiresAt", "templateName"},
			NeedsLease: true,
		},
	}

	return &Registry{
		entries:      entries,
		fallbackName: fallbackName,
		loc:          loc,
	}, nil
}

// Lookup returns the entry for an event type. A missing entry is a build
// failure for that event, not a panic: validation guarantees the type is
// registered, but the template binding is configuration and can lag.
func (r *Registry) Lookup(et types.EventType) (EntryConfig, error) {
	entry, ok := r.entries[et]
	if !ok || entry.TemplateID == "" {
		return EntryConfig{}, types.NewAppError(
			types.ErrCodeBuildNoTemplate,
			fmt.Sprintf("no template configured for event type %q", et),
			nil,
		)
	}
	return entry, nil
}
