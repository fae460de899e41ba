package events

import "leasenotify/internal/types"

// Classify maps a validated event type to its routing category. It is a pure
// function with no failure mode: validation already required a registered
// schema, so every type reaching this point has a category.
func Classify(et types.EventType) types.EventCategory {
	switch et {
	case types.EventLeaseRequested, types.EventLeaseApproved, types.EventLeaseTerminated:
		return types.CategoryLifecycle
	case types.EventLeaseBudgetThreshold, types.EventLeaseExpiresSoon:
		return types.CategoryMonitoring
	case types.EventAccountQuarantined, types.EventCostReportFailure:
		return types.CategoryOps
	case types.EventLeaseCostsGenerated:
		return types.CategoryBilling
	}
	// Unregistered types cannot occur post-validation; lifecycle is the
	// least surprising route if one ever does.
	return types.CategoryLifecycle
}
