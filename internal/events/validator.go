// Package events implements envelope validation and event classification for
// the notification pipeline. Validation is all-or-nothing per event: a detail
// that fails its type's schema never reaches downstream components.
package events

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"leasenotify/internal/types"
)

// maxAbsAmount bounds monetary fields. Negative amounts are allowed (credits
// and refunds), but magnitudes beyond this indicate a corrupt producer.
var maxAbsAmount = decimal.NewFromInt(1_000_000_000)

// detailFactory constructs the zero value for an event type's detail struct.
// The registry below is the single place a new event type is wired in.
type detailFactory func() types.EventDetail

var detailRegistry = map[string]detailFactory{
	string(types.EventLeaseRequested):       func() types.EventDetail { return &types.LeaseRequestedDetail{} },
	string(types.EventLeaseApproved):        func() types.EventDetail { return &types.LeaseApprovedDetail{} },
	string(types.EventLeaseTerminated):      func() types.EventDetail { return &types.LeaseTerminatedDetail{} },
	string(types.EventLeaseBudgetThreshold): func() types.EventDetail { return &types.LeaseBudgetThresholdDetail{} },
	string(types.EventLeaseExpiresSoon):     func() types.EventDetail { return &types.LeaseExpiresSoonDetail{} },
	string(types.EventAccountQuarantined):   func() types.EventDetail { return &types.AccountQuarantinedDetail{} },
	string(types.EventCostReportFailure):    func() types.EventDetail { return &types.CostReportFailureDetail{} },
	string(types.EventLeaseCostsGenerated):  func() types.EventDetail { return &types.LeaseCostsGeneratedDetail{} },
}

// RegisteredEventTypes returns the event types with a schema, for startup
// config cross-checks.
func RegisteredEventTypes() []types.EventType {
	out := make([]types.EventType, 0, len(detailRegistry))
	for name := range detailRegistry {
		out = append(out, types.EventType(name))
	}
	return out
}

// Validator checks inbound envelopes against the producer allow-list and the
// per-type schema, producing a ValidatedEvent or a permanent rejection.
// It is constructed once per process and is safe for concurrent use: the
// allow-list and schema registry are read-only after construction.
type Validator struct {
	allowedSources map[string]struct{}
	validate       *validator.Validate
	logger         types.Logger
}

// NewValidator creates a Validator with the given producer allow-list.
func NewValidator(allowedSources []string, logger types.Logger) *Validator {
	v := validator.New()

	// Registration only fails for blank tag names; these are constants.
	_ = v.RegisterValidation("sandbox_email", func(fl validator.FieldLevel) bool {
		return ValidEmail(fl.Field().String())
	})
	_ = v.RegisterValidation("aws_account", func(fl validator.FieldLevel) bool {
		return validAccountID(fl.Field().String())
	})
	_ = v.RegisterValidation("iso8601", func(fl validator.FieldLevel) bool {
		return validISO8601(fl.Field().String())
	})

	allowed := make(map[string]struct{}, len(allowedSources))
	for _, s := range allowedSources {
		allowed[strings.TrimSpace(s)] = struct{}{}
	}

	return &Validator{
		allowedSources: allowed,
		validate:       v,
		logger:         logger,
	}
}

// Validate applies the full validation chain to an envelope:
//
//  1. Producer allow-list (fail closed: unknown sources are untrusted input).
//  2. Event type registry lookup.
//  3. Structural decode of the detail payload.
//  4. Schema tags plus semantic checks (amount bounds).
//
// On rejection the returned AppError carries the event type and source in
// its details, never the payload, so rejections can be logged without
// leaking personal data.
func (v *Validator) Validate(envelope types.NotificationEvent) (*types.ValidatedEvent, error) {
	rejectDetails := map[string]any{
		"source":      envelope.Source,
		"detail_type": envelope.DetailType,
	}

	if _, ok := v.allowedSources[envelope.Source]; !ok {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationUnknownSource,
			fmt.Sprintf("source %q is not an allowed producer", envelope.Source),
			nil, rejectDetails,
		)
	}

	factory, ok := detailRegistry[envelope.DetailType]
	if !ok {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationUnknownType,
			fmt.Sprintf("no schema registered for event type %q", envelope.DetailType),
			nil, rejectDetails,
		)
	}

	detail := factory()
	if err := json.Unmarshal(envelope.Detail, detail); err != nil {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationMalformed,
			"detail payload is not structurally valid for its type",
			err, rejectDetails,
		)
	}

	if err := v.validate.Struct(detail); err != nil {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationSchema,
			"detail payload failed schema validation",
			err, rejectDetails,
		)
	}

	if err := checkAmounts(detail); err != nil {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidationSchema,
			err.Error(),
			nil, rejectDetails,
		)
	}

	receivedAt := envelope.Time
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}

	return &types.ValidatedEvent{
		Source:        envelope.Source,
		CorrelationID: uuid.New().String(),
		ReceivedAt:    receivedAt,
		Detail:        dereference(detail),
	}, nil
}

// checkAmounts applies the monetary bounds the schema tags cannot express.
// Negative values pass: credits and refunds are legitimate.
func checkAmounts(detail types.EventDetail) error {
	check := func(field string, d decimal.Decimal) error {
		if d.Abs().GreaterThan(maxAbsAmount) {
			return fmt.Errorf("field %s exceeds the allowed magnitude", field)
		}
		return nil
	}

	switch d := detail.(type) {
	case *types.LeaseBudgetThresholdDetail:
		if err := check("budget", d.Budget); err != nil {
			return err
		}
		if d.Budget.IsNegative() || d.Budget.IsZero() {
			return fmt.Errorf("field budget must be positive")
		}
		return check("spend", d.Spend)
	case *types.LeaseCostsGeneratedDetail:
		return check("totalCost", d.TotalCost)
	}
	return nil
}

// dereference converts the pointer the decoder needed into the value form
// the rest of the pipeline passes around.
func dereference(detail types.EventDetail) types.EventDetail {
	switch d := detail.(type) {
	case *types.LeaseRequestedDetail:
		return *d
	case *types.LeaseApprovedDetail:
		return *d
	case *types.LeaseTerminatedDetail:
		return *d
	case *types.LeaseBudgetThresholdDetail:
		return *d
	case *types.LeaseExpiresSoonDetail:
		return *d
	case *types.AccountQuarantinedDetail:
		return *d
	case *types.CostReportFailureDetail:
		return *d
	case *types.LeaseCostsGeneratedDetail:
		return *d
	}
	return detail
}

// emailRe covers the practical RFC 5322 local-part and domain grammar.
var emailRe = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)

// ValidEmail reports whether the address is acceptable as a recipient.
// Beyond the format check it rejects consecutive dots and doubled plus
// signs, which some template engines treat as injection vectors.
func ValidEmail(s string) bool {
	if s == "" {
		return false
	}
	if strings.Contains(s, "..") || strings.Contains(s, "++") {
		return false
	}
	return emailRe.MatchString(s)
}

// validAccountID requires a 12-digit numeric account identifier.
var accountIDRe = regexp.MustCompile(`^\d{12}$`)

func validAccountID(s string) bool {
	return accountIDRe.MatchString(s)
}

// validISO8601 accepts either a bare date or a full RFC 3339 timestamp.
func validISO8601(s string) bool {
	if _, err := time.Parse("2006-01-02", s); err == nil {
		return true
	}
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return true
	}
	return false
}
