package config

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"leasenotify/internal/types"
)

// testSecretProvider is a configurable mock for testing SSM resolution.
type testSecretProvider struct {
	values     map[string]string
	err        error
	calledWith []string
	callCount  int
}

func (p *testSecretProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	p.callCount++
	p.calledWith = append(p.calledWith, keys...)
	if p.err != nil {
		return nil, p.err
	}
	result := make(map[string]string)
	for _, k := range keys {
		if v, ok := p.values[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

// setFullTestEnv sets all required environment variables for a valid Config.
// It uses t.Setenv so values are automatically cleaned up after the test.
func setFullTestEnv(t *testing.T) {
	t.Helper()

	t.Setenv("APP_ENV", "local")
	t.Setenv("SERVICE_NAME", "lease-notify-test")
	t.Setenv("LOG_LEVEL", "debug")

	t.Setenv("LEASE_API_BASE_URL", "https://leases.test.local")
	t.Setenv("EMAIL_API_BASE_URL", "https://notify.test.local")
	t.Setenv("EMAIL_API_KEY", "test-api-key")
	t.Setenv("OPS_EMAIL", "ops@example.gov.uk")
	t.Setenv("ALERT_TOPIC_ARN", "arn:aws:sns:eu-west-2:123456789012:alerts")

	t.Setenv("TEMPLATE_LEASE_REQUESTED", "tmpl-requested")
	t.Setenv("TEMPLATE_LEASE_APPROVED", "tmpl-approved")
	t.Setenv("TEMPLATE_LEASE_TERMINATED", "tmpl-terminated")
	t.Setenv("TEMPLATE_BUDGET_THRESHOLD", "tmpl-budget")
	t.Setenv("TEMPLATE_LEASE_EXPIRES_SOON", "tmpl-expires")
	t.Setenv("TEMPLATE_ACCOUNT_QUARANTINED", "tmpl-quarantined")
	t.Setenv("TEMPLATE_COST_REPORT_FAILURE", "tmpl-report-failure")
	t.Setenv("TEMPLATE_LEASE_COSTS_GENERATED", "tmpl-costs")
}

// --- Load Tests ---

func TestLoadDefaults(t *testing.T) {
	setFullTestEnv(t)

	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Environment != "local" {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if got := cfg.Events.AllowedSources; len(got) != 2 || got[0] != "isb-leases" || got[1] != "isb-costs" {
		t.Errorf("AllowedSources = %v, want default isb-leases,isb-costs", got)
	}
	if cfg.Enrichment.Timeout != 5*time.Second {
		t.Errorf("Enrichment.Timeout = %v, want 5s", cfg.Enrichment.Timeout)
	}
	if cfg.Email.FallbackTemplateName != "your sandbox" {
		t.Errorf("FallbackTemplateName = %q", cfg.Email.FallbackTemplateName)
	}
	if cfg.Email.DisplayTimeZone != "Europe/London" {
		t.Errorf("DisplayTimeZone = %q", cfg.Email.DisplayTimeZone)
	}
	if cfg.Observability.MetricNamespace != "LeaseNotify" {
		t.Errorf("MetricNamespace = %q", cfg.Observability.MetricNamespace)
	}
	if cfg.Digest.MaxMessages != 100 {
		t.Errorf("Digest.MaxMessages = %d, want 100", cfg.Digest.MaxMessages)
	}
}

func TestLoadFailsWithoutRequiredValues(t *testing.T) {
	setFullTestEnv(t)
	t.Setenv("OPS_EMAIL", "")

	_, err := Load(nil)
	if err == nil {
		t.Fatal("expected validation failure for missing OPS_EMAIL")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	if cfgErr.Type != ErrValidation {
		t.Errorf("error type = %s, want %s", cfgErr.Type, ErrValidation)
	}
}

func TestLoadRejectsInvalidEnvironment(t *testing.T) {
	setFullTestEnv(t)
	t.Setenv("APP_ENV", "production-ish")

	if _, err := Load(nil); err == nil {
		t.Fatal("expected validation failure for unknown APP_ENV")
	}
}

// --- SSM Resolution Tests ---

func TestLoadResolvesSSMParams(t *testing.T) {
	setFullTestEnv(t)
	t.Setenv("APP_ENV", "dev")
	os.Unsetenv("EMAIL_API_KEY")
	t.Cleanup(func() { os.Unsetenv("EMAIL_API_KEY") })
	t.Setenv("EMAIL_API_KEY_SSM_PARAM", "/leasenotify/dev/email-api-key")

	provider := &testSecretProvider{values: map[string]string{
		"/leasenotify/dev/email-api-key": "resolved-secret",
	}}

	cfg, err := Load(provider)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if provider.callCount != 1 {
		t.Errorf("provider called %d times, want 1", provider.callCount)
	}
	if cfg.Email.APIKey.Unmask() != "resolved-secret" {
		t.Errorf("APIKey = %q, want the resolved secret", cfg.Email.APIKey.Unmask())
	}
}

func TestLoadSkipsSSMInLocalMode(t *testing.T) {
	setFullTestEnv(t)
	t.Setenv("EMAIL_API_KEY_SSM_PARAM", "/leasenotify/dev/email-api-key")

	provider := &testSecretProvider{values: map[string]string{}}
	if _, err := Load(provider); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if provider.callCount != 0 {
		t.Errorf("provider called %d times in local mode, want 0", provider.callCount)
	}
}

func TestLoadEnvWinsOverSSM(t *testing.T) {
	setFullTestEnv(t)
	t.Setenv("APP_ENV", "dev")
	t.Setenv("EMAIL_API_KEY_SSM_PARAM", "/leasenotify/dev/email-api-key")

	// EMAIL_API_KEY is already set by setFullTestEnv; the pointer variable
	// must be ignored.
	provider := &testSecretProvider{values: map[string]string{}}
	cfg, err := Load(provider)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if provider.callCount != 0 {
		t.Errorf("provider called %d times, want 0", provider.callCount)
	}
	if cfg.Email.APIKey.Unmask() != "test-api-key" {
		t.Errorf("APIKey = %q, want the env value", cfg.Email.APIKey.Unmask())
	}
}

func TestLoadFailsWhenSSMResolutionFails(t *testing.T) {
	setFullTestEnv(t)
	t.Setenv("APP_ENV", "dev")
	os.Unsetenv("EMAIL_API_KEY")
	t.Cleanup(func() { os.Unsetenv("EMAIL_API_KEY") })
	t.Setenv("EMAIL_API_KEY_SSM_PARAM", "/leasenotify/dev/email-api-key")

	provider := &testSecretProvider{err: errors.New("ssm unavailable")}
	_, err := Load(provider)
	if err == nil {
		t.Fatal("expected SSM resolution failure")
	}

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != ErrSSMResolution {
		t.Errorf("expected %s error, got %v", ErrSSMResolution, err)
	}
}

// --- TemplateIDs Tests ---

func TestTemplateIDsForEventType(t *testing.T) {
	ids := TemplateIDs{
		LeaseRequested:      "tmpl-requested",
		LeaseCostsGenerated: "tmpl-costs",
	}

	if got := ids.ForEventType(types.EventLeaseRequested); got != "tmpl-requested" {
		t.Errorf("ForEventType(LeaseRequested) = %q", got)
	}
	if got := ids.ForEventType(types.EventLeaseCostsGenerated); got != "tmpl-costs" {
		t.Errorf("ForEventType(LeaseCostsGenerated) = %q", got)
	}
	if got := ids.ForEventType(types.EventType("Bogus")); got != "" {
		t.Errorf("ForEventType(Bogus) = %q, want empty", got)
	}
}

func TestTemplateIDsPlaceholders(t *testing.T) {
	ids := TemplateIDs{
		LeaseRequested:      "tmpl-requested",
		LeaseApproved:       "PLACEHOLDER:approved",
		LeaseTerminated:     "tmpl-terminated",
		BudgetThreshold:     "tmpl-budget",
		LeaseExpiresSoon:    "tmpl-expires",
		AccountQuarantined:  "PLACEHOLDER:quarantined",
		CostReportFailure:   "tmpl-report-failure",
		LeaseCostsGenerated: "tmpl-costs",
	}

	got := ids.Placeholders()
	if len(got) != 2 {
		t.Fatalf("Placeholders() = %v, want 2 entries", got)
	}
	want := map[types.EventType]bool{
		types.EventLeaseApproved:      true,
		types.EventAccountQuarantined: true,
	}
	for _, et := range got {
		if !want[et] {
			t.Errorf("unexpected placeholder type %s", et)
		}
	}
}
