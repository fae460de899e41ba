// Package enrichment fetches supplementary lease records from the external
// read API. Enrichment is strictly best effort: no caller ever receives a
// hard error from this client; the orchestrator only sees "got data" or
// "didn't". Records are fetched fresh per invocation and never cached here.
package enrichment

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"leasenotify/internal/external"
	"leasenotify/internal/types"
)

// LeaseFetcher abstracts the lease lookup for orchestrator tests.
type LeaseFetcher interface {
	// FetchLease returns the lease record, or (nil, nil) when the record is
	// absent or the fetch degraded. A non-nil error indicates a programmer
	// mistake (e.g. an unbuildable request), not an upstream condition.
	FetchLease(ctx context.Context, owner, leaseID string) (*types.LeaseRecord, error)
}

// ClientConfig holds the configuration for creating a Client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	Logger  types.Logger
}

// Client implements LeaseFetcher against the lease read API. The fetch is a
// single attempt bounded by the configured timeout; the degradation contract
// leaves no room for in-process retries, though the shared circuit breaker
// still protects the upstream during sustained failure.
type Client struct {
	base    *external.BaseClient
	baseURL string
	timeout time.Duration
	logger  types.Logger
}

// NewClient creates a Client. Timeout defaults to five seconds when unset.
func NewClient(httpClient *http.Client, cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	base := external.NewBaseClient(
		httpClient,
		"lease-api",
		external.NoRetry(),
		"LeaseNotify/1.0",
	)

	return &Client{
		base:    base,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		timeout: timeout,
		logger:  cfg.Logger,
	}
}

// CompositeKey encodes the {owner}|{uuid} pair the way the read API
// addresses lease records. URL-safe base64 keeps the key path-clean.
func CompositeKey(owner, leaseID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(owner + "|" + leaseID))
}

// leaseEnvelope is the read API's {status, data} success wrapper.
type leaseEnvelope struct {
	Status string     `json:"status"`
	Data   *leaseBody `json:"data"`
}

// leaseBody carries the external field names, mapped onto the internal
// LeaseRecord shape on success.
type leaseBody struct {
	LeaseTemplateName string          `json:"leaseTemplateName"`
	AWSAccountID      string          `json:"awsAccountId"`
	UserEmail         string          `json:"userEmail"`
	Status            string          `json:"status"`
	MaxSpend          decimal.Decimal `json:"maxSpend"`
	ExpirationDate    string          `json:"expirationDate"`
}

// FetchLease issues a single bounded read. Timeout, 404, 5xx, network
// failure, and malformed success bodies all degrade to (nil, nil); the
// reason is logged with the correlation id, never the lease contents.
func (c *Client) FetchLease(ctx context.Context, owner, leaseID string) (*types.LeaseRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s/leases/%s", c.baseURL, CompositeKey(owner, leaseID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		// Not an upstream condition: the request itself could not be built.
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create lease fetch request",
			err,
		)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		c.degrade(ctx, "lease fetch failed", err)
		return nil, nil
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		// Absence is a valid, expected state.
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		c.degrade(ctx, fmt.Sprintf("lease API returned status %d", resp.StatusCode), nil)
		return nil, nil
	}

	var envelope leaseEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.degrade(ctx, "lease API success body malformed", err)
		return nil, nil
	}
	if envelope.Status != "success" || envelope.Data == nil {
		c.degrade(ctx, "lease API envelope missing success data", nil)
		return nil, nil
	}

	return mapRecord(envelope.Data), nil
}

// mapRecord translates external field names to the internal record shape.
func mapRecord(body *leaseBody) *types.LeaseRecord {
	rec := &types.LeaseRecord{
		TemplateName: body.LeaseTemplateName,
		AccountID:    body.AWSAccountID,
		Owner:        body.UserEmail,
		Status:       body.Status,
		MaxSpend:     body.MaxSpend,
	}

	if body.ExpirationDate != "" {
		if t, err := time.Parse(time.RFC3339, body.ExpirationDate); err == nil {
			rec.ExpiresAt = t
		} else if t, err := time.Parse("2006-01-02", body.ExpirationDate); err == nil {
			rec.ExpiresAt = t
		}
	}

	return rec
}

// degrade logs a fetch failure at warn level. The pipeline continues with
// fallback substitution, so this is visibility, not an error path.
func (c *Client) degrade(ctx context.Context, msg string, err error) {
	args := []any{"correlation_id", types.GetCorrelationID(ctx)}
	if err != nil {
		args = append(args, "error", err.Error())
	}
	c.logger.Warn(msg, args...)
}

var _ LeaseFetcher = (*Client)(nil)
