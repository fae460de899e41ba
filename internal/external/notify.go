package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"leasenotify/internal/types"
)

// NotifyClientConfig holds the configuration for creating a NotifyClient.
type NotifyClientConfig struct {
	BaseURL string
	APIKey  types.SecretString
	Logger  *slog.Logger
}

// NotifyClient implements EmailSender against a GOV.UK-Notify-shaped REST
// API: POST /v2/notifications/email with a template id, recipient, and a
// flat personalisation map. Requests route through BaseClient for circuit
// breaking, retry, and error mapping, and are easy to exercise with httptest.
type NotifyClient struct {
	base    *BaseClient
	apiKey  types.SecretString
	baseURL string
	logger  *slog.Logger
}

// NewNotifyClient creates a NotifyClient. The httpClient timeout should be
// around 10 seconds so a single send plus its retries fits comfortably
// inside the invocation budget.
func NewNotifyClient(httpClient *http.Client, cfg NotifyClientConfig) *NotifyClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"email-api",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"LeaseNotify/1.0",
	)

	return &NotifyClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// NewNotifyClientWithBase creates a NotifyClient with a pre-configured
// BaseClient, for tests that want to control retry behavior.
func NewNotifyClientWithBase(base *BaseClient, cfg NotifyClientConfig) *NotifyClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &NotifyClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// notifySendRequest is the JSON request body for the email send endpoint.
type notifySendRequest struct {
	TemplateID      string            `json:"template_id"`
	EmailAddress    string            `json:"email_address"`
	Personalisation map[string]string `json:"personalisation,omitempty"`
	Reference       string            `json:"reference,omitempty"`
}

// notifySendResponse is the success body returned on 201 Created.
type notifySendResponse struct {
	ID string `json:"id"`
}

// notifyErrorResponse is the error body shape.
type notifyErrorResponse struct {
	StatusCode int `json:"status_code"`
	Errors     []struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	} `json:"errors"`
}

// SendTemplatedEmail requests a templated send.
//
// Error mapping:
//   - 400/403 -> types.ErrCodeEmailRejected (permanent: bad template id,
//     invalid personalisation, revoked key; replay cannot succeed)
//   - 429 -> handled by BaseClient (retry, then ErrCodeUpstreamRateLimited)
//   - 5xx/network -> handled by BaseClient (retry, then ErrCodeUpstreamUnavailable)
func (c *NotifyClient) SendTemplatedEmail(ctx context.Context, input types.SendInput) (string, error) {
	body, err := json.Marshal(notifySendRequest{
		TemplateID:      input.TemplateID,
		EmailAddress:    input.Recipient,
		Personalisation: input.Personalisation,
		Reference:       input.Reference,
	})
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to marshal email send payload",
			err,
		)
	}

	reqURL := c.baseURL + "/v2/notifications/email"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create email send request",
			err,
		)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		return "", c.wrapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK {
		var out notifySendResponse
		if decErr := json.NewDecoder(resp.Body).Decode(&out); decErr != nil {
			// Send was accepted; a missing id only degrades correlation.
			c.logger.Warn("email API success body unreadable", "error", decErr.Error())
			return "", nil
		}
		return out.ID, nil
	}

	return "", c.handleErrorResponse(resp)
}

// handleErrorResponse reads a non-success body and maps it to an AppError.
func (c *NotifyClient) handleErrorResponse(resp *http.Response) error {
	raw, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("email API returned status %d and response body was unreadable", resp.StatusCode),
			readErr,
		)
	}

	var apiErr notifyErrorResponse
	msg := string(raw)
	if jsonErr := json.Unmarshal(raw, &apiErr); jsonErr == nil && len(apiErr.Errors) > 0 {
		msg = apiErr.Errors[0].Message
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden:
		return types.NewAppError(
			types.ErrCodeEmailRejected,
			fmt.Sprintf("email API rejected send (%d): %s", resp.StatusCode, msg),
			nil,
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamEmailProvider,
			fmt.Sprintf("email API error (%d): %s", resp.StatusCode, msg),
			nil,
		)
	}
}

// wrapTransportError passes through BaseClient AppErrors, which already
// carry the right upstream code.
func (c *NotifyClient) wrapTransportError(err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamEmailProvider,
		fmt.Sprintf("email API request failed: %v", err),
		err,
	)
}

// Compile-time assertion that NotifyClient satisfies EmailSender.
var _ EmailSender = (*NotifyClient)(nil)
