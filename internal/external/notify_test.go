package external

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leasenotify/internal/types"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newNotifyTestClient builds a client with no retries and no sleep so error
// paths run instantly.
func newNotifyTestClient(baseURL string) *NotifyClient {
	base := NewBaseClient(
		&http.Client{},
		"email-api-test",
		NoRetry(),
		"LeaseNotify/1.0",
		WithSleepFunc(func(time.Duration) {}),
	)
	return NewNotifyClientWithBase(base, NotifyClientConfig{
		BaseURL: baseURL,
		APIKey:  types.SecretString("test-key"),
		Logger:  discardLogger(),
	})
}

func testSendInput() types.SendInput {
	return types.SendInput{
		TemplateID: "tmpl-approved",
		Recipient:  "jane.doe@example.gov.uk",
		Personalisation: map[string]string{
			"accountId":    "123456789012",
			"templateName": "Data Science Sandbox",
		},
		Reference: "corr-123",
	}
}

// --- Success Tests ---

func TestSendTemplatedEmailSuccess(t *testing.T) {
	var gotAuth string
	var gotBody notifySendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if r.URL.Path != "/v2/notifications/email" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "notif-789"})
	}))
	defer srv.Close()

	c := newNotifyTestClient(srv.URL)
	msgID, err := c.SendTemplatedEmail(context.Background(), testSendInput())
	if err != nil {
		t.Fatalf("SendTemplatedEmail() error = %v", err)
	}

	if msgID != "notif-789" {
		t.Errorf("msgID = %q, want notif-789", msgID)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody.TemplateID != "tmpl-approved" {
		t.Errorf("template_id = %q", gotBody.TemplateID)
	}
	if gotBody.EmailAddress != "jane.doe@example.gov.uk" {
		t.Errorf("email_address = %q", gotBody.EmailAddress)
	}
	if gotBody.Reference != "corr-123" {
		t.Errorf("reference = %q", gotBody.Reference)
	}
}

func TestSendTemplatedEmailUnreadableSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := newNotifyTestClient(srv.URL)
	msgID, err := c.SendTemplatedEmail(context.Background(), testSendInput())
	if err != nil {
		t.Fatalf("accepted send must not error on a bad success body, got %v", err)
	}
	if msgID != "" {
		t.Errorf("msgID = %q, want empty", msgID)
	}
}

// --- Error Mapping Tests ---

func TestSendTemplatedEmailErrorMapping(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantCode      types.ErrorCode
		wantPermanent bool
	}{
		{
			name:          "400 bad request is a permanent rejection",
			status:        http.StatusBadRequest,
			body:          `{"status_code":400,"errors":[{"error":"BadRequestError","message":"Template not found"}]}`,
			wantCode:      types.ErrCodeEmailRejected,
			wantPermanent: true,
		},
		{
			name:          "403 forbidden is a permanent rejection",
			status:        http.StatusForbidden,
			body:          `{"status_code":403,"errors":[{"error":"AuthError","message":"Invalid token"}]}`,
			wantCode:      types.ErrCodeEmailRejected,
			wantPermanent: true,
		},
		{
			name:          "500 is a transient provider error",
			status:        http.StatusInternalServerError,
			body:          `{"status_code":500,"errors":[{"error":"Exception","message":"Internal error"}]}`,
			wantCode:      types.ErrCodeUpstreamUnavailable,
			wantPermanent: false,
		},
		{
			name:          "429 is transient rate limiting",
			status:        http.StatusTooManyRequests,
			body:          `{"status_code":429,"errors":[{"error":"RateLimitError","message":"Too many requests"}]}`,
			wantCode:      types.ErrCodeUpstreamRateLimited,
			wantPermanent: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := newNotifyTestClient(srv.URL)
			_, err := c.SendTemplatedEmail(context.Background(), testSendInput())
			if err == nil {
				t.Fatal("expected error")
			}

			var appErr *types.AppError
			if !errors.As(err, &appErr) {
				t.Fatalf("expected *types.AppError, got %T: %v", err, err)
			}
			if appErr.Code != tc.wantCode {
				t.Errorf("code = %s, want %s", appErr.Code, tc.wantCode)
			}
			if appErr.Permanent() != tc.wantPermanent {
				t.Errorf("Permanent() = %v, want %v", appErr.Permanent(), tc.wantPermanent)
			}
		})
	}
}

func TestSendTemplatedEmailNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := newNotifyTestClient(srv.URL)
	_, err := c.SendTemplatedEmail(context.Background(), testSendInput())
	if err == nil {
		t.Fatal("expected error")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *types.AppError, got %T", err)
	}
	if appErr.Permanent() {
		t.Error("network failures must stay transient so the trigger redelivers")
	}
}

// --- Stub Tests ---

func TestStubEmailSender(t *testing.T) {
	s := NewStubEmailSender(discardLogger())

	msgID, err := s.SendTemplatedEmail(context.Background(), testSendInput())
	if err != nil {
		t.Fatalf("SendTemplatedEmail() error = %v", err)
	}
	if msgID != "msg_stub_corr-123" {
		t.Errorf("msgID = %q", msgID)
	}
}
