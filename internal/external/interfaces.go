package external

import (
	"context"

	"leasenotify/internal/types"
)

// EmailSender abstracts the transactional email API. Implementations send a
// provider-side template identified by id, substituting the personalisation
// map; no body rendering happens in this pipeline.
type EmailSender interface {
	// SendTemplatedEmail requests a templated send and returns the
	// provider's notification id for correlation.
	SendTemplatedEmail(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}
