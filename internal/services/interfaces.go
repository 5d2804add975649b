package services

import (
	"context"

	"github.com/brightpath/brightpath-api/internal/models"
	"github.com/brightpath/brightpath-api/pkg/ratelimit"
	"github.com/brightpath/brightpath-api/pkg/turnstile"
)

// ContactServiceInterface defines the interface for contact service operations
type ContactServiceInterface interface {
	Submit(ctx context.Context, raw *models.RawSubmission) *models.ContactResult
	SubmitTestForm(ctx context.Context, clientKey, userAgent string, req *models.TestFormRequest) *models.ContactResult
}

// RateLimiter counts requests per client key
type RateLimiter interface {
	Check(ctx context.Context, key string, policy ratelimit.Policy) (ratelimit.Decision, error)
	Quota(ctx context.Context, key string, policy ratelimit.Policy) (ratelimit.Decision, bool, error)
}

// TokenVerifier checks challenge tokens
type TokenVerifier interface {
	Verify(ctx context.Context, token, clientKey string) turnstile.Result
}

// ContactSink is the CRM that receives admitted leads
type ContactSink interface {
	CreateContact(ctx context.Context, contact *models.CRMContact) (*models.CRMContactResult, error)
	CreateNote(ctx context.Context, contactID, body string) error
}

// LeadRecorder archives leads
type LeadRecorder interface {
	Create(ctx context.Context, lead *models.Lead) error
}

// TaskDispatcher runs best-effort work after the response is decided
type TaskDispatcher interface {
	Dispatch(operation string, fn func(ctx context.Context) error)
	CallURL(triggerURL, recordID string)
}
