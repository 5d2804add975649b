package models

import (
	"net/http"

	"github.com/brightpath/brightpath-api/pkg/ratelimit"
)

// ContactRequest is the JSON body posted by the contact-us form
type ContactRequest struct {
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	Company           string `json:"company"`
	Message           string `json:"message"`
	VerificationToken string `json:"verificationToken"`
}

// RawSubmission is what the HTTP layer hands to the admission pipeline.
// Body is decoded only after the rate limit stage has admitted the client.
type RawSubmission struct {
	ClientKey string
	UserAgent string
	Body      []byte
}

// ContactSubmission holds the normalized fields of an admitted submission
type ContactSubmission struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Company   string
	Message   string
}

// ContactResponse is the JSON body returned by the contact endpoints
type ContactResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message,omitempty"`
	ContactID string `json:"contactId,omitempty"`
	Error     string `json:"error,omitempty"`
}

// OutcomeKind classifies how a submission left the pipeline
type OutcomeKind int

const (
	OutcomeAdmitted OutcomeKind = iota
	OutcomeClientError
	OutcomeServerError
	OutcomeRateLimited
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeAdmitted:
		return "admitted"
	case OutcomeClientError:
		return "client_error"
	case OutcomeServerError:
		return "server_error"
	case OutcomeRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// ContactResult is the fully decided response for one submission.
// RateLimit is nil only when the limiter could not produce a quota.
// Err carries the internal reason for logs and never reaches the client.
type ContactResult struct {
	Kind      OutcomeKind
	Status    int
	Body      ContactResponse
	RateLimit *ratelimit.Decision
	Err       error
}

// Admitted builds the success result
func Admitted(contactID, message string) *ContactResult {
	return &ContactResult{
		Kind:   OutcomeAdmitted,
		Status: http.StatusOK,
		Body: ContactResponse{
			Success:   true,
			Message:   message,
			ContactID: contactID,
		},
	}
}

// Rejected builds a failure result with a client-safe message
func Rejected(kind OutcomeKind, status int, message string, err error) *ContactResult {
	return &ContactResult{
		Kind:   kind,
		Status: status,
		Body:   ContactResponse{Success: false, Error: message},
		Err:    err,
	}
}

// TestFormRequest is the quick-capture form: every field is required
type TestFormRequest struct {
	FirstName string `json:"firstName" binding:"required,max=500"`
	LastName  string `json:"lastName" binding:"required,max=500"`
	Email     string `json:"email" binding:"required,max=500,email_shape"`
	Phone     string `json:"phone" binding:"required,max=500"`
}
