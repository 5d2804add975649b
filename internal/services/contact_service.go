package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/brightpath/brightpath-api/config"
	"github.com/brightpath/brightpath-api/internal/models"
	apperrors "github.com/brightpath/brightpath-api/pkg/errors"
	"github.com/brightpath/brightpath-api/pkg/logger"
	"github.com/brightpath/brightpath-api/pkg/metrics"
	"github.com/brightpath/brightpath-api/pkg/ratelimit"
	"github.com/brightpath/brightpath-api/pkg/tracing"
	"github.com/brightpath/brightpath-api/pkg/turnstile"
	"github.com/go-playground/validator/v10"
	"github.com/mssola/useragent"
	"go.uber.org/zap"
)

// User-facing messages
const (
	MsgContactSuccess       = "Thank you! We'll be in touch soon."
	MsgTestFormSuccess      = "Contact created successfully"
	MsgInvalidBody          = "Invalid request body"
	MsgTokenRequired        = "Verification token is required"
	MsgVerificationFailed   = "Verification failed. Please try again."
	MsgServerConfiguration  = "Server configuration error"
	MsgSubmissionFailed     = "Failed to submit your information. Please try again."
	verificationFailedCodes = "Verification failed: %s"
)

const (
	formContactUs = "contact_us"
	formTestForm  = "test_form"
)

// ContactService runs contact submissions through the admission pipeline:
// rate limit, token verification and field validation, in that order, before
// anything reaches the CRM.
type ContactService struct {
	limiter  RateLimiter
	policy   ratelimit.Policy
	verifier TokenVerifier
	sink     ContactSink
	leads    LeadRecorder
	tasks    TaskDispatcher
	validate *validator.Validate
	config   *config.Config
}

// NewContactService creates a new contact service instance
func NewContactService(
	limiter RateLimiter,
	verifier TokenVerifier,
	sink ContactSink,
	leads LeadRecorder,
	tasks TaskDispatcher,
	cfg *config.Config,
) *ContactService {
	return &ContactService{
		limiter:  limiter,
		policy:   ContactPolicy(cfg),
		verifier: verifier,
		sink:     sink,
		leads:    leads,
		tasks:    tasks,
		validate: NewValidator(),
		config:   cfg,
	}
}

// ContactPolicy is the rate limit applied to the contact-us endpoint
func ContactPolicy(cfg *config.Config) ratelimit.Policy {
	return ratelimit.Policy{
		Name:         "contact",
		MaxRequests:  cfg.RateLimit.ContactMaxRequests,
		Window:       cfg.RateLimit.ContactWindow(),
		ErrorMessage: cfg.RateLimit.ErrorMessage,
	}
}

// Submit decides the response for one contact-us submission. Every outcome,
// including failures, is returned as a result; nothing is returned as an error.
func (s *ContactService) Submit(ctx context.Context, raw *models.RawSubmission) *models.ContactResult {
	ctx, span := tracing.StartSpan(ctx, "ContactService.Submit")
	defer span.End()

	decision, err := s.limiter.Check(ctx, raw.ClientKey, s.policy)
	if err != nil {
		logger.LogError(ctx, err, "Rate limit store unavailable, admitting request",
			zap.String("client_key", raw.ClientKey))
	}
	if !decision.Allowed {
		metrics.ContactFormSubmissions.WithLabelValues("rate_limited").Inc()
		logger.Info("Contact submission rate limited",
			zap.String("client_key", raw.ClientKey),
			zap.Int("retry_after", decision.RetryAfter))
		result := models.Rejected(models.OutcomeRateLimited, http.StatusTooManyRequests, s.policy.Message(), nil)
		result.RateLimit = &decision
		return result
	}

	result := s.admit(ctx, raw)
	result.RateLimit = s.currentQuota(ctx, raw.ClientKey, decision)
	return result
}

// admit runs every stage after the rate limit
func (s *ContactService) admit(ctx context.Context, raw *models.RawSubmission) *models.ContactResult {
	var req models.ContactRequest
	if err := json.NewDecoder(bytes.NewReader(raw.Body)).Decode(&req); err != nil {
		return s.clientError("invalid_body", MsgInvalidBody,
			apperrors.InvalidInputError("body", err.Error()))
	}

	if result := s.verify(ctx, req.VerificationToken, raw.ClientKey); result != nil {
		return result
	}

	if verr := validateContact(s.validate, &req); verr != nil {
		return s.clientError("invalid_input", verr.Message, verr)
	}

	if missing := s.config.HighLevel.MissingSetting(); missing != "" {
		return s.misconfigured(ctx, missing)
	}

	submission := normalize(&req)
	contactID, err := s.deliver(ctx, formContactUs, submission, raw.ClientKey, raw.UserAgent)
	if err != nil {
		metrics.ContactFormSubmissions.WithLabelValues("sink_failed").Inc()
		logger.LogError(ctx, err, "Failed to create contact in CRM")
		return models.Rejected(models.OutcomeServerError, http.StatusInternalServerError, MsgSubmissionFailed, err)
	}

	if submission.Message != "" && contactID != "" {
		s.attachNote(contactID, submission.Message)
	}

	metrics.ContactFormSubmissions.WithLabelValues("success").Inc()
	logger.Info("Contact submission accepted", zap.String("contact_id", contactID))
	return models.Admitted(contactID, MsgContactSuccess)
}

// verify maps the gate's result to a pipeline outcome; nil means verified
func (s *ContactService) verify(ctx context.Context, token, clientKey string) *models.ContactResult {
	result := s.verifier.Verify(ctx, token, clientKey)

	switch result.Kind {
	case turnstile.KindSuccess:
		return nil
	case turnstile.KindMissingToken:
		return s.clientError("verification_failed", MsgTokenRequired,
			apperrors.InvalidInputError("verificationToken", result.Reason))
	case turnstile.KindMisconfigured:
		metrics.ContactFormSubmissions.WithLabelValues("misconfigured").Inc()
		err := apperrors.MisconfiguredError("TURNSTILE_SECRET_KEY")
		logger.LogError(ctx, err, "Verification gate is not configured")
		return models.Rejected(models.OutcomeServerError, http.StatusInternalServerError, MsgServerConfiguration, err)
	case turnstile.KindRejected:
		message := MsgVerificationFailed
		if result.Reason != "" {
			message = fmt.Sprintf(verificationFailedCodes, result.Reason)
		}
		return s.clientError("verification_failed", message,
			apperrors.InvalidInputError("verificationToken", "rejected: "+result.Reason))
	default:
		// The gate already logged the transport detail
		return s.clientError("verification_failed", MsgVerificationFailed,
			apperrors.UpstreamError("turnstile", fmt.Errorf("%s", result.Reason)))
	}
}

// SubmitTestForm creates a contact from the quick-capture form. The request
// has already passed binding validation.
func (s *ContactService) SubmitTestForm(ctx context.Context, clientKey, userAgent string, req *models.TestFormRequest) *models.ContactResult {
	ctx, span := tracing.StartSpan(ctx, "ContactService.SubmitTestForm")
	defer span.End()

	if missing := s.config.HighLevel.MissingSetting(); missing != "" {
		return s.misconfigured(ctx, missing)
	}

	submission := normalize(&models.ContactRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
	})

	contactID, err := s.deliver(ctx, formTestForm, submission, clientKey, userAgent)
	if err != nil {
		metrics.ContactFormSubmissions.WithLabelValues("sink_failed").Inc()
		logger.LogError(ctx, err, "Failed to create test-form contact in CRM")
		return models.Rejected(models.OutcomeServerError, http.StatusInternalServerError, MsgSubmissionFailed, err)
	}

	metrics.ContactFormSubmissions.WithLabelValues("success").Inc()
	return models.Admitted(contactID, MsgTestFormSuccess)
}

// deliver creates the CRM contact, then archives the lead and fires the
// lead-created trigger in the background.
func (s *ContactService) deliver(ctx context.Context, form string, sub *models.ContactSubmission, clientKey, userAgent string) (string, error) {
	created, err := s.sink.CreateContact(ctx, &models.CRMContact{
		FirstName:   sub.FirstName,
		LastName:    sub.LastName,
		Email:       sub.Email,
		LocationID:  s.config.HighLevel.LocationID,
		Phone:       sub.Phone,
		CompanyName: sub.Company,
	})

	lead := newLead(form, sub, clientKey, userAgent)
	if err != nil {
		lead.Status = models.LeadStatusSinkFailed
		s.archive(lead)
		return "", fmt.Errorf("create contact: %w", err)
	}

	lead.CRMContactID = created.ID
	s.archive(lead)
	if created.ID != "" {
		s.tasks.CallURL(s.config.EventTriggers.LeadCreatedTriggerURL, created.ID)
	}
	return created.ID, nil
}

func (s *ContactService) attachNote(contactID, message string) {
	s.tasks.Dispatch("create_note", func(ctx context.Context) error {
		if err := s.sink.CreateNote(ctx, contactID, message); err != nil {
			return fmt.Errorf("attach note to contact %s: %w", contactID, err)
		}
		return nil
	})
}

func (s *ContactService) archive(lead *models.Lead) {
	if s.leads == nil {
		return
	}
	s.tasks.Dispatch("archive_lead", func(ctx context.Context) error {
		return s.leads.Create(ctx, lead)
	})
}

// currentQuota re-reads the client's window so headers reflect requests
// that landed while this one was in flight.
func (s *ContactService) currentQuota(ctx context.Context, clientKey string, fallback ratelimit.Decision) *ratelimit.Decision {
	quota, found, err := s.limiter.Quota(ctx, clientKey, s.policy)
	if err != nil {
		logger.Warn("Failed to read rate limit quota", zap.Error(err))
	}
	if err != nil || !found {
		return &fallback
	}
	return &quota
}

func (s *ContactService) clientError(status, message string, err error) *models.ContactResult {
	metrics.ContactFormSubmissions.WithLabelValues(status).Inc()
	logger.Warn("Contact submission rejected",
		zap.String("reason", status),
		zap.String("message", message),
		zap.Error(err))
	return models.Rejected(models.OutcomeClientError, http.StatusBadRequest, message, err)
}

func (s *ContactService) misconfigured(ctx context.Context, setting string) *models.ContactResult {
	metrics.ContactFormSubmissions.WithLabelValues("misconfigured").Inc()
	err := apperrors.MisconfiguredError(setting)
	logger.LogError(ctx, err, "CRM sink is not configured")
	return models.Rejected(models.OutcomeServerError, http.StatusInternalServerError, MsgServerConfiguration, err)
}

func newLead(form string, sub *models.ContactSubmission, clientKey, userAgent string) *models.Lead {
	lead := &models.Lead{
		FirstName: sub.FirstName,
		LastName:  sub.LastName,
		Email:     sub.Email,
		Phone:     sub.Phone,
		Company:   sub.Company,
		Message:   sub.Message,
		ClientKey: clientKey,
		Form:      form,
		Status:    models.LeadStatusCreated,
	}
	if userAgent != "" {
		ua := useragent.New(userAgent)
		name, version := ua.Browser()
		if version != "" {
			name += " " + version
		}
		lead.Browser = name
		lead.OS = ua.OS()
	}
	return lead
}
