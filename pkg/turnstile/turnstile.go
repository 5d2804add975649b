// Package turnstile verifies one-time challenge tokens issued to the site's
// forms against Cloudflare Turnstile's siteverify endpoint.
package turnstile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brightpath/brightpath-api/pkg/httpclient"
	"github.com/brightpath/brightpath-api/pkg/logger"
	"github.com/brightpath/brightpath-api/pkg/metrics"
	"github.com/brightpath/brightpath-api/pkg/tracing"
	"go.uber.org/zap"
)

// DefaultVerifyURL is Cloudflare's siteverify endpoint
const DefaultVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// DefaultTimeout bounds a single verification call
const DefaultTimeout = 10 * time.Second

// Failure reasons that are not service error codes
const (
	ReasonTokenMissing   = "token missing"
	ReasonMisconfigured  = "server configuration error"
	ReasonRequestFailed  = "verification request failed"
	unknownClientAddress = "unknown"
)

// Kind classifies a verification outcome
type Kind int

const (
	KindSuccess Kind = iota
	// KindMissingToken means the caller supplied no token; no call was made
	KindMissingToken
	// KindMisconfigured means the verifier has no secret; no call was made
	KindMisconfigured
	// KindRejected means the service answered and rejected the token
	KindRejected
	// KindRequestFailed covers transport errors, timeouts and unreadable replies
	KindRequestFailed
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindMissingToken:
		return "missing_token"
	case KindMisconfigured:
		return "misconfigured"
	case KindRejected:
		return "rejected"
	case KindRequestFailed:
		return "request_failed"
	default:
		return "unknown"
	}
}

// Result is either a success or a failure with a reason
type Result struct {
	Kind   Kind
	Reason string
}

// OK reports whether the token was accepted
func (r Result) OK() bool {
	return r.Kind == KindSuccess
}

// Success is the accepted result
func Success() Result {
	return Result{Kind: KindSuccess}
}

// Failure builds a failed result
func Failure(kind Kind, reason string) Result {
	return Result{Kind: kind, Reason: reason}
}

// Response represents the siteverify JSON reply
type Response struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
	Action      string   `json:"action"`
	CData       string   `json:"cdata"`
}

// Verifier handles challenge token verification
type Verifier struct {
	secretKey  string
	verifyURL  string
	timeout    time.Duration
	httpClient httpclient.Client
}

// Option configures a Verifier
type Option func(*Verifier)

// WithVerifyURL overrides the siteverify endpoint
func WithVerifyURL(u string) Option {
	return func(v *Verifier) {
		if u != "" {
			v.verifyURL = u
		}
	}
}

// WithTimeout overrides the per-call timeout
func WithTimeout(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// NewVerifier creates a new verifier
func NewVerifier(secretKey string, httpClient httpclient.Client, opts ...Option) *Verifier {
	v := &Verifier{
		secretKey:  secretKey,
		verifyURL:  DefaultVerifyURL,
		timeout:    DefaultTimeout,
		httpClient: httpClient,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks token with the verification service. It makes at most one
// outbound call and never retries.
func (v *Verifier) Verify(ctx context.Context, token, clientKey string) Result {
	token = strings.TrimSpace(token)
	if token == "" {
		metrics.VerificationResults.WithLabelValues(KindMissingToken.String()).Inc()
		return Failure(KindMissingToken, ReasonTokenMissing)
	}
	if v.secretKey == "" {
		metrics.VerificationResults.WithLabelValues(KindMisconfigured.String()).Inc()
		logger.Error("Turnstile secret key is not configured")
		return Failure(KindMisconfigured, ReasonMisconfigured)
	}

	ctx, span := tracing.StartSpan(ctx, "turnstile.Verify")
	defer span.End()

	start := time.Now()
	resp, err := v.siteverify(ctx, token, clientKey)
	duration := metrics.MeasureDuration(start)

	if err != nil {
		tracing.RecordError(span, err)
		metrics.VerificationRequestDuration.WithLabelValues("error").Observe(duration)
		metrics.VerificationResults.WithLabelValues(KindRequestFailed.String()).Inc()
		logger.LogAPICall(ctx, "turnstile", "siteverify", "error", duration,
			zap.Error(err),
			zap.Bool("timeout", errors.Is(err, context.DeadlineExceeded)))
		return Failure(KindRequestFailed, ReasonRequestFailed)
	}

	metrics.VerificationRequestDuration.WithLabelValues("success").Observe(duration)

	if !resp.Success {
		metrics.VerificationResults.WithLabelValues(KindRejected.String()).Inc()
		logger.LogAPICall(ctx, "turnstile", "siteverify", "rejected", duration,
			zap.Strings("error_codes", resp.ErrorCodes),
			zap.String("hostname", resp.Hostname))
		return Failure(KindRejected, strings.Join(resp.ErrorCodes, ", "))
	}

	metrics.VerificationResults.WithLabelValues(KindSuccess.String()).Inc()
	logger.LogAPICall(ctx, "turnstile", "siteverify", "success", duration,
		zap.String("hostname", resp.Hostname))
	return Success()
}

func (v *Verifier) siteverify(ctx context.Context, token, clientKey string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	// Prepare form data
	data := url.Values{}
	data.Set("secret", v.secretKey)
	data.Set("response", token)
	if clientKey != "" && clientKey != unknownClientAddress {
		data.Set("remoteip", clientKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("siteverify returned status %d", resp.StatusCode)
	}

	var result Response
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode siteverify response: %w", err)
	}

	return &result, nil
}
