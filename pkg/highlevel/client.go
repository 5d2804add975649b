// Package highlevel is a small client for the HighLevel (LeadConnector)
// contacts API, the CRM that receives every admitted lead.
package highlevel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brightpath/brightpath-api/internal/models"
	"github.com/brightpath/brightpath-api/pkg/circuitbreaker"
	apperrors "github.com/brightpath/brightpath-api/pkg/errors"
	"github.com/brightpath/brightpath-api/pkg/httpclient"
	"github.com/brightpath/brightpath-api/pkg/logger"
	"github.com/brightpath/brightpath-api/pkg/metrics"
	"github.com/brightpath/brightpath-api/pkg/tracing"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL    = "https://services.leadconnectorhq.com"
	DefaultAPIVersion = "2021-07-28"
	DefaultTimeout    = 15 * time.Second

	// The CRM allows roughly 100 requests per 10 seconds per location
	DefaultRequestsPerSecond = 10
	DefaultBurst             = 20

	maxErrorBody = 4 << 10
)

// Config configures the client
type Config struct {
	Token             string
	BaseURL           string
	APIVersion        string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if c.Burst <= 0 {
		c.Burst = DefaultBurst
	}
	return c
}

// APIError is a non-2xx answer from the CRM
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("highlevel: status %d", e.StatusCode)
	}
	return fmt.Sprintf("highlevel: status %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return apperrors.ErrUpstream
}

// Client talks to the CRM with circuit breaker protection and an outbound
// request throttle. Calls are never retried: creating a contact is not
// idempotent.
type Client struct {
	cfg            Config
	httpClient     httpclient.Client
	throttle       *rate.Limiter
	circuitBreaker *gobreaker.CircuitBreaker
}

// NewClient creates a new CRM client
func NewClient(cfg Config, httpClient httpclient.Client) *Client {
	cfg = cfg.withDefaults()

	cbConfig := circuitbreaker.DefaultConfig("highlevel")
	// A rejected payload says nothing about the CRM's health
	cbConfig.IsSuccessful = func(err error) bool {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests
		}
		return err == nil || errors.Is(err, context.Canceled)
	}

	return &Client{
		cfg:            cfg,
		httpClient:     httpClient,
		throttle:       rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		circuitBreaker: circuitbreaker.NewCircuitBreaker(cbConfig),
	}
}

type createContactResponse struct {
	Contact *struct {
		ID string `json:"id"`
	} `json:"contact"`
	ID string `json:"id"`
}

// CreateContact creates a contact and returns its CRM id
func (c *Client) CreateContact(ctx context.Context, contact *models.CRMContact) (*models.CRMContactResult, error) {
	ctx, span := tracing.StartSpan(ctx, "highlevel.CreateContact")
	defer span.End()

	var resp createContactResponse
	if err := c.call(ctx, "createContact", c.cfg.BaseURL+"/contacts/", contact, &resp); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}

	id := resp.ID
	if resp.Contact != nil && resp.Contact.ID != "" {
		id = resp.Contact.ID
	}
	return &models.CRMContactResult{ID: id}, nil
}

// CreateNote attaches a free-text note to an existing contact
func (c *Client) CreateNote(ctx context.Context, contactID, body string) error {
	if contactID == "" {
		return apperrors.InvalidInputError("contactId", "must not be empty")
	}

	ctx, span := tracing.StartSpan(ctx, "highlevel.CreateNote")
	defer span.End()

	endpoint := fmt.Sprintf("%s/contacts/%s/notes", c.cfg.BaseURL, url.PathEscape(contactID))
	err := c.call(ctx, "createNote", endpoint, map[string]string{"body": body}, nil)
	tracing.RecordError(span, err)
	return err
}

// State returns the circuit breaker state for health reporting
func (c *Client) State() string {
	return circuitbreaker.GetState(c.circuitBreaker)
}

func (c *Client) call(ctx context.Context, operation, endpoint string, payload, out any) error {
	start := time.Now()

	_, err := circuitbreaker.Execute(c.circuitBreaker, func() (struct{}, error) {
		return struct{}{}, c.do(ctx, endpoint, payload, out)
	})

	duration := metrics.MeasureDuration(start)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CRMRequestDuration.WithLabelValues(operation, status).Observe(duration)
	metrics.CRMRequestTotal.WithLabelValues(operation, status).Inc()

	if err != nil {
		logger.LogAPICall(ctx, "highlevel", operation, status, duration, zap.Error(err))
		return fmt.Errorf("highlevel %s: %w", operation, err)
	}
	logger.LogAPICall(ctx, "highlevel", operation, status, duration)
	return nil
}

func (c *Client) do(ctx context.Context, endpoint string, payload, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if err := c.throttle.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Version", c.cfg.APIVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Message: readErrorMessage(resp.Body)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readErrorMessage extracts "message" from an error body, which the CRM
// sends either as a string or a list of strings.
func readErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}

	var parsed struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil && len(parsed.Message) > 0 {
		var single string
		if json.Unmarshal(parsed.Message, &single) == nil {
			return single
		}
		var list []string
		if json.Unmarshal(parsed.Message, &list) == nil {
			return strings.Join(list, "; ")
		}
	}
	return strings.TrimSpace(string(raw))
}
