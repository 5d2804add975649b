package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/brightpath/brightpath-api/internal/models"
	apperrors "github.com/brightpath/brightpath-api/pkg/errors"
	"github.com/go-playground/validator/v10"
)

const (
	MaxFieldLength   = 500
	MaxMessageLength = 5000

	// EmailShapeTag is the validator tag for the loose local@domain.tld check
	EmailShapeTag = "email_shape"

	msgRequiredFields = "First name, last name, and email are required"
	msgInvalidEmail   = "Invalid email format"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// RegisterValidations adds the service's custom tags to v
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation(EmailShapeTag, func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
}

// NewValidator returns a validator with the custom tags registered
func NewValidator() *validator.Validate {
	v := validator.New()
	if err := RegisterValidations(v); err != nil {
		panic(fmt.Sprintf("register validations: %v", err))
	}
	return v
}

// ValidationError is a client-safe rejection naming the offending field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return apperrors.ErrInvalidInput
}

type lengthRule struct {
	field string
	max   int
	value func(*models.ContactRequest) string
}

// Checked in this order; the first offender is reported
var lengthRules = []lengthRule{
	{"firstName", MaxFieldLength, func(r *models.ContactRequest) string { return r.FirstName }},
	{"lastName", MaxFieldLength, func(r *models.ContactRequest) string { return r.LastName }},
	{"email", MaxFieldLength, func(r *models.ContactRequest) string { return r.Email }},
	{"phone", MaxFieldLength, func(r *models.ContactRequest) string { return r.Phone }},
	{"company", MaxFieldLength, func(r *models.ContactRequest) string { return r.Company }},
	{"message", MaxMessageLength, func(r *models.ContactRequest) string { return r.Message }},
}

// validateContact runs the length, presence and email-shape checks in that
// order. Lengths count code points.
func validateContact(v *validator.Validate, req *models.ContactRequest) *ValidationError {
	for _, rule := range lengthRules {
		if err := v.Var(rule.value(req), "max="+strconv.Itoa(rule.max)); err != nil {
			return &ValidationError{
				Field:   rule.field,
				Message: fmt.Sprintf("%s must be at most %d characters", rule.field, rule.max),
			}
		}
	}

	for _, rule := range lengthRules[:3] {
		if err := v.Var(strings.TrimSpace(rule.value(req)), "required"); err != nil {
			return &ValidationError{Field: rule.field, Message: msgRequiredFields}
		}
	}

	if err := v.Var(strings.TrimSpace(req.Email), EmailShapeTag); err != nil {
		return &ValidationError{Field: "email", Message: msgInvalidEmail}
	}

	return nil
}

// normalize trims every field and lowercases the email
func normalize(req *models.ContactRequest) *models.ContactSubmission {
	return &models.ContactSubmission{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:     strings.TrimSpace(req.Phone),
		Company:   strings.TrimSpace(req.Company),
		Message:   strings.TrimSpace(req.Message),
	}
}
