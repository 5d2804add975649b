package models

import (
	"time"

	"github.com/google/uuid"
)

// LeadStatus records what the CRM did with a submission
type LeadStatus string

const (
	LeadStatusCreated    LeadStatus = "created"
	LeadStatusSinkFailed LeadStatus = "sink_failed"
)

// Lead is an archived submission that reached the CRM
type Lead struct {
	ID           uuid.UUID
	FirstName    string
	LastName     string
	Email        string
	Phone        string
	Company      string
	Message      string
	ClientKey    string
	Browser      string
	OS           string
	Form         string
	CRMContactID string
	Status       LeadStatus
	CreatedAt    time.Time
}
