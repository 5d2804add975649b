package repository

import (
	"context"

	"github.com/brightpath/brightpath-api/internal/models"
)

// LeadArchive persists submissions that reached the CRM
type LeadArchive interface {
	InsertLead(ctx context.Context, lead *models.Lead) error
}
