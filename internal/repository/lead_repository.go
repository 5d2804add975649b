package repository

import (
	"context"
	"time"

	"github.com/brightpath/brightpath-api/internal/models"
	"github.com/google/uuid"
)

// LeadRepository handles lead archive access. A repository without an
// archive accepts and discards every lead.
type LeadRepository struct {
	archive LeadArchive
	now     func() time.Time
}

// NewLeadRepository creates a new lead repository. archive may be nil when
// no database is configured.
func NewLeadRepository(archive LeadArchive) *LeadRepository {
	return &LeadRepository{
		archive: archive,
		now:     time.Now,
	}
}

// Enabled reports whether leads are actually stored
func (r *LeadRepository) Enabled() bool {
	return r.archive != nil
}

// Create stores lead, assigning an id and timestamp when missing
func (r *LeadRepository) Create(ctx context.Context, lead *models.Lead) error {
	if r.archive == nil {
		return nil
	}
	if lead.ID == uuid.Nil {
		lead.ID = uuid.New()
	}
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = r.now().UTC()
	}
	return r.archive.InsertLead(ctx, lead)
}
