package repository

import (
	"context"
	"testing"

	"github.com/brightpath/brightpath-api/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingArchive struct {
	leads []*models.Lead
}

func (a *recordingArchive) InsertLead(_ context.Context, lead *models.Lead) error {
	a.leads = append(a.leads, lead)
	return nil
}

func TestLeadRepository_CreateAssignsIDAndTimestamp(t *testing.T) {
	archive := &recordingArchive{}
	repo := NewLeadRepository(archive)

	lead := &models.Lead{Email: "ada@example.com", Status: models.LeadStatusCreated}
	require.NoError(t, repo.Create(context.Background(), lead))

	require.Len(t, archive.leads, 1)
	assert.NotEqual(t, uuid.Nil, lead.ID)
	assert.False(t, lead.CreatedAt.IsZero())
	assert.True(t, repo.Enabled())
}

func TestLeadRepository_KeepsExistingID(t *testing.T) {
	archive := &recordingArchive{}
	repo := NewLeadRepository(archive)
	id := uuid.New()

	require.NoError(t, repo.Create(context.Background(), &models.Lead{ID: id}))

	assert.Equal(t, id, archive.leads[0].ID)
}

func TestLeadRepository_WithoutArchiveIsNoop(t *testing.T) {
	repo := NewLeadRepository(nil)

	assert.False(t, repo.Enabled())
	assert.NoError(t, repo.Create(context.Background(), &models.Lead{}))
}
