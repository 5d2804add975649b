package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/brightpath/brightpath-api/internal/models"
	"github.com/brightpath/brightpath-api/pkg/logger"
	"github.com/brightpath/brightpath-api/pkg/metrics"
	"go.uber.org/zap"
)

const insertLeadSQL = `
INSERT INTO leads (
	id, first_name, last_name, email, phone, company, message,
	client_key, browser, os, form, crm_contact_id, status, created_at
) VALUES (
	$1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''),
	$8, NULLIF($9, ''), NULLIF($10, ''), $11, NULLIF($12, ''), $13, $14
)`

// InsertLead archives one submission
func (c *Client) InsertLead(ctx context.Context, lead *models.Lead) error {
	start := time.Now()
	operation := "insertLead"

	_, err := c.pool.Exec(ctx, insertLeadSQL,
		lead.ID,
		lead.FirstName,
		lead.LastName,
		lead.Email,
		lead.Phone,
		lead.Company,
		lead.Message,
		lead.ClientKey,
		lead.Browser,
		lead.OS,
		lead.Form,
		lead.CRMContactID,
		string(lead.Status),
		lead.CreatedAt,
	)

	duration := metrics.MeasureDuration(start)
	if err != nil {
		recordMetrics(operation, "error", duration)
		return fmt.Errorf("failed to insert lead: %w", err)
	}

	recordMetrics(operation, "success", duration)
	logger.Debug("Lead archived",
		zap.String("lead_id", lead.ID.String()),
		zap.String("status", string(lead.Status)),
		zap.Float64("duration_s", duration))
	return nil
}
