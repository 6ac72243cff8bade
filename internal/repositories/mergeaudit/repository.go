package mergeaudit

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var columns = []string{
	"id", "tenant_id", "survivor_id", "duplicate_ids", "inherited_fields",
	"transferred_policies", "transferred_appointments", "transferred_claims", "deleted_clients",
	"success", "failed_stage", "error", "performed_by", "created_at",
}

// Repository handles merge audit log persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new merge audit repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create records one merge attempt
func (r *Repository) Create(ctx context.Context, entry *models.MergeAuditLog) (*models.MergeAuditLog, error) {
	ctx, span := tracing.StartSpan(ctx, "mergeaudit.Repository.Create")
	defer span.End()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	entry.CreatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("merge_audit_logs")
	sb.Cols(columns...)
	sb.Values(entry.ID, entry.TenantID, entry.SurvivorID, entry.DuplicateIDs, entry.InheritedFields,
		entry.TransferredPolicies, entry.TransferredAppointments, entry.TransferredClaims, entry.DeletedClients,
		entry.Success, entry.FailedStage, entry.Error, entry.PerformedBy, entry.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("survivor_id", entry.SurvivorID).Error("Failed to create merge audit log")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create merge audit log")
	}

	return entry, nil
}

// ListBySurvivor returns the merge attempts into a client, newest first
func (r *Repository) ListBySurvivor(ctx context.Context, tenantID, survivorID string, limit int) ([]models.MergeAuditLog, error) {
	ctx, span := tracing.StartSpan(ctx, "mergeaudit.Repository.ListBySurvivor")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("merge_audit_logs")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.Equal("survivor_id", survivorID),
	)
	sb.OrderBy("created_at DESC")
	sb.Limit(limit)

	query, args := sb.Build()
	entries := []models.MergeAuditLog{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("survivor_id", survivorID).Error("Failed to list merge audit logs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list merge audit logs")
	}

	return entries, nil
}
