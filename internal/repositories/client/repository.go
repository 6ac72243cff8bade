package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/clover/pkg/database"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

var selectColumns = []string{
	"id", "tenant_id", "name", "email", "phone", "document_id",
	"to_char(birth_date, 'YYYY-MM-DD') AS birth_date",
	"address", "city", "state", "postal_code", "neighborhood", "profession", "observations",
	"status", "created_at", "updated_at",
}

// Repository handles client persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new client repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// ListByTenant returns every client of a tenant, oldest first
func (r *Repository) ListByTenant(ctx context.Context, tenantID string) ([]models.Client, error) {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.ListByTenant")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(selectColumns...)
	sb.From("clients")
	sb.Where(sb.Equal("tenant_id", tenantID))
	sb.OrderBy("created_at ASC", "id ASC")

	query, args := sb.Build()
	clients := []models.Client{}
	if err := r.db.SelectContext(ctx, &clients, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("Failed to list clients")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list clients")
	}

	return clients, nil
}

// GetByIDs returns the requested clients in the order of ids. Any missing id is a 404.
func (r *Repository) GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Client, error) {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.GetByIDs")
	defer span.End()

	if len(ids) == 0 {
		return []models.Client{}, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(selectColumns...)
	sb.From("clients")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", sqlbuilder.Flatten(ids)...),
	)

	query, args := sb.Build()
	var found []models.Client
	if err := r.db.SelectContext(ctx, &found, query, args...); err != nil {
		if database.IsInvalidInput(err) {
			return nil, httperror.NewHTTPError(http.StatusBadRequest, "client ids must be UUIDs")
		}
		r.logger.WithContext(ctx).WithError(err).WithField("tenant_id", tenantID).Error("Failed to get clients")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get clients")
	}

	byID := make(map[string]models.Client, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	clients := make([]models.Client, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("client %s not found", id))
		}
		clients = append(clients, c)
	}
	return clients, nil
}

// UpdateFields back-fills mergeable columns of one client. A column that already holds a
// value is left untouched.
func (r *Repository) UpdateFields(ctx context.Context, tenantID, id string, values []models.FieldValue) error {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.UpdateFields")
	defer span.End()

	if len(values) == 0 {
		return nil
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("clients")

	sets := make([]string, 0, len(values)+1)
	for _, v := range values {
		if !v.Field.IsMergeable() {
			return httperror.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("field %s cannot be updated", v.Field))
		}
		sets = append(sets, backfill(sb, v))
	}
	sets = append(sets, sb.Assign("updated_at", time.Now().UTC()))
	sb.Set(sets...)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("tenant_id", tenantID),
	)

	query, args := sb.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("client_id", id).Error("Failed to update client fields")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update client")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("client_id", id).Error("Failed to read updated rows")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update client")
	}
	if affected == 0 {
		return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("client %s not found", id))
	}

	return nil
}

func backfill(sb *sqlbuilder.UpdateBuilder, v models.FieldValue) string {
	col := string(v.Field)
	if v.Field == models.FieldBirthDate {
		return fmt.Sprintf("%s = COALESCE(%s, %s::date)", col, col, sb.Var(v.Value))
	}
	return fmt.Sprintf("%s = CASE WHEN COALESCE(btrim(%s), '') = '' THEN %s ELSE %s END", col, col, sb.Var(v.Value), col)
}

// DeleteByIDs removes clients and reports how many rows were deleted
func (r *Repository) DeleteByIDs(ctx context.Context, tenantID string, ids []string) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "client.Repository.DeleteByIDs")
	defer span.End()

	if len(ids) == 0 {
		return 0, nil
	}

	sb := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	sb.DeleteFrom("clients")
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("id", sqlbuilder.Flatten(ids)...),
	)

	query, args := sb.Build()
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		if database.ErrorCode(err) == database.CodeForeignKeyViolation {
			return 0, httperror.NewHTTPError(http.StatusConflict, "clients still have dependent records")
		}
		r.logger.WithContext(ctx).WithError(err).WithField("client_ids", ids).Error("Failed to delete clients")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete clients")
	}

	affected, err := res.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to read deleted rows")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete clients")
	}

	return int(affected), nil
}
