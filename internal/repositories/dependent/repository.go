package dependent

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

// Repository handles one table of records that reference a client through client_id.
// The table name is the dependent kind.
type Repository struct {
	db     database.DB
	kind   models.DependentKind
	logger ectologger.Logger
}

// NewRepository creates a repository over the table of kind
func NewRepository(db database.DB, kind models.DependentKind, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		kind:   kind,
		logger: logger,
	}
}

// NewRepositories creates the policies, appointments and claims repositories
func NewRepositories(db database.DB, logger ectologger.Logger) (policies, appointments, claims *Repository) {
	return NewRepository(db, models.DependentPolicies, logger),
		NewRepository(db, models.DependentAppointments, logger),
		NewRepository(db, models.DependentClaims, logger)
}

func (r *Repository) table() (string, error) {
	switch r.kind {
	case models.DependentPolicies, models.DependentAppointments, models.DependentClaims:
		return string(r.kind), nil
	}
	return "", httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("unknown dependent table %q", r.kind))
}

type clientCount struct {
	ClientID string `db:"client_id"`
	Count    int    `db:"count"`
}

// CountByClients returns how many records each client owns. Clients without records are
// left out of the map.
func (r *Repository) CountByClients(ctx context.Context, tenantID string, clientIDs []string) (map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "dependent.Repository.CountByClients")
	defer span.End()

	counts := map[string]int{}
	if len(clientIDs) == 0 {
		return counts, nil
	}
	table, err := r.table()
	if err != nil {
		return nil, err
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("client_id", "COUNT(*) AS count")
	sb.From(table)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("client_id", sqlbuilder.Flatten(clientIDs)...),
	)
	sb.GroupBy("client_id")

	query, args := sb.Build()
	var rows []clientCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithField("table", table).Error("Failed to count dependents")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to count %s", table))
	}

	for _, row := range rows {
		counts[row.ClientID] = row.Count
	}
	return counts, nil
}

// Reassign points every record owned by fromIDs at toID and returns the ids it moved
func (r *Repository) Reassign(ctx context.Context, tenantID string, fromIDs []string, toID string) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "dependent.Repository.Reassign")
	defer span.End()

	moved := []string{}
	if len(fromIDs) == 0 {
		return moved, nil
	}
	table, err := r.table()
	if err != nil {
		return nil, err
	}

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update(table)
	sb.Set(
		sb.Assign("client_id", toID),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("tenant_id", tenantID),
		sb.In("client_id", sqlbuilder.Flatten(fromIDs)...),
	)

	query, args := sb.Build()
	query += " RETURNING id"

	if err := r.db.SelectContext(ctx, &moved, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"table":    table,
			"from_ids": fromIDs,
			"survivor": toID,
		}).Error("Failed to reassign dependents")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("failed to reassign %s", table))
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"table": table,
		"count": len(moved),
	}).Debug("Reassigned dependents")
	return moved, nil
}
