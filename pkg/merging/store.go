package merging

import (
	"context"
	"fmt"

	"github.com/Ramsey-B/clover/pkg/models"
)

// Store is the persistence contract of the coordinator. Every call is scoped to tenantID.
type Store interface {
	// CountDependents returns how many records of kind each client owns. Clients without
	// dependents may be missing from the map.
	CountDependents(ctx context.Context, tenantID string, kind models.DependentKind, clientIDs []string) (map[string]int, error)
	// ReassignDependents points every record of kind owned by fromIDs at toID and reports
	// how many rows the store changed.
	ReassignDependents(ctx context.Context, tenantID string, kind models.DependentKind, fromIDs []string, toID string) (int, error)
	// UpdateClientFields writes the given columns of one client.
	UpdateClientFields(ctx context.Context, tenantID, clientID string, values []models.FieldValue) error
	// DeleteClients removes clients and reports how many rows were deleted.
	DeleteClients(ctx context.Context, tenantID string, clientIDs []string) (int, error)
}

// ClientWriter is the client table access SQLStore needs.
type ClientWriter interface {
	UpdateFields(ctx context.Context, tenantID, id string, values []models.FieldValue) error
	DeleteByIDs(ctx context.Context, tenantID string, ids []string) (int, error)
}

// DependentRepository is the access SQLStore needs to one dependent table.
type DependentRepository interface {
	CountByClients(ctx context.Context, tenantID string, clientIDs []string) (map[string]int, error)
	Reassign(ctx context.Context, tenantID string, fromIDs []string, toID string) ([]string, error)
}

// SQLStore adapts the table repositories to Store.
type SQLStore struct {
	clients    ClientWriter
	dependents map[models.DependentKind]DependentRepository
}

// NewSQLStore creates a Store over the client table and the three dependent tables.
func NewSQLStore(clients ClientWriter, policies, appointments, claims DependentRepository) *SQLStore {
	return &SQLStore{
		clients: clients,
		dependents: map[models.DependentKind]DependentRepository{
			models.DependentPolicies:     policies,
			models.DependentAppointments: appointments,
			models.DependentClaims:       claims,
		},
	}
}

func (s *SQLStore) dependent(kind models.DependentKind) (DependentRepository, error) {
	repo, ok := s.dependents[kind]
	if !ok || repo == nil {
		return nil, fmt.Errorf("no repository for dependent kind %q", kind)
	}
	return repo, nil
}

func (s *SQLStore) CountDependents(ctx context.Context, tenantID string, kind models.DependentKind, clientIDs []string) (map[string]int, error) {
	repo, err := s.dependent(kind)
	if err != nil {
		return nil, err
	}
	return repo.CountByClients(ctx, tenantID, clientIDs)
}

func (s *SQLStore) ReassignDependents(ctx context.Context, tenantID string, kind models.DependentKind, fromIDs []string, toID string) (int, error) {
	repo, err := s.dependent(kind)
	if err != nil {
		return 0, err
	}
	ids, err := repo.Reassign(ctx, tenantID, fromIDs, toID)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (s *SQLStore) UpdateClientFields(ctx context.Context, tenantID, clientID string, values []models.FieldValue) error {
	return s.clients.UpdateFields(ctx, tenantID, clientID, values)
}

func (s *SQLStore) DeleteClients(ctx context.Context, tenantID string, clientIDs []string) (int, error) {
	return s.clients.DeleteByIDs(ctx, tenantID, clientIDs)
}
