package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/middleware"
	"github.com/Ramsey-B/clover/pkg/models"
)

const (
	sID       = "3f1d9a52-7c1e-4b7a-9f0e-1a2b3c4d5e01"
	d1ID      = "3f1d9a52-7c1e-4b7a-9f0e-1a2b3c4d5e02"
	d2ID      = "3f1d9a52-7c1e-4b7a-9f0e-1a2b3c4d5e03"
	otherID   = "3f1d9a52-7c1e-4b7a-9f0e-1a2b3c4d5e04"
	unknownID = "3f1d9a52-7c1e-4b7a-9f0e-1a2b3c4d5e05"
)

// target renders a merge request body.
func target(survivor string, duplicates ...string) string {
	body, _ := json.Marshal(TargetRequest{SurvivorID: survivor, DuplicateIDs: append([]string{}, duplicates...)})
	return string(body)
}

type fakeClients struct {
	clients map[string]models.Client
}

func (f *fakeClients) GetByIDs(_ context.Context, tenantID string, ids []string) ([]models.Client, error) {
	out := []models.Client{}
	for _, id := range ids {
		c, ok := f.clients[id]
		if !ok || c.TenantID != tenantID {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("client %s not found", id))
		}
		out = append(out, c)
	}
	return out, nil
}

type fakeMerger struct {
	counts   []models.RelationshipCounts
	countErr error

	survivor   models.Client
	duplicates []models.Client
	accepted   []models.FieldDecision
	retried    []string
}

func (f *fakeMerger) FetchRelationshipCounts(_ context.Context, _ string, _ []string) ([]models.RelationshipCounts, error) {
	return f.counts, f.countErr
}

func (f *fakeMerger) ExecuteMerge(_ context.Context, _ string, survivor models.Client, duplicates []models.Client, accepted []models.FieldDecision) *models.MergeResult {
	f.survivor, f.duplicates, f.accepted = survivor, duplicates, accepted
	ids := []string{}
	for _, d := range duplicates {
		ids = append(ids, d.ID)
	}
	return &models.MergeResult{
		Success:         false,
		SurvivorID:      survivor.ID,
		DuplicateIDs:    ids,
		InheritedFields: []string{},
		FailedStage:     models.StageTransferAppointments,
		Error:           "Erro ao transferir agendamentos: timeout",
	}
}

func (f *fakeMerger) RetryDeletion(_ context.Context, _ string, survivorID string, duplicateIDs []string) *models.MergeResult {
	f.retried = duplicateIDs
	return &models.MergeResult{Success: true, SurvivorID: survivorID, DuplicateIDs: duplicateIDs, DeletedClients: len(duplicateIDs)}
}

type fakeAudit struct {
	limit int
}

func (f *fakeAudit) ListBySurvivor(_ context.Context, tenantID, survivorID string, limit int) ([]models.MergeAuditLog, error) {
	f.limit = limit
	return []models.MergeAuditLog{{ID: "a1", TenantID: tenantID, SurvivorID: survivorID, Success: true}}, nil
}

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func fixture() *fakeClients {
	survivor := models.Client{ID: sID, TenantID: "t1", Name: "Maria Silva", DocumentID: models.StringPtr("123")}
	d1 := models.Client{ID: d1ID, TenantID: "t1", Name: "Maria da Silva", City: models.StringPtr("São Paulo")}
	d2 := models.Client{ID: d2ID, TenantID: "t1", Name: "Maria Silva", Email: models.StringPtr("maria@example.com")}
	other := models.Client{ID: otherID, TenantID: "t2", Name: "Maria Silva"}
	return &fakeClients{clients: map[string]models.Client{sID: survivor, d1ID: d1, d2ID: d2, otherID: other}}
}

func newServer(merger *fakeMerger, audit AuditLister) *echo.Echo {
	handler := NewHandler(fixture(), merger, audit, testLogger())
	handler.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(testLogger())
	e.Use(middleware.Context())
	handler.Register(e.Group("/api/v1"))
	return e
}

func do(e *echo.Echo, method, path, tenant, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if tenant != "" {
		req.Header.Set(middleware.HeaderTenantID, tenant)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Preview(t *testing.T) {
	merger := &fakeMerger{counts: []models.RelationshipCounts{
		{ClientID: sID},
		{ClientID: d1ID, Policies: 2},
		{ClientID: d2ID, Claims: 1},
	}}
	e := newServer(merger, nil)

	rec := do(e, http.MethodPost, "/api/v1/clients/merge/preview", "t1", target(sID, d1ID, d2ID))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, sID, resp.Survivor.ID)
	require.Len(t, resp.Duplicates, 2)
	assert.Equal(t, merger.counts, resp.RelationshipCounts)
	assert.Empty(t, resp.Warnings)

	require.Len(t, resp.FieldDecisions, 2)
	assert.Equal(t, d1ID, resp.FieldDecisions[0].DuplicateID)
	inherit := map[string][]models.ClientField{}
	for _, dd := range resp.FieldDecisions {
		for _, d := range merging.InheritableDecisions(dd.Decisions) {
			inherit[dd.DuplicateID] = append(inherit[dd.DuplicateID], d.Field)
		}
	}
	assert.Equal(t, []models.ClientField{models.FieldCity}, inherit[d1ID])
	assert.Equal(t, []models.ClientField{models.FieldEmail}, inherit[d2ID])

	// d1 owns two policies (200) against the survivor's document (50)
	assert.Equal(t, d1ID, resp.SuggestedSurvivor)
	require.Len(t, resp.Candidates, 3)
}

func TestHandler_Preview_CountsUnavailable(t *testing.T) {
	merger := &fakeMerger{countErr: &merging.MergeError{Kind: merging.ErrDependencyRead, Dependent: models.DependentPolicies, Err: fmt.Errorf("timeout")}}
	e := newServer(merger, nil)

	rec := do(e, http.MethodPost, "/api/v1/clients/merge/preview", "t1", target(sID, d1ID))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp PreviewResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Erro ao buscar apólices: timeout"}, resp.Warnings)
	assert.Empty(t, resp.RelationshipCounts)
	assert.Len(t, resp.FieldDecisions, 1)
	assert.Equal(t, sID, resp.SuggestedSurvivor)
}

func TestHandler_Execute(t *testing.T) {
	merger := &fakeMerger{}
	e := newServer(merger, nil)
	body := fmt.Sprintf(`{
		"survivor_id": %q,
		"duplicate_ids": [%q],
		"inherit_fields": [{"field": "city", "source_client_id": %q, "will_inherit": true}]
	}`, sID, d1ID, d1ID)

	rec := do(e, http.MethodPost, "/api/v1/clients/merge", "t1", body)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result models.MergeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Equal(t, models.StageTransferAppointments, result.FailedStage)
	assert.Equal(t, "Erro ao transferir agendamentos: timeout", result.Error)

	assert.Equal(t, sID, merger.survivor.ID)
	require.Len(t, merger.duplicates, 1)
	assert.Equal(t, "São Paulo", models.Value(merger.duplicates[0].City), "duplicates are loaded from the store")
	require.Len(t, merger.accepted, 1)
	assert.Equal(t, models.FieldCity, merger.accepted[0].Field)
}

func TestHandler_Execute_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		tenant     string
		body       string
		wantStatus int
	}{
		{name: "missing tenant", body: target(sID, d1ID), wantStatus: http.StatusUnauthorized},
		{name: "no duplicates", tenant: "t1", body: target(sID), wantStatus: http.StatusBadRequest},
		{name: "decision without source", tenant: "t1", body: fmt.Sprintf(`{"survivor_id":%q,"duplicate_ids":[%q],"inherit_fields":[{"field":"city"}]}`, sID, d1ID), wantStatus: http.StatusBadRequest},
		{name: "survivor repeated as duplicate", tenant: "t1", body: target(sID, sID), wantStatus: http.StatusBadRequest},
		{name: "survivor id not a uuid", tenant: "t1", body: target("abc", d1ID), wantStatus: http.StatusBadRequest},
		{name: "duplicate id not a uuid", tenant: "t1", body: target(sID, "d1"), wantStatus: http.StatusBadRequest},
		{name: "unknown client", tenant: "t1", body: target(sID, unknownID), wantStatus: http.StatusNotFound},
		{name: "client from another tenant", tenant: "t1", body: target(sID, otherID), wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merger := &fakeMerger{}
			e := newServer(merger, nil)

			rec := do(e, http.MethodPost, "/api/v1/clients/merge", tt.tenant, tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Empty(t, merger.survivor.ID, "merge must not run")
		})
	}
}

func TestHandler_RetryDeletion(t *testing.T) {
	merger := &fakeMerger{}
	e := newServer(merger, nil)

	rec := do(e, http.MethodPost, "/api/v1/clients/merge/retry-deletion", "t1", target(sID, d1ID, d2ID))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result models.MergeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, 2, result.DeletedClients)
	assert.Equal(t, []string{d1ID, d2ID}, merger.retried)
}

func TestHandler_RetryDeletion_Rejected(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "unknown survivor", body: target(unknownID, d1ID), wantStatus: http.StatusNotFound},
		{name: "survivor from another tenant", body: target(otherID, d1ID), wantStatus: http.StatusNotFound},
		{name: "unknown duplicate", body: target(sID, unknownID), wantStatus: http.StatusNotFound},
		{name: "malformed id", body: target(sID, "abc"), wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			merger := &fakeMerger{}
			e := newServer(merger, nil)

			rec := do(e, http.MethodPost, "/api/v1/clients/merge/retry-deletion", "t1", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Nil(t, merger.retried, "deletion must not run")
		})
	}
}

func TestHandler_ListMerges(t *testing.T) {
	tests := []struct {
		name       string
		audit      *fakeAudit
		query      string
		wantStatus int
		wantLimit  int
		id         string
	}{
		{name: "default limit", audit: &fakeAudit{}, wantStatus: http.StatusOK},
		{name: "explicit limit", audit: &fakeAudit{}, query: "?limit=5", wantStatus: http.StatusOK, wantLimit: 5},
		{name: "bad limit", audit: &fakeAudit{}, query: "?limit=five", wantStatus: http.StatusBadRequest},
		{name: "id not a uuid", audit: &fakeAudit{}, id: "abc", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newServer(&fakeMerger{}, tt.audit)

			id := tt.id
			if id == "" {
				id = sID
			}
			rec := do(e, http.MethodGet, "/api/v1/clients/"+id+"/merges"+tt.query, "t1", "")

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.Equal(t, tt.wantLimit, tt.audit.limit)
			var entries []models.MergeAuditLog
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
			require.Len(t, entries, 1)
			assert.Equal(t, sID, entries[0].SurvivorID)
		})
	}
}

func TestHandler_ListMerges_AuditDisabled(t *testing.T) {
	e := newServer(&fakeMerger{}, nil)

	rec := do(e, http.MethodGet, "/api/v1/clients/"+sID+"/merges", "t1", "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
