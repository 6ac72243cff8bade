package merge

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/merging"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/routes/validation"
)

// ClientReader loads clients by id within a tenant
type ClientReader interface {
	GetByIDs(ctx context.Context, tenantID string, ids []string) ([]models.Client, error)
}

// Merger runs merges
type Merger interface {
	FetchRelationshipCounts(ctx context.Context, tenantID string, clientIDs []string) ([]models.RelationshipCounts, error)
	ExecuteMerge(ctx context.Context, tenantID string, survivor models.Client, duplicates []models.Client, accepted []models.FieldDecision) *models.MergeResult
	RetryDeletion(ctx context.Context, tenantID, survivorID string, duplicateIDs []string) *models.MergeResult
}

// AuditLister lists the merge attempts into a client
type AuditLister interface {
	ListBySurvivor(ctx context.Context, tenantID, survivorID string, limit int) ([]models.MergeAuditLog, error)
}

// Handler serves merge preview, execution and audit routes
type Handler struct {
	clients ClientReader
	merger  Merger
	audit   AuditLister
	logger  ectologger.Logger
	now     func() time.Time
}

// NewHandler creates a new merge handler. audit may be nil.
func NewHandler(clients ClientReader, merger Merger, audit AuditLister, logger ectologger.Logger) *Handler {
	return &Handler{
		clients: clients,
		merger:  merger,
		audit:   audit,
		logger:  logger,
		now:     time.Now,
	}
}

// Register registers merge routes
func (h *Handler) Register(g *echo.Group) {
	g.POST("/clients/merge/preview", h.Preview)
	g.POST("/clients/merge", h.Execute)
	g.POST("/clients/merge/retry-deletion", h.RetryDeletion)
	g.GET("/clients/:id/merges", h.ListMerges)
}

// TargetRequest names the survivor and duplicates of a merge
type TargetRequest struct {
	SurvivorID   string   `json:"survivor_id" validate:"required,uuid"`
	DuplicateIDs []string `json:"duplicate_ids" validate:"required,min=1,dive,required,uuid"`
}

// ExecuteRequest is a merge with the field decisions the reviewer accepted
type ExecuteRequest struct {
	TargetRequest
	InheritFields []models.FieldDecision `json:"inherit_fields" validate:"dive"`
}

// DuplicateDecisions are the field decisions for one duplicate
type DuplicateDecisions struct {
	DuplicateID string                 `json:"duplicate_id"`
	Decisions   []models.FieldDecision `json:"decisions"`
}

// PreviewResponse is everything a reviewer needs before confirming a merge
type PreviewResponse struct {
	Survivor           models.Client               `json:"survivor"`
	Duplicates         []models.Client             `json:"duplicates"`
	RelationshipCounts []models.RelationshipCounts `json:"relationship_counts"`
	FieldDecisions     []DuplicateDecisions        `json:"field_decisions"`
	SuggestedSurvivor  string                      `json:"suggested_survivor_id"`
	Candidates         []merging.SurvivorCandidate `json:"candidates"`
	Warnings           []string                    `json:"warnings"`
}

func tenant(ctx context.Context) (string, error) {
	tenantID := appctx.GetTenantID(ctx)
	if tenantID == "" {
		return "", httperror.NewHTTPError(http.StatusUnauthorized, "tenant_id is required")
	}
	return tenantID, nil
}

// load returns the survivor and duplicates, all from the tenant
func (h *Handler) load(ctx context.Context, tenantID string, req TargetRequest) (models.Client, []models.Client, error) {
	ids := append([]string{req.SurvivorID}, req.DuplicateIDs...)
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			return models.Client{}, nil, httperror.NewHTTPError(http.StatusBadRequest, "client "+id+" is listed more than once")
		}
		seen[id] = true
	}

	clients, err := h.clients.GetByIDs(ctx, tenantID, ids)
	if err != nil {
		return models.Client{}, nil, err
	}
	return clients[0], clients[1:], nil
}

// Preview reports dependents, field decisions and the suggested survivor without
// changing anything. Counts are advisory: a failed read becomes a warning.
func (h *Handler) Preview(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, err := tenant(ctx)
	if err != nil {
		return err
	}

	req, err := validation.Bind[TargetRequest](c)
	if err != nil {
		return err
	}

	survivor, duplicates, err := h.load(ctx, tenantID, req)
	if err != nil {
		return err
	}
	members := append([]models.Client{survivor}, duplicates...)

	resp := PreviewResponse{
		Survivor:           survivor,
		Duplicates:         duplicates,
		RelationshipCounts: []models.RelationshipCounts{},
		FieldDecisions:     make([]DuplicateDecisions, 0, len(duplicates)),
		Warnings:           []string{},
	}

	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.ID
	}
	counts, err := h.merger.FetchRelationshipCounts(ctx, tenantID, ids)
	if err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Merge preview without relationship counts")
		resp.Warnings = append(resp.Warnings, err.Error())
	} else {
		resp.RelationshipCounts = counts
	}

	for i := range duplicates {
		resp.FieldDecisions = append(resp.FieldDecisions, DuplicateDecisions{
			DuplicateID: duplicates[i].ID,
			Decisions:   merging.ComputeFieldDecisions(&survivor, &duplicates[i]),
		})
	}

	resp.Candidates = merging.SuggestSurvivor(members, counts, h.now())
	resp.SuggestedSurvivor = resp.Candidates[0].Client.ID

	return c.JSON(http.StatusOK, resp)
}

// Execute runs the merge. The result is returned with 200 whether or not the merge
// succeeded; success and failed_stage tell them apart.
func (h *Handler) Execute(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, err := tenant(ctx)
	if err != nil {
		return err
	}

	req, err := validation.Bind[ExecuteRequest](c)
	if err != nil {
		return err
	}

	survivor, duplicates, err := h.load(ctx, tenantID, req.TargetRequest)
	if err != nil {
		return err
	}

	result := h.merger.ExecuteMerge(ctx, tenantID, survivor, duplicates, req.InheritFields)
	return c.JSON(http.StatusOK, result)
}

// RetryDeletion deletes the duplicates of a merge whose transfers already completed. The
// survivor and every duplicate must still exist in the tenant.
func (h *Handler) RetryDeletion(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, err := tenant(ctx)
	if err != nil {
		return err
	}

	req, err := validation.Bind[TargetRequest](c)
	if err != nil {
		return err
	}

	survivor, duplicates, err := h.load(ctx, tenantID, req)
	if err != nil {
		return err
	}

	ids := make([]string, len(duplicates))
	for i, d := range duplicates {
		ids[i] = d.ID
	}
	result := h.merger.RetryDeletion(ctx, tenantID, survivor.ID, ids)
	return c.JSON(http.StatusOK, result)
}

// ListMerges returns the merge audit trail of a survivor, newest first
func (h *Handler) ListMerges(c echo.Context) error {
	ctx := c.Request().Context()
	tenantID, err := tenant(ctx)
	if err != nil {
		return err
	}
	if h.audit == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "merge audit is disabled")
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, "limit must be a number")
		}
	}

	survivorID := c.Param("id")
	if _, err := uuid.Parse(survivorID); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "client id must be a UUID")
	}

	entries, err := h.audit.ListBySurvivor(ctx, tenantID, survivorID, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}
