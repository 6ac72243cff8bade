package merging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	appctx "github.com/Ramsey-B/clover/pkg/context"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Emitter publishes the outcome of a merge attempt.
type Emitter interface {
	EmitMergeResult(ctx context.Context, tenantID string, result *models.MergeResult) error
}

// AuditRecorder persists the trail of a merge attempt.
type AuditRecorder interface {
	Create(ctx context.Context, entry *models.MergeAuditLog) (*models.MergeAuditLog, error)
}

// History lists earlier merge attempts into a survivor, newest first.
type History interface {
	ListBySurvivor(ctx context.Context, tenantID, survivorID string, limit int) ([]models.MergeAuditLog, error)
}

// historyDepth is how many earlier attempts RetryDeletion inspects.
const historyDepth = 100

// Coordinator executes merges against a Store in a fixed order: back-fill the survivor,
// transfer policies, appointments and claims, then delete the duplicates. Steps are not
// atomic; a failure stops the sequence and leaves earlier steps applied. Deletion only
// runs after every transfer succeeded, so a failed merge never loses dependents.
type Coordinator struct {
	store       Store
	locker      Locker
	emitter     Emitter
	audit       AuditRecorder
	history     History
	stepTimeout time.Duration
	logger      ectologger.Logger
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithLocker serializes merges touching the same clients.
func WithLocker(locker Locker) Option {
	return func(c *Coordinator) { c.locker = locker }
}

// WithEmitter publishes every merge result.
func WithEmitter(emitter Emitter) Option {
	return func(c *Coordinator) { c.emitter = emitter }
}

// WithAudit records every merge attempt.
func WithAudit(audit AuditRecorder) Option {
	return func(c *Coordinator) { c.audit = audit }
}

// WithHistory lets RetryDeletion confirm that an earlier merge stopped at deletion.
// Without it every retry is refused.
func WithHistory(history History) Option {
	return func(c *Coordinator) { c.history = history }
}

// LockedSteps is the most store calls a merge or retry makes while holding its lock. A
// lock TTL shorter than LockedSteps step timeouts can expire under a slow merge.
const LockedSteps = 5

// WithStepTimeout bounds each store call. Zero leaves calls unbounded.
func WithStepTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) { c.stepTimeout = timeout }
}

// NewCoordinator creates a new merge coordinator
func NewCoordinator(store Store, logger ectologger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchRelationshipCounts reads fresh dependent counts for clientIDs, in the same order.
// The counts are advisory: callers should warn and continue when this fails.
func (c *Coordinator) FetchRelationshipCounts(ctx context.Context, tenantID string, clientIDs []string) ([]models.RelationshipCounts, error) {
	ctx, span := tracing.StartSpan(ctx, "merging.Coordinator.FetchRelationshipCounts")
	defer span.End()

	counts := make([]models.RelationshipCounts, len(clientIDs))
	for i, id := range clientIDs {
		counts[i].ClientID = id
	}
	if len(clientIDs) == 0 {
		return counts, nil
	}

	for _, kind := range models.DependentKinds {
		var byClient map[string]int
		err := c.step(ctx, func(ctx context.Context) error {
			var err error
			byClient, err = c.store.CountDependents(ctx, tenantID, kind, clientIDs)
			return err
		})
		if err != nil {
			c.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"tenant_id": tenantID,
				"kind":      kind,
			}).Warn("Failed to read dependent counts")
			return nil, &MergeError{Kind: ErrDependencyRead, Dependent: kind, Err: err}
		}
		for i := range counts {
			counts[i].Set(kind, byClient[counts[i].ClientID])
		}
	}

	return counts, nil
}

// ExecuteMerge consolidates duplicates into survivor. It never returns an error: every
// failure is reported in the result together with the counts reached before it.
// Cancelling ctx does not interrupt a merge once started.
func (c *Coordinator) ExecuteMerge(ctx context.Context, tenantID string, survivor models.Client, duplicates []models.Client, accepted []models.FieldDecision) (result *models.MergeResult) {
	ctx, span := tracing.StartSpan(ctx, "merging.Coordinator.ExecuteMerge")
	defer span.End()
	ctx = context.WithoutCancel(ctx)

	duplicateIDs := ectolinq.Map(duplicates, func(d models.Client) string { return d.ID })
	result = &models.MergeResult{
		SurvivorID:      survivor.ID,
		DuplicateIDs:    duplicateIDs,
		InheritedFields: []string{},
	}
	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":     tenantID,
		"survivor_id":   survivor.ID,
		"duplicate_ids": duplicateIDs,
	})

	start := time.Now()
	stage := models.StageValidate
	var dependent models.DependentKind
	defer func() {
		if r := recover(); r != nil {
			result.DeletionPending = stage == models.StageDelete
			c.fail(result, stage, dependent, fmt.Errorf("panic: %v", r))
		}
		c.finish(ctx, tenantID, result, start)
	}()

	if err := validateMerge(tenantID, &survivor, duplicates); err != nil {
		return c.fail(result, stage, "", err)
	}
	updates, err := planFieldUpdates(&survivor, duplicates, accepted)
	if err != nil {
		return c.fail(result, stage, "", err)
	}

	if c.locker != nil {
		stage = models.StageLock
		unlock, err := c.locker.LockClients(ctx, tenantID, append([]string{survivor.ID}, duplicateIDs...))
		if err != nil {
			return c.fail(result, stage, "", err)
		}
		defer unlock(ctx)
	}

	log.Info("Starting merge")

	stage = models.StageFieldUpdate
	if len(updates) > 0 {
		err := c.step(ctx, func(ctx context.Context) error {
			return c.store.UpdateClientFields(ctx, tenantID, survivor.ID, updates)
		})
		if err != nil {
			return c.fail(result, stage, "", err)
		}
		result.InheritedFields = ectolinq.Map(updates, func(u models.FieldValue) string { return string(u.Field) })
		log.WithField("fields", result.InheritedFields).Debug("Back-filled survivor fields")
	}

	for _, kind := range models.DependentKinds {
		stage, dependent = transferStage(kind), kind
		var moved int
		err := c.step(ctx, func(ctx context.Context) error {
			var err error
			moved, err = c.store.ReassignDependents(ctx, tenantID, kind, duplicateIDs, survivor.ID)
			return err
		})
		if err != nil {
			return c.fail(result, stage, kind, err)
		}
		result.AddTransferred(kind, moved)
		log.WithFields(map[string]any{"kind": kind, "count": moved}).Debug("Transferred dependents")
	}

	stage, dependent = models.StageDelete, ""
	if err := c.deleteDuplicates(ctx, tenantID, duplicateIDs, result); err != nil {
		return c.fail(result, stage, "", err)
	}

	stage = models.StageComplete
	result.Success = true
	return result
}

// RetryDeletion finishes a merge whose transfers succeeded but whose deletion failed. The
// newest recorded attempt for exactly these clients must have stopped at deletion, and no
// duplicate may still own dependents.
func (c *Coordinator) RetryDeletion(ctx context.Context, tenantID, survivorID string, duplicateIDs []string) (result *models.MergeResult) {
	ctx, span := tracing.StartSpan(ctx, "merging.Coordinator.RetryDeletion")
	defer span.End()
	ctx = context.WithoutCancel(ctx)

	result = &models.MergeResult{
		SurvivorID:      survivorID,
		DuplicateIDs:    duplicateIDs,
		InheritedFields: []string{},
	}

	start := time.Now()
	stage := models.StageValidate
	defer func() {
		if r := recover(); r != nil {
			result.DeletionPending = stage == models.StageDelete
			c.fail(result, stage, "", fmt.Errorf("panic: %v", r))
		}
		c.finish(ctx, tenantID, result, start)
	}()

	duplicates := ectolinq.Map(duplicateIDs, func(id string) models.Client { return models.Client{ID: id} })
	if err := validateMerge(tenantID, &models.Client{ID: survivorID}, duplicates); err != nil {
		return c.fail(result, stage, "", err)
	}

	if c.locker != nil {
		stage = models.StageLock
		unlock, err := c.locker.LockClients(ctx, tenantID, append([]string{survivorID}, duplicateIDs...))
		if err != nil {
			return c.fail(result, stage, "", err)
		}
		defer unlock(ctx)
	}

	stage = models.StageValidate
	if err := c.requirePendingDeletion(ctx, tenantID, survivorID, duplicateIDs); err != nil {
		return c.fail(result, stage, "", err)
	}
	counts, err := c.FetchRelationshipCounts(ctx, tenantID, duplicateIDs)
	if err != nil {
		return c.fail(result, stage, "", err)
	}
	for _, count := range counts {
		if count.Total() > 0 {
			return c.fail(result, stage, "", fmt.Errorf("client %s still owns %d dependent records; run the full merge again", count.ClientID, count.Total()))
		}
	}

	stage = models.StageDelete
	if err := c.deleteDuplicates(ctx, tenantID, duplicateIDs, result); err != nil {
		return c.fail(result, stage, "", err)
	}

	stage = models.StageComplete
	result.Success = true
	return result
}

// requirePendingDeletion checks that the newest attempt merging duplicateIDs into survivorID
// completed every transfer and failed only at deletion.
func (c *Coordinator) requirePendingDeletion(ctx context.Context, tenantID, survivorID string, duplicateIDs []string) error {
	if c.history == nil {
		return errors.New("merge history is unavailable; run the full merge again")
	}

	var attempts []models.MergeAuditLog
	err := c.step(ctx, func(ctx context.Context) error {
		var err error
		attempts, err = c.history.ListBySurvivor(ctx, tenantID, survivorID, historyDepth)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to read merge history: %w", err)
	}

	for _, attempt := range attempts {
		if !sameIDs(attempt.DuplicateIDs, duplicateIDs) {
			continue
		}
		if attempt.Success {
			return errors.New("merge of these clients already completed")
		}
		if attempt.FailedStage != string(models.StageDelete) {
			return fmt.Errorf("latest merge of these clients did not stop at deletion (stage %q); run the full merge again", attempt.FailedStage)
		}
		return nil
	}
	return errors.New("no merge of these clients is pending deletion; run the full merge again")
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	counts := make(map[string]int, len(a))
	for _, id := range a {
		counts[id]++
	}
	for _, id := range b {
		counts[id]--
		if counts[id] < 0 {
			return false
		}
	}
	return true
}

func (c *Coordinator) deleteDuplicates(ctx context.Context, tenantID string, duplicateIDs []string, result *models.MergeResult) error {
	var deleted int
	err := c.step(ctx, func(ctx context.Context) error {
		var err error
		deleted, err = c.store.DeleteClients(ctx, tenantID, duplicateIDs)
		return err
	})
	if err != nil {
		result.DeletionPending = true
		return err
	}

	result.DeletedClients = deleted
	if deleted != len(duplicateIDs) {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"tenant_id": tenantID,
			"expected":  len(duplicateIDs),
			"deleted":   deleted,
		}).Warn("Deleted fewer duplicates than requested")
	}
	return nil
}

// step runs one store call under the configured per-step timeout.
func (c *Coordinator) step(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.stepTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, c.stepTimeout)
	defer cancel()
	return fn(ctx)
}

func (c *Coordinator) fail(result *models.MergeResult, stage models.MergeStage, dependent models.DependentKind, err error) *models.MergeResult {
	var mergeErr *MergeError
	if !errors.As(err, &mergeErr) {
		kind := kindForStage(stage)
		if errors.Is(err, ErrMergeInProgress) {
			kind = ErrMergeInProgress
		}
		mergeErr = &MergeError{Kind: kind, Stage: stage, Dependent: dependent, Err: err}
	}

	result.Success = false
	result.FailedStage = stage
	result.Error = mergeErr.Error()
	return result
}

// finish records metrics, the audit trail and the merge event. None of these can change
// the result.
func (c *Coordinator) finish(ctx context.Context, tenantID string, result *models.MergeResult, start time.Time) {
	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":                tenantID,
		"survivor_id":              result.SurvivorID,
		"transferred_policies":     result.TransferredPolicies,
		"transferred_appointments": result.TransferredAppointments,
		"transferred_claims":       result.TransferredClaims,
		"deleted_clients":          result.DeletedClients,
	})

	status := "success"
	if !result.Success {
		status = "failed"
		log.WithFields(map[string]any{
			"failed_stage":     result.FailedStage,
			"deletion_pending": result.DeletionPending,
		}).Errorf("Merge failed: %s", result.Error)
	} else {
		log.Info("Merge completed")
	}

	metrics.MergesTotal.WithLabelValues(status, string(result.FailedStage)).Inc()
	metrics.MergeDuration.Observe(time.Since(start).Seconds())
	metrics.DependentsTransferred.WithLabelValues(string(models.DependentPolicies)).Add(float64(result.TransferredPolicies))
	metrics.DependentsTransferred.WithLabelValues(string(models.DependentAppointments)).Add(float64(result.TransferredAppointments))
	metrics.DependentsTransferred.WithLabelValues(string(models.DependentClaims)).Add(float64(result.TransferredClaims))
	metrics.ClientsDeleted.Add(float64(result.DeletedClients))

	if c.audit != nil && result.FailedStage != models.StageValidate && result.FailedStage != models.StageLock {
		entry := models.NewMergeAuditLog(tenantID, appctx.GetUserID(ctx), result)
		if _, err := c.audit.Create(ctx, entry); err != nil {
			log.WithError(err).Warn("Failed to record merge audit log")
		}
	}

	if c.emitter != nil && result.FailedStage != models.StageValidate && result.FailedStage != models.StageLock {
		if err := c.emitter.EmitMergeResult(ctx, tenantID, result); err != nil {
			log.WithError(err).Warn("Failed to emit merge event")
		}
	}
}

func validateMerge(tenantID string, survivor *models.Client, duplicates []models.Client) error {
	if tenantID == "" {
		return fmt.Errorf("tenant is required")
	}
	if survivor.ID == "" {
		return fmt.Errorf("survivor id is required")
	}
	if len(duplicates) == 0 {
		return fmt.Errorf("at least one duplicate is required")
	}
	if survivor.TenantID != "" && survivor.TenantID != tenantID {
		return fmt.Errorf("survivor %s belongs to another tenant", survivor.ID)
	}

	seen := map[string]bool{survivor.ID: true}
	for _, d := range duplicates {
		if d.ID == "" {
			return fmt.Errorf("duplicate id is required")
		}
		if d.ID == survivor.ID {
			return fmt.Errorf("client %s cannot be merged into itself", d.ID)
		}
		if seen[d.ID] {
			return fmt.Errorf("client %s is listed more than once", d.ID)
		}
		if d.TenantID != "" && d.TenantID != tenantID {
			return fmt.Errorf("duplicate %s belongs to another tenant", d.ID)
		}
		seen[d.ID] = true
	}
	return nil
}
