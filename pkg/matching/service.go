package matching

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// ClientLister loads the full client list of a tenant.
type ClientLister interface {
	ListByTenant(ctx context.Context, tenantID string) ([]models.Client, error)
}

// DetectionEmitter is notified when a run finds duplicates.
type DetectionEmitter interface {
	EmitDuplicatesDetected(ctx context.Context, tenantID string, summary models.DuplicateSummary) error
}

// Report is the outcome of one duplicate detection run.
type Report struct {
	Groups  []models.DuplicateGroup `json:"groups"`
	Summary models.DuplicateSummary `json:"summary"`
	Quality models.QualityStats     `json:"quality"`
}

// Service runs duplicate detection over a tenant's stored clients.
type Service struct {
	scorer  *Scorer
	clients ClientLister
	emitter DetectionEmitter
	logger  ectologger.Logger
}

// NewService creates a new detection service. emitter may be nil.
func NewService(scorer *Scorer, clients ClientLister, emitter DetectionEmitter, logger ectologger.Logger) *Service {
	return &Service{
		scorer:  scorer,
		clients: clients,
		emitter: emitter,
		logger:  logger,
	}
}

// Scorer returns the scorer used for detection.
func (s *Service) Scorer() *Scorer {
	return s.scorer
}

// Detect scores the tenant's current client list. Nothing is cached: every call reads
// the list again.
func (s *Service) Detect(ctx context.Context, tenantID string) (*Report, error) {
	ctx, span := tracing.StartSpan(ctx, "matching.Service.Detect")
	defer span.End()

	log := s.logger.WithContext(ctx).WithField("tenant_id", tenantID)
	start := time.Now()

	clients, err := s.clients.ListByTenant(ctx, tenantID)
	if err != nil {
		metrics.ScoringRunsTotal.WithLabelValues("error").Inc()
		log.WithError(err).Error("Failed to load clients for duplicate detection")
		return nil, err
	}

	report := s.Analyze(clients)
	metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	metrics.ScoringRunsTotal.WithLabelValues("success").Inc()
	for _, g := range report.Groups {
		metrics.DuplicateGroupsFound.WithLabelValues(string(g.Confidence)).Inc()
	}

	log.WithFields(map[string]any{
		"clients": len(clients),
		"groups":  report.Summary.Groups,
		"high":    report.Summary.High,
		"medium":  report.Summary.Medium,
		"low":     report.Summary.Low,
	}).Info("Duplicate detection completed")

	if s.emitter != nil && report.Summary.Groups > 0 {
		if err := s.emitter.EmitDuplicatesDetected(ctx, tenantID, report.Summary); err != nil {
			log.WithError(err).Warn("Failed to emit duplicates detected event")
		}
	}

	return report, nil
}

// Analyze groups an in-memory client list without any I/O.
func (s *Service) Analyze(clients []models.Client) *Report {
	groups := s.scorer.FindDuplicateGroups(clients)
	summary := Summarize(groups)
	return &Report{
		Groups:  groups,
		Summary: summary,
		Quality: Quality(len(clients), summary),
	}
}
