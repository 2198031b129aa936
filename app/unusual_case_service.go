package app

import (
	"context"
	"io"
	"time"

	"peerscan/domain/anomaly"
	"peerscan/domain/core"
	"peerscan/internal"
	"peerscan/internal/errors"
	"peerscan/internal/worker"
	"peerscan/models"
	"peerscan/ports"
)

// DefaultListLimit caps run listings when the caller gives no limit.
const DefaultListLimit = 50

// AnalysisOutcome is a worker response plus the ID it was stored under.
// RunID is empty when persistence is disabled or failed.
type AnalysisOutcome struct {
	RunID    core.RunID       `json:"runId,omitempty"`
	Response anomaly.Response `json:"response"`
}

// UnusualCaseService runs analyses through the worker and records them.
type UnusualCaseService struct {
	worker   *worker.Worker
	pool     *worker.Pool
	runs     ports.RunRepository
	exporter ports.ReportExporter
	logger   *internal.Logger
}

// NewUnusualCaseService creates the service. runs may be nil to disable persistence.
func NewUnusualCaseService(w *worker.Worker, concurrency int, runs ports.RunRepository, exporter ports.ReportExporter, logger *internal.Logger) *UnusualCaseService {
	return &UnusualCaseService{
		worker:   w,
		pool:     worker.NewPool(w, concurrency),
		runs:     runs,
		exporter: exporter,
		logger:   logger.WithComponent("service"),
	}
}

// PersistenceEnabled reports whether runs are stored.
func (s *UnusualCaseService) PersistenceEnabled() bool { return s.runs != nil }

// Analyze runs one request. The response is returned even if storing it fails.
func (s *UnusualCaseService) Analyze(ctx context.Context, req *anomaly.Request) *AnalysisOutcome {
	start := time.Now()
	resp := s.worker.Handle(ctx, req)
	return s.record(ctx, req, resp, time.Since(start))
}

// AnalyzeBatch runs independent requests concurrently; outcomes align with reqs.
func (s *UnusualCaseService) AnalyzeBatch(ctx context.Context, reqs []*anomaly.Request) []*AnalysisOutcome {
	start := time.Now()
	responses := s.pool.HandleAll(ctx, reqs)
	elapsed := time.Since(start)

	outcomes := make([]*AnalysisOutcome, len(reqs))
	for i, resp := range responses {
		outcomes[i] = s.record(ctx, reqs[i], resp, elapsed)
	}
	s.logger.Info("batch of %d requests finished in %s", len(reqs), elapsed)
	return outcomes
}

func (s *UnusualCaseService) record(ctx context.Context, req *anomaly.Request, resp anomaly.Response, elapsed time.Duration) *AnalysisOutcome {
	outcome := &AnalysisOutcome{Response: resp}
	if resp.OK() {
		s.logger.Info("analysis succeeded: %d rows in %s", rowCount(req), elapsed)
	} else {
		s.logger.Warn("analysis failed: %s", resp.Error)
	}

	if s.runs == nil || req == nil {
		return outcome
	}
	run, err := models.NewAnalysisRun(req, resp, elapsed)
	if err != nil {
		s.logger.Warn("cannot fingerprint request: %v", err)
		return outcome
	}
	if err := s.runs.Save(ctx, run); err != nil {
		s.logger.Error("failed to store run %s: %v", run.ID, err)
		return outcome
	}
	s.logger.Debug("stored run %s (fingerprint %s)", run.ID, run.Fingerprint.Short())
	outcome.RunID = run.ID
	return outcome
}

func rowCount(req *anomaly.Request) int {
	if req == nil {
		return 0
	}
	return len(req.Data)
}

// GetRun loads a stored run.
func (s *UnusualCaseService) GetRun(ctx context.Context, id string) (*models.AnalysisRun, error) {
	runID, err := core.ParseRunID(id)
	if err != nil {
		return nil, errors.InvalidInput(err.Error())
	}
	if s.runs == nil {
		return nil, errors.NotFound("run " + runID.String())
	}
	run, err := s.runs.Get(ctx, runID)
	if err != nil {
		return nil, errors.Wrapf(err, "load run %s", runID)
	}
	return run, nil
}

// ListRuns returns summaries of the most recent runs. Without persistence the list is empty.
func (s *UnusualCaseService) ListRuns(ctx context.Context, limit int) ([]models.RunSummary, error) {
	summaries := []models.RunSummary{}
	if s.runs == nil {
		return summaries, nil
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	for _, r := range runs {
		summaries = append(summaries, r.Summary())
	}
	return summaries, nil
}

// ExportRun writes the report tables of a successful run as a workbook.
func (s *UnusualCaseService) ExportRun(ctx context.Context, id string, w io.Writer) error {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return err
	}
	result := run.Response.Result
	if !run.Response.OK() || result == nil {
		return errors.InvalidInput("run " + id + " has no report: " + run.ErrorMessage())
	}
	return errors.Wrap(s.exporter.WriteReport(w, result.Tables), "export report")
}
