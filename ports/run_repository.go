package ports

import (
	"context"

	"peerscan/domain/core"
	"peerscan/models"
)

// RunRepository persists analysis runs
type RunRepository interface {
	// Save stores a finished run
	Save(ctx context.Context, run *models.AnalysisRun) error

	// Get loads a run with its stored response; unknown IDs yield core.ErrRunNotFound
	Get(ctx context.Context, id core.RunID) (*models.AnalysisRun, error)

	// List returns the most recent runs first, at most limit when limit > 0
	List(ctx context.Context, limit int) ([]*models.AnalysisRun, error)
}
