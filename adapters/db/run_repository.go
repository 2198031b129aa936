// Package db stores analysis runs in Postgres or SQLite through sqlx.
package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"peerscan/domain/core"
	"peerscan/internal/errors"
	"peerscan/models"
	"peerscan/ports"

	"github.com/jmoiron/sqlx"
)

const runColumns = `id, status, fingerprint, row_count, case_count, unusual_count, error_message, duration_ms, response, created_at`

// RunRepositoryImpl implements RunRepository over sqlx
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a run repository. Queries are rebound to the
// placeholder style of the connection's driver.
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

// Save stores a finished run
func (r *RunRepositoryImpl) Save(ctx context.Context, run *models.AnalysisRun) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO analysis_runs (`+runColumns+`)
		VALUES (:id, :status, :fingerprint, :row_count, :case_count, :unusual_count, :error_message, :duration_ms, :response, :created_at)
	`, run)
	if err != nil {
		return errors.DatabaseError("failed to save run "+run.ID.String(), err)
	}
	return nil
}

// Get loads a run by ID
func (r *RunRepositoryImpl) Get(ctx context.Context, id core.RunID) (*models.AnalysisRun, error) {
	var run models.AnalysisRun
	err := r.db.GetContext(ctx, &run, r.db.Rebind(`
		SELECT `+runColumns+`
		FROM analysis_runs
		WHERE id = ?
	`), id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", core.ErrRunNotFound, id)
	}
	if err != nil {
		return nil, errors.DatabaseError("failed to load run "+id.String(), err)
	}
	return &run, nil
}

// List returns the most recent runs first
func (r *RunRepositoryImpl) List(ctx context.Context, limit int) ([]*models.AnalysisRun, error) {
	query := `
		SELECT ` + runColumns + `
		FROM analysis_runs
		ORDER BY created_at DESC, id DESC
	`
	var args []interface{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	runs := []*models.AnalysisRun{}
	if err := r.db.SelectContext(ctx, &runs, r.db.Rebind(query), args...); err != nil {
		return nil, errors.DatabaseError("failed to list runs", err)
	}
	return runs, nil
}
