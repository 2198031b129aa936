// Package unusual implements the unusual-case detection pipeline: missing-value
// preprocessing, peer-group clustering, anomaly scoring and case selection.
package unusual

import (
	"context"
	"fmt"
	"time"

	"peerscan/adapters/stats/tables"
	"peerscan/domain/anomaly"
	"peerscan/internal"
)

// Analysis holds the intermediate products of one run.
type Analysis struct {
	Dataset *anomaly.ProcessedDataset
	Model   *anomaly.PeerGroupModel
	Records []anomaly.AnomalyRecord
	Cases   []anomaly.UnusualCase
}

// Engine chains the pipeline stages. It keeps no state between runs.
type Engine struct {
	clusterer *Clusterer
	logger    *internal.Logger
}

// NewEngine creates an engine. A nil policy selects DefaultPeerGroups.
func NewEngine(policy PeerGroupPolicy, logger *internal.Logger) *Engine {
	logger = logger.WithComponent("unusual")
	return &Engine{
		clusterer: NewClusterer(policy, logger),
		logger:    logger,
	}
}

// Analyze runs preprocessing, clustering, scoring and selection.
func (e *Engine) Analyze(ctx context.Context, req *anomaly.Request) (*Analysis, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts := req.Options

	ds, err := Preprocess(req.Data, req.AnalysisVariables, opts.MissingValuesOption)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("preprocessed %d of %d rows (missing=%q)", ds.Len(), len(req.Data), opts.MissingValuesOption)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	model, err := e.clusterer.Cluster(ds.Rows, req.AnalysisVariables, opts.MinPeerGroups, opts.MaxPeerGroups)
	if err != nil {
		return nil, fmt.Errorf("peer grouping: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := Score(ds.Rows, model, req.AnalysisVariables)
	cases := SelectCases(records, opts)
	e.logger.Debug("selected %d unusual cases of %d", len(cases), len(records))

	return &Analysis{Dataset: ds, Model: model, Records: records, Cases: cases}, nil
}

// Run executes the full pipeline and builds the report tables.
func (e *Engine) Run(ctx context.Context, req *anomaly.Request) (*anomaly.Result, error) {
	start := time.Now()
	analysis, err := e.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	result, err := tables.Build(tables.Input{
		Raw:            req.Data,
		Dataset:        analysis.Dataset,
		Model:          analysis.Model,
		Records:        analysis.Records,
		Cases:          analysis.Cases,
		Variables:      req.AnalysisVariables,
		CaseIdentifier: req.CaseIdentifierVariable,
		Options:        req.Options,
	})
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	e.logger.Debug("pipeline finished in %s", time.Since(start))
	return result, nil
}
