package testkit

import (
	"fmt"
	"math/rand"
	"sort"

	"peerscan/domain/anomaly"
)

// CaseGeneratorConfig configures the synthetic dataset generator
type CaseGeneratorConfig struct {
	Rows        int     `json:"rows"`
	Variables   int     `json:"variables"`
	PeerGroups  int     `json:"peer_groups"`
	GroupSpread float64 `json:"group_spread"` // distance between group centres
	Noise       float64 `json:"noise"`        // within-group standard deviation
	Outliers    int     `json:"outliers"`
	OutlierLift float64 `json:"outlier_lift"` // shift applied to one variable of each outlier
	MissingRate float64 `json:"missing_rate"`
	Seed        int64   `json:"seed"`
}

// DefaultCaseConfig returns sensible defaults for synthetic case data
func DefaultCaseConfig() CaseGeneratorConfig {
	return CaseGeneratorConfig{
		Rows:        200,
		Variables:   3,
		PeerGroups:  2,
		GroupSpread: 50,
		Noise:       2,
		Outliers:    5,
		OutlierLift: 25,
		MissingRate: 0,
		Seed:        42,
	}
}

// CaseDataset is a generated table plus the ground truth needed by tests.
type CaseDataset struct {
	Headers        []string
	Rows           []anomaly.RawRow
	Variables      []anomaly.AnalysisVariable
	CaseIdentifier anomaly.AnalysisVariable
	OutlierRows    []int // row positions with a planted anomaly, ascending
	Groups         []int // generating group of each row, 0-based
}

// CaseDataGenerator generates peer-grouped numeric data with planted outliers
type CaseDataGenerator struct {
	config CaseGeneratorConfig
	rng    *rand.Rand
}

// NewCaseDataGenerator creates a new generator
func NewCaseDataGenerator(config CaseGeneratorConfig) *CaseDataGenerator {
	return &CaseDataGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// Generate builds the dataset. Column 0 holds a case label, columns 1..n the variables.
func (g *CaseDataGenerator) Generate() (*CaseDataset, error) {
	cfg := g.config
	if cfg.Rows <= 0 || cfg.Variables <= 0 || cfg.PeerGroups <= 0 {
		return nil, fmt.Errorf("rows, variables and peer groups must be positive")
	}
	if cfg.Outliers > cfg.Rows {
		return nil, fmt.Errorf("cannot plant %d outliers in %d rows", cfg.Outliers, cfg.Rows)
	}

	ds := &CaseDataset{
		Headers:        []string{"case_id"},
		CaseIdentifier: anomaly.AnalysisVariable{ColumnIndex: 0, Name: "case_id"},
		Groups:         make([]int, cfg.Rows),
	}
	for j := 0; j < cfg.Variables; j++ {
		name := fmt.Sprintf("v%d", j+1)
		ds.Headers = append(ds.Headers, name)
		ds.Variables = append(ds.Variables, anomaly.AnalysisVariable{ColumnIndex: j + 1, Name: name})
	}

	outliers := g.rng.Perm(cfg.Rows)[:cfg.Outliers]
	sort.Ints(outliers)
	planted := make(map[int]bool, len(outliers))
	for _, r := range outliers {
		planted[r] = true
	}
	ds.OutlierRows = outliers

	for i := 0; i < cfg.Rows; i++ {
		group := i % cfg.PeerGroups
		ds.Groups[i] = group

		values := make([]float64, cfg.Variables)
		for j := range values {
			values[j] = float64(group)*cfg.GroupSpread + g.rng.NormFloat64()*cfg.Noise
		}
		if planted[i] {
			values[g.rng.Intn(cfg.Variables)] += cfg.OutlierLift
		}

		row := make(anomaly.RawRow, 0, cfg.Variables+1)
		row = append(row, anomaly.Text(fmt.Sprintf("C%04d", i+1)))
		for _, v := range values {
			if !planted[i] && cfg.MissingRate > 0 && g.rng.Float64() < cfg.MissingRate {
				row = append(row, anomaly.Text(""))
				continue
			}
			row = append(row, anomaly.Number(v))
		}
		ds.Rows = append(ds.Rows, row)
	}

	return ds, nil
}

// Request wraps the dataset into a worker request with the given options.
func (ds *CaseDataset) Request(opts anomaly.Options) *anomaly.Request {
	id := ds.CaseIdentifier
	return &anomaly.Request{
		Data:                   ds.Rows,
		AnalysisVariables:      ds.Variables,
		CaseIdentifierVariable: &id,
		Options:                opts,
	}
}
