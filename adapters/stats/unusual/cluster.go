package unusual

import (
	"fmt"
	"math"

	"peerscan/domain/anomaly"
	"peerscan/domain/core"
	"peerscan/internal"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultMaxIterations caps Lloyd iterations. Hitting the cap is not an error.
const DefaultMaxIterations = 100

// PeerGroupPolicy decides how many peer groups to form.
type PeerGroupPolicy interface {
	PeerGroups(rows [][]float64, minPeerGroups, maxPeerGroups int) int
}

// FixedPeerGroups always forms K groups and ignores the caller's bounds.
type FixedPeerGroups struct {
	K int
}

// DefaultPeerGroups is the policy the engine ships with.
var DefaultPeerGroups PeerGroupPolicy = FixedPeerGroups{K: 2}

func (p FixedPeerGroups) PeerGroups(_ [][]float64, _, _ int) int {
	if p.K < 1 {
		return 1
	}
	return p.K
}

// Clusterer partitions processed rows into peer groups with k-means.
type Clusterer struct {
	policy        PeerGroupPolicy
	maxIterations int
	logger        *internal.Logger
}

// NewClusterer creates a clusterer. A nil policy selects DefaultPeerGroups.
func NewClusterer(policy PeerGroupPolicy, logger *internal.Logger) *Clusterer {
	if policy == nil {
		policy = DefaultPeerGroups
	}
	return &Clusterer{
		policy:        policy,
		maxIterations: DefaultMaxIterations,
		logger:        logger,
	}
}

// WithMaxIterations overrides the iteration cap.
func (c *Clusterer) WithMaxIterations(n int) *Clusterer {
	if n > 0 {
		c.maxIterations = n
	}
	return c
}

// Cluster runs k-means over rows and summarizes each peer group.
func (c *Clusterer) Cluster(rows [][]float64, vars []anomaly.AnalysisVariable, minPeerGroups, maxPeerGroups int) (*anomaly.PeerGroupModel, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("%w: no cases left to cluster", core.ErrInsufficientData)
	}
	dims := len(vars)
	for i, row := range rows {
		if len(row) != dims {
			return nil, fmt.Errorf("%w: row %d has %d values, expected %d", core.ErrInvalidInput, i, len(row), dims)
		}
	}

	k := c.policy.PeerGroups(rows, minPeerGroups, maxPeerGroups)
	columns := transpose(rows, dims)
	centroids := seedCentroids(columns, k)

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	iterations, converged := 0, false
	for iterations < c.maxIterations {
		iterations++
		changed := false
		for i, row := range rows {
			if nearest := nearestCentroid(row, centroids); nearest != labels[i] {
				labels[i] = nearest
				changed = true
			}
		}
		if !changed {
			converged = true
			break
		}
		centroids = recomputeCentroids(rows, labels, centroids)
	}
	c.logger.Debug("k-means k=%d n=%d iterations=%d converged=%v", k, n, iterations, converged)

	model := &anomaly.PeerGroupModel{
		K:           k,
		Assignments: make([]int, n),
		Sizes:       make([]int, k),
		Percentages: make([]float64, k),
		Means:       make([][]float64, k),
		StdDevs:     make([][]float64, k),
		Iterations:  iterations,
		Converged:   converged,
	}
	members := make([][]int, k)
	for i, label := range labels {
		model.Assignments[i] = label + 1
		model.Sizes[label]++
		members[label] = append(members[label], i)
	}

	for g := 0; g < k; g++ {
		model.Percentages[g] = core.Round(float64(model.Sizes[g])/float64(n)*100, 1)
		model.Means[g] = make([]float64, dims)
		model.StdDevs[g] = make([]float64, dims)

		values := make([]float64, len(members[g]))
		for j := 0; j < dims; j++ {
			for m, idx := range members[g] {
				values[m] = rows[idx][j]
			}
			switch len(values) {
			case 0:
				model.Means[g][j] = centroids[g][j]
			case 1:
				model.Means[g][j] = values[0]
			default:
				model.Means[g][j], model.StdDevs[g][j] = stat.PopMeanStdDev(values, nil)
				continue
			}
			// Too few members for a dispersion of their own: measure the
			// whole column's spread around this group's mean instead.
			model.StdDevs[g][j] = spreadAround(columns[j], model.Means[g][j])
		}
	}

	return model, nil
}

func transpose(rows [][]float64, dims int) [][]float64 {
	columns := make([][]float64, dims)
	for j := range columns {
		columns[j] = make([]float64, len(rows))
		for i, row := range rows {
			columns[j][i] = row[j]
		}
	}
	return columns
}

// seedCentroids spreads the k initial centroids evenly across each
// dimension's min-max range.
func seedCentroids(columns [][]float64, k int) [][]float64 {
	denom := float64(k - 1)
	if k == 1 {
		denom = 1
	}
	centroids := make([][]float64, k)
	for g := range centroids {
		centroids[g] = make([]float64, len(columns))
		for j, col := range columns {
			lo, hi := floats.Min(col), floats.Max(col)
			centroids[g][j] = lo + (hi-lo)*float64(g)/denom
		}
	}
	return centroids
}

// nearestCentroid returns the index of the closest centroid; ties go to the lower index.
func nearestCentroid(row []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for g, centroid := range centroids {
		if d := floats.Distance(row, centroid, 2); d < bestDist {
			best, bestDist = g, d
		}
	}
	return best
}

// recomputeCentroids moves each centroid to the mean of its members. A group
// that lost all members keeps its previous centroid.
func recomputeCentroids(rows [][]float64, labels []int, prev [][]float64) [][]float64 {
	k := len(prev)
	sums := make([][]float64, k)
	counts := make([]int, k)
	for g := range sums {
		sums[g] = make([]float64, len(prev[g]))
	}
	for i, row := range rows {
		floats.Add(sums[labels[i]], row)
		counts[labels[i]]++
	}
	for g := range sums {
		if counts[g] == 0 {
			copy(sums[g], prev[g])
			continue
		}
		floats.Scale(1/float64(counts[g]), sums[g])
	}
	return sums
}

func spreadAround(column []float64, center float64) float64 {
	if len(column) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range column {
		d := x - center
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(column)))
}
