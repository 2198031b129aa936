package unusual

import (
	"math"
	"testing"

	"peerscan/domain/anomaly"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func oneVar() []anomaly.AnalysisVariable {
	return []anomaly.AnalysisVariable{{ColumnIndex: 0, Name: "x"}}
}

func TestCluster_TwoObviousGroups(t *testing.T) {
	rows := [][]float64{{1, 1}, {2, 1}, {1, 2}, {10, 10}, {11, 11}}
	vars := []anomaly.AnalysisVariable{{ColumnIndex: 0, Name: "a"}, {ColumnIndex: 1, Name: "b"}}

	model, err := NewClusterer(nil, nil).Cluster(rows, vars, 1, 15)
	require.NoError(t, err)

	assert.Equal(t, 2, model.K)
	assert.Equal(t, []int{1, 1, 1, 2, 2}, model.Assignments)
	assert.Equal(t, []int{3, 2}, model.Sizes)
	assert.Equal(t, []float64{60, 40}, model.Percentages)
	assert.True(t, model.Converged)

	assert.InDelta(t, 4.0/3.0, model.Means[0][0], 1e-12)
	assert.InDelta(t, 10.5, model.Means[1][1], 1e-12)
	// Population standard deviation of {1, 2, 1}.
	assert.InDelta(t, math.Sqrt(2.0/9.0), model.StdDevs[0][0], 1e-12)
	assert.InDelta(t, 0.5, model.StdDevs[1][0], 1e-12)
}

// A singleton group measures spread over the whole column around its own mean.
func TestCluster_SingletonStdDevUsesWholeColumn(t *testing.T) {
	rows := [][]float64{{0}, {1}, {2}, {100}}

	model, err := NewClusterer(nil, nil).Cluster(rows, oneVar(), 1, 15)
	require.NoError(t, err)

	require.Equal(t, []int{3, 1}, model.Sizes)
	assert.Equal(t, 100.0, model.Means[1][0])

	want := math.Sqrt((100*100 + 99*99 + 98*98 + 0) / 4.0)
	assert.InDelta(t, want, model.StdDevs[1][0], 1e-9)
	assert.InDelta(t, math.Sqrt(2.0/3.0), model.StdDevs[0][0], 1e-12)
}

func TestCluster_SeedingIsDeterministic(t *testing.T) {
	columns := [][]float64{{0, 10, 5}, {-2, 2, 0}}
	centroids := seedCentroids(columns, 3)
	assert.Equal(t, [][]float64{{0, -2}, {5, 0}, {10, 2}}, centroids)

	single := seedCentroids(columns, 1)
	assert.Equal(t, [][]float64{{0, -2}}, single)
}

func TestCluster_IdenticalRowsLeaveEmptyGroup(t *testing.T) {
	rows := [][]float64{{3}, {3}, {3}}

	model, err := NewClusterer(nil, nil).Cluster(rows, oneVar(), 1, 15)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 1, 1}, model.Assignments)
	assert.Equal(t, []int{3, 0}, model.Sizes)
	assert.Equal(t, []float64{100, 0}, model.Percentages)
	assert.Equal(t, 3.0, model.Means[1][0])
	assert.Equal(t, 0.0, model.StdDevs[1][0])
}

func TestCluster_IterationCap(t *testing.T) {
	rows := [][]float64{{0}, {1}, {2}, {3}, {4}, {20}}

	model, err := NewClusterer(nil, nil).WithMaxIterations(1).Cluster(rows, oneVar(), 1, 15)
	require.NoError(t, err)
	assert.Equal(t, 1, model.Iterations)
	assert.False(t, model.Converged)
	assert.Equal(t, len(rows), model.Total())
}

func TestCluster_CustomPolicy(t *testing.T) {
	rows := [][]float64{{0}, {5}, {10}, {50}}
	model, err := NewClusterer(FixedPeerGroups{K: 3}, nil).Cluster(rows, oneVar(), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, model.K)
	assert.Len(t, model.Sizes, 3)
	assert.Equal(t, len(rows), model.Total())

	assert.Equal(t, 1, FixedPeerGroups{K: 0}.PeerGroups(rows, 0, 0))
}

func TestCluster_NoRows(t *testing.T) {
	_, err := NewClusterer(nil, nil).Cluster(nil, oneVar(), 1, 15)
	assert.Error(t, err)
}

func TestCluster_RowWidthMismatch(t *testing.T) {
	_, err := NewClusterer(nil, nil).Cluster([][]float64{{1, 2}}, oneVar(), 1, 15)
	assert.Error(t, err)
}
