package tables

import (
	"errors"
	"testing"

	"peerscan/domain/anomaly"
	"peerscan/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureInput is a hand-built two-group run over three cases.
func fixtureInput() Input {
	raw := []anomaly.RawRow{
		{anomaly.Text("a"), anomaly.Number(1), anomaly.Number(5)},
		{anomaly.Text("b"), anomaly.Number(3), anomaly.Number(7)},
		{anomaly.Text("c"), anomaly.Number(20), anomaly.Number(1)},
	}
	return Input{
		Raw: raw,
		Dataset: &anomaly.ProcessedDataset{
			Rows:            [][]float64{{1, 5}, {3, 7}, {20, 1}},
			OriginalIndices: []int{0, 1, 2},
			VariableMeans:   []float64{8, 13.0 / 3.0},
		},
		Model: &anomaly.PeerGroupModel{
			K:           2,
			Assignments: []int{1, 1, 2},
			Sizes:       []int{2, 1},
			Percentages: []float64{66.7, 33.3},
			Means:       [][]float64{{2, 6}, {20, 1}},
			StdDevs:     [][]float64{{1, 1}, {10, 3}},
		},
		Records: []anomaly.AnomalyRecord{
			{Index: 1.41, Reasons: []anomaly.ReasonEntry{{VariableIndex: 0, Impact: 1, Value: 1, Norm: 2}, {VariableIndex: 1, Impact: 1, Value: 5, Norm: 6}}},
			{Index: 1.41, Reasons: []anomaly.ReasonEntry{{VariableIndex: 1, Impact: 1.23456, Value: 7, Norm: 6}, {VariableIndex: 0, Impact: 1, Value: 3, Norm: 2}}},
			{Index: 0, Reasons: []anomaly.ReasonEntry{{VariableIndex: 0}, {VariableIndex: 1}}},
		},
		Cases: []anomaly.UnusualCase{
			{RowIndex: 0, AnomalyIndex: 1.41, Reasons: []anomaly.ReasonEntry{{VariableIndex: 0, Impact: 1, Value: 1, Norm: 2}}},
			{RowIndex: 1, AnomalyIndex: 1.41, Reasons: []anomaly.ReasonEntry{{VariableIndex: 1, Impact: 1.23456, Value: 7, Norm: 6}}},
		},
		Variables:      []anomaly.AnalysisVariable{{ColumnIndex: 1, Name: "x"}, {ColumnIndex: 2, Name: "y"}},
		CaseIdentifier: &anomaly.AnalysisVariable{ColumnIndex: 0, Name: ""},
		Options:        anomaly.DefaultOptions(),
	}
}

func num(t *testing.T, v interface{ Float() (float64, bool) }) float64 {
	t.Helper()
	f, ok := v.Float()
	require.True(t, ok, "expected a number")
	return f
}

func TestBuild_CaseProcessingSummary(t *testing.T) {
	result, err := Build(fixtureInput())
	require.NoError(t, err)
	require.Len(t, result.Tables, 7)

	tbl := result.Tables[0]
	assert.Equal(t, []string{"Peer ID", "N", "% of Combined", "% of Total"}, tbl.LeafHeaders())
	require.Len(t, tbl.Rows, 4)
	assert.Equal(t, 66.7, num(t, tbl.Cell(0, "% of Combined")))
	assert.Equal(t, "Total", tbl.Cell(3, "Peer ID").String())
	assert.Equal(t, 3.0, num(t, tbl.Cell(3, "N")))
	assert.Equal(t, 100.0, num(t, tbl.Cell(3, "% of Total")))
}

func TestBuild_CaseListsUseIdentifier(t *testing.T) {
	result, err := Build(fixtureInput())
	require.NoError(t, err)

	index := result.Tables[1]
	assert.Equal(t, []string{"Case", "Case ID", "Anomaly Index"}, index.LeafHeaders())
	assert.Equal(t, "b", index.Cell(1, "Case ID").String())

	peers := result.Tables[2]
	assert.Equal(t, 1.0, num(t, peers.Cell(0, "Peer ID")))
	assert.Equal(t, 2.0, num(t, peers.Cell(0, "Peer Size")))
	assert.Equal(t, 66.7, num(t, peers.Cell(0, "Peer Size Percent")))
}

func TestBuild_IdentifierNameClashesWithFixedColumn(t *testing.T) {
	for _, name := range []string{"Case", "Anomaly Index", "Peer ID", "Variable Impact"} {
		t.Run(name, func(t *testing.T) {
			in := fixtureInput()
			in.CaseIdentifier = &anomaly.AnalysisVariable{ColumnIndex: 0, Name: name}
			result, err := Build(in)
			require.NoError(t, err)

			label := name + " (ID)"
			for _, tbl := range result.Tables[1:4] {
				leaves := tbl.LeafHeaders()
				assert.Equal(t, "Case", leaves[0], tbl.Title)
				assert.Equal(t, label, leaves[1], tbl.Title)
				seen := map[string]bool{}
				for _, h := range leaves {
					assert.False(t, seen[h], "duplicate header %q in %s", h, tbl.Title)
					seen[h] = true
				}
				for i, row := range tbl.Rows {
					assert.Equal(t, len(leaves), row.Len(), tbl.Title)
					assert.Equal(t, float64(in.Cases[i].RowIndex+1), num(t, tbl.Cell(i, "Case")), tbl.Title)
					assert.Equal(t, []string{"a", "b"}[i], tbl.Cell(i, label).String(), tbl.Title)
				}
			}
		})
	}
}

func TestBuild_ReasonListRounds(t *testing.T) {
	result, err := Build(fixtureInput())
	require.NoError(t, err)

	tbl := result.Tables[3]
	assert.True(t, tbl.HasGroups())
	assert.Equal(t, "Reason: 1", tbl.ColumnHeaders[len(tbl.ColumnHeaders)-1].Header)
	assert.Equal(t, "y", tbl.Cell(1, "Reason Variable").String())
	assert.Equal(t, 1.235, num(t, tbl.Cell(1, "Variable Impact")))
}

func TestBuild_ScaleVariableNorms(t *testing.T) {
	result, err := Build(fixtureInput())
	require.NoError(t, err)

	tbl := result.Tables[4]
	assert.Equal(t, []string{"Variable", "Statistic", "1", "2", "Combined"}, tbl.LeafHeaders())
	require.Len(t, tbl.Rows, 4)

	assert.Equal(t, "Mean", tbl.Cell(0, "Statistic").String())
	assert.Equal(t, 8.0, num(t, tbl.Cell(0, "Combined")))
	assert.Equal(t, ".", tbl.Cell(1, "2").String())
	// sqrt((2*1 + 1*100) / 3)
	assert.Equal(t, 5.831, num(t, tbl.Cell(1, "Combined")))
}

func TestBuild_IndexSummary(t *testing.T) {
	result, err := Build(fixtureInput())
	require.NoError(t, err)

	tbl := result.Tables[5]
	require.Len(t, tbl.Rows, 2)
	assert.Equal(t, 2.0, num(t, tbl.Cell(0, "N")))
	assert.Equal(t, 1.41, num(t, tbl.Cell(0, "Mean")))
	assert.Equal(t, 0.0, num(t, tbl.Cell(0, "Std. Deviation")))
	assert.Contains(t, tbl.Cell(1, "").String(), "highest 5%")
}

func TestBuild_IndexSummarySingleCase(t *testing.T) {
	in := fixtureInput()
	in.Cases = in.Cases[:1]
	result, err := Build(in)
	require.NoError(t, err)

	tbl := result.Tables[5]
	assert.Equal(t, 1.0, num(t, tbl.Cell(0, "N")))
	assert.True(t, tbl.Cell(0, "Std. Deviation").IsNull())
}

func TestBuild_ReasonSummary(t *testing.T) {
	result, err := Build(fixtureInput())
	require.NoError(t, err)

	tbl := result.Tables[6]
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, "x", tbl.Cell(0, "Variable").String())
	assert.Equal(t, 50.0, num(t, tbl.Cell(0, "Percent")))
	assert.True(t, tbl.Cell(0, "Std. Deviation").IsNull())
	assert.Equal(t, "Overall", tbl.Cell(2, "Variable").String())
	assert.Equal(t, 2.0, num(t, tbl.Cell(2, "Frequency")))
	assert.Equal(t, 1.235, num(t, tbl.Cell(2, "Maximum")))
}

func TestBuild_NoCases(t *testing.T) {
	in := fixtureInput()
	in.Cases = nil
	in.CaseIdentifier = nil

	result, err := Build(in)
	require.NoError(t, err)
	assert.Empty(t, result.Tables[1].Rows)
	assert.Equal(t, []string{"Case", "Anomaly Index"}, result.Tables[1].LeafHeaders())

	overall := result.Tables[6]
	require.Len(t, overall.Rows, 1)
	assert.True(t, overall.Cell(0, "Percent").IsNull())
}

func TestBuild_RejectsInconsistentInput(t *testing.T) {
	in := fixtureInput()
	in.Records = in.Records[:1]
	_, err := Build(in)
	assert.True(t, errors.Is(err, core.ErrInvalidInput))

	in = fixtureInput()
	in.Cases[0].RowIndex = 9
	_, err = Build(in)
	assert.Error(t, err)

	_, err = Build(Input{})
	assert.Error(t, err)
}

func TestSelectionNote(t *testing.T) {
	opts := anomaly.DefaultOptions()
	opts.IdentificationCriteria = anomaly.ByFixedNumber
	opts.FixedNumber = anomaly.FlexIntOf(7)
	opts.UseMinimumValue = false
	assert.Equal(t, "The 7 cases with the highest anomaly index values are identified as unusual.", SelectionNote(opts))

	opts = anomaly.DefaultOptions()
	opts.CutoffValue = 2.5
	assert.Contains(t, SelectionNote(opts), "highest 5%")
	assert.Contains(t, SelectionNote(opts), "at least 2.5")
}
