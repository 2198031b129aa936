package unusual

import (
	"math"
	"sort"

	"peerscan/domain/anomaly"
	"peerscan/domain/core"
)

// Score computes the anomaly index and ranked reasons of every processed row.
//
// Each variable contributes the squared deviation from the row's peer-group
// mean, scaled by the group's standard deviation (1 when that is zero). The
// index is the square root of the summed contributions, rounded to 2 decimals.
func Score(rows [][]float64, model *anomaly.PeerGroupModel, vars []anomaly.AnalysisVariable) []anomaly.AnomalyRecord {
	records := make([]anomaly.AnomalyRecord, len(rows))
	for i, row := range rows {
		g := model.PeerOf(i) - 1
		means, stdDevs := model.Means[g], model.StdDevs[g]

		reasons := make([]anomaly.ReasonEntry, len(vars))
		total := 0.0
		for j, v := range vars {
			sd := stdDevs[j]
			if sd == 0 {
				sd = 1
			}
			deviation := (row[j] - means[j]) / sd
			impact := deviation * deviation
			total += impact
			reasons[j] = anomaly.ReasonEntry{
				VariableIndex: j,
				ColumnIndex:   v.ColumnIndex,
				Impact:        impact,
				Value:         row[j],
				Norm:          means[j],
			}
		}
		sort.SliceStable(reasons, func(a, b int) bool {
			return reasons[a].Impact > reasons[b].Impact
		})

		records[i] = anomaly.AnomalyRecord{
			Index:   core.Round(math.Sqrt(total), 2),
			Reasons: reasons,
		}
	}
	return records
}
