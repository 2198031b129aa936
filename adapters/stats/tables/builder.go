// Package tables assembles the statistical report of an unusual-case run.
package tables

import (
	"fmt"
	"math"
	"strconv"

	"peerscan/domain/anomaly"
	"peerscan/domain/core"
	"peerscan/domain/report"

	"github.com/montanaflynn/stats"
)

// Table titles, in report order.
const (
	TitleCaseProcessing   = "Case Processing Summary"
	TitleAnomalyIndexList = "Anomaly Case Index List"
	TitlePeerIDList       = "Anomaly Case Peer ID List"
	TitleReasonList       = "Anomaly Case Reason List"
	TitleScaleNorms       = "Scale Variable Norms"
	TitleIndexSummary     = "Anomaly Index Summary"
	TitleReasonSummary    = "Reason 1"
)

// Column labels shared across tables.
const (
	colCase           = "Case"
	colPeerID         = "Peer ID"
	colN              = "N"
	colPctCombined    = "% of Combined"
	colPctTotal       = "% of Total"
	colAnomalyIndex   = "Anomaly Index"
	colPeerSize       = "Peer Size"
	colPeerSizePct    = "Peer Size Percent"
	colReasonVariable = "Reason Variable"
	colImpact         = "Variable Impact"
	colValue          = "Variable Value"
	colNorm           = "Variable Norm"
	colVariable       = "Variable"
	colStatistic      = "Statistic"
	colCombined       = "Combined"
	colFrequency      = "Frequency"
	colPercent        = "Percent"
	colMinimum        = "Minimum"
	colMaximum        = "Maximum"
	colMean           = "Mean"
	colStdDev         = "Std. Deviation"
	colLabel          = ""
)

const notComputed = "."

// Input gathers everything the report needs from the earlier stages.
type Input struct {
	Raw            []anomaly.RawRow
	Dataset        *anomaly.ProcessedDataset
	Model          *anomaly.PeerGroupModel
	Records        []anomaly.AnomalyRecord
	Cases          []anomaly.UnusualCase
	Variables      []anomaly.AnalysisVariable
	CaseIdentifier *anomaly.AnalysisVariable
	Options        anomaly.Options
}

// Build produces the seven report tables in their fixed order.
func Build(in Input) (*anomaly.Result, error) {
	if err := in.check(); err != nil {
		return nil, err
	}
	return &anomaly.Result{Tables: []*report.Table{
		caseProcessingSummary(in),
		anomalyIndexList(in),
		peerIDList(in),
		reasonList(in),
		scaleVariableNorms(in),
		anomalyIndexSummary(in),
		reasonSummary(in),
	}}, nil
}

func (in Input) check() error {
	if in.Dataset == nil || in.Model == nil {
		return fmt.Errorf("%w: report needs a dataset and a peer group model", core.ErrInvalidInput)
	}
	n := in.Dataset.Len()
	if len(in.Model.Assignments) != n || len(in.Records) != n {
		return fmt.Errorf("%w: %d rows, %d assignments, %d records", core.ErrInvalidInput,
			n, len(in.Model.Assignments), len(in.Records))
	}
	for _, c := range in.Cases {
		if c.RowIndex < 0 || c.RowIndex >= n {
			return fmt.Errorf("%w: unusual case row %d out of range", core.ErrInvalidInput, c.RowIndex)
		}
	}
	return nil
}

// caseHeaders returns the leading columns shared by the per-case tables.
func (in Input) caseHeaders() []report.ColumnHeader {
	headers := []report.ColumnHeader{report.Col(colCase)}
	if in.CaseIdentifier != nil {
		headers = append(headers, report.Col(in.identifierLabel()))
	}
	return headers
}

// caseTableLabels are the leaf columns the per-case tables set next to the identifier.
var caseTableLabels = map[string]bool{
	colCase: true, colAnomalyIndex: true,
	colPeerID: true, colPeerSize: true, colPeerSizePct: true,
	colReasonVariable: true, colImpact: true, colValue: true, colNorm: true,
}

// identifierLabel names the identifier column. A name that collides with a
// fixed column gets an " (ID)" suffix, then a counter, until it is unique.
func (in Input) identifierLabel() string {
	name := in.CaseIdentifier.Name
	if name == "" {
		name = "Case ID"
	}
	if !caseTableLabels[name] {
		return name
	}
	label := name + " (ID)"
	for n := 2; caseTableLabels[label]; n++ {
		label = name + " (ID " + strconv.Itoa(n) + ")"
	}
	return label
}

// caseRow starts a row with the case number and the optional identifier value.
func (in Input) caseRow(rowIndex int) *report.Row {
	row := report.NewRow().Set(colCase, report.Int(in.Dataset.CaseNumber(rowIndex)))
	if in.CaseIdentifier != nil {
		row.Set(in.identifierLabel(), identifierValue(in.Raw, in.Dataset.OriginalIndices[rowIndex], in.CaseIdentifier.ColumnIndex))
	}
	return row
}

func identifierValue(raw []anomaly.RawRow, original, column int) report.Value {
	if original < 0 || original >= len(raw) {
		return report.Null()
	}
	cell := raw[original].At(column)
	switch {
	case cell.IsMissing():
		return report.Null()
	case cell.Kind() == anomaly.CellNumber:
		f, _ := cell.Float()
		return report.Num(f)
	default:
		return report.Str(cell.String())
	}
}

func (in Input) variableName(j int) string {
	if j >= 0 && j < len(in.Variables) && in.Variables[j].Name != "" {
		return in.Variables[j].Name
	}
	return "Variable " + strconv.Itoa(j+1)
}

func caseProcessingSummary(in Input) *report.Table {
	t := report.NewTable(TitleCaseProcessing,
		report.Col(colPeerID), report.Col(colN), report.Col(colPctCombined), report.Col(colPctTotal))
	for g, size := range in.Model.Sizes {
		pct := in.Model.Percentages[g]
		t.Append(report.NewRow().
			Set(colPeerID, report.Str(strconv.Itoa(g+1))).
			Set(colN, report.Int(size)).
			Set(colPctCombined, report.Num(pct)).
			Set(colPctTotal, report.Num(pct)))
	}
	total := in.Model.Total()
	for _, label := range []string{"Combined", "Total"} {
		t.Append(report.NewRow().
			Set(colPeerID, report.Str(label)).
			Set(colN, report.Int(total)).
			Set(colPctCombined, report.Num(100)).
			Set(colPctTotal, report.Num(100)))
	}
	return t
}

func anomalyIndexList(in Input) *report.Table {
	t := report.NewTable(TitleAnomalyIndexList, append(in.caseHeaders(), report.Col(colAnomalyIndex))...)
	for _, c := range in.Cases {
		t.Append(in.caseRow(c.RowIndex).Set(colAnomalyIndex, report.Num(c.AnomalyIndex)))
	}
	return t
}

func peerIDList(in Input) *report.Table {
	t := report.NewTable(TitlePeerIDList,
		append(in.caseHeaders(), report.Col(colPeerID), report.Col(colPeerSize), report.Col(colPeerSizePct))...)
	for _, c := range in.Cases {
		peer := in.Model.PeerOf(c.RowIndex)
		t.Append(in.caseRow(c.RowIndex).
			Set(colPeerID, report.Int(peer)).
			Set(colPeerSize, report.Int(in.Model.Sizes[peer-1])).
			Set(colPeerSizePct, report.Num(in.Model.Percentages[peer-1])))
	}
	return t
}

func reasonList(in Input) *report.Table {
	t := report.NewTable(TitleReasonList,
		append(in.caseHeaders(), report.Group("Reason: 1", colReasonVariable, colImpact, colValue, colNorm))...)
	for _, c := range in.Cases {
		if len(c.Reasons) == 0 {
			continue
		}
		top := c.Reasons[0]
		t.Append(in.caseRow(c.RowIndex).
			Set(colReasonVariable, report.Str(in.variableName(top.VariableIndex))).
			Set(colImpact, report.Num(core.Round(top.Impact, 3))).
			Set(colValue, report.Num(core.Round(top.Value, 2))).
			Set(colNorm, report.Num(core.Round(top.Norm, 4))))
	}
	return t
}

func scaleVariableNorms(in Input) *report.Table {
	peers := make([]string, in.Model.K)
	for g := range peers {
		peers[g] = strconv.Itoa(g + 1)
	}
	t := report.NewTable(TitleScaleNorms,
		report.Col(colVariable), report.Col(colStatistic), report.Group(colPeerID, peers...), report.Col(colCombined))

	total := float64(in.Model.Total())
	for j := range in.Variables {
		meanRow := report.NewRow().
			Set(colVariable, report.Str(in.variableName(j))).
			Set(colStatistic, report.Str(colMean))
		sdRow := report.NewRow().
			Set(colVariable, report.Str(in.variableName(j))).
			Set(colStatistic, report.Str(colStdDev))

		weightedMean, weightedVar := 0.0, 0.0
		for g, label := range peers {
			size := float64(in.Model.Sizes[g])
			mean, sd := in.Model.Means[g][j], in.Model.StdDevs[g][j]
			weightedMean += size * mean
			weightedVar += size * sd * sd

			meanRow.Set(label, report.Num(core.Round(mean, 4)))
			if in.Model.Sizes[g] <= 1 {
				sdRow.Set(label, report.Str(notComputed))
			} else {
				sdRow.Set(label, report.Num(core.Round(sd, 4)))
			}
		}
		if total > 0 {
			meanRow.Set(colCombined, report.Num(core.Round(weightedMean/total, 4)))
			sdRow.Set(colCombined, report.Num(core.Round(math.Sqrt(weightedVar/total), 4)))
		} else {
			meanRow.Set(colCombined, report.Null())
			sdRow.Set(colCombined, report.Null())
		}
		t.Append(meanRow)
		t.Append(sdRow)
	}
	return t
}

func anomalyIndexSummary(in Input) *report.Table {
	t := report.NewTable(TitleIndexSummary,
		report.Col(colLabel), report.Col(colN), report.Col(colMinimum), report.Col(colMaximum),
		report.Col(colMean), report.Col(colStdDev))

	row := report.NewRow().Set(colLabel, report.Str(colAnomalyIndex))
	indices := make(stats.Float64Data, len(in.Cases))
	for i, c := range in.Cases {
		indices[i] = c.AnomalyIndex
	}

	if len(indices) == 0 {
		row.Set(colN, report.Int(0)).
			Set(colMinimum, report.Null()).
			Set(colMaximum, report.Null()).
			Set(colMean, report.Null()).
			Set(colStdDev, report.Null())
	} else {
		lo, _ := stats.Min(indices)
		hi, _ := stats.Max(indices)
		mean, _ := stats.Mean(indices)
		row.Set(colN, report.Int(len(indices))).
			Set(colMinimum, report.Num(lo)).
			Set(colMaximum, report.Num(hi)).
			Set(colMean, report.Num(core.Round(mean, 4))).
			Set(colStdDev, sampleStdDev(indices, 4))
	}
	t.Append(row)
	t.Append(report.NewRow().Set(colLabel, report.Str(SelectionNote(in.Options))))
	return t
}

// reasonStats accumulates the impacts observed for one reason variable.
type reasonStats struct {
	variable int
	impacts  stats.Float64Data
}

func reasonSummary(in Input) *report.Table {
	t := report.NewTable(TitleReasonSummary,
		report.Col(colVariable), report.Col(colFrequency), report.Col(colPercent),
		report.Group(colImpact, colMinimum, colMaximum, colMean, colStdDev))

	var order []*reasonStats
	byVariable := make(map[int]*reasonStats)
	var all stats.Float64Data
	for _, c := range in.Cases {
		for _, r := range c.Reasons {
			s, ok := byVariable[r.VariableIndex]
			if !ok {
				s = &reasonStats{variable: r.VariableIndex}
				byVariable[r.VariableIndex] = s
				order = append(order, s)
			}
			s.impacts = append(s.impacts, r.Impact)
			all = append(all, r.Impact)
		}
	}

	total := len(all)
	for _, s := range order {
		t.Append(impactRow(report.NewRow().Set(colVariable, report.Str(in.variableName(s.variable))),
			s.impacts, total))
	}
	t.Append(impactRow(report.NewRow().Set(colVariable, report.Str("Overall")), all, total))
	return t
}

func impactRow(row *report.Row, impacts stats.Float64Data, total int) *report.Row {
	row.Set(colFrequency, report.Int(len(impacts)))
	if total > 0 {
		row.Set(colPercent, report.Num(core.Round(float64(len(impacts))/float64(total)*100, 1)))
	} else {
		row.Set(colPercent, report.Null())
	}
	if len(impacts) == 0 {
		return row.Set(colMinimum, report.Null()).
			Set(colMaximum, report.Null()).
			Set(colMean, report.Null()).
			Set(colStdDev, report.Null())
	}
	lo, _ := stats.Min(impacts)
	hi, _ := stats.Max(impacts)
	mean, _ := stats.Mean(impacts)
	return row.Set(colMinimum, report.Num(core.Round(lo, 3))).
		Set(colMaximum, report.Num(core.Round(hi, 3))).
		Set(colMean, report.Num(core.Round(mean, 3))).
		Set(colStdDev, sampleStdDev(impacts, 3))
}

// sampleStdDev needs at least two observations; fewer yields null.
func sampleStdDev(data stats.Float64Data, places int) report.Value {
	if len(data) < 2 {
		return report.Null()
	}
	sd, err := stats.StandardDeviationSample(data)
	if err != nil {
		return report.Null()
	}
	return report.Num(core.Round(sd, places))
}

// SelectionNote describes the criteria that produced the unusual-case list.
func SelectionNote(opts anomaly.Options) string {
	var note string
	if opts.IdentificationCriteria == anomaly.ByPercentage {
		note = fmt.Sprintf("Cases with the highest %s%% of anomaly index values are identified as unusual.",
			strconv.FormatFloat(opts.PercentageValue, 'f', -1, 64))
	} else {
		note = fmt.Sprintf("The %d cases with the highest anomaly index values are identified as unusual.",
			opts.FixedCount())
	}
	if opts.UseMinimumValue {
		note += fmt.Sprintf(" Only cases with an anomaly index of at least %s are reported.",
			strconv.FormatFloat(opts.CutoffValue, 'f', -1, 64))
	}
	return note
}
