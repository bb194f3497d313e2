package testutil

import (
	"fmt"
	"strings"
)

// DemandHeader is the header row of a demand export.
const DemandHeader = "level 1;level 2;level 3;level 4;Measure Names;Measure Values"

// Row is one input line: product hierarchy, measure and raw value.
type Row struct {
	Level1, Level2, Level3, Level4 string
	Measure                        string
	Value                          string
}

// BuildCSV renders rows under DemandHeader, quoting every cell the way the
// planning system exports them.
func BuildCSV(rows ...Row) string {
	var sb strings.Builder
	sb.WriteString(DemandHeader)
	sb.WriteString("\n")
	for _, r := range rows {
		fmt.Fprintf(&sb, "%q;%q;%q;%q;%q;%q\n", r.Level1, r.Level2, r.Level3, r.Level4, r.Measure, r.Value)
	}
	return sb.String()
}

// DemandRow is a shortcut for a demand-side row of product level1+level4.
func DemandRow(level1, level4, measure, value string) Row {
	return Row{Level1: level1, Level2: "Group", Level3: "Subgroup", Level4: level4, Measure: measure, Value: value}
}

// SwatRow is a shortcut for a prediction_swat row.
func SwatRow(level1, level4, value string) Row {
	return DemandRow(level1, level4, "prediction_swat", value)
}

// ManyRows returns n demand rows spread over products P0..P9.
func ManyRows(n int) []Row {
	rows := make([]Row, n)
	for i := range rows {
		rows[i] = DemandRow("P", fmt.Sprintf("%d", i%10), "demand", "1")
	}
	return rows
}
