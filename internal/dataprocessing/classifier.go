package dataprocessing

import (
	"strings"

	"coefcalc/pkg/contracts/domain"
)

// maxMeasuresSeen bounds the distinct measure names kept per file summary.
const maxMeasuresSeen = 32

// ClassifyTable turns the rows of one file into observations. Rows with an
// unrecognized measure, a measure the family does not accept or an empty
// product identifier are skipped and counted.
func ClassifyTable(name string, family domain.FileFamily, table *Table) ([]domain.Observation, domain.FileParseSummary) {
	summary := domain.FileParseSummary{
		Name:     name,
		Family:   family,
		RowsRead: table.Len(),
	}
	if table.Len() == 0 {
		return []domain.Observation{}, summary
	}

	hm := ResolveHeaders(table.Headers)
	if hm.Value >= 0 {
		summary.ValueColumn = table.Headers[hm.Value]
	}

	seen := make(map[string]struct{})
	observations := make([]domain.Observation, 0, len(table.Rows))

	for _, row := range table.Rows {
		measureRaw := strings.TrimSpace(cell(row, hm.Measure))
		if measureRaw != "" {
			if _, ok := seen[measureRaw]; !ok && len(seen) < maxMeasuresSeen {
				seen[measureRaw] = struct{}{}
				summary.MeasuresSeen = append(summary.MeasuresSeen, measureRaw)
			}
		}

		kind, ok := ParseMeasureKind(measureRaw)
		if !ok || !acceptsMeasure(family, kind) {
			summary.RowsSkipped++
			continue
		}

		id := BuildProductID(cell(row, hm.Level1), cell(row, hm.Level4))
		if id == "" {
			summary.RowsSkipped++
			continue
		}

		observations = append(observations, domain.Observation{
			ProductID: id,
			Kind:      kind,
			Value:     ParseNumber(cell(row, hm.Value)),
			Descriptors: domain.Descriptors{
				Level1: cell(row, hm.Level1),
				Level2: cell(row, hm.Level2),
				Level3: cell(row, hm.Level3),
				Level4: cell(row, hm.Level4),
			},
		})
	}

	summary.RowsAccepted = len(observations)
	return observations, summary
}

// ClassifyRecords classifies records that were already zipped against
// their headers, using the header order given.
func ClassifyRecords(name string, family domain.FileFamily, headers []string, records []domain.RawRecord) ([]domain.Observation, domain.FileParseSummary) {
	table := &Table{Headers: headers}
	for _, rec := range records {
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = rec[h]
		}
		table.Rows = append(table.Rows, row)
	}
	return ClassifyTable(name, family, table)
}
