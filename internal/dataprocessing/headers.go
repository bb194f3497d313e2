package dataprocessing

import (
	"strings"
	"unicode"
)

// Field is a logical input column.
type Field int

const (
	FieldLevel1 Field = iota
	FieldLevel2
	FieldLevel3
	FieldLevel4
	FieldMeasure
	FieldValue
)

func (f Field) String() string {
	switch f {
	case FieldLevel1:
		return "level 1"
	case FieldLevel2:
		return "level 2"
	case FieldLevel3:
		return "level 3"
	case FieldLevel4:
		return "level 4"
	case FieldMeasure:
		return "Measure Names"
	case FieldValue:
		return "value"
	default:
		return "unknown"
	}
}

// fieldAliases lists accepted header spellings per field, in preference
// order, as header keys (see headerKey).
var fieldAliases = map[Field][]string{
	FieldLevel1:  {"level1", "lvl1", "l1"},
	FieldLevel2:  {"level2", "lvl2", "l2"},
	FieldLevel3:  {"level3", "lvl3", "l3"},
	FieldLevel4:  {"level4", "lvl4", "l4"},
	FieldMeasure: {"measurenames", "measurename", "measure", "measures"},
	FieldValue:   {"measurevalues", "measurevalue", "value", "values"},
}

// HeaderMap holds the column index of each logical field, -1 when the file
// has no such column.
type HeaderMap struct {
	Level1  int
	Level2  int
	Level3  int
	Level4  int
	Measure int
	Value   int
	// ValueFallback is set when no value alias matched and the last column
	// was taken instead.
	ValueFallback bool
}

// ResolveHeaders matches the header row against the field aliases once per
// file. The value column falls back to the last column.
func ResolveHeaders(headers []string) HeaderMap {
	index := make(map[string]int, len(headers))
	for i, h := range headers {
		k := headerKey(h)
		if _, dup := index[k]; !dup {
			index[k] = i
		}
	}

	lookup := func(f Field) int {
		for _, alias := range fieldAliases[f] {
			if i, ok := index[alias]; ok {
				return i
			}
		}
		return -1
	}

	m := HeaderMap{
		Level1:  lookup(FieldLevel1),
		Level2:  lookup(FieldLevel2),
		Level3:  lookup(FieldLevel3),
		Level4:  lookup(FieldLevel4),
		Measure: lookup(FieldMeasure),
		Value:   lookup(FieldValue),
	}
	if m.Value < 0 && len(headers) > 0 {
		m.Value = len(headers) - 1
		m.ValueFallback = true
	}
	return m
}

// Missing returns the fields a row classifier cannot do without.
func (m HeaderMap) Missing() []Field {
	var missing []Field
	if m.Level1 < 0 {
		missing = append(missing, FieldLevel1)
	}
	if m.Level4 < 0 {
		missing = append(missing, FieldLevel4)
	}
	if m.Measure < 0 {
		missing = append(missing, FieldMeasure)
	}
	if m.Value < 0 {
		missing = append(missing, FieldValue)
	}
	return missing
}

// cell returns row[idx], or "" for a missing column.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func headerKey(h string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '_' || r == '-' {
			return -1
		}
		return unicode.ToLower(r)
	}, h)
}
