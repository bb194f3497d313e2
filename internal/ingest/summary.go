package ingest

import (
	"fmt"
	"strings"

	"coefcalc/pkg/contracts/domain"
)

// DefaultMaxExamples is how many rejected file names a summary lists
const DefaultMaxExamples = 3

// SummarizeRejections renders rejected file names as one warning line,
// e.g. "a.csv, b.csv, c.csv and 2 more". It returns "" for no rejections.
func SummarizeRejections(rejections []domain.FileRejection, maxExamples int) string {
	if len(rejections) == 0 {
		return ""
	}
	if maxExamples <= 0 {
		maxExamples = DefaultMaxExamples
	}

	shown := rejections
	if len(shown) > maxExamples {
		shown = shown[:maxExamples]
	}

	names := make([]string, len(shown))
	for i, r := range shown {
		names[i] = r.Name
	}

	msg := strings.Join(names, ", ")
	if rest := len(rejections) - len(shown); rest > 0 {
		msg = fmt.Sprintf("%s and %d more", msg, rest)
	}
	return msg
}

// RejectionWarning prefixes the summary for display
func RejectionWarning(rejections []domain.FileRejection, maxExamples int) string {
	summary := SummarizeRejections(rejections, maxExamples)
	if summary == "" {
		return ""
	}
	return fmt.Sprintf("%d file(s) skipped: %s", len(rejections), summary)
}
