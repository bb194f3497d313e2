package security

import (
	"bytes"
	"context"
	"html"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ThreatType represents the kinds of untrusted content the scanner detects
type ThreatType string

const (
	ThreatXSS            ThreatType = "xss"
	ThreatBinary         ThreatType = "binary_content"
	ThreatMalformedInput ThreatType = "malformed_input"
	ThreatPathTraversal  ThreatType = "path_traversal"
	ThreatNoDelimiter    ThreatType = "missing_delimiter"
)

// ScannerConfig holds configuration for content scanning
type ScannerConfig struct {
	// PreviewBytes is how much of each file is inspected before parsing
	PreviewBytes int `json:"preview_bytes"`
	// Delimiter must appear in the header line
	Delimiter byte `json:"delimiter"`
}

// DefaultScannerConfig returns the default scanner configuration
func DefaultScannerConfig() *ScannerConfig {
	return &ScannerConfig{
		PreviewBytes: 64 * 1024,
		Delimiter:    ';',
	}
}

// ScanResult represents the result of scanning one file
type ScanResult struct {
	IsValid     bool     `json:"is_valid"`
	Errors      []string `json:"errors"`
	ThreatTypes []string `json:"threat_types"`
}

// Reason returns the first error, for one-line rejection messages
func (r *ScanResult) Reason() string {
	if len(r.Errors) == 0 {
		return ""
	}
	return r.Errors[0]
}

// ContentScanner inspects the leading bytes of uploaded files for binary or
// active content before they are parsed
type ContentScanner struct {
	logger       *slog.Logger
	previewBytes int
	delimiter    byte
	xssPatterns  []*regexp.Regexp
}

// NewContentScanner creates a scanner with the script patterns compiled
func NewContentScanner(config *ScannerConfig) *ContentScanner {
	if config == nil {
		config = DefaultScannerConfig()
	}
	if config.PreviewBytes <= 0 {
		config.PreviewBytes = DefaultScannerConfig().PreviewBytes
	}
	if config.Delimiter == 0 {
		config.Delimiter = ';'
	}

	s := &ContentScanner{
		logger:       slog.Default(),
		previewBytes: config.PreviewBytes,
		delimiter:    config.Delimiter,
	}
	s.initializePatterns()
	return s
}

// SetLogger sets a custom logger for the scanner
func (s *ContentScanner) SetLogger(logger *slog.Logger) {
	s.logger = logger
}

// PreviewBytes returns the configured preview window
func (s *ContentScanner) PreviewBytes() int {
	return s.previewBytes
}

// Scan inspects the first PreviewBytes of data
func (s *ContentScanner) Scan(ctx context.Context, name string, data []byte) *ScanResult {
	result := &ScanResult{
		Errors:      []string{},
		ThreatTypes: []string{},
	}

	preview := data
	if len(preview) > s.previewBytes {
		preview = preview[:s.previewBytes]
	}
	preview = bytes.TrimPrefix(preview, []byte("\xef\xbb\xbf"))

	if isBinary(preview) {
		result.ThreatTypes = append(result.ThreatTypes, string(ThreatBinary))
		result.Errors = append(result.Errors, "file is not text")
	} else {
		if !utf8.Valid(trimPartialRune(preview)) {
			result.ThreatTypes = append(result.ThreatTypes, string(ThreatMalformedInput))
			result.Errors = append(result.Errors, "file is not valid UTF-8")
		}
		if s.containsXSS(string(preview)) {
			result.ThreatTypes = append(result.ThreatTypes, string(ThreatXSS))
			result.Errors = append(result.Errors, "file contains script content")
		}
		if !s.hasDelimitedHeader(preview) {
			result.ThreatTypes = append(result.ThreatTypes, string(ThreatNoDelimiter))
			result.Errors = append(result.Errors, "header has no ';' delimiter")
		}
	}

	if len(result.ThreatTypes) > 0 {
		s.logger.WarnContext(ctx, "Suspicious upload rejected",
			slog.String("file", name),
			slog.Any("threat_types", result.ThreatTypes),
			slog.Any("errors", result.Errors),
		)
	}

	result.IsValid = len(result.Errors) == 0
	return result
}

// hasDelimitedHeader reports whether the first non-blank line contains the
// delimiter. An empty preview passes; empty files are handled downstream.
func (s *ContentScanner) hasDelimitedHeader(preview []byte) bool {
	for _, line := range bytes.Split(preview, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return bytes.IndexByte(line, s.delimiter) >= 0
	}
	return true
}

func (s *ContentScanner) containsXSS(input string) bool {
	lower := strings.ToLower(input)
	for _, pattern := range s.xssPatterns {
		if pattern.MatchString(lower) {
			return true
		}
	}
	return false
}

func (s *ContentScanner) initializePatterns() {
	xssPatterns := []string{
		`<\s*/?\s*script`,
		`<[^>]*\bon[a-z]+\s*=`,
		`javascript\s*:`,
		`vbscript\s*:`,
		`data\s*:\s*text/html`,
		`<\s*(iframe|object|embed|applet)`,
	}

	s.xssPatterns = make([]*regexp.Regexp, 0, len(xssPatterns))
	for _, pattern := range xssPatterns {
		s.xssPatterns = append(s.xssPatterns, regexp.MustCompile(`(?i)`+pattern))
	}
}

// isBinary treats NUL bytes or a high share of control characters as binary
func isBinary(data []byte) bool {
	if bytes.IndexByte(data, 0) >= 0 {
		return true
	}
	if len(data) == 0 {
		return false
	}
	control := 0
	for _, b := range data {
		if b < 0x20 && b != '\n' && b != '\r' && b != '\t' && b != '\f' {
			control++
		}
	}
	return control*10 > len(data)
}

// trimPartialRune drops an incomplete UTF-8 sequence cut by the preview window
func trimPartialRune(data []byte) []byte {
	for i := 0; i < utf8.UTFMax-1 && len(data) > 0 && !utf8.Valid(data); i++ {
		data = data[:len(data)-1]
	}
	return data
}

// NeutralizeFormula prefixes values that a spreadsheet would evaluate as a
// formula with a single quote
func NeutralizeFormula(value string) string {
	if value == "" {
		return value
	}
	r, _ := utf8.DecodeRuneInString(value)
	switch {
	case r == '=' || r == '+' || r == '-' || r == '@':
		return "'" + value
	case unicode.IsControl(r):
		return "'" + value
	}
	return value
}

// EscapeHTML escapes a value for inclusion in HTML text or attributes
func EscapeHTML(value string) string {
	return html.EscapeString(value)
}

// SanitizeFileName reduces an uploaded file name to its base name with
// control characters removed
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = removeControlCharacters(name)
	if name == "." || name == "/" || name == "" {
		return "unnamed"
	}
	return name
}

// ContainsPathTraversal checks for path traversal patterns
func ContainsPathTraversal(input string) bool {
	patterns := []string{
		"../", "..\\", "..%2f", "..%5c", "%2e%2e%2f", "%2e%2e%5c",
	}

	lower := strings.ToLower(input)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func removeControlCharacters(input string) string {
	var b strings.Builder
	for _, r := range input {
		if unicode.IsPrint(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
