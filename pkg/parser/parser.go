// Package parser implements the line parser (C7): turning one raw line of
// an uploaded file into a validated record, or a per-line error that the
// processing worker can record and skip past without aborting the rest of
// the file.
//
// Line-oriented formats are parsed with encoding/json and encoding/csv,
// the standard library packages used for structured data wherever a
// specific wire protocol isn't in play (see DESIGN.md).
package parser

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
)

// MaxFieldLength is the longest a single field value may be before it's
// truncated. Oversized values are a data-quality problem, not a reason to
// fail an otherwise-parseable line.
const MaxFieldLength = 200

// Record is one successfully parsed line.
type Record struct {
	LineNumber int
	Fields     map[string]any
}

// LineError describes why a single line failed to parse or validate. It
// carries only the line number and a short message — never the raw line
// content, which may contain sensitive data the worker shouldn't persist
// into a job's error tail.
type LineError struct {
	LineNumber int
	Message    string

	// Skip marks a line that was deliberately not turned into a record
	// (a CSV header row, an empty line) rather than one that failed to
	// parse. The worker should pass these over silently instead of
	// counting them as failures or recording them in the job's error tail.
	Skip bool
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %s", e.LineNumber, e.Message)
}

// Func parses one line into a Record, returning a *LineError (never a bare
// error) on failure so callers can always recover the offending line
// number.
type Func func(line string, lineNumber int) (*Record, *LineError)

// SelectParser returns the Func appropriate for contentType.
func SelectParser(contentType string) (Func, error) {
	switch normalizeContentType(contentType) {
	case "application/json":
		return ParseJSON, nil
	case "text/csv":
		return NewCSVParser().Parse, nil
	case "text/plain":
		return ParseText, nil
	case "":
		return ParseAuto, nil
	default:
		return nil, fmt.Errorf("no parser registered for content type %q", contentType)
	}
}

// ParseAuto guesses a line's format from its shape rather than a declared
// content type: a line starting with '{' or '[' is treated as JSON, a line
// containing a comma is treated as a single CSV record (no header, since a
// per-line sniff has no file-wide row to establish one), everything else
// falls back to plain text. It exists for callers that must parse a file
// without a trustworthy Content-Type.
func ParseAuto(line string, lineNumber int) (*Record, *LineError) {
	trimmed := strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "["):
		return ParseJSON(line, lineNumber)
	case strings.Contains(trimmed, ","):
		return parseCSVLine(line, lineNumber)
	default:
		return ParseText(line, lineNumber)
	}
}

// parseCSVLine parses a single comma-containing line as a headerless CSV
// record, numbering its fields since there's no header row to name them by.
func parseCSVLine(line string, lineNumber int) (*Record, *LineError) {
	row, err := newCSVReader(line).Read()
	if err != nil {
		return nil, &LineError{LineNumber: lineNumber, Message: fmt.Sprintf("invalid csv: %v", err)}
	}

	fields := make(map[string]any, len(row))
	for i, v := range row {
		fields[fmt.Sprintf("field_%d", i+1)] = truncate(v)
	}
	if err := Validate(fields); err != nil {
		return nil, &LineError{LineNumber: lineNumber, Message: err.Error()}
	}
	return &Record{LineNumber: lineNumber, Fields: fields}, nil
}

func normalizeContentType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(strings.ToLower(contentType))
}

// ParseJSON parses line as a single JSON object (JSON Lines format: one
// document per line, not a top-level JSON array spanning the file).
func ParseJSON(line string, lineNumber int) (*Record, *LineError) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, &LineError{LineNumber: lineNumber, Message: "empty line", Skip: true}
	}

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader([]byte(trimmed)))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, &LineError{LineNumber: lineNumber, Message: fmt.Sprintf("invalid json: %v", err)}
	}
	if dec.More() {
		return nil, &LineError{LineNumber: lineNumber, Message: "line contains more than one json value"}
	}

	truncateStrings(fields)
	if err := Validate(fields); err != nil {
		return nil, &LineError{LineNumber: lineNumber, Message: err.Error()}
	}
	return &Record{LineNumber: lineNumber, Fields: fields}, nil
}

// ParseText wraps a plain-text line in a single "line" field. Every
// non-empty line is valid; there is nothing further to parse.
func ParseText(line string, lineNumber int) (*Record, *LineError) {
	if strings.TrimSpace(line) == "" {
		return nil, &LineError{LineNumber: lineNumber, Message: "empty line", Skip: true}
	}
	fields := map[string]any{"line": truncate(line)}
	return &Record{LineNumber: lineNumber, Fields: fields}, nil
}

// truncateStrings truncates every string value in fields (top-level only)
// to MaxFieldLength.
func truncateStrings(fields map[string]any) {
	for k, v := range fields {
		if s, ok := v.(string); ok {
			fields[k] = truncate(s)
		}
	}
}

func truncate(s string) string {
	if len(s) <= MaxFieldLength {
		return s
	}
	return s[:MaxFieldLength]
}

// Validate rejects records a downstream insert would reject anyway: empty
// records, or records consisting only of empty-string/nil values.
func Validate(fields map[string]any) error {
	if len(fields) == 0 {
		return fmt.Errorf("record has no fields")
	}
	for _, v := range fields {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok && s == "" {
			continue
		}
		return nil
	}
	return fmt.Errorf("record has no non-empty values")
}

// csvRecordToFields is shared by the CSV parser and its tests.
func csvRecordToFields(header, row []string) map[string]any {
	fields := make(map[string]any, len(header))
	for i, key := range header {
		if i >= len(row) {
			fields[key] = ""
			continue
		}
		fields[key] = truncate(row[i])
	}
	return fields
}

// newCSVReader configures a csv.Reader the way both the CSV parser and its
// tests need: tolerant of a variable field count per call since each call
// only ever sees one line.
func newCSVReader(line string) *csv.Reader {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	return r
}
