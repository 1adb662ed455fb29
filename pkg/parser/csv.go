package parser

import (
	"fmt"
	"strings"
	"sync"
)

// CSVParser turns one CSV file's lines into Records. It is stateful: the
// first line it sees becomes the header row, and every subsequent line is
// zipped against it.
//
// Limitation: because callers hand this parser one physical line at a
// time (so a broken line can be reported and skipped without losing the
// rest of the file), a quoted field containing an embedded newline — valid
// CSV, split across two physical lines — is seen as two independent lines
// and will not parse correctly. Full RFC 4180 support would require
// buffering whole records across line boundaries, which would also buffer
// an unbounded number of "continuation" lines for a malformed file with an
// unterminated quote.
type CSVParser struct {
	mu     sync.Mutex
	header []string
}

// NewCSVParser returns a fresh CSVParser with no header yet captured.
func NewCSVParser() *CSVParser {
	return &CSVParser{}
}

// Parse implements Func.
func (p *CSVParser) Parse(line string, lineNumber int) (*Record, *LineError) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if strings.TrimSpace(line) == "" {
		return nil, &LineError{LineNumber: lineNumber, Message: "empty line", Skip: true}
	}

	row, err := newCSVReader(line).Read()
	if err != nil {
		return nil, &LineError{LineNumber: lineNumber, Message: fmt.Sprintf("invalid csv: %v", err)}
	}

	if p.header == nil {
		p.header = row
		return nil, &LineError{LineNumber: lineNumber, Message: "header row", Skip: true}
	}

	if len(row) != len(p.header) {
		return nil, &LineError{
			LineNumber: lineNumber,
			Message:    fmt.Sprintf("expected %d fields, got %d", len(p.header), len(row)),
		}
	}

	fields := csvRecordToFields(p.header, row)
	if err := Validate(fields); err != nil {
		return nil, &LineError{LineNumber: lineNumber, Message: err.Error()}
	}
	return &Record{LineNumber: lineNumber, Fields: fields}, nil
}
