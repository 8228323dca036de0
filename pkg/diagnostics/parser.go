// Package diagnostics turns raw compiler error output into structured
// diagnostics attributed to a file, line and column.
//
// A diagnostic is a header line followed by the offending source line and a
// caret line marking the column:
//
//	src/app/Main.java:12: error: cannot find symbol
//	        Helper h = new Helper();
//	        ^
//
// Header lines whose line number does not parse are skipped without error,
// which tolerates compiler banners and note lines. Skipped reports how many.
package diagnostics

import (
	"bufio"
	"io"
	"iter"
	"strconv"
	"strings"

	"github.com/ritzau/incbuild/pkg/state"
)

const maxLineLength = 1024 * 1024

// Parser reads one diagnostic stream. It can be iterated once.
type Parser struct {
	r       io.Reader
	used    bool
	skipped int
	err     error
}

// NewParser creates a parser over r
func NewParser(r io.Reader) *Parser {
	return &Parser{r: r}
}

// Parse returns the diagnostics in r as a lazy sequence
func Parse(r io.Reader) iter.Seq[state.Diagnostic] {
	return NewParser(r).All()
}

// ParseString parses a complete diagnostic stream held in memory
func ParseString(s string) []state.Diagnostic {
	var out []state.Diagnostic
	for d := range Parse(strings.NewReader(s)) {
		out = append(out, d)
	}
	return out
}

// Skipped returns the number of header-shaped lines dropped because their
// line number was not an integer
func (p *Parser) Skipped() int {
	return p.skipped
}

// Err returns the read error that ended the stream early, if any
func (p *Parser) Err() error {
	return p.err
}

// All yields diagnostics in stream order. A second iteration yields nothing.
func (p *Parser) All() iter.Seq[state.Diagnostic] {
	return func(yield func(state.Diagnostic) bool) {
		if p.used {
			return
		}
		p.used = true

		scanner := bufio.NewScanner(p.r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineLength)

		var window []string
		fill := func(n int) bool {
			for len(window) < n && scanner.Scan() {
				window = append(window, strings.TrimRight(scanner.Text(), "\r"))
			}
			return len(window) >= n
		}
		defer func() { p.err = scanner.Err() }()

		for fill(1) {
			d, ok := p.parseHeader(window[0])
			if !ok {
				window = window[1:]
				continue
			}
			// The code line and the caret line must both be present
			if !fill(3) {
				return
			}
			caret := strings.IndexByte(window[2], '^')
			if caret < 0 {
				window = window[1:]
				continue
			}
			d.ColumnNumber = caret + 1
			window = window[3:]
			if !yield(d) {
				return
			}
		}
	}
}

// parseHeader splits "<path>:<line>:<severity>: <message>" from the left
func (p *Parser) parseHeader(line string) (state.Diagnostic, bool) {
	drive := ""
	if hasDrivePrefix(line) {
		drive, line = line[:2], line[2:]
	}

	parts := strings.SplitN(line, ":", 4)
	if len(parts) < 4 || drive+parts[0] == "" {
		return state.Diagnostic{}, false
	}

	lineNumber, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || lineNumber < 0 {
		p.skipped++
		return state.Diagnostic{}, false
	}

	return state.Diagnostic{
		SourceFilePath: state.NormalizePath(drive + parts[0]),
		LineNumber:     lineNumber,
		Type:           strings.TrimSpace(parts[2]),
		Message:        strings.TrimSpace(parts[3]),
	}, true
}

// hasDrivePrefix matches Windows paths such as C:\src or C:/src
func hasDrivePrefix(s string) bool {
	if len(s) < 3 || s[1] != ':' || (s[2] != '\\' && s[2] != '/') {
		return false
	}
	c := s[0]
	return ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}
