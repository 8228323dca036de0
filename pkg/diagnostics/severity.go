package diagnostics

import (
	"strings"

	"github.com/ritzau/incbuild/pkg/state"
)

// Severity is the reporting class of a diagnostic
type Severity uint8

const (
	SeverityUnrecognized Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return "unrecognized"
}

// Classify maps a free-form severity string to a Severity, ignoring case
func Classify(severity string) Severity {
	switch {
	case strings.EqualFold(severity, "warning"):
		return SeverityWarning
	case strings.EqualFold(severity, "error"):
		return SeverityError
	}
	return SeverityUnrecognized
}

// Summary counts diagnostics per severity
type Summary struct {
	Warnings     int `json:"warnings"`
	Errors       int `json:"errors"`
	Unrecognized int `json:"unrecognized"`
}

// Total is the number of counted diagnostics
func (s Summary) Total() int {
	return s.Warnings + s.Errors + s.Unrecognized
}

// Add merges two summaries
func (s Summary) Add(o Summary) Summary {
	return Summary{
		Warnings:     s.Warnings + o.Warnings,
		Errors:       s.Errors + o.Errors,
		Unrecognized: s.Unrecognized + o.Unrecognized,
	}
}

// Count tallies diagnostics by severity
func Count(diags []state.Diagnostic) Summary {
	var s Summary
	for _, d := range diags {
		switch Classify(d.Type) {
		case SeverityWarning:
			s.Warnings++
		case SeverityError:
			s.Errors++
		default:
			s.Unrecognized++
		}
	}
	return s
}
