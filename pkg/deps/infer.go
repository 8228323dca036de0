// Package deps infers source file dependencies lexically: a file depends on
// every project file whose type name appears as an identifier in its text.
//
// This is intentionally coarse. An identifier that happens to equal a type
// name is a false positive; a reference hidden in a way the tokenizer cannot
// see is a false negative.
package deps

import (
	"path"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ritzau/incbuild/pkg/state"
)

// FileDependency is the inferred dependency set of one source file
type FileDependency struct {
	SourceFile   string   // e.g. "app/Main.java"
	Dependencies []string // e.g. ["app/util/Strings.java"]
}

// TypeName derives the type name of a source file: its base name without
// the extension ("app/Main.java" -> "Main").
func TypeName(p string) string {
	base := path.Base(state.NormalizePath(p))
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	return base
}

// Index maps type names to the source files declaring them. Several files in
// different folders may share a type name; all of them are kept.
type Index map[string][]string

// NewIndex builds the index over every current source file
func NewIndex(paths []string) Index {
	idx := make(Index, len(paths))
	for _, p := range paths {
		p = state.NormalizePath(p)
		name := TypeName(p)
		idx[name] = append(idx[name], p)
	}
	for name := range idx {
		slices.Sort(idx[name])
		idx[name] = slices.Compact(idx[name])
	}
	return idx
}

// Tokenize returns the distinct identifier-like words of text, sorted
func Tokenize(text string) []string {
	var tokens []string
	seen := make(map[string]bool)

	start := -1
	flush := func(end int) {
		if start >= 0 {
			tok := text[start:end]
			if !seen[tok] {
				seen[tok] = true
				tokens = append(tokens, tok)
			}
			start = -1
		}
	}

	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		switch {
		case isIdentStart(r):
			if start < 0 {
				start = i
			}
		case isIdentPart(r):
			// Digits only continue a word; "9Lives" yields "Lives"
		default:
			flush(i)
		}
		i += size
	}
	flush(len(text))

	slices.Sort(tokens)
	return tokens
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return unicode.IsDigit(r)
}

// Infer matches the tokens of text against the index and returns the sorted
// paths this file depends on. The file's own type name never matches.
func Infer(p, text string, idx Index) []string {
	p = state.NormalizePath(p)
	self := TypeName(p)

	var out []string
	for _, tok := range Tokenize(text) {
		if tok == self {
			continue
		}
		for _, target := range idx[tok] {
			if target != p {
				out = append(out, target)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
