// Package filter provides the text-filtering step that turns a raw short
// text into the token sequence fed to the feature hasher.
// All functions are pure: string in, []string out. No side effects.
package filter

import (
	"regexp"
	"strings"
	"unicode"
)

// Filter turns text into tokens. Implementations must be safe for
// concurrent use.
type Filter interface {
	Tokens(text string) []string
}

// Func adapts a plain function to Filter.
type Func func(text string) []string

// Tokens calls f.
func (f Func) Tokens(text string) []string {
	return f(text)
}

var (
	urlRegex     = regexp.MustCompile(`(?i)\bhttps?://\S+|\bwww\.\S+`)
	mentionRegex = regexp.MustCompile(`@\w+`)
)

// stopWords carry no sentiment and are dropped by the default filter.
var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"of": true, "to": true, "in": true, "on": true, "at": true,
	"is": true, "are": true, "was": true, "be": true, "it": true,
	"rt": true,
}

// Basic is the default filter: lowercase, strip URLs and @mentions, split
// on anything that is not a letter, digit or apostrophe, drop stop words.
type Basic struct {
	KeepStopWords bool
}

// Default returns the filter used when none is configured.
func Default() Filter {
	return Basic{}
}

// Tokens implements Filter.
func (b Basic) Tokens(text string) []string {
	text = strings.ToLower(text)
	text = urlRegex.ReplaceAllString(text, " ")
	text = mentionRegex.ReplaceAllString(text, " ")

	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if f == "" {
			continue
		}
		if !b.KeepStopWords && stopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
