// Package metrics holds local text features and the Prometheus recorder.
package metrics

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Features are size measures of a piece of text, safe to log or emit
// because they carry no content.
type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int
}

// CountFeatures measures s. Words split on Unicode whitespace; lines are 0
// for the empty string and otherwise 1 plus the number of newlines.
func CountFeatures(s string) Features {
	f := Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
	}
	if s != "" {
		f.Lines = 1 + strings.Count(s, "\n")
	}
	return f
}

func (f Features) String() string {
	return fmt.Sprintf("bytes=%d runes=%d words=%d lines=%d", f.Bytes, f.Runes, f.Words, f.Lines)
}
