// Package sentence segments free text into sentences.
//
// A split point is a whitespace run that directly follows '.', '!' or '?'.
// Abbreviations such as "Dr. Smith" are therefore split into two sentences;
// callers that need better accuracy have to post-process the result.
package sentence

import (
	"regexp"
	"strings"
)

//nolint:gochecknoglobals // Compiled once, never mutated.
var boundaryRe = regexp.MustCompile(`[.!?][\s\v\p{Z}\x{85}]+`)

// Split returns the trimmed, non-empty sentences of text in their original order.
func Split(text string) []string {
	bounds := boundaryRe.FindAllStringIndex(text, -1)
	sentences := make([]string, 0, len(bounds)+1)

	start := 0
	for _, b := range bounds {
		// Keep the terminal mark with its sentence, drop the whitespace.
		sentences = appendTrimmed(sentences, text[start:b[0]+1])
		start = b[1]
	}
	sentences = appendTrimmed(sentences, text[start:])

	return sentences
}

func appendTrimmed(sentences []string, fragment string) []string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return sentences
	}
	return append(sentences, fragment)
}
