// Package marker recognizes fragment regions embedded in arbitrary text.
//
// A region is delimited by a start sentinel carrying an identifier and an
// end sentinel:
//
//	// ==== YOUR CODE: @<id> ====
//	<content>
//	// ==== END YOUR CODE ====
//
// The literals are fixed; files written by older tooling rely on the exact
// spacing and the "@" prefix. Regions are flat: the first end sentinel
// after a start sentinel closes it, so a start sentinel inside an open
// region is plain content. Nested regions are not supported.
package marker

import (
	"strings"
)

// Sentinel literals.
const (
	StartPrefix = "// ==== YOUR CODE: @"
	StartSuffix = " ===="
	EndLiteral  = "// ==== END YOUR CODE ===="
)

// DefaultLineEnding is used when emitting new regions.
const DefaultLineEnding = "\n"

// Span is a half-open byte range [Start, End) into a text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() int {
	return s.End - s.Start
}

// Of returns the slice of text covered by the span.
func (s Span) Of(text string) string {
	return text[s.Start:s.End]
}

// Occurrence is one fragment region found in a text.
// Offsets are only valid for the text that was parsed.
type Occurrence struct {
	// ID is the trimmed fragment identifier.
	ID string

	// Content covers the text between the sentinels.
	Content Span

	// Full covers both sentinels and the content. The line break that may
	// follow the end sentinel is not part of it.
	Full Span

	// LineEnding is the line break that terminated the start sentinel.
	LineEnding string
}

// ContentContains reports whether offset lies within the content span,
// both bounds included. A caret sitting right after the start sentinel or
// right before the end sentinel is inside the region.
func (o Occurrence) ContentContains(offset int) bool {
	return offset >= o.Content.Start && offset <= o.Content.End
}

// FullContains reports whether offset lies within the full span.
func (o Occurrence) FullContains(offset int) bool {
	return offset >= o.Full.Start && offset < o.Full.End
}

// StartMarker returns the canonical start sentinel for id, including the
// terminating line break.
func StartMarker(id, lineEnding string) string {
	if lineEnding == "" {
		lineEnding = DefaultLineEnding
	}
	return StartPrefix + id + StartSuffix + lineEnding
}

// EndMarker returns the canonical end sentinel. It carries no line break.
func EndMarker() string {
	return EndLiteral
}

// Region returns a complete region for id wrapping content.
func Region(id, content, lineEnding string) string {
	var b strings.Builder
	b.Grow(len(StartPrefix) + len(id) + len(StartSuffix) + len(content) + len(EndLiteral) + 2)
	b.WriteString(StartMarker(id, lineEnding))
	b.WriteString(content)
	b.WriteString(EndLiteral)
	return b.String()
}

// ValidID reports whether id can be embedded in a start sentinel and
// parsed back unchanged.
func ValidID(id string) bool {
	if id == "" || id != strings.TrimSpace(id) {
		return false
	}
	if strings.ContainsAny(id, "\r\n") {
		return false
	}
	return !strings.Contains(id, StartSuffix)
}
