package project

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rivo/uniseg"
)

// Position is a 1-based line and column. Columns count grapheme
// clusters, so "é" written as e + combining accent is one column.
type Position struct {
	Line int `json:"line"`
	Col  int `json:"col"`
}

// String formats the position as line:col.
func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// PositionAt converts a byte offset into a Position. Offsets past the
// end are clamped.
func PositionAt(text string, offset int) Position {
	offset = max(0, min(offset, len(text)))
	before := text[:offset]
	line := strings.Count(before, "\n") + 1
	lineStart := strings.LastIndexByte(before, '\n') + 1
	return Position{
		Line: line,
		Col:  uniseg.GraphemeClusterCount(before[lineStart:]) + 1,
	}
}

// OffsetAt converts a Position into a byte offset. The column may point
// one past the last cluster of the line (the line end).
func OffsetAt(text string, pos Position) (int, error) {
	if pos.Line < 1 || pos.Col < 1 {
		return 0, fmt.Errorf("%w: %s", ErrBadLocation, pos)
	}

	start := 0
	for l := 1; l < pos.Line; l++ {
		i := strings.IndexByte(text[start:], '\n')
		if i < 0 {
			return 0, fmt.Errorf("%w: line %d past end (%d lines)", ErrBadLocation, pos.Line, l)
		}
		start += i + 1
	}

	line := text[start:]
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSuffix(line, "\r")

	offset := start
	g := uniseg.NewGraphemes(line)
	for col := 1; col < pos.Col; col++ {
		if !g.Next() {
			return 0, fmt.Errorf("%w: column %d past end of line %d", ErrBadLocation, pos.Col, pos.Line)
		}
		_, to := g.Positions()
		offset = start + to
	}
	return offset, nil
}

// ParseLocation resolves a command-line location in text: either a byte
// offset ("120") or a line:col pair ("7:1").
func ParseLocation(text, loc string) (int, error) {
	if l, c, ok := strings.Cut(loc, ":"); ok {
		line, err1 := strconv.Atoi(l)
		col, err2 := strconv.Atoi(c)
		if err1 != nil || err2 != nil {
			return 0, fmt.Errorf("%w: %q", ErrBadLocation, loc)
		}
		return OffsetAt(text, Position{Line: line, Col: col})
	}
	off, err := strconv.Atoi(loc)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadLocation, loc)
	}
	if off < 0 || off > len(text) {
		return 0, fmt.Errorf("%w: offset %d outside [0, %d]", ErrBadLocation, off, len(text))
	}
	return off, nil
}
