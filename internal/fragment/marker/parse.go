package marker

import (
	"iter"
	"strings"
)

// Parse returns a lazy sequence of the regions in text, in order of
// appearance. Each call scans independently; nothing is retained between
// calls.
//
// Malformed input is never an error. A start sentinel without a line
// break after its closing " ====", with an empty id, or with no end
// sentinel after it produces no occurrence.
func Parse(text string) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		s := scanner{text: text}
		for {
			occ, ok := s.next()
			if !ok || !yield(occ) {
				return
			}
		}
	}
}

// ParseAll collects Parse into a slice.
func ParseAll(text string) []Occurrence {
	var out []Occurrence
	for occ := range Parse(text) {
		out = append(out, occ)
	}
	return out
}

// Find returns the occurrence whose full span contains offset.
func Find(text string, offset int) (Occurrence, bool) {
	for occ := range Parse(text) {
		if occ.Full.Start > offset {
			break
		}
		if occ.FullContains(offset) {
			return occ, true
		}
	}
	return Occurrence{}, false
}

// scanner walks text left to right, resuming after the end of the
// previous match.
type scanner struct {
	text string
	pos  int
}

func (s *scanner) next() (Occurrence, bool) {
	text := s.text
	for s.pos < len(text) {
		i := strings.Index(text[s.pos:], StartPrefix)
		if i < 0 {
			s.pos = len(text)
			return Occurrence{}, false
		}
		start := s.pos + i
		idStart := start + len(StartPrefix)

		id, contentStart, lineEnding, ok := startSentinel(text, idStart)
		if !ok {
			s.pos = idStart
			continue
		}

		j := strings.Index(text[contentStart:], EndLiteral)
		if j < 0 {
			// No end sentinel remains, so no later start can close either.
			s.pos = len(text)
			return Occurrence{}, false
		}
		contentEnd := contentStart + j
		fullEnd := contentEnd + len(EndLiteral)
		s.pos = fullEnd

		return Occurrence{
			ID:         id,
			Content:    Span{Start: contentStart, End: contentEnd},
			Full:       Span{Start: start, End: fullEnd},
			LineEnding: lineEnding,
		}, true
	}
	return Occurrence{}, false
}

// startSentinel parses the remainder of a start sentinel beginning at
// idStart (just past "@"). It returns the trimmed id, the offset where
// content begins and the line break that ended the sentinel.
func startSentinel(text string, idStart int) (id string, contentStart int, lineEnding string, ok bool) {
	lineEnd := strings.IndexByte(text[idStart:], '\n')
	if lineEnd < 0 {
		return "", 0, "", false
	}
	line := text[idStart : idStart+lineEnd]

	sfx := strings.Index(line, StartSuffix)
	if sfx < 0 {
		return "", 0, "", false
	}
	id = strings.TrimSpace(line[:sfx])
	if id == "" {
		return "", 0, "", false
	}

	switch rest := line[sfx+len(StartSuffix):]; rest {
	case "":
		lineEnding = "\n"
	case "\r":
		lineEnding = "\r\n"
	default:
		return "", 0, "", false
	}
	return id, idStart + lineEnd + 1, lineEnding, true
}
