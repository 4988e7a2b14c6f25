package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/tidwall/pretty"
	"golang.org/x/term"

	"github.com/dshills/fragments/internal/app"
)

// printJSON writes v as indented JSON, colored when w is a terminal.
func printJSON(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = pretty.Pretty(data)
	if isTerminal(w) {
		data = pretty.Color(data, nil)
	}
	_, err = w.Write(data)
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printFailures lists the per-fragment failures of reports.
func printFailures(w io.Writer, reports []app.FileReport) {
	for _, rep := range reports {
		ids := make([]string, 0, len(rep.Failed))
		for id := range rep.Failed {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(w, "%s: @%s: %s\n", rep.File, id, rep.Failed[id])
		}
	}
}

// printSkipped lists files that were not processed.
func printSkipped(w io.Writer, reports []app.FileReport) {
	for _, rep := range reports {
		if rep.Skipped != "" {
			fmt.Fprintf(w, "%s: skipped (%s)\n", rep.File, rep.Skipped)
		}
	}
}

// count sums n over reports.
func count(reports []app.FileReport, n func(app.FileReport) int) int {
	total := 0
	for _, rep := range reports {
		total += n(rep)
	}
	return total
}

func formatCollision(c app.CollisionReport) string {
	var others []string
	for _, f := range c.Files {
		if f != c.File {
			others = append(others, f.String())
		}
	}
	line := fmt.Sprintf("%s:%s: @%s: %s", c.File, c.Pos, c.ID, c.Reason)
	if len(others) > 0 {
		line += " (also in " + strings.Join(others, ", ") + ")"
	}
	return line
}
