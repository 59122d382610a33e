package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/globalesm/internal/build"
	"github.com/Sumatoshi-tech/globalesm/internal/cache"
	"github.com/Sumatoshi-tech/globalesm/pkg/compiler"
	"github.com/Sumatoshi-tech/globalesm/pkg/safeconv"
)

const (
	stdinName         = "<stdin>"
	durationPrecision = time.Millisecond
)

func jobName(job build.Job) string {
	if job.Path == "" {
		return stdinName
	}

	return job.Path
}

// printFailures lists failed modules. Without keep-going the single error
// is returned to the caller instead.
func printFailures(w io.Writer, summary build.Summary, keepGoing bool) {
	if !keepGoing {
		return
	}

	red := color.New(color.FgRed)

	for _, res := range summary.Results {
		if res.Err == nil {
			continue
		}

		red.Fprintf(w, "%s [%s]: %v\n", jobName(res.Job), compiler.ErrorKind(res.Err), res.Err)
	}
}

// printCode writes compiled modules to w. Several modules are separated by
// a header comment naming each one.
func printCode(w io.Writer, summary build.Summary) {
	var compiled []build.Result

	for _, res := range summary.Results {
		if res.Output != nil {
			compiled = append(compiled, res)
		}
	}

	for _, res := range compiled {
		if len(compiled) > 1 {
			fmt.Fprintf(w, "// ==> %s <==\n", jobName(res.Job))
		}

		fmt.Fprint(w, res.Output.Code)
	}
}

func printDiffs(w io.Writer, summary build.Summary) error {
	for _, res := range summary.Results {
		if res.Output == nil {
			continue
		}

		_, err := io.WriteString(w, renderDiff(jobName(res.Job), string(res.Job.Source), res.Output.Code))
		if err != nil {
			return fmt.Errorf("write diff: %w", err)
		}
	}

	return nil
}

// renderDiff renders a line diff of before and after with removed lines in
// red and added lines in green. Identical inputs render nothing.
func renderDiff(name, before, after string) string {
	if before == after {
		return ""
	}

	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(src, dst, false), lines)

	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	var sb strings.Builder

	color.New(color.Bold).Fprintf(&sb, "--- %s\n+++ %s (lowered)\n", name, name)

	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				red.Fprintf(&sb, "-%s\n", line)
			case diffmatchpatch.DiffInsert:
				green.Fprintf(&sb, "+%s\n", line)
			case diffmatchpatch.DiffEqual:
				fmt.Fprintf(&sb, " %s\n", line)
			}
		}
	}

	return sb.String()
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}

	return strings.Split(text, "\n")
}

// printSummary prints a one-line build summary, plus cache usage when a
// cache is configured.
func printSummary(w io.Writer, summary build.Summary, store *cache.Store) {
	line := fmt.Sprintf("compiled %s modules (%s cached", humanize.Comma(int64(summary.Compiled)), humanize.Comma(int64(summary.Cached)))

	if summary.Failed > 0 {
		line += ", " + color.RedString("%s failed", humanize.Comma(int64(summary.Failed)))
	}

	line += ")"

	if summary.Written > 0 {
		line += fmt.Sprintf(", wrote %s files", humanize.Comma(int64(summary.Written)))
	}

	line += fmt.Sprintf(", %s in %s", humanize.Bytes(safeconv.ClampToUint64(summary.Bytes)), summary.Duration.Round(durationPrecision))

	fmt.Fprintln(w, line)

	if store != nil {
		fmt.Fprintf(w, "cache: %s\n", store.Stats())
	}
}
