package diff

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// RenderStream formats a verb sequence as a three-column table (selector,
// address, argument), the diagnostic counterpart to the wire form Verb.String
// produces, grounded on the collection-table layout internal/analyzers/common
// uses for other structured dumps.
func RenderStream(verbs []Verb) string {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false

	tbl.AppendHeader(table.Row{"#", "selector", "scope/attrib", "argument"})

	for i, v := range verbs {
		arg := "-"
		if v.Arg != nil {
			arg = v.Arg.String()
		}

		tbl.AppendRow(table.Row{i, v.Selector.String(), v.ID, arg})
	}

	tbl.AppendFooter(table.Row{"", "", "", fmt.Sprintf("%d verbs", len(verbs))})

	return tbl.Render()
}

// colorize applies a severity color when the destination is a terminal; noColor
// forces plain output, mirroring cmd/uast/validate.go's color.NoColor toggle.
func colorize(noColor bool, c *color.Color, format string, a ...any) string {
	if noColor {
		return fmt.Sprintf(format, a...)
	}

	return c.Sprintf(format, a...)
}

// maxPayloadRenderLen bounds a conflict's rendered verb payload when
// truncation is enabled, per config.DiffConfig.TruncateConflictPayload.
const maxPayloadRenderLen = 240

// RenderError renders a terminal diff error (conflict, structure or logic)
// in the teacher's red/yellow/cyan severity palette: conflicts in red (a
// rejected verb), structure violations in yellow (malformed nesting), and
// logic errors in cyan with their wrapped causes indented beneath.
// truncatePayload trims an overlong conflict message per
// config.DiffConfig.TruncateConflictPayload, so a pathologically large
// record embedded in a single verb doesn't flood a terminal or log line.
func RenderError(err error, noColor, truncatePayload bool) string {
	var sb strings.Builder

	switch e := err.(type) {
	case *ConflictError:
		msg := e.Error()
		if truncatePayload && len(msg) > maxPayloadRenderLen {
			msg = msg[:maxPayloadRenderLen] + "… (truncated)"
		}

		sb.WriteString(colorize(noColor, color.New(color.FgRed), "conflict: %s\n", msg))
	case *StructureError:
		sb.WriteString(colorize(noColor, color.New(color.FgYellow), "structure: %s\n", e.Error()))
	case *LogicError:
		sb.WriteString(colorize(noColor, color.New(color.FgCyan), "logic: %s\n", e.Error()))

		for _, cause := range e.Unwrap() {
			sb.WriteString(colorize(noColor, color.New(color.FgCyan), "  - %s\n", cause.Error()))
		}
	default:
		sb.WriteString(colorize(noColor, color.New(color.FgRed), "error: %s\n", err.Error()))
	}

	return sb.String()
}

// RenderTextDiff produces a human-readable line-level diff between the
// rendered-before and rendered-after forms of a record, for structure and
// conflict diagnostics — the same DiffLinesToRunes/DiffMainRunes/
// DiffCleanupMerge pipeline the teacher's file-diff rendering uses, applied
// here to record dumps instead of git blobs.
func RenderTextDiff(before, after string) string {
	dmp := diffmatchpatch.New()

	src, dst, lineArray := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffMainRunes(src, dst, false)
	diffs = dmp.DiffCharsToLines(diffs, lineArray)
	diffs = dmp.DiffCleanupMerge(dmp.DiffCleanupSemanticLossless(diffs))

	return dmp.DiffPrettyText(diffs)
}
