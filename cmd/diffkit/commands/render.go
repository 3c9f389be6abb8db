package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumiera-go/diffkit/pkg/diff"
	"github.com/lumiera-go/diffkit/pkg/diffwire"
	"github.com/lumiera-go/diffkit/pkg/record"
)

// renderOptions holds the flags for the render command.
type renderOptions struct {
	diffPath   string
	beforePath string
	afterPath  string
	noColor    bool
}

// NewRenderCommand builds the "render" subcommand: print a diagnostic table
// for a verb stream document, or a line-level text diff between two record
// documents' rendered forms.
func NewRenderCommand() *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a diff verb stream or a before/after record comparison",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.diffPath, "diff", "", "path to a diff verb stream document to render as a table")
	cmd.Flags().StringVar(&opts.beforePath, "before", "", "path to the before record document (text-diff mode)")
	cmd.Flags().StringVar(&opts.afterPath, "after", "", "path to the after record document (text-diff mode)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored diagnostic output")

	return cmd
}

func runRender(cmd *cobra.Command, opts *renderOptions) error {
	switch {
	case opts.diffPath != "":
		return renderDiffTable(cmd, opts.diffPath)
	case opts.beforePath != "" && opts.afterPath != "":
		return renderTextDiff(cmd, opts.beforePath, opts.afterPath)
	default:
		return fmt.Errorf("diffkit render: either --diff, or both --before and --after, must be set")
	}
}

func renderDiffTable(cmd *cobra.Command, diffPath string) error {
	raw, err := os.ReadFile(diffPath)
	if err != nil {
		return fmt.Errorf("diffkit render: read diff: %w", err)
	}

	verbs, err := diffwire.Decode(raw)
	if err != nil {
		return fmt.Errorf("diffkit render: decode diff: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), renderStreamTable(verbs))

	return err
}

func renderTextDiff(cmd *cobra.Command, beforePath, afterPath string) error {
	beforeRaw, err := os.ReadFile(beforePath)
	if err != nil {
		return fmt.Errorf("diffkit render: read before: %w", err)
	}

	afterRaw, err := os.ReadFile(afterPath)
	if err != nil {
		return fmt.Errorf("diffkit render: read after: %w", err)
	}

	before, err := diffwire.DecodeRecord(beforeRaw)
	if err != nil {
		return fmt.Errorf("diffkit render: decode before: %w", err)
	}

	after, err := diffwire.DecodeRecord(afterRaw)
	if err != nil {
		return fmt.Errorf("diffkit render: decode after: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), renderRecordTextDiff(before, after))

	return err
}

func renderStreamTable(verbs []diff.Verb) string { return diff.RenderStream(verbs) }

func renderRecordTextDiff(before, after *record.Record) string {
	return diff.RenderTextDiff(before.String(), after.String())
}
