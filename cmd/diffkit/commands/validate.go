package commands

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lumiera-go/diffkit/pkg/diffwire"
)

// validateOptions holds the flags for the validate command.
type validateOptions struct {
	diffPath string
	noColor  bool
}

// NewValidateCommand builds the "validate" subcommand: run a diff document
// through diffwire.Decode's schema-validate-then-decode pipeline and report
// pass/fail, mirroring cmd/uast/validate.go's standalone schema check.
func NewValidateCommand() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a diff verb stream document against the wire schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.diffPath, "diff", "", "path to the diff verb stream document (JSON)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	_ = cmd.MarkFlagRequired("diff")

	return cmd
}

func runValidate(cmd *cobra.Command, opts *validateOptions) error {
	color.NoColor = opts.noColor

	raw, err := os.ReadFile(opts.diffPath)
	if err != nil {
		return fmt.Errorf("diffkit validate: read diff: %w", err)
	}

	verbs, err := diffwire.Decode(raw)
	if err != nil {
		_, _ = color.New(color.FgRed).Fprintf(cmd.ErrOrStderr(), "invalid: %s\n", err.Error())

		return fmt.Errorf("diffkit validate: %w", err)
	}

	_, err = color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "valid: %d verbs\n", len(verbs))

	return err
}
