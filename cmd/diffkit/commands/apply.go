package commands

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/lumiera-go/diffkit/pkg/config"
	"github.com/lumiera-go/diffkit/pkg/diff"
	"github.com/lumiera-go/diffkit/pkg/diffrecord"
	"github.com/lumiera-go/diffkit/pkg/diffwire"
	"github.com/lumiera-go/diffkit/pkg/record"
)

// applyOptions holds the flags for the apply command.
type applyOptions struct {
	targetPath string
	diffPath   string
	outPath    string
	configPath string
	noColor    bool
	debugTrace bool
}

// NewApplyCommand builds the "apply" subcommand: decode a target record and
// a verb stream from disk, drive the generic-record binding through
// pkg/diff.Driver, and write back the mutated record (or a rendered
// diagnostic on conflict/structure/logic failure).
func NewApplyCommand() *cobra.Command {
	opts := &applyOptions{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a diff verb stream to a target record",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runApply(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.targetPath, "target", "", "path to the target record document (JSON)")
	cmd.Flags().StringVar(&opts.diffPath, "diff", "", "path to the diff verb stream document (JSON)")
	cmd.Flags().StringVar(&opts.outPath, "out", "", "path to write the mutated record document (default: stdout)")
	cmd.Flags().StringVar(&opts.configPath, "config", "", "path to a diffkit config file (optional)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable colored diagnostic output")
	cmd.Flags().BoolVar(&opts.debugTrace, "debug", false, "enable debug-level logging")

	_ = cmd.MarkFlagRequired("target")
	_ = cmd.MarkFlagRequired("diff")

	return cmd
}

func runApply(cmd *cobra.Command, opts *applyOptions) error {
	ctx := cmd.Context()

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("diffkit apply: load config: %w", err)
	}

	targetRaw, err := os.ReadFile(opts.targetPath)
	if err != nil {
		return fmt.Errorf("diffkit apply: read target: %w", err)
	}

	diffRaw, err := os.ReadFile(opts.diffPath)
	if err != nil {
		return fmt.Errorf("diffkit apply: read diff: %w", err)
	}

	target, err := diffwire.DecodeRecord(targetRaw)
	if err != nil {
		return fmt.Errorf("diffkit apply: decode target: %w", err)
	}

	verbs, err := diffwire.Decode(diffRaw)
	if err != nil {
		return fmt.Errorf("diffkit apply: decode diff: %w", err)
	}

	logger, meter, _, err := buildObservability("diffkit", opts.debugTrace)
	if err != nil {
		return fmt.Errorf("diffkit apply: build observability: %w", err)
	}

	metrics, err := buildDiffMetrics(meter)
	if err != nil {
		return fmt.Errorf("diffkit apply: build metrics: %w", err)
	}

	driverOpts := []diff.Option{diff.WithLogger(logger), diff.WithMetrics(metrics)}

	if cfg.Diff.MaxScopeDepth > 0 {
		driverOpts = append(driverOpts, diff.WithMaxScopeDepth(cfg.Diff.MaxScopeDepth))
	}

	if cfg.Diff.SourceBufferWarnSize != "" {
		threshold, parseErr := humanize.ParseBytes(cfg.Diff.SourceBufferWarnSize)
		if parseErr != nil {
			return fmt.Errorf("diffkit apply: parse source_buffer_warn_size: %w", parseErr)
		}

		driverOpts = append(driverOpts, diff.WithSourceWarnBytes(threshold))
	}

	driver := diff.NewDriver(driverOpts...)
	mutator := diffrecord.Attach(target)
	rootID := record.AnonymousIdentity(record.KindRecord)

	if err := driver.Apply(ctx, mutator, rootID, diff.FromSlice(verbs)); err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), diff.RenderError(err, opts.noColor, cfg.Diff.TruncateConflictPayload))

		return fmt.Errorf("diffkit apply: %w", err)
	}

	out, err := diffwire.EncodeRecord(target)
	if err != nil {
		return fmt.Errorf("diffkit apply: encode result: %w", err)
	}

	return writeResult(cmd, opts.outPath, out)
}

func writeResult(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), string(data))

		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // result document, not sensitive.
		return fmt.Errorf("diffkit apply: write result: %w", err)
	}

	return nil
}
