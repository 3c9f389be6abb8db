// Package main provides the entry point for the diffkit CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lumiera-go/diffkit/cmd/diffkit/commands"
	"github.com/lumiera-go/diffkit/pkg/version"
)

func main() {
	root := &cobra.Command{
		Use:     "diffkit",
		Short:   "Apply and inspect Lumiera-style structural diffs",
		Version: version.Version,
	}

	root.AddCommand(commands.NewApplyCommand())
	root.AddCommand(commands.NewRenderCommand())
	root.AddCommand(commands.NewValidateCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
