// Command spvcheck validates SPIR-V modules and shader descriptor files
// with the checks the engine applies when it loads them.
//
//	spvcheck module shader.vert.spv shader.frag.spv
//	spvcheck descriptor sprite.yaml
//	spvcheck pack -n sprite -v sprite.vert.spv -f sprite.frag.spv -o sprite.yaml
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/andewx/diesel"
)

func newRootCommand() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:           "spvcheck",
		Short:         "Validate SPIR-V modules and shader descriptor files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			diesel.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "log every file checked")
	root.AddCommand(newModuleCommand(), newDescriptorCommand(), newPackCommand())
	return root
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		root.PrintErrln("spvcheck:", err)
		os.Exit(1)
	}
}
