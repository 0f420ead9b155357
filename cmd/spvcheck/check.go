package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/andewx/diesel"
)

// checkFiles runs check on every path and prints one line per file. It
// fails when any file fails.
func checkFiles(cmd *cobra.Command, paths []string, check func(path string) (string, error)) error {
	failed := 0
	for _, path := range paths {
		summary, err := check(path)
		if err != nil {
			failed++
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %s: %v\n", path, err)
			continue
		}
		diesel.Logger().Debug("spvcheck: ok", "path", path)
		fmt.Fprintf(cmd.OutOrStdout(), "ok   %s: %s\n", path, summary)
	}
	if failed > 0 {
		return errors.Errorf("%d of %d files failed", failed, len(paths))
	}
	return nil
}

func checkModule(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	words, err := diesel.ParseBytecode(data)
	if err != nil {
		return "", err
	}
	// Header: magic, version, generator, bound, schema.
	if len(words) < 5 {
		return "", errors.Errorf("header has %d words, want 5", len(words))
	}
	major, minor := words[1]>>16&0xff, words[1]>>8&0xff
	return fmt.Sprintf("SPIR-V %d.%d, %d words, id bound %d", major, minor, len(words), words[3]), nil
}

func newModuleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "module FILE...",
		Short: "Check raw SPIR-V module files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkFiles(cmd, args, checkModule)
		},
	}
}

func checkDescriptor(path string) (string, error) {
	desc, err := diesel.LoadShaderDescriptor(path)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s: depth %s, shape %s, cull %s", desc.Name, desc.Depth, desc.Shape, desc.Cull), nil
}

func newDescriptorCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "descriptor FILE...",
		Aliases: []string{"desc"},
		Short:   "Check YAML shader descriptor files",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkFiles(cmd, args, checkDescriptor)
		},
	}
}
