package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/quarrydocs/quarry/configs"
	"github.com/quarrydocs/quarry/internal/config"
	"github.com/quarrydocs/quarry/internal/output"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a starter quarry.yaml",
		Long: `Write an annotated quarry.yaml with all defaults to the given
directory (default: current directory). Edit it and re-run ingest.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing quarry.yaml")

	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	out := output.New(cmd.OutOrStdout())
	path := filepath.Join(dir, config.DefaultFileName)

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(configs.ExampleYAML), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	out.Successf("wrote %s", path)
	out.Indent("edit it, then run 'quarry ingest <dir>' to build an index")
	return nil
}
