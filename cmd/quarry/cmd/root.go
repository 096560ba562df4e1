// Package cmd provides the CLI commands for quarry.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarrydocs/quarry/internal/logging"
	"github.com/quarrydocs/quarry/internal/profiling"
	"github.com/quarrydocs/quarry/pkg/version"
)

// Persistent flags shared by all subcommands.
var (
	configPath string
	offline    bool
	debugMode  bool

	profileCPU string
	profileMem string
	cpuStop    func()

	loggingCleanup func()
)

// NewRootCmd creates the root command for the quarry CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quarry",
		Short: "Hybrid retrieval over markdown corpora",
		Long: `Quarry ingests markdown documents, chunks and embeds them, and serves
hybrid retrieval (BM25 + semantic with reciprocal rank fusion) over the
result, either from the command line or as an MCP stdio server.

Typical flow:
  quarry init          write a starter quarry.yaml
  quarry ingest docs/  chunk, embed, and index a directory
  quarry search "how do I configure overlap"
  quarry serve         expose the retrieve tool over MCP`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("quarry version {{.Version}}\n")

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to quarry.yaml (default: ./quarry.yaml if present)")
	cmd.PersistentFlags().BoolVar(&offline, "offline", false, "Use static embeddings (no embedding service required)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write heap profile to file")

	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging handles the --debug and --profile-* flags.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to set up debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Debug("debug_logging_enabled", slog.String("log_file", logging.DefaultLogPath()))
	}

	if profileCPU != "" {
		stop, err := profiling.StartCPU(profileCPU)
		if err != nil {
			return err
		}
		cpuStop = stop
	}

	return nil
}

// stopProfilingAndLogging flushes profiles and log files.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if cpuStop != nil {
		cpuStop()
		cpuStop = nil
	}
	if profileMem != "" {
		if err := profiling.WriteHeap(profileMem); err != nil {
			return err
		}
	}
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}
