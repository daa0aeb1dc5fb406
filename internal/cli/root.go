package cli

import (
	"fmt"
	"os"

	"github.com/dshills/gavel/internal/config"
	"github.com/dshills/gavel/internal/logx"
	"github.com/spf13/cobra"
)

const version = "0.1.0"

// Exit codes for CI gating.
const (
	ExitSuccess      = 0
	ExitRejected     = 1
	ExitUsageError   = 2
	ExitAuthError    = 3
	ExitRuntimeError = 4
)

var rootCmd = &cobra.Command{
	Use:   "gavel",
	Short: "AI pull request gatekeeper",
	Long: "Gavel reviews the changed files of a pull request with an LLM, posts findings\n" +
		"as reconciled comment threads, and renders an approve/reject verdict.",
}

var flagVerbose bool

// Run executes the root command and returns an exit code.
func Run() int {
	rootCmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(threadsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		return ExitUsageError
	}

	return exitCode
}

// exitCode is set by command handlers to control the process exit code.
var exitCode = ExitSuccess

// setupLogging installs the process-wide logger from the effective config.
// --verbose wins over any configured level.
func setupLogging(cfg config.Config) {
	level := cfg.Log.Level
	if flagVerbose {
		level = "debug"
	}
	logx.SetDefault(logx.New(level, cfg.Log.Format))
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print gavel version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(os.Stdout, "gavel version %s\n", version)
	},
}
