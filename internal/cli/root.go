// Package cli implements the agentmesh command line: thin cobra commands
// over the registry, mailbox, spawn, and remote-control cores.
package cli

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"agentmesh/internal/debug"
)

// ANSI color codes, blanked when stdout is not a terminal.
var (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"

	// Combined styles
	styleBoldCyan  = "\033[1;36m"
	styleBoldWhite = "\033[1;37m"
)

func init() {
	fd := os.Stdout.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		colorReset, colorBold, colorDim = "", "", ""
		colorRed, colorGreen, colorYellow, colorCyan = "", "", "", ""
		styleBoldCyan, styleBoldWhite = "", ""
	}
}

var rootCmd = &cobra.Command{
	Use:   "agentmesh",
	Short: "Multi-agent coordination over a shared directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Composed after the color gate above so help text honors it.
	rootCmd.Long = styleBoldCyan + `agentmesh` + colorReset + ` — coordination substrate for coding agents.

Agents sharing a project directory register themselves, reserve files
they are editing, message each other, and spawn bounded sub-agent runs,
all through atomic files under ` + styleBoldWhite + `.agentmesh/` + colorReset + `.

Run ` + styleBoldWhite + `agentmesh init` + colorReset + ` in a project to start, then ` + styleBoldWhite + `agentmesh status` + colorReset + ` for an overview.`

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose debug logging to ~/.agentmesh/debug/")
	rootCmd.PersistentFlags().String("as", "", "Act as this agent name (default: $AGENTMESH_AGENT_NAME)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		debugFlag, _ := cmd.Flags().GetBool("debug")
		if !debugFlag && !debug.ShouldEnableFromEnv() {
			return nil
		}
		logPath, err := debug.Init()
		if err != nil {
			return fmt.Errorf("initializing debug logger: %w", err)
		}
		fmt.Fprintf(os.Stderr, "%s[debug]%s logging to %s\n", colorDim, colorReset, logPath)
		debug.LogKV("cli", "agentmesh starting",
			"pid", os.Getpid(),
			"command", cmd.Name(),
			"args", args,
		)
		return nil
	}
}

// Execute runs the root command.
func Execute() {
	defer debug.Close()
	if err := rootCmd.Execute(); err != nil {
		debug.Logf("cli", "exit with error: %v", err)
		fmt.Fprintf(os.Stderr, "%sError: %s%s\n", colorRed, err, colorReset)
		os.Exit(1)
	}
	debug.Log("cli", "exit success")
}
