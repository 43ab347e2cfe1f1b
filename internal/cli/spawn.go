package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"agentmesh/internal/spawn"
)

var spawnCmd = &cobra.Command{
	Use:   "spawn [task]",
	Short: "Run sub-agent tasks (repeat --task for a parallel batch)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSpawn,
}

func init() {
	spawnCmd.Flags().StringArray("task", nil, "Task for a parallel batch (repeatable, max 8)")
	spawnCmd.Flags().String("model", "", "Model override for the children")
	spawnCmd.Flags().StringSlice("tools", nil, "Tool allowlist for the children")
	spawnCmd.Flags().String("extension", "", "Extension config path handed to the children")
	spawnCmd.Flags().String("system-prompt-file", "", "Extra system prompt file for the children")
	spawnCmd.Flags().Duration("timeout", 0, "Per-child timeout (0 = unlimited)")
	rootCmd.AddCommand(spawnCmd)
}

func runSpawn(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	self, err := selfName(cmd, m)
	if err != nil {
		return err
	}

	tasks, _ := cmd.Flags().GetStringArray("task")
	model, _ := cmd.Flags().GetString("model")
	tools, _ := cmd.Flags().GetStringSlice("tools")
	extension, _ := cmd.Flags().GetString("extension")
	promptFile, _ := cmd.Flags().GetString("system-prompt-file")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	req := spawn.Request{
		Tasks:            tasks,
		Model:            model,
		Tools:            tools,
		ExtensionPath:    extension,
		SystemPromptFile: promptFile,
		Timeout:          timeout,
	}
	if len(args) == 1 {
		req.Task = args[0]
	}
	if req.Model == "" {
		req.Model = m.cfg.Spawn.Model
	}
	if req.Timeout == 0 {
		req.Timeout = m.cfg.SpawnTimeout()
	}

	dir, err := projectDir()
	if err != nil {
		return err
	}
	orch := spawn.New(m.store, self, spawn.Options{
		Binary:   m.cfg.Spawn.Binary,
		WorkDir:  dir,
		Parallel: m.cfg.Spawn.Parallel,
		Depth:    spawn.DepthFromEnv(),
	})

	results, err := orch.Run(cmd.Context(), req)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		badge := colorGreen + "ok" + colorReset
		if r.Failed() {
			badge = colorRed + "failed" + colorReset
			failed++
		}
		fmt.Printf("\n%s[%s]%s %s (%s, exit %d, %s)\n",
			colorBold, r.Callsign, colorReset, badge, r.AgentName, r.ExitCode, r.Duration.Round(time.Millisecond))
		if r.Output != "" {
			fmt.Println(r.Output)
		}
		if r.Err != nil {
			fmt.Printf("%serror:%s %v\n", colorRed, colorReset, r.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d/%d task(s) failed", failed, len(results))
	}
	return nil
}
