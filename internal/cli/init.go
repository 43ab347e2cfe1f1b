package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agentmesh/internal/mailbox"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the .agentmesh directory in the current project",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	m, err := openMesh()
	if err != nil {
		return err
	}

	for _, dir := range []string{"registry", "inbox", "runs", "sessions"} {
		if err := m.store.EnsureDir(dir); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	// Touch the log so tail works before the first send.
	if _, err := os.Stat(m.store.Path(mailbox.LogFile)); os.IsNotExist(err) {
		if err := m.store.WriteFileAtomic(mailbox.LogFile, nil); err != nil {
			return fmt.Errorf("creating message log: %w", err)
		}
	}

	fmt.Printf("%sInitialized agentmesh at %s%s\n", colorGreen, m.store.Root(), colorReset)
	return nil
}
