package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"agentmesh/internal/rc"
)

var rcCmd = &cobra.Command{
	Use:   "rc",
	Short: "Remote-control live peer sessions over their control sockets",
}

var rcProbeCmd = &cobra.Command{
	Use:   "probe [session-id]",
	Short: "Check whether a session's control socket is reachable",
	Args:  cobra.ExactArgs(1),
	RunE:  runRcProbe,
}

var rcSendCmd = &cobra.Command{
	Use:   "send [session-id] [text]",
	Short: "Push a message into a live session and wait for its turn to end",
	Args:  cobra.ExactArgs(2),
	RunE:  runRcSend,
}

func init() {
	rcProbeCmd.Flags().Duration("timeout", 2*time.Second, "Dial timeout")
	rcSendCmd.Flags().Duration("wait", 5*time.Minute, "How long to wait for the turn to end")
	rcCmd.AddCommand(rcProbeCmd, rcSendCmd)
	rootCmd.AddCommand(rcCmd)
}

func runRcProbe(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	client := rc.NewClient(m.store.Root())
	if client.Reachable(args[0], timeout) {
		fmt.Printf("%sreachable%s %s\n", colorGreen, colorReset, args[0])
		return nil
	}
	return fmt.Errorf("session %s is not reachable", args[0])
}

func runRcSend(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	wait, _ := cmd.Flags().GetDuration("wait")

	client := rc.NewClient(m.store.Root())
	if err := client.SendAndAwaitTurnEnd(cmd.Context(), args[0], args[1], wait); err != nil {
		return err
	}
	fmt.Printf("%sturn ended%s in session %s\n", colorGreen, colorReset, args[0])
	return nil
}
