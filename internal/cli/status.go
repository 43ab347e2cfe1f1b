package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mesh overview: live agents, reservations, pending mail",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}

	active, err := m.reg.ListActive("")
	if err != nil {
		return fmt.Errorf("scanning registry: %w", err)
	}

	printHeader("agentmesh status")
	printField("State dir", m.store.Root())
	printField("Live agents", strconv.Itoa(len(active)))

	reserved := 0
	rows := make([][]string, 0, len(active))
	for _, a := range active {
		reserved += len(a.Reservations)
		pending, _ := m.box.Pending(a.Name)
		rows = append(rows, []string{
			colorCyan + a.Name + colorReset,
			strconv.Itoa(a.PID),
			humanAge(a.LastSeenAt),
			strconv.Itoa(len(a.Reservations)),
			strconv.Itoa(pending),
		})
	}
	printField("Reservations", strconv.Itoa(reserved))

	fmt.Println()
	printTable([]string{"AGENT", "PID", "SEEN", "RESERVED", "PENDING"}, rows)

	recent, err := m.box.Tail(5)
	if err == nil && len(recent) > 0 {
		printHeader("Recent messages")
		printLogEvents(recent)
	}
	return nil
}
