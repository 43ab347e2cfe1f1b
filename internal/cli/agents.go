package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List live registered agents",
	Args:  cobra.NoArgs,
	RunE:  runAgents,
}

func init() {
	rootCmd.AddCommand(agentsCmd)
}

func runAgents(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}

	active, err := m.reg.ListActive("")
	if err != nil {
		return fmt.Errorf("scanning registry: %w", err)
	}

	printHeader("Live agents")
	rows := make([][]string, 0, len(active))
	for _, a := range active {
		patterns := make([]string, 0, len(a.Reservations))
		for _, r := range a.Reservations {
			patterns = append(patterns, r.Pattern)
		}
		rows = append(rows, []string{
			colorCyan + a.Name + colorReset,
			strconv.Itoa(a.PID),
			a.Role,
			humanAge(a.LastSeenAt),
			truncate(strings.Join(patterns, ", "), 40),
		})
	}
	printTable([]string{"NAME", "PID", "ROLE", "SEEN", "RESERVED"}, rows)
	return nil
}
