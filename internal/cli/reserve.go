package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reserveCmd = &cobra.Command{
	Use:   "reserve [pattern]...",
	Short: "Reserve file paths or directory prefixes (end a pattern with / for a subtree)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReserve,
}

var releaseCmd = &cobra.Command{
	Use:   "release [pattern]...",
	Short: "Release reservations (no arguments releases all)",
	RunE:  runRelease,
}

var checkCmd = &cobra.Command{
	Use:   "check [path]",
	Short: "Check whether a path is blocked by another agent's reservation",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

func init() {
	reserveCmd.Flags().String("reason", "", "Why these paths are reserved")
	rootCmd.AddCommand(reserveCmd, releaseCmd, checkCmd)
}

func runReserve(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	name, err := selfName(cmd, m)
	if err != nil {
		return err
	}
	reason, _ := cmd.Flags().GetString("reason")

	if err := m.reg.Reserve(cmd.Context(), name, args, reason); err != nil {
		return fmt.Errorf("reserving: %w", err)
	}
	fmt.Printf("%sReserved%s %d pattern(s) for %s\n", colorGreen, colorReset, len(args), name)
	return nil
}

func runRelease(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	name, err := selfName(cmd, m)
	if err != nil {
		return err
	}

	if err := m.reg.Release(cmd.Context(), name, args); err != nil {
		return fmt.Errorf("releasing: %w", err)
	}
	if len(args) == 0 {
		fmt.Printf("%sReleased all reservations%s for %s\n", colorGreen, colorReset, name)
	} else {
		fmt.Printf("%sReleased%s %d pattern(s) for %s\n", colorGreen, colorReset, len(args), name)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	name, err := selfName(cmd, m)
	if err != nil {
		return err
	}

	decision := m.reg.CheckWrite(name, args[0])
	if decision.Allowed {
		fmt.Printf("%sallow%s %s\n", colorGreen, colorReset, args[0])
		return nil
	}
	fmt.Printf("%sblock%s %s\n", colorRed, colorReset, args[0])
	fmt.Println(decision.Explain())
	return nil
}
