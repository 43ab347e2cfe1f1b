package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agentmesh/internal/registry"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register this process as a live agent",
	Args:  cobra.NoArgs,
	RunE:  runRegister,
}

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat",
	Short: "Refresh this agent's registration timestamp",
	Args:  cobra.NoArgs,
	RunE:  runHeartbeat,
}

var unregisterCmd = &cobra.Command{
	Use:   "unregister",
	Short: "Remove this agent's registration",
	Args:  cobra.NoArgs,
	RunE:  runUnregister,
}

func init() {
	for _, c := range []*cobra.Command{registerCmd, heartbeatCmd, unregisterCmd} {
		c.Flags().String("session", "", "Session ID owning this registration")
	}
	registerCmd.Flags().String("role", registry.RoleSubagent, "Agent role (subagent or orchestrator)")
	rootCmd.AddCommand(registerCmd, heartbeatCmd, unregisterCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	name, err := selfName(cmd, m)
	if err != nil {
		return err
	}
	sessionID, _ := cmd.Flags().GetString("session")
	role, _ := cmd.Flags().GetString("role")

	reg := selfRegistration(name, sessionID, m)
	reg.Role = role
	ok, err := m.reg.Register(cmd.Context(), reg)
	if err != nil {
		return fmt.Errorf("registering %q: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("agent %q is already registered to a live process", name)
	}
	fmt.Printf("%sRegistered%s %s (pid %d)\n", colorGreen, colorReset, name, os.Getpid())
	return nil
}

func runHeartbeat(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	name, err := selfName(cmd, m)
	if err != nil {
		return err
	}
	sessionID, _ := cmd.Flags().GetString("session")

	// Heartbeats are best-effort: a lock timeout or lost ownership is
	// reported but never fails the caller's turn.
	ok, err := m.reg.Heartbeat(cmd.Context(), selfRegistration(name, sessionID, m))
	if err != nil {
		fmt.Printf("%sheartbeat skipped:%s %v\n", colorYellow, colorReset, err)
		return nil
	}
	if !ok {
		fmt.Printf("%sheartbeat refused:%s %q is owned by another live process\n", colorYellow, colorReset, name)
		return nil
	}
	fmt.Printf("%sok%s\n", colorGreen, colorReset)
	return nil
}

func runUnregister(cmd *cobra.Command, args []string) error {
	m, err := openMeshRequired()
	if err != nil {
		return err
	}
	name, err := selfName(cmd, m)
	if err != nil {
		return err
	}
	sessionID, _ := cmd.Flags().GetString("session")

	owner := &registry.Owner{PID: os.Getpid(), SessionID: sessionID}
	if err := m.reg.Unregister(cmd.Context(), name, owner); err != nil {
		return fmt.Errorf("unregistering %q: %w", name, err)
	}
	fmt.Printf("%sUnregistered%s %s\n", colorGreen, colorReset, name)
	return nil
}
