package cli

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"agentmesh/internal/config"
	"agentmesh/internal/fstore"
	"agentmesh/internal/mailbox"
	"agentmesh/internal/registry"
)

// mesh bundles the handles every command needs: loaded config plus the
// store-backed cores rooted at the project's .agentmesh directory.
type mesh struct {
	cfg   *config.Config
	store *fstore.Store
	reg   *registry.Registry
	box   *mailbox.Mailbox
}

func projectDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv("AGENTMESH_PROJECT_DIR")); dir != "" {
		return dir, nil
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}
	return dir, nil
}

// openMesh loads config and opens the cores. It does not require init to
// have run; commands that need an existing mesh use openMeshRequired.
func openMesh() (*mesh, error) {
	dir, err := projectDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadProject(dir)
	if err != nil {
		return nil, err
	}
	s := fstore.NewWithLockOptions(config.BaseDir(dir), cfg.LockOptions())
	reg := registry.New(s)
	return &mesh{
		cfg:   cfg,
		store: s,
		reg:   reg,
		box:   mailbox.New(s, reg),
	}, nil
}

func openMeshRequired() (*mesh, error) {
	m, err := openMesh()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(m.store.Root()); err != nil {
		return nil, fmt.Errorf("no agentmesh directory found (run 'agentmesh init' first)")
	}
	return m, nil
}

// selfName resolves the acting agent's name: --as flag, then config (which
// already folds in $AGENTMESH_AGENT_NAME).
func selfName(cmd *cobra.Command, m *mesh) (string, error) {
	if name, _ := cmd.Flags().GetString("as"); name != "" {
		return name, nil
	}
	if m.cfg.Agent.Name != "" {
		return m.cfg.Agent.Name, nil
	}
	return "", fmt.Errorf("no agent identity (use --as or set AGENTMESH_AGENT_NAME)")
}

// selfRegistration builds this process's registration record.
func selfRegistration(name, sessionID string, m *mesh) registry.Registration {
	cwd, _ := os.Getwd()
	return registry.Registration{
		Name:      name,
		PID:       os.Getpid(),
		SessionID: sessionID,
		Cwd:       cwd,
		Model:     m.cfg.Agent.Model,
		Role:      registry.RoleSubagent,
	}
}

// --- output helpers ---

func printHeader(title string) {
	fmt.Printf("\n%s%s%s\n", styleBoldCyan, title, colorReset)
	fmt.Println(colorDim + strings.Repeat("-", len(title)+2) + colorReset)
}

func printField(label, value string) {
	fmt.Printf("  %s%-14s%s %s\n", colorBold, label+":", colorReset, value)
}

var ansiRe = regexp.MustCompile(`\033\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

// printTable prints a simple aligned table.
func printTable(headers []string, rows [][]string) {
	if len(rows) == 0 {
		fmt.Println(colorDim + "  (none)" + colorReset)
		return
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				if w := len(stripAnsi(cell)); w > widths[i] {
					widths[i] = w
				}
			}
		}
	}

	headerLine := "  "
	for i, h := range headers {
		headerLine += fmt.Sprintf("%s%-*s%s", colorBold, widths[i]+2, h, colorReset)
	}
	fmt.Println(headerLine)

	for _, row := range rows {
		line := "  "
		for i, cell := range row {
			pad := widths[i] + 2 - len(stripAnsi(cell))
			line += cell + strings.Repeat(" ", pad)
		}
		fmt.Println(line)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func humanAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t).Round(time.Second)
	if d < time.Minute {
		return d.String()
	}
	return d.Round(time.Minute).String()
}
