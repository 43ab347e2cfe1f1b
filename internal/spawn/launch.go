package spawn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"agentmesh/internal/debug"
	"agentmesh/internal/stream"
)

// launchSpec is everything launchChild needs to run one task.
type launchSpec struct {
	Binary    string
	WorkDir   string
	Task      string
	Callsign  string
	AgentName string
	Depth     int

	Coordinator      string
	Model            string
	Tools            []string
	ExtensionPath    string
	SystemPromptFile string
	Timeout          time.Duration
}

// launchChild runs one child agent CLI process to completion and returns its
// result. The child writes stream-json NDJSON on stdout; stderr is buffered
// and used as the output of last resort when the stream yielded nothing.
func launchChild(ctx context.Context, spec launchSpec) Result {
	res := Result{Callsign: spec.Callsign, AgentName: spec.AgentName, Model: spec.Model}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	args := buildArgs(spec)
	debug.LogKV("spawn", "launching child",
		"agent", spec.AgentName, "binary", spec.Binary,
		"args", strings.Join(args, " "), "task_len", len(spec.Task))

	cmd := exec.CommandContext(ctx, spec.Binary, args...)
	cmd.Dir = spec.WorkDir
	cmd.Stdin = strings.NewReader(spec.Task)

	// Children (Node-based CLIs) fork their own helpers; a process group lets
	// cancellation kill the whole tree instead of leaving orphans holding the
	// stdout pipe open.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process != nil {
			return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		return nil
	}
	cmd.WaitDelay = 5 * time.Second

	cmd.Env = childEnv(spec)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		res.Err = fmt.Errorf("stdout pipe: %w", err)
		return res
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		res.Err = fmt.Errorf("starting %s: %w", spec.Binary, err)
		return res
	}

	var outcome stream.Outcome
	for it := range stream.Parse(ctx, stdout) {
		if it.Err != nil {
			debug.LogKV("spawn", "unparseable stream line", "agent", spec.AgentName, "err", it.Err)
			continue
		}
		outcome.Observe(&it.Event)
	}

	waitErr := cmd.Wait()
	res.Duration = time.Since(start)
	res.SessionID = outcome.SessionID
	if outcome.Model != "" {
		res.Model = outcome.Model
	}
	res.Output = outcome.Text

	res.ExitCode, res.Err = extractExitCode(waitErr)
	if ctx.Err() != nil {
		res.Err = fmt.Errorf("child run: %w", ctx.Err())
	}

	if res.Output == "" {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			res.Output = msg
		}
	}
	if res.Err == nil && res.ExitCode == 0 && !outcome.Complete() {
		res.Err = errors.New("stream ended without a result event")
	}

	if res.Err != nil {
		res.ErrText = res.Err.Error()
	}
	debug.LogKV("spawn", "child finished",
		"agent", spec.AgentName, "session", res.SessionID,
		"exit", res.ExitCode, "dur", res.Duration, "err", res.Err)
	return res
}

func buildArgs(spec launchSpec) []string {
	args := []string{"--print", "--output-format", "stream-json", "--verbose"}
	if spec.Model != "" {
		args = append(args, "--model", spec.Model)
	}
	if len(spec.Tools) > 0 {
		args = append(args, "--allowedTools", strings.Join(spec.Tools, ","))
	}
	if spec.ExtensionPath != "" {
		args = append(args, "--mcp-config", spec.ExtensionPath)
	}
	if spec.SystemPromptFile != "" {
		args = append(args, "--append-system-prompt-file", spec.SystemPromptFile)
	}
	return args
}

// childEnv inherits the parent environment and overlays the mesh variables:
// the child's registry name, its spawn depth, its coordinator's name, and
// debug log propagation.
func childEnv(spec launchSpec) []string {
	env := os.Environ()
	env = append(env,
		EnvAgentName+"="+spec.AgentName,
		fmt.Sprintf("%s=%d", EnvSpawnDepth, spec.Depth+1),
		EnvCoordinator+"="+spec.Coordinator,
	)
	return debug.PropagatedEnv(env, spec.Callsign)
}

func extractExitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return 0, err
}
