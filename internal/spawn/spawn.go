// Package spawn launches child agent runs: it validates a spawn request,
// assigns each task a deterministic callsign, runs the child CLI processes
// with bounded parallelism, and records the run outcome in the shared state
// directory.
package spawn

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Hard limits on a single spawn request.
const (
	MaxTasks = 8
	MaxDepth = 2

	DefaultParallel = 4
)

// Environment variables handed to child agents so they can find their way
// back into the mesh.
const (
	EnvAgentName   = "AGENTMESH_AGENT_NAME"
	EnvSpawnDepth  = "AGENTMESH_SPAWN_DEPTH"
	EnvCoordinator = "AGENTMESH_COORDINATOR"
)

var (
	ErrNoTask          = errors.New("spawn: no task given")
	ErrAmbiguousTasks  = errors.New("spawn: provide a single task or a task list, not both")
	ErrTooManyTasks    = fmt.Errorf("spawn: at most %d tasks per run", MaxTasks)
	ErrMaxDepthReached = fmt.Errorf("spawn: max spawn depth (%d) reached", MaxDepth)
	ErrRunInProgress   = errors.New("spawn: a run is already in progress")
)

// Request describes one spawn run. Exactly one of Task or Tasks must be set.
type Request struct {
	Task  string
	Tasks []string

	Model            string
	Tools            []string
	ExtensionPath    string
	SystemPromptFile string

	// Timeout bounds each individual child run; zero means no limit.
	Timeout time.Duration
}

func (r *Request) taskList() []string {
	if r.Task != "" {
		return []string{r.Task}
	}
	return r.Tasks
}

func (r *Request) validate() error {
	single := strings.TrimSpace(r.Task) != ""
	multi := len(r.Tasks) > 0
	switch {
	case single && multi:
		return ErrAmbiguousTasks
	case !single && !multi:
		return ErrNoTask
	case len(r.Tasks) > MaxTasks:
		return ErrTooManyTasks
	}
	for i, t := range r.Tasks {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("spawn: task %d is empty", i)
		}
	}
	return nil
}

// Result is the outcome of one child run within a spawn.
type Result struct {
	Callsign  string        `json:"callsign"`
	AgentName string        `json:"agent_name"`
	SessionID string        `json:"session_id,omitempty"`
	Model     string        `json:"model,omitempty"`
	Output    string        `json:"output,omitempty"`
	ExitCode  int           `json:"exit_code"`
	Duration  time.Duration `json:"duration"`

	// Err is the launch failure, if any. ErrText mirrors it for the
	// persisted run record.
	Err     error  `json:"-"`
	ErrText string `json:"error,omitempty"`
}

// Failed reports whether the child run ended unusably.
func (r *Result) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// newRunID returns a short random hex id shared by all children of one run.
func newRunID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(b[:])
}

// DepthFromEnv reads the caller's spawn depth from the environment. Missing
// or malformed values count as depth zero (a top-level coordinator).
func DepthFromEnv() int {
	d, err := strconv.Atoi(os.Getenv(EnvSpawnDepth))
	if err != nil || d < 0 {
		return 0
	}
	return d
}
