package spawn

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"agentmesh/internal/debug"
	"agentmesh/internal/fstore"
)

// Options configures an Orchestrator. Zero values pick sensible defaults.
type Options struct {
	// Binary is the child agent CLI executable. Defaults to "claude".
	Binary string
	// WorkDir is the working directory children run in.
	WorkDir string
	// Parallel caps concurrently running children. Defaults to
	// DefaultParallel.
	Parallel int
	// Depth is this process's own spawn depth; children run at Depth+1.
	// Use DepthFromEnv for processes that were themselves spawned.
	Depth int
}

// Orchestrator runs spawn requests one at a time on behalf of a named
// coordinator agent. Completed runs are recorded under runs/ in the shared
// state directory.
type Orchestrator struct {
	store       *fstore.Store
	coordinator string
	opts        Options

	mu      sync.Mutex
	running bool
}

// New returns an Orchestrator for the given coordinator agent.
func New(store *fstore.Store, coordinator string, opts Options) *Orchestrator {
	if opts.Binary == "" {
		opts.Binary = "claude"
	}
	if opts.Parallel <= 0 {
		opts.Parallel = DefaultParallel
	}
	return &Orchestrator{store: store, coordinator: coordinator, opts: opts}
}

// RunRecord is the persisted summary of one completed spawn run.
type RunRecord struct {
	RunID       string    `json:"run_id"`
	Coordinator string    `json:"coordinator"`
	Model       string    `json:"model,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Results     []Result  `json:"results"`
}

// Run executes every task in the request and returns one Result per task, in
// task order. Per-child failures land in their Result; Run itself fails only
// on invalid requests, the depth limit, an already-running spawn, or a
// failure to persist the run record.
func (o *Orchestrator) Run(ctx context.Context, req Request) ([]Result, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	if o.opts.Depth >= MaxDepth {
		return nil, ErrMaxDepthReached
	}

	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return nil, ErrRunInProgress
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	tasks := req.taskList()
	runID := newRunID()
	callsigns := assignCallsigns(runID, len(tasks))
	started := time.Now().UTC()

	debug.LogKV("spawn", "run starting",
		"run_id", runID, "coordinator", o.coordinator,
		"tasks", len(tasks), "parallel", o.opts.Parallel)

	results := mapWithLimit(o.opts.Parallel, tasks, func(i int, task string) Result {
		return launchChild(ctx, launchSpec{
			Binary:           o.opts.Binary,
			WorkDir:          o.opts.WorkDir,
			Task:             task,
			Callsign:         callsigns[i],
			AgentName:        AgentName(callsigns[i], runID),
			Depth:            o.opts.Depth,
			Coordinator:      o.coordinator,
			Model:            req.Model,
			Tools:            req.Tools,
			ExtensionPath:    req.ExtensionPath,
			SystemPromptFile: req.SystemPromptFile,
			Timeout:          req.Timeout,
		})
	})

	rec := RunRecord{
		RunID:       runID,
		Coordinator: o.coordinator,
		Model:       req.Model,
		StartedAt:   started,
		FinishedAt:  time.Now().UTC(),
		Results:     results,
	}
	if err := o.store.WriteJSON(filepath.Join("runs", runID+".json"), rec); err != nil {
		return results, err
	}
	return results, nil
}
