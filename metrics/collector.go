// Package metrics provides per-invocation counters for build and flash work.
//
// The Collector accumulates counters during a single command. It is a leaf
// package with no internal dependencies: stage names are plain strings so the
// toolchain and flash packages can record into it without an import cycle.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all counters.
type Snapshot struct {
	// Stages, keyed by stage name (compile, package, flash).
	StageRuns     map[string]int64 `json:"stage_runs"`
	StageFailures map[string]int64 `json:"stage_failures"`
	StageTimeouts map[string]int64 `json:"stage_timeouts"`

	// Device detection
	PollCycles int64 `json:"poll_cycles"`

	// Upload lifecycle
	UploadAttempts  int64 `json:"upload_attempts"`
	UploadSuccesses int64 `json:"upload_successes"`
	UploadFailures  int64 `json:"upload_failures"`

	// Dimensions (informational, set at construction)
	Command string `json:"command"`
	Source  string `json:"source"`
}

// Collector accumulates counters during a single command.
// Thread-safe via sync.Mutex. All methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	stageRuns     map[string]int64
	stageFailures map[string]int64
	stageTimeouts map[string]int64

	pollCycles int64

	uploadAttempts  int64
	uploadSuccesses int64
	uploadFailures  int64

	command string
	source  string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(command, source string) *Collector {
	return &Collector{
		stageRuns:     make(map[string]int64),
		stageFailures: make(map[string]int64),
		stageTimeouts: make(map[string]int64),
		command:       command,
		source:        source,
	}
}

// --- Stages ---

// IncStageRun records an invocation of an external stage.
func (c *Collector) IncStageRun(stage string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stageRuns[stage]++
	c.mu.Unlock()
}

// IncStageFailure records a failed stage (nonzero exit, missing output).
func (c *Collector) IncStageFailure(stage string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stageFailures[stage]++
	c.mu.Unlock()
}

// IncStageTimeout records a stage that exceeded its timeout.
// Timeouts are also counted as failures.
func (c *Collector) IncStageTimeout(stage string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.stageTimeouts[stage]++
	c.stageFailures[stage]++
	c.mu.Unlock()
}

// --- Device detection ---

// IncPollCycle records one empty scan followed by a poll wait.
func (c *Collector) IncPollCycle() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.pollCycles++
	c.mu.Unlock()
}

// --- Upload ---

// IncUploadAttempt records an invocation of the flash stage.
func (c *Collector) IncUploadAttempt() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.uploadAttempts++
	c.mu.Unlock()
}

// IncUploadSuccess records a completed upload.
func (c *Collector) IncUploadSuccess() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.uploadSuccesses++
	c.mu.Unlock()
}

// IncUploadFailure records a failed upload.
func (c *Collector) IncUploadFailure() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.uploadFailures++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		StageRuns:     copyCounts(c.stageRuns),
		StageFailures: copyCounts(c.stageFailures),
		StageTimeouts: copyCounts(c.stageTimeouts),

		PollCycles: c.pollCycles,

		UploadAttempts:  c.uploadAttempts,
		UploadSuccesses: c.uploadSuccesses,
		UploadFailures:  c.uploadFailures,

		Command: c.command,
		Source:  c.source,
	}
}

func copyCounts(m map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
