// Package pipeline resolves a job's product requests into a dependency
// graph of step nodes, schedules ready steps onto a bounded worker pool,
// and aggregates per-step results into job status and progress events.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/fingerprint"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
)

// StepState is the lifecycle state of one step node.
type StepState int32

const (
	StepPending StepState = iota
	StepReady
	StepRunning
	StepCompleted
	StepFailed
	StepSkipped
)

func (s StepState) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepReady:
		return "ready"
	case StepRunning:
		return "running"
	case StepCompleted:
		return "completed"
	case StepFailed:
		return "failed"
	case StepSkipped:
		return "skipped"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Terminal reports whether no further transition is possible.
func (s StepState) Terminal() bool {
	return s == StepCompleted || s == StepFailed || s == StepSkipped
}

// JobState is the caller-visible overall state of a job.
type JobState string

const (
	JobRunning        JobState = "running"
	JobSucceeded      JobState = "succeeded"
	JobPartialSuccess JobState = "partial_success"
	JobFailed         JobState = "failed"
	JobCancelled      JobState = "cancelled"
)

// CancelledError marks caller-initiated cancellation. It is not a failure:
// affected steps report skipped, never failed.
type CancelledError struct {
	JobID string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("job %s cancelled", e.JobID)
}

// stepNode is one vertex in a job's dependency graph. Nodes are owned
// exclusively by the engine that created them; state moves through atomics
// the way the workers observe it, and finishOnce guarantees exactly one
// terminal transition (and exactly one WaitGroup decrement) per node.
type stepNode struct {
	id          string
	fingerprint fingerprint.Fingerprint
	spec        product.Spec
	deps        []*stepNode
	dependents  []*stepNode
	requested   bool

	state      atomic.Int32
	depCount   atomic.Int32
	finishOnce sync.Once

	mu       sync.Mutex
	err      error
	artifact *raster.Artifact
}

func (n *stepNode) State() StepState { return StepState(n.state.Load()) }

func (n *stepNode) setErr(err error) {
	n.mu.Lock()
	n.err = err
	n.mu.Unlock()
}

func (n *stepNode) Err() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.err
}

func (n *stepNode) setArtifact(a *raster.Artifact) {
	n.mu.Lock()
	n.artifact = a
	n.mu.Unlock()
}

func (n *stepNode) Artifact() *raster.Artifact {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.artifact
}

// Job is one caller-visible unit of work: a source surface, the requested
// products, and the expanded step graph.
type Job struct {
	ID        string
	Source    string
	CreatedAt time.Time

	nodes     []*stepNode // submission order; ties in readiness break by this order
	requested []*stepNode

	cancel    context.CancelFunc
	cancelled atomic.Bool
	done      chan struct{}
}

// Done is closed when every step reached a terminal state.
func (j *Job) Done() <-chan struct{} { return j.done }

// Cancelled reports whether the caller cancelled the job.
func (j *Job) Cancelled() bool { return j.cancelled.Load() }

// StepStatus is the caller-visible snapshot of one step.
type StepStatus struct {
	StepID      string    `json:"step_id"`
	Product     string    `json:"product"`
	DisplayName string    `json:"display_name"`
	Fingerprint string    `json:"fingerprint"`
	State       string    `json:"state"`
	Requested   bool      `json:"requested"`
	Error       string    `json:"error,omitempty"`
}

// JobStatus is the caller-visible snapshot of a whole job.
type JobStatus struct {
	JobID     string       `json:"job_id"`
	Source    string       `json:"source"`
	State     JobState     `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
	Steps     []StepStatus `json:"steps"`
}

func newJob(source string) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Source:    source,
		CreatedAt: time.Now().UTC(),
		done:      make(chan struct{}),
	}
}

// overallState derives the job state from the requested nodes. Cancellation
// wins unless every requested product had already completed.
func (j *Job) overallState(finished bool) JobState {
	completed, terminal := 0, 0
	for _, n := range j.requested {
		s := n.State()
		if s.Terminal() {
			terminal++
		}
		if s == StepCompleted {
			completed++
		}
	}
	if !finished && terminal < len(j.requested) {
		return JobRunning
	}
	if j.Cancelled() && completed < len(j.requested) {
		return JobCancelled
	}
	switch {
	case completed == len(j.requested):
		return JobSucceeded
	case completed > 0:
		return JobPartialSuccess
	default:
		return JobFailed
	}
}
