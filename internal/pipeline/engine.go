package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/cache"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/ctxlog"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/events"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/fingerprint"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/product"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/raster"
	"github.com/Cryptokraken974/SHO-to-Z-sub005/internal/steps"
)

// Engine schedules jobs. One Engine owns its jobs' step nodes exclusively;
// collaborators observe them only through Status snapshots and progress
// events.
type Engine struct {
	executors *steps.Set
	store     *cache.Cache
	sinks     *events.Registry
	workers   int

	// sem is the engine-wide worker pool: one slot per configured worker,
	// shared by every running job. External engine processes are CPU- and
	// memory-heavy, so the bound must hold across jobs, not per job.
	sem chan struct{}

	mu   sync.RWMutex
	jobs map[string]*Job
}

// New creates an engine over the given executor set, artifact cache, and
// event sink registry. workers bounds concurrent step executions across
// every job this engine runs.
func New(executors *steps.Set, store *cache.Cache, sinks *events.Registry, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}
	return &Engine{
		executors: executors,
		store:     store,
		sinks:     sinks,
		workers:   workers,
		sem:       make(chan struct{}, workers),
		jobs:      make(map[string]*Job),
	}
}

// Sinks exposes the engine's event registry so transports can attach.
func (e *Engine) Sinks() *events.Registry { return e.sinks }

// Submit validates the request, expands the step graph, and starts the job.
// Validation errors return synchronously; everything after that is reported
// through progress events and Status.
func (e *Engine) Submit(ctx context.Context, source string, requested []product.Spec) (string, error) {
	if source == "" {
		return "", &product.ValidationError{Field: "source", Reason: "source surface reference required"}
	}
	if len(requested) == 0 {
		return "", &product.ValidationError{Field: "products", Reason: "at least one product required"}
	}
	for _, spec := range requested {
		if err := spec.Validate(); err != nil {
			return "", err
		}
	}

	job := newJob(source)
	job.nodes, job.requested = expandGraph(source, requested)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx = ctxlog.WithLogger(runCtx, ctxlog.FromContext(ctx).With("jobID", job.ID))
	job.cancel = cancel

	e.mu.Lock()
	e.jobs[job.ID] = job
	e.mu.Unlock()

	ctxlog.FromContext(ctx).Info("Job submitted.",
		"jobID", job.ID, "source", source, "requested", len(requested), "steps", len(job.nodes))

	go e.run(runCtx, job)
	return job.ID, nil
}

// Cancel stops a job: non-terminal steps become skipped and in-flight
// executors abort cooperatively at the next engine-call boundary.
// Already-committed artifacts stay in the cache.
func (e *Engine) Cancel(jobID string) error {
	job, ok := e.lookup(jobID)
	if !ok {
		return fmt.Errorf("unknown job %s", jobID)
	}
	job.cancelled.Store(true)
	job.cancel()
	return nil
}

// Status snapshots a job.
func (e *Engine) Status(jobID string) (JobStatus, error) {
	job, ok := e.lookup(jobID)
	if !ok {
		return JobStatus{}, fmt.Errorf("unknown job %s", jobID)
	}

	finished := false
	select {
	case <-job.done:
		finished = true
	default:
	}

	st := JobStatus{
		JobID:     job.ID,
		Source:    job.Source,
		State:     job.overallState(finished),
		CreatedAt: job.CreatedAt,
	}
	for _, n := range job.nodes {
		ss := StepStatus{
			StepID:      n.id,
			Product:     n.spec.Kind.String(),
			DisplayName: n.spec.Kind.DisplayName(),
			Fingerprint: string(n.fingerprint),
			State:       n.State().String(),
			Requested:   n.requested,
		}
		if err := n.Err(); err != nil {
			ss.Error = err.Error()
		}
		st.Steps = append(st.Steps, ss)
	}
	return st, nil
}

// Wait blocks until the job reaches a terminal state or ctx expires.
func (e *Engine) Wait(ctx context.Context, jobID string) (JobStatus, error) {
	job, ok := e.lookup(jobID)
	if !ok {
		return JobStatus{}, fmt.Errorf("unknown job %s", jobID)
	}
	select {
	case <-job.Done():
		return e.Status(jobID)
	case <-ctx.Done():
		return JobStatus{}, ctx.Err()
	}
}

// Artifact returns a committed artifact by fingerprint. Completed products
// stay retrievable even when their job ended partial or failed.
func (e *Engine) Artifact(fp string) (*raster.Artifact, bool) {
	return e.store.Get(fingerprint.Fingerprint(fp))
}

// ArtifactMeta returns the georeferencing sidecar for a committed artifact.
func (e *Engine) ArtifactMeta(fp string) (raster.Meta, bool) {
	return e.store.Meta(fingerprint.Fingerprint(fp))
}

func (e *Engine) lookup(jobID string) (*Job, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	job, ok := e.jobs[jobID]
	return job, ok
}

// run executes one job's graph. Roots seed the ready channel in submission
// order; a completed node unlocks dependents whose dependency count hits
// zero. The channel is sized for every node up front so enqueueing a
// dependent never blocks a worker. The per-job goroutines contend for the
// engine-wide pool slots, so total concurrency stays bounded no matter how
// many jobs run.
func (e *Engine) run(ctx context.Context, job *Job) {
	logger := ctxlog.FromContext(ctx)
	defer close(job.done)

	readyChan := make(chan *stepNode, len(job.nodes))
	var wg sync.WaitGroup
	wg.Add(len(job.nodes))

	for _, n := range job.nodes {
		if n.depCount.Load() == 0 {
			n.state.Store(int32(StepReady))
			readyChan <- n
		}
	}

	logger.Debug("Starting worker pool.", "workers", e.workers, "steps", len(job.nodes))
	for i := 0; i < e.workers; i++ {
		go e.worker(ctx, job, readyChan, &wg)
	}

	wg.Wait()
	close(readyChan)

	state := job.overallState(true)
	logger.Info("Job finished.", "state", state)
}

// worker is the processing loop for one pool slot.
func (e *Engine) worker(ctx context.Context, job *Job, readyChan chan *stepNode, wg *sync.WaitGroup) {
	for node := range readyChan {
		// A node can be enqueued after skipDependents already finished it:
		// one dependency failed while another was still running and later
		// decremented the count to zero. Terminal nodes are done, not re-run.
		if node.State().Terminal() {
			continue
		}
		if ctx.Err() != nil {
			e.finishSkipped(ctx, job, node, &CancelledError{JobID: job.ID}, wg)
			e.skipDependents(ctx, job, node, wg)
			continue
		}
		// Slots are shared engine-wide; skipping above needs none.
		e.sem <- struct{}{}
		e.execute(ctx, job, node, readyChan, wg)
		<-e.sem
	}
}

// execute runs one step through the cache and transitions it to a terminal
// state, unlocking dependents on success.
func (e *Engine) execute(ctx context.Context, job *Job, node *stepNode, readyChan chan *stepNode, wg *sync.WaitGroup) {
	logger := ctxlog.FromContext(ctx).With("stepID", node.id, "product", node.spec.Kind.String())

	node.state.Store(int32(StepRunning))
	e.emit(job, node, events.KindStarted, 0, "step started", nil)

	depArtifacts := make([]*raster.Artifact, len(node.deps))
	for i, d := range node.deps {
		depArtifacts[i] = d.Artifact()
	}

	artifact, hit, err := e.store.GetOrBuild(ctx, node.fingerprint, func(buildCtx context.Context) (*raster.Artifact, error) {
		executor, err := e.executors.For(node.spec.Kind)
		if err != nil {
			return nil, err
		}
		e.emit(job, node, events.KindProgress, 50, "invoking executor", nil)
		grid, err := executor.Run(buildCtx, steps.Request{
			Source: job.Source,
			Spec:   node.spec,
			Deps:   depArtifacts,
		})
		if err != nil {
			return nil, err
		}
		return &raster.Artifact{Kind: node.spec.Kind.String(), Grid: grid}, nil
	})

	switch {
	case err == nil:
		if hit {
			logger.Debug("Cache hit.", "fingerprint", node.fingerprint)
		}
		node.setArtifact(artifact)
		node.finishOnce.Do(func() {
			node.state.Store(int32(StepCompleted))
			e.emit(job, node, events.KindCompleted, 100, "step completed", nil)
			wg.Done()
		})
		for _, dependent := range node.dependents {
			if dependent.depCount.Add(-1) == 0 {
				dependent.state.Store(int32(StepReady))
				readyChan <- dependent
			}
		}

	case errors.Is(err, context.Canceled):
		logger.Debug("Step aborted by cancellation.")
		e.finishSkipped(ctx, job, node, &CancelledError{JobID: job.ID}, wg)
		e.skipDependents(ctx, job, node, wg)

	default:
		logger.Error("Step failed.", "error", err)
		node.setErr(err)
		node.finishOnce.Do(func() {
			node.state.Store(int32(StepFailed))
			e.emit(job, node, events.KindFailed, 100, "step failed", err)
			wg.Done()
		})
		e.skipDependents(ctx, job, node, wg)
	}
}

// skipDependents marks every not-yet-started downstream node skipped.
// Sibling branches that do not depend on the failed node keep running:
// partial product delivery is expected.
func (e *Engine) skipDependents(ctx context.Context, job *Job, node *stepNode, wg *sync.WaitGroup) {
	for _, dependent := range node.dependents {
		err := fmt.Errorf("upstream step %s did not complete", node.spec.Kind)
		e.finishSkipped(ctx, job, dependent, err, wg)
		e.skipDependents(ctx, job, dependent, wg)
	}
}

func (e *Engine) finishSkipped(ctx context.Context, job *Job, node *stepNode, cause error, wg *sync.WaitGroup) {
	node.finishOnce.Do(func() {
		ctxlog.FromContext(ctx).Debug("Skipping step.", "stepID", node.id, "product", node.spec.Kind.String(), "cause", cause)
		node.setErr(cause)
		node.state.Store(int32(StepSkipped))
		e.emit(job, node, events.KindSkipped, 100, "step skipped", cause)
		wg.Done()
	})
}

func (e *Engine) emit(job *Job, node *stepNode, kind events.Kind, percent float64, msg string, err error) {
	ev := events.ProgressEvent{
		JobID:       job.ID,
		StepID:      node.id,
		Product:     node.spec.Kind.String(),
		DisplayName: node.spec.Kind.DisplayName(),
		Kind:        kind,
		Percent:     percent,
		Message:     msg,
		At:          nowUTC(),
	}
	if err != nil {
		ev.ErrorDetail = err.Error()
	}
	e.sinks.Publish(ev)
}

func nowUTC() time.Time { return time.Now().UTC() }
