package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/splitpdf/internal/config"
	"github.com/dgallion1/splitpdf/internal/metrics"
	"github.com/spf13/afero"
)

// ErrStopped is returned by Submit once the orchestrator is shutting down.
var ErrStopped = errors.New("split service is shutting down")

// Orchestrator manages the split job queue and its workers.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	fs      afero.Fs
	metrics *metrics.Metrics
	log     *slog.Logger
	cfg     config.Config

	cleanupEvery time.Duration

	// mu guards stopped and the close of queue against concurrent sends.
	mu      sync.RWMutex
	stopped bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline; call Start to run it. m may be nil.
func NewOrchestrator(cfg config.Config, fsys afero.Fs, m *metrics.Metrics, log *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		jobs:         NewJobStore(cfg.JobTTL),
		queue:        make(chan *Job, cfg.MaxQueueSize),
		fs:           fsys,
		metrics:      m,
		log:          log,
		cfg:          cfg,
		cleanupEvery: 5 * time.Minute,
	}
	m.QueueDepth(o.QueueDepth)
	return o
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.cfg.WorkerCount {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.fs, o.cfg, o.metrics, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.cleanupEvery)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline. Later calls are no-ops.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit queues a new job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "shutdown")
		return ErrStopped
	}

	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// FindByHash returns an earlier live job for the same submission.
func (o *Orchestrator) FindByHash(hash string) *Job {
	return o.jobs.FindByHash(hash)
}

// Cleanup evicts expired jobs and removes their work directories.
func (o *Orchestrator) Cleanup() int {
	expired := o.jobs.Cleanup()
	for _, job := range expired {
		dir := JobDir(o.cfg.WorkDir, job.ID)
		if err := o.fs.RemoveAll(dir); err != nil {
			o.log.Warn("removing job dir failed", "job_id", job.ID, "dir", dir, "error", err)
		}
	}
	if len(expired) > 0 {
		o.log.Info("expired jobs removed", "count", len(expired))
	}
	return len(expired)
}

// Fs returns the filesystem jobs are stored on.
func (o *Orchestrator) Fs() afero.Fs {
	return o.fs
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// Profiles returns the configured target profiles.
func (o *Orchestrator) Profiles() config.Profiles {
	return o.cfg.Profiles
}

// DefaultProfile is used when a submission names none.
func (o *Orchestrator) DefaultProfile() string {
	return o.cfg.Profile
}
