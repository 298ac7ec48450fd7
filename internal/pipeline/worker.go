package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/dgallion1/splitpdf/internal/apperr"
	"github.com/dgallion1/splitpdf/internal/boundary"
	"github.com/dgallion1/splitpdf/internal/config"
	"github.com/dgallion1/splitpdf/internal/metrics"
	"github.com/dgallion1/splitpdf/internal/splitter"
	"github.com/spf13/afero"
)

// Worker processes a single split job.
type Worker struct {
	fs      afero.Fs
	cfg     config.Config
	metrics *metrics.Metrics
	log     *slog.Logger
}

func NewWorker(fsys afero.Fs, cfg config.Config, m *metrics.Metrics, log *slog.Logger) *Worker {
	return &Worker{
		fs:      fsys,
		cfg:     cfg,
		metrics: m,
		log:     log,
	}
}

// JobDir is where a job keeps its upload and its outputs.
func JobDir(workDir, jobID string) string {
	return filepath.Join(workDir, jobID)
}

// OutputDir is where a job's output files are written.
func OutputDir(workDir, jobID string) string {
	return filepath.Join(JobDir(workDir, jobID), "out")
}

// Process stages the upload on disk and runs the split for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	start := time.Now()
	defer func() {
		w.metrics.JobFinished(string(job.status()), time.Since(start))
	}()

	// Phase 1: stage the upload and open the document.
	job.SetStatus(StatusOpening, "opening")
	docPath, indexPath, err := w.stage(job)
	if err != nil {
		log.Error("staging upload failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "opening")
		return
	}

	req := RequestFromConfig(w.cfg, docPath)
	req.IndexPath = indexPath
	req.OutputDir = OutputDir(w.cfg.WorkDir, job.ID)
	req.Profile = job.Profile
	req.OnOpen = func(pages int) {
		job.SetTotalPages(pages)
		// Phase 2: split.
		job.SetStatus(StatusSplitting, "splitting")
	}
	req.OnOutput = func(out splitter.Output) {
		job.AddOutput(out)
		w.metrics.OutputWritten(out.Size, out.Oversized)
	}

	res, sum, err := Split(ctx, w.fs, req, log)
	if err != nil {
		log.Error("split failed", "error", err, "kind", apperr.Kind(err))
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, failedPhase(job))
		return
	}

	for _, skip := range res.Skipped {
		job.AddError(fmt.Sprintf("section %q skipped: %s", skip.Section, skip.Reason))
	}
	job.Finish(sum, res.Skipped)
	job.SetStatus(StatusCompleted, "done")
	log.Info("job completed", "outputs", sum.Outputs, "skipped", sum.Skipped)
}

// stage writes the uploaded document (and boundary table) into the job dir.
func (w *Worker) stage(job *Job) (docPath, indexPath string, err error) {
	dir := JobDir(w.cfg.WorkDir, job.ID)
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return "", "", apperr.IO("stage upload", dir, err)
	}

	doc, index := job.FileData()
	docPath = filepath.Join(dir, job.Filename)
	if err := afero.WriteFile(w.fs, docPath, doc, 0o644); err != nil {
		return "", "", apperr.IO("stage upload", docPath, err)
	}
	if job.HasIndex() {
		indexPath = filepath.Join(dir, boundary.DefaultFileName)
		if err := afero.WriteFile(w.fs, indexPath, index, 0o644); err != nil {
			return "", "", apperr.IO("stage upload", indexPath, err)
		}
	}
	job.releaseFileData()
	return docPath, indexPath, nil
}

func failedPhase(job *Job) string {
	if job.status() == StatusSplitting {
		return "splitting"
	}
	return "opening"
}
