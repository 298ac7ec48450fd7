package pipeline

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgallion1/splitpdf/internal/splitter"
	"github.com/segmentio/ksuid"
)

// JobStatus represents the state of a split job.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusOpening   JobStatus = "opening"
	StatusSplitting JobStatus = "splitting"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// Job tracks the state of a single uploaded document split.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Filename string `json:"filename"`
	Profile  string `json:"profile"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData  []byte
	indexData []byte
	hasIndex  bool
	summary   Summary
	outputs   []splitter.Output
	skipped   []splitter.Skip
	errors    []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalPages     int      `json:"total_pages"`
	PagesWritten   int      `json:"pages_written"`
	OutputsWritten int      `json:"outputs_written"`
	Errors         []string `json:"errors"`
}

// NewJob creates a queued job with a fresh KSUID.
func NewJob(filename, profile, contentHash string) *Job {
	now := time.Now()
	return &Job{
		ID:          ksuid.New().String(),
		Filename:    filename,
		Profile:     profile,
		Status:      StatusQueued,
		Phase:       "queued",
		ContentHash: contentHash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// FindByHash returns a live job with the given content hash. Failed jobs
// are never handed out again.
func (s *JobStore) FindByHash(hash string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found *Job
	for _, job := range s.jobs {
		if job.ContentHash != hash || job.status() == StatusFailed {
			continue
		}
		if found == nil || job.CreatedAt.Before(found.CreatedAt) {
			found = job
		}
	}
	return found
}

// Cleanup removes expired jobs and returns them so their files can go too.
func (s *JobStore) Cleanup() []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	var expired []*Job
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
			expired = append(expired, job)
		}
	}
	return expired
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (j *Job) status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTotalPages records the page count of the opened document.
func (j *Job) SetTotalPages(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalPages = n
	j.UpdatedAt = time.Now()
}

// AddOutput records one written output file.
func (j *Job) AddOutput(out splitter.Output) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outputs = append(j.outputs, out)
	j.Progress.OutputsWritten++
	j.Progress.PagesWritten += out.Pages.Len()
	j.UpdatedAt = time.Now()
}

// Finish stores the run summary and the skipped sections.
func (j *Job) Finish(sum Summary, skipped []splitter.Skip) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.summary = sum
	j.skipped = skipped
	j.UpdatedAt = time.Now()
}

// SetFileData sets the uploaded document and the optional boundary table.
func (j *Job) SetFileData(doc, index []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = doc
	j.indexData = index
	j.hasIndex = index != nil
}

// FileData returns the uploaded bytes.
func (j *Job) FileData() (doc, index []byte) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData, j.indexData
}

// HasIndex reports whether a boundary table was uploaded with the document.
func (j *Job) HasIndex() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.hasIndex
}

// releaseFileData drops the upload once it is staged on disk.
func (j *Job) releaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
	j.indexData = nil
}

// Output returns the output with the given file name.
func (j *Job) Output(name string) (splitter.Output, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, out := range j.outputs {
		if filepath.Base(out.Path) == name {
			return out, true
		}
	}
	return splitter.Output{}, false
}

// FileInfo is an output as the status endpoint lists it.
type FileInfo struct {
	Name      string `json:"name"`
	Section   string `json:"section,omitempty"`
	Part      int    `json:"part"`
	FirstPage int    `json:"first_page"`
	LastPage  int    `json:"last_page"`
	Size      int64  `json:"size"`
	Oversized bool   `json:"oversized,omitempty"`
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID       string          `json:"job_id"`
	Filename string          `json:"filename"`
	Profile  string          `json:"profile"`
	Status   JobStatus       `json:"status"`
	Phase    string          `json:"phase"`
	Progress Progress        `json:"progress"`
	Summary  *Summary        `json:"summary,omitempty"`
	Files    []FileInfo      `json:"files"`
	Skipped  []splitter.Skip `json:"skipped"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := j.Progress.Errors
	if errs == nil {
		errs = []string{}
	}
	files := make([]FileInfo, 0, len(j.outputs))
	for _, out := range j.outputs {
		files = append(files, FileInfo{
			Name:      filepath.Base(out.Path),
			Section:   out.Section,
			Part:      out.Part,
			FirstPage: out.FirstPage,
			LastPage:  out.LastPage,
			Size:      out.Size,
			Oversized: out.Oversized,
		})
	}
	skipped := append([]splitter.Skip{}, j.skipped...)
	snap := JobSnapshot{
		ID:       j.ID,
		Filename: j.Filename,
		Profile:  j.Profile,
		Status:   j.Status,
		Phase:    j.Phase,
		Progress: Progress{
			TotalPages:     j.Progress.TotalPages,
			PagesWritten:   j.Progress.PagesWritten,
			OutputsWritten: j.Progress.OutputsWritten,
			Errors:         errs,
		},
		Files:   files,
		Skipped: skipped,
	}
	if j.Status == StatusCompleted {
		sum := j.summary
		snap.Summary = &sum
	}
	return snap
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}

// SubmissionHash identifies a submission by everything that shapes its
// outputs: the document, the boundary table and the profile.
func SubmissionHash(doc, index []byte, profile string) string {
	h := sha256.New()
	h.Write(doc)
	h.Write([]byte{0})
	h.Write(index)
	h.Write([]byte{0})
	h.Write([]byte(profile))
	return fmt.Sprintf("%x", h.Sum(nil))
}
