package pipeline

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/notegest/internal/export"
	"github.com/dgallion1/notegest/internal/sink"
)

// JobStatus represents the state of an export job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusConnecting JobStatus = "connecting"
	StatusExporting  JobStatus = "exporting"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks one export pass over a host session.
type Job struct {
	mu sync.Mutex

	ID        string `json:"job_id"`
	SessionID string `json:"session_id"`
	Title     string `json:"title"`

	Status JobStatus `json:"status"`
	Phase  string    `json:"phase"`

	Options  export.Options `json:"options"`
	Progress Progress       `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	records  *sink.MemorySink
	markdown *sink.MarkdownSink
	outputs  []string
	errors   []string
}

// Progress tracks export progress.
type Progress struct {
	Pages    int      `json:"pages"`
	Records  int      `json:"records"`
	Skipped  int      `json:"skipped"`
	Commits  int      `json:"commits"`
	Errors   []string `json:"errors"`
	RunID    string   `json:"run_id,omitempty"`
	Outputs  []string `json:"outputs,omitempty"`
	Duration string   `json:"duration,omitempty"`
}

// NewJob creates a queued job with a fresh id.
func NewJob(title string, opts export.Options) *Job {
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		Title:     title,
		Status:    StatusQueued,
		Phase:     "queued",
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
		records:   sink.NewMemorySink(),
		markdown:  sink.NewMarkdownSink(title),
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

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		expired := now.Sub(job.UpdatedAt) > s.ttl
		job.mu.Unlock()
		if expired {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// SetSession records the host session the job runs against.
func (j *Job) SetSession(id string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.SessionID = id
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

// IncrRecords counts one emitted record.
func (j *Job) IncrRecords() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Records++
	j.UpdatedAt = time.Now()
}

// SetSummary copies the pass summary into the job's progress.
func (j *Job) SetSummary(sum export.Summary, elapsed time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.RunID = sum.RunID
	j.Progress.Pages = sum.Pages
	j.Progress.Records = sum.Records
	j.Progress.Skipped = sum.Skipped
	j.Progress.Commits = sum.Commits
	j.Progress.Duration = elapsed.Round(time.Millisecond).String()
	j.UpdatedAt = time.Now()
}

// AddOutput records a file written for the job.
func (j *Job) AddOutput(path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.outputs = append(j.outputs, path)
	j.Progress.Outputs = j.outputs
}

// Records returns the records emitted so far.
func (j *Job) Records() []export.Record {
	return j.records.Records()
}

// Markdown returns the rendered document so far.
func (j *Job) Markdown() string {
	return j.markdown.Markdown()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string         `json:"job_id"`
	SessionID string         `json:"session_id,omitempty"`
	Title     string         `json:"title"`
	Status    JobStatus      `json:"status"`
	Phase     string         `json:"phase"`
	Options   export.Options `json:"options"`
	Progress  Progress       `json:"progress"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.errors...)
	p.Outputs = append([]string(nil), j.outputs...)
	return JobSnapshot{
		ID:        j.ID,
		SessionID: j.SessionID,
		Title:     j.Title,
		Status:    j.Status,
		Phase:     j.Phase,
		Options:   j.Options,
		Progress:  p,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// Done reports whether the job reached a terminal status.
func (j *Job) Done() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status == StatusCompleted || j.Status == StatusFailed
}

// HTML renders the document so far.
func (j *Job) HTML() (string, error) {
	return j.markdown.HTML()
}
