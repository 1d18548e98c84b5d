package pipeline

import (
	"sync"
	"time"

	"github.com/dgallion1/docannot/internal/annotate"
)

// JobStatus represents the state of an annotation job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusAnalyzing  JobStatus = "analyzing"
	StatusCommitting JobStatus = "committing"
	StatusCompleted  JobStatus = "completed"
	StatusPartial    JobStatus = "partial"
	StatusFailed     JobStatus = "failed"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	return s == StatusCompleted || s == StatusPartial || s == StatusFailed
}

// Job tracks the annotation of one document.
type Job struct {
	mu sync.Mutex

	ID      string           `json:"job_id"`
	DocID   string           `json:"doc_id"`
	Options annotate.Options `json:"options"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Progress Progress  `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	errors []string
}

// Progress counts sentences as they are committed.
type Progress struct {
	Sentences   int      `json:"sentences"`
	Parsed      int      `json:"parsed"`
	Unparsed    int      `json:"unparsed"`
	Annotations int      `json:"annotations"`
	Anomalies   int      `json:"anomalies"`
	Failures    int      `json:"failures"`
	Language    string   `json:"language,omitempty"`
	OutputSet   string   `json:"output_set,omitempty"`
	Errors      []string `json:"errors"`
}

// NewJob creates a queued job for docID.
func NewJob(docID string, opts annotate.Options) *Job {
	now := time.Now()
	return &Job{
		ID:        NewID(),
		DocID:     docID,
		Options:   opts,
		Status:    StatusQueued,
		Phase:     "queued",
		CreatedAt: now,
		UpdatedAt: now,
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

// Cleanup removes finished jobs not updated within the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if job.expired(now, s.ttl) {
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

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// RecordSentence counts one sentence reaching the commit step.
func (j *Job) RecordSentence(parsed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Sentences++
	if parsed {
		j.Progress.Parsed++
	} else {
		j.Progress.Unparsed++
	}
	if j.Status == StatusAnalyzing {
		j.Status = StatusCommitting
		j.Phase = "committing"
	}
	j.UpdatedAt = time.Now()
}

// Finish copies the final report into the job progress.
func (j *Job) Finish(rep annotate.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Sentences = rep.Sentences
	j.Progress.Parsed = rep.Parsed
	j.Progress.Unparsed = rep.Unparsed
	j.Progress.Annotations = rep.Annotations
	j.Progress.Anomalies = rep.Anomalies
	j.Progress.Failures = len(rep.Failures)
	j.Progress.Language = rep.Language
	j.Progress.OutputSet = rep.OutputSet
	j.UpdatedAt = time.Now()
}

func (j *Job) expired(now time.Time, ttl time.Duration) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status.Done() && now.Sub(j.UpdatedAt) > ttl
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string           `json:"job_id"`
	DocID     string           `json:"doc_id"`
	Options   annotate.Options `json:"options"`
	Status    JobStatus        `json:"status"`
	Phase     string           `json:"phase"`
	Progress  Progress         `json:"progress"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:        j.ID,
		DocID:     j.DocID,
		Options:   j.Options,
		Status:    j.Status,
		Phase:     j.Phase,
		Progress:  p,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
