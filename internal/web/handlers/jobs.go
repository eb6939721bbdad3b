package handlers

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/sigboard/internal/constants"
	"github.com/kozaktomas/sigboard/internal/maintenance"
)

// JobStatus represents the status of an async job.
type JobStatus string

// JobStatus constants define the lifecycle states of an async job.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobKind names the maintenance task a job runs.
type JobKind string

// Supported maintenance jobs.
const (
	JobKindRecomputeWords      JobKind = "recompute-words"
	JobKindRecomputeSignatures JobKind = "recompute-signatures"
)

// Job is an async maintenance job.
type Job struct {
	EventBroadcaster

	id          string
	seq         uint64
	kind        JobKind
	status      JobStatus
	progress    maintenance.Progress
	err         string
	startedAt   time.Time
	completedAt *time.Time
	result      *maintenance.Result
}

// JobView is the JSON representation of a job.
type JobView struct {
	ID          string               `json:"id"`
	Kind        JobKind              `json:"kind"`
	Status      JobStatus            `json:"status"`
	Progress    maintenance.Progress `json:"progress"`
	Error       string               `json:"error,omitempty"`
	StartedAt   time.Time            `json:"started_at"`
	CompletedAt *time.Time           `json:"completed_at,omitempty"`
	Result      *maintenance.Result  `json:"result,omitempty"`
}

// ID returns the job ID.
func (j *Job) ID() string {
	return j.id
}

// View returns a consistent snapshot of the job.
func (j *Job) View() JobView {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return JobView{
		ID:          j.id,
		Kind:        j.kind,
		Status:      j.status,
		Progress:    j.progress,
		Error:       j.err,
		StartedAt:   j.startedAt,
		CompletedAt: j.completedAt,
		Result:      j.result,
	}
}

// GetStatus returns the current job status (implements SSEJob).
func (j *Job) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

// Cancel cancels the job.
func (j *Job) Cancel() {
	j.mu.Lock()
	if isJobTerminal(j.status) {
		j.mu.Unlock()
		return
	}
	j.status = JobStatusCancelled
	j.mu.Unlock()
	j.EventBroadcaster.Cancel()
}

// start marks the job as running.
func (j *Job) start(cancel context.CancelFunc) {
	j.mu.Lock()
	j.cancel = cancel
	cancelled := j.status == JobStatusCancelled
	if j.status == JobStatusPending {
		j.status = JobStatusRunning
	}
	j.mu.Unlock()
	if cancelled {
		cancel()
		return
	}
	j.SendEvent(JobEvent{Type: "started"})
}

// reportProgress records progress and notifies listeners every
// constants.ProgressInterval posts and at the end.
func (j *Job) reportProgress(p maintenance.Progress) {
	j.mu.Lock()
	prev := j.progress.Processed
	j.progress = p
	j.mu.Unlock()

	if p.Processed == p.Total || p.Processed/constants.ProgressInterval != prev/constants.ProgressInterval {
		j.SendEvent(JobEvent{Type: "progress", Data: p})
	}
}

// finish stores the outcome of the job.
func (j *Job) finish(res *maintenance.Result, err error) {
	now := time.Now()

	j.mu.Lock()
	j.result = res
	j.completedAt = &now
	switch {
	case j.status == JobStatusCancelled || errors.Is(err, context.Canceled):
		j.status = JobStatusCancelled
	case err != nil:
		j.status = JobStatusFailed
		j.err = err.Error()
	default:
		j.status = JobStatusCompleted
	}
	status := j.status
	j.mu.Unlock()

	switch status {
	case JobStatusCompleted:
		j.SendEvent(JobEvent{Type: "completed", Data: res})
	case JobStatusFailed:
		j.SendEvent(JobEvent{Type: "job_error", Message: err.Error()})
	}
}

// JobEvent represents an event from a job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// EventBroadcaster provides listener management and event broadcasting for async jobs.
// Embed this in job structs to get AddListener, RemoveListener, and SendEvent methods.
type EventBroadcaster struct {
	cancel    context.CancelFunc
	listeners []chan JobEvent
	mu        sync.RWMutex
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, constants.EventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = slices.Delete(b.listeners, i, i+1)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}

// Cancel cancels the job via context and sends a cancelled event.
func (b *EventBroadcaster) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	b.SendEvent(JobEvent{Type: "cancelled", Message: "Job cancelled by user"})
}

// SSEJob is the interface required by streamSSEEvents to stream job events via SSE.
type SSEJob interface {
	AddListener() chan JobEvent
	RemoveListener(ch chan JobEvent)
	GetStatus() JobStatus
}

// JobManager manages async jobs.
type JobManager struct {
	jobs    map[string]*Job
	nextSeq uint64
	mu      sync.RWMutex
}

// NewJobManager creates a new job manager.
func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*Job),
	}
}

// ErrJobRunning is returned when a maintenance job is already active.
var ErrJobRunning = errors.New("a maintenance job is already running")

// CreateJob creates a pending job unless another job is still active.
func (m *JobManager) CreateJob(kind JobKind) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if !isJobTerminal(job.GetStatus()) {
			return nil, ErrJobRunning
		}
	}

	m.nextSeq++
	job := &Job{
		id:        uuid.NewString(),
		seq:       m.nextSeq,
		kind:      kind,
		status:    JobStatusPending,
		startedAt: time.Now(),
	}
	m.jobs[job.id] = job
	m.pruneLocked()
	return job, nil
}

// pruneLocked drops the oldest finished jobs beyond constants.MaxRetainedJobs.
func (m *JobManager) pruneLocked() {
	excess := len(m.jobs) - constants.MaxRetainedJobs
	if excess <= 0 {
		return
	}

	finished := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if isJobTerminal(job.GetStatus()) {
			finished = append(finished, job)
		}
	}
	slices.SortFunc(finished, func(a, b *Job) int {
		return cmp.Compare(a.seq, b.seq)
	})
	for _, job := range finished[:min(excess, len(finished))] {
		delete(m.jobs, job.id)
	}
}

// GetJob retrieves a job by ID.
func (m *JobManager) GetJob(id string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.jobs[id]
}

// ListJobs returns all jobs, newest first.
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	m.mu.RUnlock()

	slices.SortFunc(jobs, func(a, b *Job) int {
		return cmp.Compare(b.seq, a.seq)
	})
	return jobs
}

// CancelAll cancels every active job.
func (m *JobManager) CancelAll() {
	for _, job := range m.ListJobs() {
		job.Cancel()
	}
}
