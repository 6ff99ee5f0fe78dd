package extraction

import (
	"fmt"
	"sync"
	"time"
)

// JobStatus tracks an asynchronous ingestion.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is an asynchronous document ingestion.
type Job struct {
	ID          string     `json:"id"`
	DocumentID  string     `json:"document_id"`
	Filename    string     `json:"filename"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	PageCount   int        `json:"page_count"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobStore manages in-memory async ingestion jobs.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ttl  time.Duration
	done chan struct{}
	once sync.Once
}

// NewJobStore creates a new job store with background cleanup.
func NewJobStore(ttl time.Duration) *JobStore {
	js := &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go js.cleanup(5 * time.Minute)
	return js
}

// Create stores a new job.
func (js *JobStore) Create(job *Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	copied := *job
	js.jobs[job.ID] = &copied
	return nil
}

// Get retrieves a copy of a job by ID.
func (js *JobStore) Get(id string) (*Job, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	job, ok := js.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	copied := *job
	return &copied, nil
}

// Update applies fn to the stored job under the store lock.
func (js *JobStore) Update(id string, fn func(*Job)) error {
	js.mu.Lock()
	defer js.mu.Unlock()
	job, ok := js.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	fn(job)
	return nil
}

// Finish marks a job completed, or failed when err is non-nil.
func (js *JobStore) Finish(id string, err error) error {
	return js.Update(id, func(job *Job) {
		now := time.Now()
		job.CompletedAt = &now
		job.Status = JobCompleted
		if err != nil {
			job.Status = JobFailed
			job.Error = err.Error()
		}
	})
}

// Stop signals the background cleanup goroutine to exit.
func (js *JobStore) Stop() {
	js.once.Do(func() { close(js.done) })
}

func (js *JobStore) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-js.done:
			return
		case <-ticker.C:
			js.evict(time.Now())
		}
	}
}

func (js *JobStore) evict(now time.Time) {
	js.mu.Lock()
	defer js.mu.Unlock()
	for id, job := range js.jobs {
		if now.Sub(job.CreatedAt) > js.ttl {
			delete(js.jobs, id)
		}
	}
}
