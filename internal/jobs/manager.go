package jobs

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindRun      Kind = "run"
	KindValidate Kind = "validate"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks one run or validation over a fixed number of steps, where a step
// is one (combination, functional group) pair or one report record. Runs block
// until they finish, so a job only records what happened and cannot be
// cancelled. All methods are safe on a nil *Job and do nothing.
type Job struct {
	mu sync.RWMutex

	id       string
	seq      int
	kind     Kind
	subject  string
	status   JobStatus
	started  time.Time
	finished time.Time

	total   int
	done    int
	trained int
	skipped int
	current string

	err    error
	result any
	events []string
}

// Snapshot is a consistent copy of a job's state.
type Snapshot struct {
	ID      string
	Kind    Kind
	Subject string
	Status  JobStatus
	Total   int
	Done    int
	Trained int
	Skipped int
	Current string
	Err     error
	Elapsed time.Duration
}

// Progress is the fraction of steps done, 1 once the job completed.
func (s Snapshot) Progress() float64 {
	if s.Status == JobCompleted {
		return 1
	}
	if s.Total == 0 {
		return 0
	}
	return float64(s.Done) / float64(s.Total)
}

type Manager struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	created int
}

func NewManager() *Manager {
	return &Manager{jobs: make(map[string]*Job)}
}

// Create registers a pending job for subject, the conditions of a run or the
// path of a validated report.
func (m *Manager) Create(kind Kind, subject string) *Job {
	job := &Job{
		id:      uuid.NewString(),
		kind:    kind,
		subject: subject,
		status:  JobPending,
		started: time.Now(),
	}

	m.mu.Lock()
	m.created++
	job.seq = m.created
	m.jobs[job.id] = job
	m.mu.Unlock()
	return job
}

// List returns every job in creation order.
func (m *Manager) List() []*Job {
	m.mu.RLock()
	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		jobs = append(jobs, job)
	}
	m.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].seq < jobs[j].seq
	})
	return jobs
}

// Start marks the job running over total steps.
func (j *Job) Start(total int) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = JobRunning
	j.total = total
	j.started = time.Now()
}

// Advance moves to the next step, named by its record key.
func (j *Job) Advance(key string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.done++
	j.current = key
}

// Trained counts the current step as producing a record.
func (j *Job) Trained() {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.trained++
}

// Skipped counts the current step as rejected by the occurrence window.
func (j *Job) Skipped() {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.skipped++
}

// Log appends a timestamped line.
func (j *Job) Log(format string, args ...any) {
	if j == nil {
		return
	}
	line := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))

	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, line)
}

func (j *Job) Fail(err error) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.err = err
	j.status = JobFailed
	j.finished = time.Now()
}

func (j *Job) Complete(result any) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = result
	j.status = JobCompleted
	j.finished = time.Now()
}

func (j *Job) Result() any {
	if j == nil {
		return nil
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.result
}

func (j *Job) Logs() []string {
	if j == nil {
		return nil
	}
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]string(nil), j.events...)
}

func (j *Job) Snapshot() Snapshot {
	if j == nil {
		return Snapshot{}
	}
	j.mu.RLock()
	defer j.mu.RUnlock()

	end := j.finished
	if end.IsZero() {
		end = time.Now()
	}
	return Snapshot{
		ID:      j.id,
		Kind:    j.kind,
		Subject: j.subject,
		Status:  j.status,
		Total:   j.total,
		Done:    j.done,
		Trained: j.trained,
		Skipped: j.skipped,
		Current: j.current,
		Err:     j.err,
		Elapsed: end.Sub(j.started),
	}
}
