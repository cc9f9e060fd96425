package task

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry owns every live Job for the lifetime of the process. Callers only
// ever receive copies; all mutation goes through Update.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Job

	// observer, when set, sees every stored state while the lock is held.
	observer func(Job)
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

func (r *Registry) Create(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	stored := job.clone()
	r.jobs[job.ID] = &stored
	r.notify(&stored)
	return nil
}

func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	j, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return j.clone(), true
}

// ListByUser returns the user's jobs, newest first.
func (r *Registry) ListByUser(userID string) []Job {
	r.mu.RLock()
	jobs := []Job{}
	for _, j := range r.jobs {
		if j.UserID == userID {
			jobs = append(jobs, j.clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].CreatedAt.Equal(jobs[b].CreatedAt) {
			return jobs[a].ID > jobs[b].ID
		}
		return jobs[a].CreatedAt.After(jobs[b].CreatedAt)
	})
	return jobs
}

// Update applies fn to the stored job atomically. If fn fails, the job is left
// unchanged.
func (r *Registry) Update(id string, fn func(*Job) error) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	next := j.clone()
	if err := fn(&next); err != nil {
		return j.clone(), err
	}
	*j = next
	r.notify(j)
	return j.clone(), nil
}

// CountActive counts jobs currently holding an admission slot.
func (r *Registry) CountActive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, j := range r.jobs {
		if j.Status.Active() {
			n++
		}
	}
	return n
}

// EvictOlderThan drops every job created before cutoff, whatever its status.
func (r *Registry) EvictOlderThan(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, j := range r.jobs {
		if j.CreatedAt.Before(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}

func (r *Registry) notify(j *Job) {
	if r.observer != nil {
		r.observer(j.clone())
	}
}
