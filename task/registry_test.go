package task

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateAndGet(t *testing.T) {
	r := NewRegistry()
	job := Job{ID: "j1", UserID: "u1", ClipIDs: []string{"a", "b"}, Status: StatusQueued, CreatedAt: time.Now()}
	require.NoError(t, r.Create(job))

	err := r.Create(job)
	assert.ErrorIs(t, err, ErrJobExists)

	got, found := r.Get("j1")
	require.True(t, found)
	assert.Equal(t, "u1", got.UserID)

	// Snapshots do not alias stored state.
	got.ClipIDs[0] = "mutated"
	got.Status = StatusDone
	again, _ := r.Get("j1")
	assert.Equal(t, "a", again.ClipIDs[0])
	assert.Equal(t, StatusQueued, again.Status)

	_, found = r.Get("unknown")
	assert.False(t, found)
}

func TestRegistryListByUserNewestFirst(t *testing.T) {
	r := NewRegistry()
	base := time.Now()
	require.NoError(t, r.Create(Job{ID: "old", UserID: "u1", CreatedAt: base.Add(-2 * time.Minute)}))
	require.NoError(t, r.Create(Job{ID: "new", UserID: "u1", CreatedAt: base}))
	require.NoError(t, r.Create(Job{ID: "mid", UserID: "u1", CreatedAt: base.Add(-time.Minute)}))
	require.NoError(t, r.Create(Job{ID: "other", UserID: "u2", CreatedAt: base}))

	jobs := r.ListByUser("u1")
	require.Len(t, jobs, 3)
	assert.Equal(t, []string{"new", "mid", "old"}, []string{jobs[0].ID, jobs[1].ID, jobs[2].ID})
	assert.Empty(t, r.ListByUser("nobody"))
}

func TestRegistryUpdate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Create(Job{ID: "j1", Status: StatusQueued}))

	updated, err := r.Update("j1", func(j *Job) error {
		j.Progress = 10
		return j.transition(StatusDownloading)
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDownloading, updated.Status)

	// A failing mutator leaves the job untouched.
	_, err = r.Update("j1", func(j *Job) error {
		j.Progress = 99
		return errors.New("boom")
	})
	require.Error(t, err)
	got, _ := r.Get("j1")
	assert.Equal(t, 10, got.Progress)

	_, err = r.Update("missing", func(j *Job) error { return nil })
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRegistryCountActiveAndEvict(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	require.NoError(t, r.Create(Job{ID: "q", Status: StatusQueued, CreatedAt: now}))
	require.NoError(t, r.Create(Job{ID: "d", Status: StatusDownloading, CreatedAt: now}))
	require.NoError(t, r.Create(Job{ID: "p", Status: StatusProcessing, CreatedAt: now.Add(-30 * time.Hour)}))
	require.NoError(t, r.Create(Job{ID: "f", Status: StatusFailed, CreatedAt: now.Add(-25 * time.Hour)}))
	assert.Equal(t, 2, r.CountActive())

	evicted := r.EvictOlderThan(now.Add(-24 * time.Hour))
	assert.Equal(t, 2, evicted)
	_, found := r.Get("p")
	assert.False(t, found, "stale entries are dropped whatever their status")
	_, found = r.Get("q")
	assert.True(t, found)
	assert.Equal(t, 1, r.CountActive())
}
