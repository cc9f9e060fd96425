package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/s0urc3k0d/Statisfaction-sub001/logging"
	"github.com/s0urc3k0d/Statisfaction-sub001/store"
	"github.com/s0urc3k0d/Statisfaction-sub001/testsupport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "db", "compilations.db"), logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, dir
}

func insert(t *testing.T, s *store.Store, dir, userID, jobID string, createdAt time.Time) store.Record {
	t.Helper()
	out := filepath.Join(dir, "output", "compilation_"+jobID+".mp4")
	testsupport.WriteFile(t, out, "video")
	rec, err := s.RecordSuccess(context.Background(), store.Record{
		UserID:     userID,
		JobID:      jobID,
		ClipCount:  3,
		Format:     "landscape",
		Quality:    "high",
		OutputPath: out,
		CreatedAt:  createdAt,
	})
	require.NoError(t, err)
	return rec
}

func TestRecordSuccessAssignsIDAndStatus(t *testing.T) {
	s, dir := openStore(t)
	rec := insert(t, s, dir, "u1", "job-1", time.Time{})

	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "done", rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())

	got, found, err := s.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, rec.UserID, got.UserID)
	assert.Equal(t, rec.JobID, got.JobID)
	assert.Equal(t, 3, got.ClipCount)
	assert.Equal(t, rec.CreatedAt.UnixMilli(), got.CreatedAt.UnixMilli())

	_, found, err = s.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRecordSuccessRejectsDuplicateJob(t *testing.T) {
	s, dir := openStore(t)
	insert(t, s, dir, "u1", "job-1", time.Now())
	_, err := s.RecordSuccess(context.Background(), store.Record{UserID: "u1", JobID: "job-1", OutputPath: "x"})
	assert.Error(t, err)
}

func TestHistoryNewestFirstAndLimited(t *testing.T) {
	s, dir := openStore(t)
	base := time.Now().Add(-time.Hour)
	for i := 0; i < 25; i++ {
		insert(t, s, dir, "u1", fmt.Sprintf("job-%02d", i), base.Add(time.Duration(i)*time.Minute))
	}
	insert(t, s, dir, "u2", "other", time.Now())

	recs, err := s.History(context.Background(), "u1", 0)
	require.NoError(t, err)
	require.Len(t, recs, store.DefaultHistoryLimit)
	assert.Equal(t, "job-24", recs[0].JobID)
	for i := 1; i < len(recs); i++ {
		assert.True(t, recs[i-1].CreatedAt.After(recs[i].CreatedAt))
	}

	recs, err = s.History(context.Background(), "u1", 5)
	require.NoError(t, err)
	assert.Len(t, recs, 5)

	recs, err = s.History(context.Background(), "nobody", 10)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestDeleteChecksOwnership(t *testing.T) {
	s, dir := openStore(t)
	rec := insert(t, s, dir, "owner", "job-1", time.Now())

	ok, err := s.Delete(context.Background(), "intruder", rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.FileExists(t, rec.OutputPath)
	_, found, _ := s.Get(context.Background(), rec.ID)
	assert.True(t, found)

	ok, err = s.Delete(context.Background(), "owner", rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoFileExists(t, rec.OutputPath)
	_, found, _ = s.Get(context.Background(), rec.ID)
	assert.False(t, found)

	ok, err = s.Delete(context.Background(), "owner", rec.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteToleratesMissingFile(t *testing.T) {
	s, dir := openStore(t)
	rec := insert(t, s, dir, "owner", "job-1", time.Now())
	require.NoError(t, os.Remove(rec.OutputPath))

	ok, err := s.Delete(context.Background(), "owner", rec.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPurgeOlderThan(t *testing.T) {
	s, dir := openStore(t)
	now := time.Now()
	old1 := insert(t, s, dir, "u1", "old-1", now.Add(-10*24*time.Hour))
	old2 := insert(t, s, dir, "u2", "old-2", now.Add(-8*24*time.Hour))
	fresh := insert(t, s, dir, "u1", "fresh", now.Add(-6*24*time.Hour))
	recent := insert(t, s, dir, "u1", "recent", now)
	require.NoError(t, os.Remove(old2.OutputPath))

	removed, err := s.PurgeOlderThan(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	assert.NoFileExists(t, old1.OutputPath)
	assert.FileExists(t, fresh.OutputPath)
	assert.FileExists(t, recent.OutputPath)

	recs, err := s.History(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "recent", recs[0].JobID)
	assert.Equal(t, "fresh", recs[1].JobID)

	removed, err = s.PurgeOlderThan(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
