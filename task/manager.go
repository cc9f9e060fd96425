package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"golang.org/x/sync/semaphore"

	"github.com/s0urc3k0d/Statisfaction-sub001/clip"
	"github.com/s0urc3k0d/Statisfaction-sub001/config"
	"github.com/s0urc3k0d/Statisfaction-sub001/credentials"
	"github.com/s0urc3k0d/Statisfaction-sub001/ffmpeg"
	"github.com/s0urc3k0d/Statisfaction-sub001/logging"
	"github.com/s0urc3k0d/Statisfaction-sub001/store"
)

// Compositor drives the transcoding engine.
type Compositor interface {
	Available() error
	Compose(ctx context.Context, req ffmpeg.Request, onMarker func(ffmpeg.Marker)) (string, error)
}

type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// RecordStore is the durable history of completed compilations.
type RecordStore interface {
	RecordSuccess(ctx context.Context, rec store.Record) (store.Record, error)
	History(ctx context.Context, userID string, limit int) ([]store.Record, error)
	Delete(ctx context.Context, userID, recordID string) (bool, error)
	PurgeOlderThan(ctx context.Context, age time.Duration) (int, error)
}

type Deps struct {
	Resolver   clip.Resolver
	Downloader Downloader
	Compositor Compositor
	Records    RecordStore
	Tokens     credentials.Source
	// Estimator defaults to MarkerStep{Step: 5}.
	Estimator Estimator
	Logger    *slog.Logger
}

// Options are the optional knobs of a submission. Empty values select defaults.
type Options struct {
	Format             string `json:"format"`
	Quality            string `json:"quality"`
	IncludeTransitions *bool  `json:"includeTransitions"`
}

// Manager admits, runs and tracks compilation jobs.
type Manager struct {
	cfg      *config.Config
	registry *Registry
	slots    *semaphore.Weighted
	deps     Deps
	logger   *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(cfg *config.Config, deps Deps) (*Manager, error) {
	if deps.Resolver == nil || deps.Downloader == nil || deps.Compositor == nil || deps.Records == nil || deps.Tokens == nil {
		return nil, errors.New("task manager requires resolver, downloader, compositor, records and tokens")
	}
	if cfg.MaxConcurrency < 0 {
		return nil, fmt.Errorf("invalid MAX_CONCURRENCY %d", cfg.MaxConcurrency)
	}
	if deps.Estimator == nil {
		deps.Estimator = MarkerStep{Step: 5}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:      cfg,
		registry: NewRegistry(),
		slots:    semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		deps:     deps,
		logger:   logging.WithComponent(deps.Logger, "task"),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start ties the manager's lifetime to ctx and schedules the cleanup sweep when
// CLEANUP_INTERVAL is positive.
func (m *Manager) Start(ctx context.Context) {
	m.logger.Info("task manager started", "max_concurrency", m.cfg.MaxConcurrency)
	go func() {
		select {
		case <-ctx.Done():
			m.logger.Info("task manager shutting down")
			m.cancel()
		case <-m.ctx.Done():
		}
	}()
	if m.cfg.CleanupInterval > 0 {
		m.StartCleanup(ctx, m.cfg.CleanupInterval)
	}
}

// Stop cancels in-flight jobs and waits for their goroutines to record a final state.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

// Submit validates a request, registers a queued job and starts it in the
// background. It returns before any processing begins.
func (m *Manager) Submit(userID string, clipIDs []string, opts Options) (string, error) {
	job, err := m.newJob(userID, clipIDs, opts)
	if err != nil {
		return "", err
	}
	if err := m.deps.Compositor.Available(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
	}
	if err := m.registry.Create(job); err != nil {
		return "", err
	}

	m.logger.Info("job queued", "job_id", job.ID, "user_id", userID, "clips", len(job.ClipIDs))
	m.wg.Add(1)
	go m.run(job.ID)
	return job.ID, nil
}

func (m *Manager) newJob(userID string, clipIDs []string, opts Options) (Job, error) {
	if strings.TrimSpace(userID) == "" {
		return Job{}, fmt.Errorf("%w: user id is required", ErrInvalidOption)
	}
	if len(clipIDs) == 0 {
		return Job{}, ErrNoClips
	}
	if limit := m.maxClips(); len(clipIDs) > limit {
		return Job{}, fmt.Errorf("%w: maximum %d clips per compilation", ErrTooManyClips, limit)
	}
	ids := make([]string, 0, len(clipIDs))
	for _, id := range clipIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			return Job{}, fmt.Errorf("%w: empty clip id", ErrInvalidOption)
		}
		ids = append(ids, id)
	}
	format, err := ffmpeg.ParseFormat(opts.Format)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	quality, err := ffmpeg.ParseQuality(opts.Quality)
	if err != nil {
		return Job{}, fmt.Errorf("%w: %v", ErrInvalidOption, err)
	}
	transitions := true
	if opts.IncludeTransitions != nil {
		transitions = *opts.IncludeTransitions
	}

	now := m.now()
	return Job{
		ID:                 fmt.Sprintf("%s_%d", shortuuid.New(), now.Unix()),
		UserID:             userID,
		ClipIDs:            ids,
		Format:             format,
		Quality:            quality,
		IncludeTransitions: transitions,
		Status:             StatusQueued,
		CreatedAt:          now,
	}, nil
}

func (m *Manager) maxClips() int {
	if m.cfg.MaxClips > 0 {
		return m.cfg.MaxClips
	}
	return 20
}

// run holds an admission slot for the whole pipeline. The final state is
// written before the slot is released, including after a panic.
func (m *Manager) run(id string) {
	defer m.wg.Done()

	if err := m.slots.Acquire(m.ctx, 1); err != nil {
		m.fail(id, ErrInterrupted)
		return
	}
	defer m.slots.Release(1)
	defer func() {
		if r := recover(); r != nil {
			m.fail(id, fmt.Errorf("internal error: %v", r))
		}
	}()

	if err := m.process(m.ctx, id); err != nil {
		m.fail(id, err)
	}
}

func (m *Manager) process(ctx context.Context, id string) error {
	job, err := m.registry.Update(id, func(j *Job) error {
		if err := j.transition(StatusDownloading); err != nil {
			return err
		}
		j.StartedAt = m.now()
		return nil
	})
	if err != nil {
		return err
	}
	m.logger.Info("job admitted", "job_id", id, "waited", job.StartedAt.Sub(job.CreatedAt).String())

	token, err := m.deps.Tokens.AccessToken(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("lookup access token: %w", err)
	}

	jobDir := filepath.Join(m.cfg.WorkDir(), id)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return fmt.Errorf("create work directory: %w", err)
	}
	defer os.RemoveAll(jobDir)

	clips, err := m.downloadClips(ctx, job, jobDir, token)
	if err != nil {
		return err
	}
	if len(clips) == 0 {
		return ErrAllDownloadsFailed
	}

	if _, err := m.registry.Update(id, func(j *Job) error {
		if err := j.transition(StatusProcessing); err != nil {
			return err
		}
		j.raiseProgress(ProgressDownloadDone)
		return nil
	}); err != nil {
		return err
	}

	output, err := m.deps.Compositor.Compose(ctx, ffmpeg.Request{
		JobID:       id,
		Dir:         jobDir,
		Clips:       clips,
		Format:      job.Format,
		Quality:     job.Quality,
		Transitions: job.IncludeTransitions,
	}, func(marker ffmpeg.Marker) {
		m.registry.Update(id, func(j *Job) error {
			j.raiseProgress(m.deps.Estimator.Next(j.Progress, marker))
			return nil
		})
	})
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}
	if _, err := os.Stat(output); err != nil {
		return fmt.Errorf("compilation output missing: %w", err)
	}

	// Recorded before the job reads as done.
	completed := m.now()
	if _, err := m.deps.Records.RecordSuccess(ctx, store.Record{
		UserID:     job.UserID,
		JobID:      job.ID,
		ClipCount:  len(clips),
		Format:     string(job.Format),
		Quality:    string(job.Quality),
		OutputPath: output,
		Status:     string(StatusDone),
		CreatedAt:  completed,
	}); err != nil {
		m.logger.Error("could not record compilation", "job_id", id, "error", err)
	}

	if _, err := m.registry.Update(id, func(j *Job) error {
		j.OutputPath = output
		j.raiseProgress(ProgressComplete)
		j.CompletedAt = completed
		return j.transition(StatusDone)
	}); err != nil {
		return err
	}
	m.logger.Info("job done", "job_id", id, "output", output, "clips", len(clips), "skipped", len(job.ClipIDs)-len(clips))
	return nil
}

// downloadClips resolves and downloads clips strictly in submission order.
// Clips that fail either step are skipped.
func (m *Manager) downloadClips(ctx context.Context, job Job, jobDir, token string) ([]string, error) {
	var clips []string
	total := len(job.ClipIDs)
	for i, clipID := range job.ClipIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if asset, err := m.deps.Resolver.Resolve(ctx, clipID, token); err != nil {
			m.logger.Warn("clip skipped", "job_id", job.ID, "clip_id", clipID, "stage", "resolve", "error", err)
		} else {
			dest := filepath.Join(jobDir, fmt.Sprintf("clip_%03d.mp4", i))
			if err := m.deps.Downloader.Download(ctx, asset, dest); err != nil {
				m.logger.Warn("clip skipped", "job_id", job.ID, "clip_id", clipID, "stage", "download", "error", err)
			} else {
				clips = append(clips, dest)
			}
		}

		m.registry.Update(job.ID, func(j *Job) error {
			j.raiseProgress(DownloadProgress(i+1, total))
			return nil
		})
	}
	return clips, nil
}

func (m *Manager) fail(id string, cause error) {
	if errors.Is(cause, context.Canceled) || m.ctx.Err() != nil {
		cause = ErrInterrupted
	}
	_, err := m.registry.Update(id, func(j *Job) error {
		if j.Status.Terminal() {
			return nil
		}
		j.Error = cause.Error()
		j.CompletedAt = m.now()
		return j.transition(StatusFailed)
	})
	if err != nil {
		m.logger.Error("could not record job failure", "job_id", id, "cause", cause, "error", err)
		return
	}
	m.logger.Error("job failed", "job_id", id, "error", cause)
}

// Get returns a snapshot of the job, or false for unknown ids.
func (m *Manager) Get(jobID string) (Job, bool) {
	return m.registry.Get(jobID)
}

// UserJobs lists the user's jobs newest first.
func (m *Manager) UserJobs(userID string) []Job {
	return m.registry.ListByUser(userID)
}

// ActiveJobs counts jobs currently downloading or processing.
func (m *Manager) ActiveJobs() int {
	return m.registry.CountActive()
}

// History lists the user's completed compilations newest first.
func (m *Manager) History(ctx context.Context, userID string, limit int) ([]store.Record, error) {
	return m.deps.Records.History(ctx, userID, limit)
}

// DeleteCompilation removes a record and its file when userID owns it.
func (m *Manager) DeleteCompilation(ctx context.Context, userID, recordID string) (bool, error) {
	return m.deps.Records.Delete(ctx, userID, recordID)
}

// GetFilePath resolves a finished compilation's file name inside the output directory.
func (m *Manager) GetFilePath(filename string) (string, error) {
	// Security: Prevent path traversal
	cleanFilename := filepath.Base(filename)
	if cleanFilename != filename || strings.HasPrefix(cleanFilename, ".") {
		return "", fmt.Errorf("invalid filename")
	}

	fullPath := filepath.Join(m.cfg.OutputDir(), cleanFilename)
	if _, err := os.Stat(fullPath); os.IsNotExist(err) {
		return "", fmt.Errorf("file not found")
	}
	return fullPath, nil
}
