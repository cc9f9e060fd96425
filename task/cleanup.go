package task

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultRecordMaxAge  = 7 * 24 * time.Hour
	defaultJobStaleAfter = 24 * time.Hour
)

// CleanupOldCompilations purges durable records older than days and returns
// the number of records removed.
func (m *Manager) CleanupOldCompilations(ctx context.Context, days int) (int, error) {
	if days < 0 {
		return 0, fmt.Errorf("%w: days must not be negative", ErrInvalidOption)
	}
	return m.deps.Records.PurgeOlderThan(ctx, time.Duration(days)*24*time.Hour)
}

// StartCleanup sweeps once immediately, then every interval until ctx ends.
// Each call schedules an independent loop.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	go m.cleanupLoop(ctx, interval)
}

func (m *Manager) cleanupLoop(ctx context.Context, interval time.Duration) {
	m.sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("cleanup loop shutting down")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Manager) sweep(ctx context.Context) {
	maxAge := m.cfg.RecordMaxAge
	if maxAge <= 0 {
		maxAge = defaultRecordMaxAge
	}
	removed, err := m.deps.Records.PurgeOlderThan(ctx, maxAge)
	if err != nil {
		m.logger.Error("compilation purge failed", "error", err)
	}

	staleAfter := m.cfg.JobStaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultJobStaleAfter
	}
	evicted := m.registry.EvictOlderThan(m.now().Add(-staleAfter))

	m.logger.Info("cleanup sweep finished", "records_removed", removed, "jobs_evicted", evicted)
}
