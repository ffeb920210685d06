package app

import (
	"context"
	"log/slog"
	"time"

	"kalshi_news/internal/domain"
)

const drainTimeout = 5 * time.Second

// archiver persists published snapshots off the publish path
type archiver struct {
	archive domain.SnapshotArchive
	queue   chan *domain.Snapshot
	logger  *slog.Logger
}

func newArchiver(archive domain.SnapshotArchive, size int) *archiver {
	return &archiver{
		archive: archive,
		queue:   make(chan *domain.Snapshot, size),
		logger:  slog.Default().With(slog.String("module", "archiver")),
	}
}

// enqueue never blocks; snapshots are dropped when the queue is full.
func (a *archiver) enqueue(snap *domain.Snapshot) {
	select {
	case a.queue <- snap:
	default:
		a.logger.Warn("Archive queue full, dropping snapshot", slog.String("id", snap.ID.String()))
	}
}

// run saves queued snapshots until ctx is done, then drains what is left.
func (a *archiver) run(ctx context.Context) {
	for {
		select {
		case snap := <-a.queue:
			a.save(context.WithoutCancel(ctx), snap)
		case <-ctx.Done():
			a.drain()
			return
		}
	}
}

func (a *archiver) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	for {
		select {
		case snap := <-a.queue:
			a.save(ctx, snap)
		default:
			return
		}
	}
}

func (a *archiver) save(ctx context.Context, snap *domain.Snapshot) {
	if err := a.archive.SaveSnapshot(ctx, snap); err != nil {
		a.logger.Error("Failed to archive snapshot",
			slog.String("id", snap.ID.String()),
			slog.Any("error", err),
		)
		return
	}
	a.logger.Debug("Snapshot archived",
		slog.String("id", snap.ID.String()),
		slog.Int("markets", len(snap.Markets)),
	)
}
