package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type purger interface {
	PurgeExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// runJanitor prunes refresh sessions that expired more than retention ago,
// once per interval, until ctx is done.
func runJanitor(ctx context.Context, log *zap.Logger, p purger, interval, retention time.Duration) {
	if interval <= 0 {
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			purgeOnce(ctx, log, p, retention)
		}
	}
}

func purgeOnce(ctx context.Context, log *zap.Logger, p purger, retention time.Duration) {
	n, err := p.PurgeExpired(ctx, retention)
	if err != nil {
		if ctx.Err() == nil {
			log.Error("sessions.purge.fail", zap.Error(err))
		}
		return
	}
	if n > 0 {
		log.Info("sessions.purged", zap.Int64("count", n), zap.Duration("retention", retention))
	}
}
