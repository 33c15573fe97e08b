package scheduler

import (
	"context"

	"go.uber.org/zap"
)

// TrimDrainerStream drops stream entries older than the KV retention. Entries still
// waiting for acknowledgement are kept.
func (s *Scheduler) TrimDrainerStream(ctx context.Context) (int, error) {
	if s.drainer == nil || s.kvTTL <= 0 {
		return 0, nil
	}

	cutoff := s.clock.Now(ctx).Add(-s.kvTTL)
	trimmed, err := s.drainer.Trim(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	s.log.Debug("drainer stream trimmed", zap.Time("cutoff", cutoff), zap.Int64("trimmed", trimmed))
	return int(trimmed), nil
}
