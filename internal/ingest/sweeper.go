package ingest

import (
	"context"
	"time"

	"firewatch/internal/registry"

	"go.uber.org/zap"
)

// Sweep flags every tag silent for longer than the offline threshold and
// evaluates it. It takes each tag's entity lock, so a fresh update racing
// the sweep either lands first and keeps the tag online or lands after and
// clears the flag.
func (p *Pipeline) Sweep(now time.Time) int {
	after := p.engine.Config().TagOfflineAfter
	if after <= 0 {
		return 0
	}
	flipped := 0
	for _, id := range p.registry.TagIDs() {
		if p.sweepOne(id, now, after) {
			flipped++
		}
	}
	return flipped
}

func (p *Pipeline) sweepOne(firefighterID string, now time.Time, after time.Duration) bool {
	unlock := p.registry.Lock(registry.TagKey(firefighterID))
	defer unlock()

	change, ok := p.registry.MarkStale(firefighterID, now, after)
	if !ok {
		return false
	}
	p.logger.Info("Tag offline",
		zap.String("firefighter_id", firefighterID),
		zap.Time("last_received", change.Current.ReceivedAt),
	)
	p.publishTransitions(p.engine.EvaluateTag(change.Previous, change.Current, now))
	return true
}

// Sweeper runs Sweep on a fixed interval until its context ends.
type Sweeper struct {
	pipeline *Pipeline
	interval time.Duration
	logger   *zap.Logger
}

func NewSweeper(p *Pipeline, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{pipeline: p, interval: interval, logger: logger}
}

func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Warn("Offline sweep disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Offline sweeper started", zap.Duration("interval", s.interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Offline sweeper stopped")
			return
		case <-ticker.C:
			if n := s.pipeline.Sweep(s.pipeline.nowFn()); n > 0 {
				s.logger.Debug("Sweep flagged tags", zap.Int("count", n))
			}
		}
	}
}
