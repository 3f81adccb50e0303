// Package consumer feeds producer transports into the ingestion pipeline.
package consumer

import (
	"context"
	"time"
)

// Ingester accepts one raw producer event.
type Ingester interface {
	Ingest(ctx context.Context, raw []byte) error
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// backoff doubles up to maxBackoff.
type backoff struct {
	cur time.Duration
}

func (b *backoff) next() time.Duration {
	if b.cur == 0 {
		b.cur = initialBackoff
		return b.cur
	}
	b.cur *= 2
	if b.cur > maxBackoff {
		b.cur = maxBackoff
	}
	return b.cur
}

func (b *backoff) reset() { b.cur = 0 }
