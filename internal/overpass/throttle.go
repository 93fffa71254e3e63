package overpass

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

const (
	requestInterval = 1 * time.Second
	chunkInterval   = 1500 * time.Millisecond
)

// Throttle spaces out Overpass requests to stay under the public API's
// fair-use limits. All requests share a 1s gate; chunked requests pay a
// longer 1.5s gate on top since chunk bursts arrive back to back.
type Throttle struct {
	base  *rate.Limiter
	chunk *rate.Limiter
}

// NewThrottle returns a Throttle with the standard request spacing.
func NewThrottle() *Throttle {
	return &Throttle{
		base:  rate.NewLimiter(rate.Every(requestInterval), 1),
		chunk: rate.NewLimiter(rate.Every(chunkInterval), 1),
	}
}

// Acquire blocks until a standard request may proceed.
func (t *Throttle) Acquire(ctx context.Context) error {
	return t.base.Wait(ctx)
}

// AcquireChunk blocks until a chunked request may proceed. It satisfies
// both the chunk gate and the shared request gate.
func (t *Throttle) AcquireChunk(ctx context.Context) error {
	if err := t.chunk.Wait(ctx); err != nil {
		return err
	}
	return t.base.Wait(ctx)
}
