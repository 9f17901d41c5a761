package peripheral

import (
	"context"
	"sync"
)

// ManualEdge is an EdgeSource fired from software. Pulses coalesce: while
// one edge is pending, further pulses are dropped.
type ManualEdge struct {
	ch        chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewManualEdge returns an idle ManualEdge.
func NewManualEdge() *ManualEdge {
	return &ManualEdge{
		ch:   make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// Pulse raises one edge. It reports false if an edge was already pending.
func (e *ManualEdge) Pulse() bool {
	select {
	case e.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// WaitEdge blocks until Pulse, Close or ctx is done.
func (e *ManualEdge) WaitEdge(ctx context.Context) error {
	select {
	case <-e.done:
		return ErrClosed
	default:
	}
	select {
	case <-e.ch:
		return nil
	case <-e.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close makes pending and future WaitEdge calls return ErrClosed.
func (e *ManualEdge) Close() error {
	e.closeOnce.Do(func() { close(e.done) })
	return nil
}
