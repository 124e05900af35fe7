package internal

import (
	"context"
	"time"
)

// Gate caps how many conversions run at once. Waiting requests are not queued
// beyond their own acquire timeout.
type Gate struct {
	slots chan struct{}
}

func NewGate(capacity int) *Gate {
	if capacity <= 0 {
		capacity = 1
	}
	return &Gate{slots: make(chan struct{}, capacity)}
}

// Acquire waits up to timeout for a free slot
func (g *Gate) Acquire(ctx context.Context, timeout time.Duration) bool {
	select {
	case g.slots <- struct{}{}:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case g.slots <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

func (g *Gate) Release() {
	<-g.slots
}

func (g *Gate) InFlight() int {
	return len(g.slots)
}

func (g *Gate) Capacity() int {
	return cap(g.slots)
}
