package limiter

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// ProbeLimiter bounds how many probes run at once across all requests.
// Callers over the bound wait for a slot; nobody is turned away.
type ProbeLimiter struct {
	sem *semaphore.Weighted
	max int64
}

func NewProbeLimiter(maxConcurrent int) *ProbeLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &ProbeLimiter{
		sem: semaphore.NewWeighted(int64(maxConcurrent)),
		max: int64(maxConcurrent),
	}
}

// Acquire blocks until a probe slot is free or ctx is done.
// The returned release func must be called exactly once.
func (l *ProbeLimiter) Acquire(ctx context.Context) (release func(), err error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("waiting for probe slot: %w", err)
	}
	return func() { l.sem.Release(1) }, nil
}

// Max reports the configured bound.
func (l *ProbeLimiter) Max() int {
	return int(l.max)
}
