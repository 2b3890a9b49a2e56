// Package worker runs fire-and-forget background tasks with bounded
// concurrency.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

type Task func(ctx context.Context) error

// Pool runs at most size tasks at a time. Submitters never wait for a task:
// when the pool is saturated the task is dropped. Task errors are logged and
// never reported back to the submitter.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	group  errgroup.Group

	// mu orders Submit against Shutdown so no task is started once Shutdown
	// has begun waiting.
	mu     sync.Mutex
	closed bool
}

func NewPool(ctx context.Context, size int) *Pool {
	if size < 1 {
		size = 1
	}
	p := &Pool{}
	p.ctx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
	p.group.SetLimit(size)
	return p
}

// Submit starts task in the background and reports whether it was accepted.
func (p *Pool) Submit(name string, task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		slog.Warn("background pool closed, dropping task", "task", name)
		return false
	}

	accepted := p.group.TryGo(func() error {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background task panicked", "task", name, "err", fmt.Errorf("%v", r))
			}
		}()

		slog.Debug("background task started", "task", name)
		if err := task(p.ctx); err != nil {
			slog.Error("background task failed", "task", name, "err", err)
			return nil
		}
		slog.Debug("background task finished", "task", name)
		return nil
	})
	if !accepted {
		slog.Warn("background pool saturated, dropping task", "task", name)
	}
	return accepted
}

// Shutdown stops accepting tasks and waits for the running ones until ctx is
// done, at which point running tasks are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return ctx.Err()
	}
}
