// Package eventloop runs page work on a single goroutine.
//
// Every DOM read or write and every widget state change happens inside a Task
// on the loop goroutine, so widgets need no locks. Blocking work (HTTP, CDP
// round trips) runs off the loop through Await, and its continuation is
// posted back as an ordinary task.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pinmark/pkg/logger"
)

// ErrClosed is returned once the loop has stopped
var ErrClosed = errors.New("event loop closed")

// Task is one unit of work run on the loop goroutine
type Task func()

// Loop is a single-goroutine task queue
type Loop struct {
	ctx    context.Context
	cancel context.CancelFunc
	log    logger.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	queue   []Task
	pending int // queued tasks plus in-flight Await work
	closed  bool

	workers sync.WaitGroup
	done    chan struct{}
}

// Start starts a loop that runs until Close is called or ctx is done
func Start(ctx context.Context, log logger.Logger) *Loop {
	if log == nil {
		log = logger.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(ctx)
	l := &Loop{
		ctx:    ctx,
		cancel: cancel,
		log:    log.WithField("component", "eventloop"),
		done:   make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)

	go l.run()
	context.AfterFunc(ctx, l.stop)

	return l
}

// Context is cancelled when the loop stops
func (l *Loop) Context() context.Context {
	return l.ctx
}

// Post enqueues task. It reports false if the loop is closed.
func (l *Loop) Post(task Task) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.queue = append(l.queue, task)
	l.pending++
	l.cond.Broadcast()
	return true
}

// Sync posts task and waits until it has run. Calling Sync from the loop
// goroutine deadlocks.
func (l *Loop) Sync(task Task) error {
	ran := make(chan struct{})
	if !l.Post(func() {
		defer close(ran)
		task()
	}) {
		return ErrClosed
	}

	select {
	case <-ran:
		return nil
	case <-l.done:
		// the task may have been dropped by Close
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// Quiesce blocks until nothing is queued and no Await is in flight
func (l *Loop) Quiesce(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		l.mu.Lock()
		l.cond.Broadcast()
		l.mu.Unlock()
	})
	defer stop()

	l.mu.Lock()
	defer l.mu.Unlock()

	for l.pending > 0 {
		if l.closed {
			return ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		l.cond.Wait()
	}
	return nil
}

// Close stops the loop, drops queued tasks, cancels the context handed to
// in-flight Await work and waits for all of it to return.
func (l *Loop) Close() {
	l.stop()
	l.cancel()
	<-l.done
	l.workers.Wait()
}

func (l *Loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	l.pending -= len(l.queue)
	l.queue = nil
	l.cond.Broadcast()
}

func (l *Loop) run() {
	defer close(l.done)

	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if l.closed {
			l.mu.Unlock()
			return
		}
		task := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		l.runTask(task)

		l.mu.Lock()
		l.pending--
		l.cond.Broadcast()
		l.mu.Unlock()
	}
}

// runTask keeps the loop alive when a task panics, the way an uncaught
// exception in one handler does not stop the page.
func (l *Loop) runTask(task Task) {
	defer func() {
		if r := recover(); r != nil {
			l.log.ErrorWithFields("Task panicked", map[string]interface{}{
				"panic": fmt.Sprint(r),
			})
		}
	}()
	task()
}

// acquire counts one unit of off-loop work
func (l *Loop) acquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return false
	}
	l.pending++
	l.workers.Add(1)
	return true
}

func (l *Loop) release() {
	l.mu.Lock()
	l.pending--
	l.cond.Broadcast()
	l.mu.Unlock()
	l.workers.Done()
}

// Await runs work on its own goroutine with the loop's context and then runs
// then on the loop with the result. then never runs if the loop closes first.
// It reports false if the loop is already closed.
func Await[T any](l *Loop, work func(ctx context.Context) (T, error), then func(T, error)) bool {
	if !l.acquire() {
		return false
	}

	go func() {
		defer l.release()

		result, err := work(l.ctx)
		// posting before release keeps pending above zero across the handoff
		l.Post(func() { then(result, err) })
	}()
	return true
}
