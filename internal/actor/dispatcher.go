package actor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrClosed is returned for tasks submitted after Close.
var ErrClosed = errors.New("actor: dispatcher closed")

// ErrMailboxFull is returned when a key's mailbox is at capacity.
var ErrMailboxFull = errors.New("actor: mailbox full")

const defaultMailboxDepth = 256

// task is one unit of work queued on a key's mailbox.
type task struct {
	fn   func() error
	done chan error // nil for fire-and-forget posts
}

// worker owns the mailbox goroutine for one key.
type worker struct {
	key   string
	inbox chan task
}

// Options tunes the dispatcher.
type Options struct {
	// IdleTTL is how long a key's worker may sit with an empty mailbox
	// before its goroutine exits. Durable state is unaffected; the worker is
	// re-created lazily on the next task for the key. Zero means 5 minutes.
	IdleTTL time.Duration
	// MailboxDepth bounds queued tasks per key. Zero means 256.
	MailboxDepth int
	Logger       zerolog.Logger
}

// Dispatcher serializes all work per logical key. No two tasks submitted for
// the same key ever run concurrently, and tasks on one key run in submission
// order; tasks on different keys run fully in parallel. This is the mutual
// exclusion every actor in the system leans on instead of locks.
type Dispatcher struct {
	mu      sync.Mutex
	workers map[string]*worker
	closed  bool
	wg      sync.WaitGroup

	idleTTL time.Duration
	depth   int
	logger  zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = 5 * time.Minute
	}
	if opts.MailboxDepth <= 0 {
		opts.MailboxDepth = defaultMailboxDepth
	}
	return &Dispatcher{
		workers: make(map[string]*worker),
		idleTTL: opts.IdleTTL,
		depth:   opts.MailboxDepth,
		logger:  opts.Logger.With().Str("component", "dispatcher").Logger(),
	}
}

// Do runs fn on key's worker and waits for its result. The context only
// bounds the wait for enqueue and completion; a task that already started is
// never cancelled mid-flight. When Do returns a context error the queued
// task may still run later, so callers must not return state captured by fn
// on the error path.
func (d *Dispatcher) Do(ctx context.Context, key string, fn func() error) error {
	done := make(chan error, 1)
	if err := d.enqueue(ctx, key, task{fn: fn, done: done}); err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues fn on key's worker and returns immediately. A task error is
// logged and dropped; callers must not depend on the outcome.
func (d *Dispatcher) Post(key string, fn func() error) {
	if err := d.enqueue(context.Background(), key, task{fn: fn}); err != nil {
		d.logger.Warn().Str("key", key).Err(err).Msg("fire-and-forget task rejected")
	}
}

// enqueue places t on key's mailbox. The send happens under the table lock
// so a worker can never retire between lookup and send.
func (d *Dispatcher) enqueue(ctx context.Context, key string, t task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	w, ok := d.workers[key]
	if !ok {
		w = &worker{key: key, inbox: make(chan task, d.depth)}
		d.workers[key] = w
		d.wg.Add(1)
		go d.run(w)
	}
	select {
	case w.inbox <- t:
		return nil
	default:
		return ErrMailboxFull
	}
}

// run drains one key's mailbox strictly in order. The goroutine exits after
// IdleTTL without traffic; retire only removes the worker if its mailbox is
// still empty, so enqueues racing the expiry are never stranded.
func (d *Dispatcher) run(w *worker) {
	defer d.wg.Done()
	idle := time.NewTimer(d.idleTTL)
	defer idle.Stop()
	for {
		select {
		case t, ok := <-w.inbox:
			if !ok {
				return
			}
			d.exec(w.key, t)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.idleTTL)
		case <-idle.C:
			if d.retire(w) {
				return
			}
			idle.Reset(d.idleTTL)
		}
	}
}

func (d *Dispatcher) exec(key string, t task) {
	err := t.fn()
	if t.done != nil {
		t.done <- err
		return
	}
	if err != nil {
		d.logger.Error().Str("key", key).Err(err).Msg("fire-and-forget task failed")
	}
}

// retire removes w from the table unless new work arrived meanwhile.
// Enqueues send under the same lock, so an empty mailbox here is safe to
// abandon.
func (d *Dispatcher) retire(w *worker) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(w.inbox) > 0 {
		return false
	}
	delete(d.workers, w.key)
	return true
}

// Close rejects new tasks and waits for all queued work to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	workers := make([]*worker, 0, len(d.workers))
	for _, w := range d.workers {
		workers = append(workers, w)
	}
	d.workers = make(map[string]*worker)
	d.mu.Unlock()

	for _, w := range workers {
		close(w.inbox)
	}
	d.wg.Wait()
}
