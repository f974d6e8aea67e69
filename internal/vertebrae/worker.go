package vertebrae

import (
	"context"
	"errors"
	"sync"
)

// ErrWorkerStopped is returned by SendMessage once the worker is no longer
// accepting messages.
var ErrWorkerStopped = errors.New("worker is shut down")

// WorkerState is the actor's lifecycle state.
type WorkerState int

const (
	// WorkerRunning accepts and processes messages sequentially.
	WorkerRunning WorkerState = iota
	// WorkerShuttingDown no longer accepts messages and is draining
	// in-flight processing.
	WorkerShuttingDown
	// WorkerStopped is terminal.
	WorkerStopped
)

// Worker is the single sequential actor that owns the inbound message queue.
// One message is fully handled, through MessageHandler, IntentHandler,
// FileHandler and the journal update, before the next is taken. That is
// what makes the per-path at-most-one-in-flight guarantee hold at the
// system level.
type Worker struct {
	handler  *MessageHandler
	logger   Logger
	requests chan workerRequest
	stop     chan struct{}
	done     chan struct{}

	mu    sync.Mutex
	state WorkerState
}

type workerRequest struct {
	msg   WorkerMessage
	reply chan error
}

// NewWorker creates a Worker. Call Start before sending messages.
func NewWorker(handler *MessageHandler, logger Logger) *Worker {
	return &Worker{
		handler:  handler,
		logger:   logger,
		requests: make(chan workerRequest),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the actor's processing loop.
func (w *Worker) Start() {
	go w.run()
}

// State returns the actor's current lifecycle state.
func (w *Worker) State() WorkerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Worker) setState(s WorkerState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Worker) run() {
	defer close(w.done)
	defer w.setState(WorkerStopped)

	for {
		select {
		case <-w.stop:
			// Answer anything already queued so no sender is left waiting.
			for {
				select {
				case req := <-w.requests:
					req.reply <- ErrWorkerStopped
				default:
					return
				}
			}
		case req := <-w.requests:
			req.reply <- w.handler.Handle(req.msg)
		}
	}
}

// SendMessage hands a message to the actor and waits for it to be fully
// processed. A processing error is returned to the caller: it means the
// pipeline itself is broken, not an individual file, and the caller should
// stop the system.
func (w *Worker) SendMessage(ctx context.Context, msg WorkerMessage) error {
	req := workerRequest{msg: msg, reply: make(chan error, 1)}

	select {
	case w.requests <- req:
	case <-w.stop:
		return ErrWorkerStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown signals the actor to stop accepting work. Safe to call more than
// once.
func (w *Worker) Shutdown() {
	w.mu.Lock()
	if w.state == WorkerRunning {
		w.state = WorkerShuttingDown
		close(w.stop)
	}
	w.mu.Unlock()
}

// WaitForShutdown blocks until the processing loop has exited.
func (w *Worker) WaitForShutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
