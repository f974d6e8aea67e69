package vertebrae_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vertebrae-go/internal/vertebrae"
)

func newWorker(t *testing.T, watchRoots []string) (*pipeline, *vertebrae.Worker) {
	t.Helper()
	p, mh, _ := newMessagePipeline(t, watchRoots)
	w := vertebrae.NewWorker(mh, vertebrae.NewNopLogger())
	return p, w
}

func TestWorker_ProcessesMessages(t *testing.T) {
	p, w := newWorker(t, []string{"/watch/docs"})
	p.fsmgr.AddFile("/watch/docs/a.txt", []byte("aaa"), time.Unix(100, 0))

	w.Start()
	defer w.Shutdown()

	ctx := context.Background()
	if err := w.SendMessage(ctx, fsEvent("/watch/docs/a.txt", vertebrae.ChangeCreate)); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}

	// SendMessage waits for processing, so the effect is visible immediately.
	if _, ok := p.memory.Get("a.txt"); !ok {
		t.Error("message was not processed before SendMessage returned")
	}
}

func TestWorker_StateTransitions(t *testing.T) {
	_, w := newWorker(t, []string{"/watch/docs"})

	if w.State() != vertebrae.WorkerRunning {
		t.Errorf("initial state = %v, want running", w.State())
	}

	w.Start()
	w.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.WaitForShutdown(ctx); err != nil {
		t.Fatalf("WaitForShutdown() error = %v", err)
	}

	if w.State() != vertebrae.WorkerStopped {
		t.Errorf("state after shutdown = %v, want stopped", w.State())
	}
}

func TestWorker_SendAfterShutdown(t *testing.T) {
	_, w := newWorker(t, []string{"/watch/docs"})
	w.Start()
	w.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.WaitForShutdown(ctx); err != nil {
		t.Fatalf("WaitForShutdown() error = %v", err)
	}

	err := w.SendMessage(context.Background(), fsEvent("/watch/docs/a.txt", vertebrae.ChangeCreate))
	if !errors.Is(err, vertebrae.ErrWorkerStopped) {
		t.Errorf("SendMessage() after shutdown = %v, want ErrWorkerStopped", err)
	}
}

func TestWorker_ShutdownIdempotent(t *testing.T) {
	_, w := newWorker(t, []string{"/watch/docs"})
	w.Start()

	w.Shutdown()
	w.Shutdown() // must not panic

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.WaitForShutdown(ctx); err != nil {
		t.Fatalf("WaitForShutdown() error = %v", err)
	}
}

func TestWorker_SendMessageContextCancelled(t *testing.T) {
	_, w := newWorker(t, []string{"/watch/docs"})
	// Worker never started: SendMessage can only bail out via the context.

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := w.SendMessage(ctx, fsEvent("/watch/docs/a.txt", vertebrae.ChangeCreate))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("SendMessage() with cancelled context = %v, want context.Canceled", err)
	}
}

func TestWorker_SequentialProcessing(t *testing.T) {
	p, w := newWorker(t, []string{"/watch/docs"})
	w.Start()
	defer w.Shutdown()

	ctx := context.Background()
	for i, name := range []string{"a.txt", "b.txt", "c.txt"} {
		path := "/watch/docs/" + name
		p.fsmgr.AddFile(path, []byte{byte(i)}, time.Unix(int64(100+i), 0))
		if err := w.SendMessage(ctx, fsEvent(path, vertebrae.ChangeCreate)); err != nil {
			t.Fatalf("SendMessage(%s) error = %v", name, err)
		}
	}

	if p.memory.Len() != 3 {
		t.Errorf("store has %d files, want 3", p.memory.Len())
	}
	if p.journal.Len() != 3 {
		t.Errorf("journal has %d entries, want 3", p.journal.Len())
	}
}
