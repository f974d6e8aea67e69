package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vertebrae-go/internal/store"
	"vertebrae-go/internal/testutil"
	"vertebrae-go/internal/vertebrae"
)

// newLoopFixture wires a MirrorApp around an in-memory pipeline so the event
// loop can be driven from a plain channel instead of a real watcher.
func newLoopFixture(t *testing.T) (*MirrorApp, *vertebrae.Worker, *store.MemoryStore, *testutil.MockFilesystemManager) {
	t.Helper()

	fsmgr := testutil.NewMockFilesystemManager()
	journal, err := vertebrae.OpenJournal(filepath.Join(t.TempDir(), vertebrae.JournalFileName))
	if err != nil {
		t.Fatalf("OpenJournal() error = %v", err)
	}
	st := store.NewMemoryStore()
	logger := vertebrae.NewNopLogger()

	roots := []string{"/watch"}
	files := vertebrae.NewFileHandler(st, fsmgr, nil, logger)
	intents := vertebrae.NewIntentHandler(roots, vertebrae.NewIntentList(), files, journal, fsmgr, nil, "run-1", logger)
	messages := vertebrae.NewMessageHandler(roots, fsmgr, intents, vertebrae.RealClock{}, vertebrae.DefaultCoalesceWindow, logger)

	a := &MirrorApp{
		watchRoots: roots,
		fsmgr:      fsmgr,
		journal:    journal,
		intents:    intents,
		messages:   messages,
		logger:     logger,
	}
	worker := vertebrae.NewWorker(messages, logger)
	return a, worker, st, fsmgr
}

// runEventLoop runs the loop in the background and returns a channel that
// closes when it exits.
func runEventLoop(ctx context.Context, a *MirrorApp, worker *vertebrae.Worker, events <-chan vertebrae.ChangeEvent) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.eventLoop(ctx, worker, events, nil, nil, nil)
	}()
	return done
}

func waitForLoopExit(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event loop did not exit")
	}
}

func TestEventLoop_StopsOnPipelineError(t *testing.T) {
	a, worker, _, _ := newLoopFixture(t)
	worker.Start()
	defer worker.Shutdown()

	// A change kind the pipeline cannot resolve is a pipeline error, not a
	// per-file failure, and must stop the loop.
	events := make(chan vertebrae.ChangeEvent, 1)
	events <- vertebrae.ChangeEvent{Path: "/watch/a.txt", Kind: vertebrae.ChangeKind(99)}

	done := runEventLoop(context.Background(), a, worker, events)
	waitForLoopExit(t, done)
}

func TestEventLoop_ProcessesEventsUntilCancelled(t *testing.T) {
	a, worker, st, fsmgr := newLoopFixture(t)
	fsmgr.AddFile("/watch/a.txt", []byte("content"), time.Now())
	fsmgr.AddFile("/watch/b.txt", []byte("content"), time.Now())

	worker.Start()

	ctx, cancel := context.WithCancel(context.Background())
	events := make(chan vertebrae.ChangeEvent, 2)
	events <- vertebrae.ChangeEvent{Path: "/watch/a.txt", Kind: vertebrae.ChangeCreate}
	events <- vertebrae.ChangeEvent{Path: "/watch/b.txt", Kind: vertebrae.ChangeCreate}

	done := runEventLoop(ctx, a, worker, events)

	// Wait until both events have been mirrored, proving a successful send
	// does not end the loop.
	deadline := time.Now().Add(2 * time.Second)
	for st.Len() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("store has %d entries, want 2", st.Len())
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	waitForLoopExit(t, done)

	worker.Shutdown()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer waitCancel()
	if err := worker.WaitForShutdown(waitCtx); err != nil {
		t.Fatalf("WaitForShutdown() error = %v", err)
	}
}

func TestEventLoop_StopsWhenEventSourceCloses(t *testing.T) {
	a, worker, _, _ := newLoopFixture(t)
	worker.Start()
	defer worker.Shutdown()

	events := make(chan vertebrae.ChangeEvent)
	close(events)

	done := runEventLoop(context.Background(), a, worker, events)
	waitForLoopExit(t, done)
}
