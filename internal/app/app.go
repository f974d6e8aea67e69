package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"vertebrae-go/internal/config"
	"vertebrae-go/internal/database"
	"vertebrae-go/internal/encryption"
	"vertebrae-go/internal/fs"
	"vertebrae-go/internal/store"
	"vertebrae-go/internal/vertebrae"
	"vertebrae-go/internal/watcher"
)

// MirrorApp is the application layer between the CLI and the mirror pipeline.
// It constructs all dependencies from config and manages their lifecycle on
// Close. Each process gets a fresh run ID that tags log lines and history
// records.
type MirrorApp struct {
	cfg        *config.Config
	runID      string
	watchRoots []string
	fsmgr      vertebrae.FilesystemManager
	store      vertebrae.Store
	journal    *vertebrae.Journal
	history    vertebrae.HistoryDatabase
	encryptor  vertebrae.Encryptor
	intents    *vertebrae.IntentHandler
	messages   *vertebrae.MessageHandler
	logger     vertebrae.Logger
	logFile    *os.File
}

// NewMirrorApp creates a fully wired MirrorApp from the given config.
// The caller must call Close when done.
func NewMirrorApp(ctx context.Context, cfg *config.Config) (*MirrorApp, error) {
	if err := applyDefaults(cfg); err != nil {
		return nil, fmt.Errorf("resolving default paths: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	runID := vertebrae.UUIDGenerator{}.New()
	slogger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	watchRoots := make([]string, 0, len(cfg.WatchPaths))
	for _, p := range cfg.WatchPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			logFile.Close()
			return nil, fmt.Errorf("resolving watch path %s: %w", p, err)
		}
		watchRoots = append(watchRoots, abs)
	}

	fsmgr := fs.NewOSFilesystemManager(cfg.Filesystem.Ignore)

	st, err := store.NewStoreFromConfig(ctx, cfg.Store, cfg.Destination)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}
	if err := st.ValidateSetup(); err != nil {
		logFile.Close()
		return nil, fmt.Errorf("validating store: %w", err)
	}

	journal, err := vertebrae.OpenJournal(journalPath(cfg))
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening journal: %w", err)
	}

	history, err := database.NewHistoryFromConfig(cfg.History, cfg.StateDir, vertebrae.RealClock{})
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating history database: %w", err)
	}

	encryptor, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		closeQuietly(history)
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	files := vertebrae.NewFileHandler(st, fsmgr, encryptor, logger)
	intents := vertebrae.NewIntentHandler(watchRoots, vertebrae.NewIntentList(), files, journal, fsmgr, history, runID, logger)
	messages := vertebrae.NewMessageHandler(watchRoots, fsmgr, intents, vertebrae.RealClock{}, vertebrae.DefaultCoalesceWindow, logger)

	return &MirrorApp{
		cfg:        cfg,
		runID:      runID,
		watchRoots: watchRoots,
		fsmgr:      fsmgr,
		store:      st,
		journal:    journal,
		history:    history,
		encryptor:  encryptor,
		intents:    intents,
		messages:   messages,
		logger:     logger,
		logFile:    logFile,
	}, nil
}

// journalPath decides where the journal snapshot lives. A filesystem store
// keeps it alongside the mirrored files; remote and in-memory stores keep it
// under the local state directory.
func journalPath(cfg *config.Config) string {
	switch cfg.Store.Type {
	case "", "filesystem":
		return filepath.Join(cfg.Destination, vertebrae.JournalFileName)
	default:
		return filepath.Join(cfg.StateDir, vertebrae.JournalFileName)
	}
}

// Run starts the daemon: an initial rescan to pick up changes made while the
// daemon was down, then the watcher feeding the worker, with periodic rescans
// and journal flushes. It blocks until ctx is cancelled, then shuts the
// pipeline down and performs a final flush.
func (a *MirrorApp) Run(ctx context.Context) error {
	a.logger.Info("starting", "run_id", a.runID, "watch_paths", len(a.watchRoots))

	if err := vertebrae.Rescan(a.watchRoots, a.fsmgr, a.journal, a.intents, a.logger); err != nil {
		return fmt.Errorf("initial rescan: %w", err)
	}

	fw, err := watcher.NewFileWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	if err := fw.Start(a.watchRoots); err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}

	worker := vertebrae.NewWorker(a.messages, a.logger)
	worker.Start()

	rescanTicker := time.NewTicker(time.Duration(a.cfg.RescanIntervalSecs) * time.Second)
	defer rescanTicker.Stop()
	flushTicker := time.NewTicker(time.Duration(a.cfg.FlushIntervalSecs) * time.Second)
	defer flushTicker.Stop()

	a.eventLoop(ctx, worker, fw.Events(), fw.Errors(), rescanTicker.C, flushTicker.C)

	a.logger.Info("shutting down")

	if err := fw.Stop(); err != nil {
		a.logger.Warn("stopping watcher", "error", err)
	}

	worker.Shutdown()
	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := worker.WaitForShutdown(waitCtx); err != nil {
		a.logger.Warn("waiting for worker shutdown", "error", err)
	}

	// The final flush is unconditional: losing the journal means the next run
	// re-copies everything or misses deletions.
	n, err := a.journal.Flush()
	if err != nil {
		return fmt.Errorf("final journal flush: %w", err)
	}
	a.logger.Info("stopped", "entries_flushed", n)
	return nil
}

// eventLoop runs the daemon's select loop until ctx is cancelled, an event
// source closes, or the pipeline reports a processing error. A SendMessage
// error means the pipeline itself is broken, not a single file, so it stops
// the loop rather than being absorbed.
func (a *MirrorApp) eventLoop(ctx context.Context, worker *vertebrae.Worker, events <-chan vertebrae.ChangeEvent, watchErrs <-chan error, rescanC, flushC <-chan time.Time) {
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-events:
			if !ok {
				return
			}
			msg := vertebrae.NewFilesystemEventMessage(ev)
			if err := worker.SendMessage(ctx, msg); err != nil {
				if err != vertebrae.ErrWorkerStopped && ctx.Err() == nil {
					a.logger.Error("message processing failed", "path", ev.Path, "error", err)
				}
				return
			}

		case werr, ok := <-watchErrs:
			if !ok {
				return
			}
			a.logger.Error("watcher error", "error", werr)

		case <-rescanC:
			if err := vertebrae.Rescan(a.watchRoots, a.fsmgr, a.journal, a.intents, a.logger); err != nil {
				a.logger.Error("rescan failed", "error", err)
			}

		case <-flushC:
			if !a.journal.IsDirty() {
				continue
			}
			n, err := a.journal.Flush()
			if err != nil {
				a.logger.Error("journal flush failed", "error", err)
				continue
			}
			a.logger.Debug("journal flushed", "entries", n)
		}
	}
}

// RescanOnce reconciles the watched directories with the journal a single
// time, flushes the journal, and returns.
func (a *MirrorApp) RescanOnce() error {
	if err := vertebrae.Rescan(a.watchRoots, a.fsmgr, a.journal, a.intents, a.logger); err != nil {
		return err
	}
	n, err := a.journal.Flush()
	if err != nil {
		return fmt.Errorf("journal flush: %w", err)
	}
	a.logger.Info("rescan complete", "entries_flushed", n)
	return nil
}

// Status reports drift between the watched directories and the journal
// without mutating anything.
func (a *MirrorApp) Status() ([]vertebrae.FileStatus, error) {
	return vertebrae.Drift(a.watchRoots, a.fsmgr, a.journal)
}

// JournalEntries returns a copy of the current journal contents.
func (a *MirrorApp) JournalEntries() map[string]vertebrae.JournalEntry {
	return a.journal.Entries()
}

// History returns the most recent mirror operations, newest first.
// Returns nil if history is disabled.
func (a *MirrorApp) History(limit int) ([]*vertebrae.Operation, error) {
	if a.history == nil {
		return nil, nil
	}
	return a.history.ListOperations(limit)
}

// Encryptor returns the configured encryptor, or nil when encryption is
// disabled.
func (a *MirrorApp) Encryptor() vertebrae.Encryptor {
	return a.encryptor
}

// Close releases all resources held by the app.
func (a *MirrorApp) Close() error {
	var firstErr error

	if a.history != nil {
		if err := a.history.Close(); err != nil {
			firstErr = fmt.Errorf("closing history database: %w", err)
		}
	}

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}

	return firstErr
}

func closeQuietly(h vertebrae.HistoryDatabase) {
	if h != nil {
		h.Close()
	}
}
