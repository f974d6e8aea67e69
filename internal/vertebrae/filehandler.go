package vertebrae

import (
	"fmt"
	"io"
)

// FileHandler executes intents against the destination store. It is the only
// component that mutates destination bytes; it never consults or mutates the
// Journal, so a crash between "do the work" and "record the work" leaves the
// journal merely stale, which the next rescan detects.
type FileHandler struct {
	store     Store
	fsmgr     FilesystemManager
	encryptor Encryptor // nil when encryption is disabled
	logger    Logger
}

// NewFileHandler creates a FileHandler. encryptor may be nil, in which case
// content is mirrored verbatim.
func NewFileHandler(store Store, fsmgr FilesystemManager, encryptor Encryptor, logger Logger) *FileHandler {
	return &FileHandler{
		store:     store,
		fsmgr:     fsmgr,
		encryptor: encryptor,
		logger:    logger,
	}
}

// Execute performs the filesystem side effect for one intent.
func (h *FileHandler) Execute(intent Intent) error {
	switch intent.Kind {
	case IntentCopy:
		return h.copyFile(intent)
	case IntentDelete:
		if err := h.store.Remove(intent.DestPath); err != nil {
			return fmt.Errorf("removing %s: %w", intent.DestPath, err)
		}
		return nil
	case IntentMkdir:
		if err := h.store.MkdirAll(intent.DestPath); err != nil {
			return fmt.Errorf("creating directory %s: %w", intent.DestPath, err)
		}
		return nil
	default:
		return fmt.Errorf("unknown intent kind %d", intent.Kind)
	}
}

// copyFile streams the source file into the store, encrypting on the way
// when an encryptor is configured.
func (h *FileHandler) copyFile(intent Intent) error {
	src, err := h.fsmgr.Open(intent.SourcePath)
	if err != nil {
		return fmt.Errorf("opening source %s: %w", intent.SourcePath, err)
	}
	defer src.Close()

	if h.encryptor == nil {
		if err := h.store.Put(intent.DestPath, src); err != nil {
			return fmt.Errorf("writing %s: %w", intent.DestPath, err)
		}
		return nil
	}

	pr, wait := encryptStream(h.encryptor, src)
	err = h.store.Put(intent.DestPath, pr)
	pr.Close() // unblocks the encrypt goroutine if the store stopped reading early
	encErr := wait()
	if err != nil {
		return fmt.Errorf("writing %s: %w", intent.DestPath, err)
	}
	if encErr != nil {
		return fmt.Errorf("encrypting %s: %w", intent.SourcePath, encErr)
	}
	return nil
}

// encryptStream runs the encryptor in a goroutine and returns a reader of
// the ciphertext plus a wait function for the encryptor's error.
func encryptStream(enc Encryptor, src io.Reader) (*io.PipeReader, func() error) {
	pr, pw := io.Pipe()
	done := make(chan error, 1)
	go func() {
		err := enc.Encrypt(src, pw)
		pw.CloseWithError(err)
		done <- err
	}()
	return pr, func() error { return <-done }
}
