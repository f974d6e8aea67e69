package vertebrae_test

import (
	"bytes"
	"testing"
	"time"

	"vertebrae-go/internal/store"
	"vertebrae-go/internal/testutil"
	"vertebrae-go/internal/vertebrae"
)

func TestFileHandler_Execute(t *testing.T) {
	t.Run("copy mirrors content verbatim", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		fsmgr.AddFile("/src/a.txt", []byte("plain content"), time.Unix(100, 0))
		mem := store.NewMemoryStore()
		h := vertebrae.NewFileHandler(mem, fsmgr, nil, vertebrae.NewNopLogger())

		err := h.Execute(vertebrae.Intent{Kind: vertebrae.IntentCopy, SourcePath: "/src/a.txt", DestPath: "a.txt"})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}

		data, ok := mem.Get("a.txt")
		if !ok {
			t.Fatal("file not stored")
		}
		if string(data) != "plain content" {
			t.Errorf("stored content = %q, want %q", data, "plain content")
		}
	})

	t.Run("copy of a missing source fails", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		mem := store.NewMemoryStore()
		h := vertebrae.NewFileHandler(mem, fsmgr, nil, vertebrae.NewNopLogger())

		err := h.Execute(vertebrae.Intent{Kind: vertebrae.IntentCopy, SourcePath: "/src/missing.txt", DestPath: "missing.txt"})
		if err == nil {
			t.Error("Execute() should fail when the source cannot be opened")
		}
	})

	t.Run("delete removes the mirrored file", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		mem := store.NewMemoryStore()
		mem.Put("a.txt", bytes.NewReader([]byte("x")))
		h := vertebrae.NewFileHandler(mem, fsmgr, nil, vertebrae.NewNopLogger())

		err := h.Execute(vertebrae.Intent{Kind: vertebrae.IntentDelete, SourcePath: "/src/a.txt", DestPath: "a.txt"})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if _, ok := mem.Get("a.txt"); ok {
			t.Error("file should be removed from the store")
		}
	})

	t.Run("mkdir creates the directory", func(t *testing.T) {
		fsmgr := testutil.NewMockFilesystemManager()
		mem := store.NewMemoryStore()
		h := vertebrae.NewFileHandler(mem, fsmgr, nil, vertebrae.NewNopLogger())

		err := h.Execute(vertebrae.Intent{Kind: vertebrae.IntentMkdir, SourcePath: "/src/sub", DestPath: "sub"})
		if err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !mem.HasDir("sub") {
			t.Error("directory not recorded in the store")
		}
	})
}

func TestFileHandler_Execute_Encrypted(t *testing.T) {
	fsmgr := testutil.NewMockFilesystemManager()
	fsmgr.AddFile("/src/secret.txt", []byte("secret content"), time.Unix(100, 0))
	mem := store.NewMemoryStore()
	enc := testutil.NewTestEncryptor()
	h := vertebrae.NewFileHandler(mem, fsmgr, enc, vertebrae.NewNopLogger())

	err := h.Execute(vertebrae.Intent{Kind: vertebrae.IntentCopy, SourcePath: "/src/secret.txt", DestPath: "secret.txt"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	stored, ok := mem.Get("secret.txt")
	if !ok {
		t.Fatal("file not stored")
	}
	if bytes.Equal(stored, []byte("secret content")) {
		t.Error("stored content should not equal plaintext when encryption is on")
	}

	// Round-trip through the decryption context recovers the plaintext.
	dctx, err := enc.Unlock("any")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var plain bytes.Buffer
	if err := dctx.Decrypt(bytes.NewReader(stored), &plain); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if plain.String() != "secret content" {
		t.Errorf("decrypted = %q, want %q", plain.String(), "secret content")
	}
}
