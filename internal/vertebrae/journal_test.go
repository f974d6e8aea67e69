package vertebrae_test

import (
	"os"
	"path/filepath"
	"testing"

	"vertebrae-go/internal/vertebrae"
)

func TestOpenJournal(t *testing.T) {
	t.Run("missing snapshot starts empty", func(t *testing.T) {
		j, err := vertebrae.OpenJournal(filepath.Join(t.TempDir(), vertebrae.JournalFileName))
		if err != nil {
			t.Fatalf("OpenJournal() error = %v", err)
		}
		if j.Len() != 0 {
			t.Errorf("Len() = %d, want 0", j.Len())
		}
		if j.IsDirty() {
			t.Error("fresh journal should not be dirty")
		}
	})

	t.Run("corrupt snapshot is an error", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), vertebrae.JournalFileName)
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatalf("writing snapshot: %v", err)
		}
		if _, err := vertebrae.OpenJournal(path); err == nil {
			t.Error("OpenJournal() should fail on a corrupt snapshot")
		}
	})

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), vertebrae.JournalFileName)
		j, err := vertebrae.OpenJournal(path)
		if err != nil {
			t.Fatalf("OpenJournal() error = %v", err)
		}

		j.Upsert("/home/user/docs/a.txt", vertebrae.JournalEntry{Size: 10, MtimeNS: 111, Dest: "a.txt"})
		j.Upsert("/home/user/docs/b.txt", vertebrae.JournalEntry{Size: 20, MtimeNS: 222, Dest: "b.txt"})

		n, err := j.Flush()
		if err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		if n != 2 {
			t.Errorf("Flush() entries = %d, want 2", n)
		}

		j2, err := vertebrae.OpenJournal(path)
		if err != nil {
			t.Fatalf("reopening journal: %v", err)
		}
		if j2.Len() != 2 {
			t.Fatalf("reopened Len() = %d, want 2", j2.Len())
		}
		entry, ok := j2.Get("/home/user/docs/a.txt")
		if !ok {
			t.Fatal("entry for a.txt missing after reload")
		}
		want := vertebrae.JournalEntry{Size: 10, MtimeNS: 111, Dest: "a.txt"}
		if entry != want {
			t.Errorf("entry = %+v, want %+v", entry, want)
		}
	})
}

func TestJournal_DirtyTracking(t *testing.T) {
	path := filepath.Join(t.TempDir(), vertebrae.JournalFileName)
	j, err := vertebrae.OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal() error = %v", err)
	}

	t.Run("upsert marks dirty", func(t *testing.T) {
		j.Upsert("/src/x", vertebrae.JournalEntry{Size: 1, MtimeNS: 2, Dest: "x"})
		if !j.IsDirty() {
			t.Error("journal should be dirty after Upsert")
		}
	})

	t.Run("flush clears dirty", func(t *testing.T) {
		if _, err := j.Flush(); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		if j.IsDirty() {
			t.Error("journal should be clean after Flush")
		}
	})

	t.Run("removing a tracked path marks dirty", func(t *testing.T) {
		j.Remove("/src/x")
		if !j.IsDirty() {
			t.Error("journal should be dirty after removing a tracked path")
		}
		if _, err := j.Flush(); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
	})

	t.Run("removing an untracked path is a no-op", func(t *testing.T) {
		j.Remove("/src/never-seen")
		if j.IsDirty() {
			t.Error("removing an untracked path should not mark the journal dirty")
		}
	})
}

func TestJournal_FlushOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, vertebrae.JournalFileName)

	j, err := vertebrae.OpenJournal(path)
	if err != nil {
		t.Fatalf("OpenJournal() error = %v", err)
	}
	j.Upsert("/src/a", vertebrae.JournalEntry{Size: 1, MtimeNS: 1, Dest: "a"})
	if _, err := j.Flush(); err != nil {
		t.Fatalf("first Flush() error = %v", err)
	}

	j.Upsert("/src/b", vertebrae.JournalEntry{Size: 2, MtimeNS: 2, Dest: "b"})
	if _, err := j.Flush(); err != nil {
		t.Fatalf("second Flush() error = %v", err)
	}

	// No temp files should be left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != vertebrae.JournalFileName {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("unexpected files after flush: %v", names)
	}

	j2, err := vertebrae.OpenJournal(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	if j2.Len() != 2 {
		t.Errorf("Len() = %d, want 2", j2.Len())
	}
}

func TestJournal_Entries_ReturnsCopy(t *testing.T) {
	j, err := vertebrae.OpenJournal(filepath.Join(t.TempDir(), vertebrae.JournalFileName))
	if err != nil {
		t.Fatalf("OpenJournal() error = %v", err)
	}
	j.Upsert("/src/a", vertebrae.JournalEntry{Size: 1, MtimeNS: 1, Dest: "a"})

	entries := j.Entries()
	delete(entries, "/src/a")

	if _, ok := j.Get("/src/a"); !ok {
		t.Error("mutating the Entries() copy should not affect the journal")
	}
}
