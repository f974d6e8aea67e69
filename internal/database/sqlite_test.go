package database_test

import (
	"database/sql"
	"path/filepath"
	"testing"

	"vertebrae-go/internal/database"
	"vertebrae-go/internal/testutil"
	"vertebrae-go/internal/vertebrae"

	_ "github.com/mattn/go-sqlite3"
)

// newTestDB creates an in-memory history database with migrations applied.
func newTestDB(t *testing.T) *database.SQLiteDatabase {
	t.Helper()

	db, err := database.NewSQLiteDatabase(":memory:", testutil.FixedClock())
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestSQLiteDatabase_RecordOperation(t *testing.T) {
	db := newTestDB(t)

	op := &vertebrae.Operation{
		RunID:      "run-1",
		Kind:       "copy",
		SourcePath: "/watch/docs/a.txt",
		DestPath:   "a.txt",
		Status:     "ok",
	}
	if err := db.RecordOperation(op); err != nil {
		t.Fatalf("RecordOperation() error = %v", err)
	}

	if op.ID == 0 {
		t.Error("RecordOperation() did not assign an ID")
	}
	if op.CreatedAt.IsZero() {
		t.Error("RecordOperation() did not assign CreatedAt")
	}
}

func TestSQLiteDatabase_ListOperations(t *testing.T) {
	db := newTestDB(t)

	kinds := []string{"copy", "copy", "delete"}
	for i, kind := range kinds {
		op := &vertebrae.Operation{
			RunID:      "run-1",
			Kind:       kind,
			SourcePath: "/watch/docs/f" + string(rune('a'+i)) + ".txt",
			DestPath:   "f.txt",
			Status:     "ok",
		}
		if err := db.RecordOperation(op); err != nil {
			t.Fatalf("RecordOperation() error = %v", err)
		}
	}

	t.Run("returns newest first", func(t *testing.T) {
		ops, err := db.ListOperations(10)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 3 {
			t.Fatalf("got %d operations, want 3", len(ops))
		}
		if ops[0].Kind != "delete" {
			t.Errorf("newest operation kind = %q, want %q", ops[0].Kind, "delete")
		}
		if ops[0].ID < ops[1].ID || ops[1].ID < ops[2].ID {
			t.Error("operations not ordered newest first")
		}
	})

	t.Run("applies the limit", func(t *testing.T) {
		ops, err := db.ListOperations(2)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if len(ops) != 2 {
			t.Errorf("got %d operations, want 2", len(ops))
		}
	})

	t.Run("records error detail", func(t *testing.T) {
		op := &vertebrae.Operation{
			RunID:      "run-1",
			Kind:       "copy",
			SourcePath: "/watch/docs/bad.txt",
			DestPath:   "bad.txt",
			Status:     "error",
			Detail:     "disk full",
		}
		if err := db.RecordOperation(op); err != nil {
			t.Fatalf("RecordOperation() error = %v", err)
		}

		ops, err := db.ListOperations(1)
		if err != nil {
			t.Fatalf("ListOperations() error = %v", err)
		}
		if ops[0].Status != "error" || ops[0].Detail != "disk full" {
			t.Errorf("got %+v, want error/disk full", ops[0])
		}
	})
}

func TestSQLiteDatabase_FileBacked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := database.NewSQLiteDatabase(path, testutil.FixedClock())
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}

	op := &vertebrae.Operation{RunID: "run-1", Kind: "copy", SourcePath: "/src/a", DestPath: "a", Status: "ok"}
	if err := db.RecordOperation(op); err != nil {
		t.Fatalf("RecordOperation() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopen from disk: migrations are idempotent and data survives.
	db2, err := database.NewSQLiteDatabase(path, testutil.FixedClock())
	if err != nil {
		t.Fatalf("reopening database: %v", err)
	}
	defer db2.Close()

	ops, err := db2.ListOperations(10)
	if err != nil {
		t.Fatalf("ListOperations() error = %v", err)
	}
	if len(ops) != 1 || ops[0].SourcePath != "/src/a" {
		t.Errorf("persisted ops = %+v, want one for /src/a", ops)
	}
}

func TestNewSQLiteDatabase_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	db, err := database.NewSQLiteDatabase(path, testutil.FixedClock())
	if err != nil {
		t.Fatalf("NewSQLiteDatabase() error = %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Simulate a database written by a newer binary.
	raw, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("opening raw connection: %v", err)
	}
	if _, err := raw.Exec("UPDATE schema_migrations SET version = 999"); err != nil {
		t.Fatalf("bumping schema version: %v", err)
	}
	if err := raw.Close(); err != nil {
		t.Fatalf("closing raw connection: %v", err)
	}

	if _, err := database.NewSQLiteDatabase(path, testutil.FixedClock()); err == nil {
		t.Error("NewSQLiteDatabase() should reject a database ahead of the binary's schema")
	}
}
