package database

import (
	"database/sql"
	"fmt"
	"time"

	"vertebrae-go/internal/database/migrations"
	"vertebrae-go/internal/vertebrae"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteDatabase implements the HistoryDatabase interface using SQLite.
type SQLiteDatabase struct {
	db    *sql.DB
	clock vertebrae.Clock
	path  string
}

// NewSQLiteDatabase opens (creating if needed) a SQLite history database and
// migrates it to the latest schema version. path can be a file path or
// ":memory:" for an in-memory database.
func NewSQLiteDatabase(path string, clock vertebrae.Clock) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating history database: %w", err)
	}

	// MigrateUp is a no-op when the database is ahead of this binary; catch
	// that before writing rows an older schema reader cannot interpret.
	if err := migrations.CheckDBMigrationStatus(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("verifying history database schema: %w", err)
	}

	if clock == nil {
		clock = vertebrae.RealClock{}
	}

	return &SQLiteDatabase{
		db:    db,
		clock: clock,
		path:  path,
	}, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The daemon is the only writer, but the history CLI may read while it
	// runs; a busy timeout avoids spurious SQLITE_BUSY failures.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return db, nil
}

// RecordOperation appends an operation, assigning its ID and CreatedAt.
func (s *SQLiteDatabase) RecordOperation(op *vertebrae.Operation) error {
	op.CreatedAt = s.clock.Now().UTC()

	res, err := s.db.Exec(
		`INSERT INTO operations (run_id, kind, source_path, dest_path, status, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		op.RunID, op.Kind, op.SourcePath, op.DestPath, op.Status, op.Detail, op.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting operation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading operation id: %w", err)
	}
	op.ID = id
	return nil
}

// ListOperations returns the most recent operations, newest first.
func (s *SQLiteDatabase) ListOperations(limit int) ([]*vertebrae.Operation, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, run_id, kind, source_path, dest_path, status, detail, created_at
		 FROM operations ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	defer rows.Close()

	var ops []*vertebrae.Operation
	for rows.Next() {
		var op vertebrae.Operation
		var createdAt time.Time
		if err := rows.Scan(&op.ID, &op.RunID, &op.Kind, &op.SourcePath, &op.DestPath,
			&op.Status, &op.Detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		op.CreatedAt = createdAt
		ops = append(ops, &op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return ops, nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	return s.db.Close()
}

// Compile-time check that SQLiteDatabase implements the interface.
var _ vertebrae.HistoryDatabase = (*SQLiteDatabase)(nil)
