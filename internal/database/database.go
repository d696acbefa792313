package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Sentinel errors returned by the atomic reservation operations.
var (
	// ErrSlotConflict means the requested range overlaps a committed
	// appointment or a live reservation.
	ErrSlotConflict = errors.New("slot conflict")
	// ErrNotFound means no reservation with the given id exists.
	ErrNotFound = errors.New("reservation not found")
	// ErrTokenMismatch means the holder token does not match.
	ErrTokenMismatch = errors.New("holder token mismatch")
	// ErrExpired means the reservation is past its TTL.
	ErrExpired = errors.New("reservation expired")
)

// DB wraps sql.DB for the booking engine.
type DB struct {
	*sql.DB
	path string
}

// NewDB opens the database at path and runs migrations. The DSN takes
// the write lock at transaction begin so check-then-insert sequences
// serialize instead of failing mid-transaction on lock upgrade.
func NewDB(path string) (*DB, error) {
	dsn := path + "?_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if err := createTables(db); err != nil {
		return nil, err
	}
	return &DB{DB: db, path: path}, nil
}

// Path returns the on-disk location of the database file.
func (db *DB) Path() string {
	return db.path
}

func createTables(db *sql.DB) error {
	queries := []string{
		// Recurring weekly schedule periods
		`CREATE TABLE IF NOT EXISTS schedule_periods (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			vet_id INTEGER NOT NULL,
			start_date DATETIME NOT NULL,
			end_date DATETIME NOT NULL,
			work_days INTEGER NOT NULL,
			work_start TEXT NOT NULL,
			work_end TEXT NOT NULL,
			break_start TEXT,
			break_end TEXT,
			is_active BOOLEAN DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Full-day exceptions
		`CREATE TABLE IF NOT EXISTS days_off (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			vet_id INTEGER NOT NULL,
			date DATETIME NOT NULL,
			reason TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(vet_id, date)
		)`,

		// One-off and recurring breaks
		`CREATE TABLE IF NOT EXISTS breaks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			vet_id INTEGER NOT NULL,
			is_specific BOOLEAN NOT NULL DEFAULT 0,
			weekday INTEGER,
			date DATETIME,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Confirmed appointments
		`CREATE TABLE IF NOT EXISTS appointments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			vet_id INTEGER NOT NULL,
			date DATETIME NOT NULL,
			start_time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			patient_name TEXT,
			owner_phone TEXT,
			status TEXT NOT NULL DEFAULT 'scheduled',
			comment TEXT,
			reservation_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Short-lived slot holds
		`CREATE TABLE IF NOT EXISTS reservations (
			id TEXT PRIMARY KEY,
			vet_id INTEGER NOT NULL,
			date DATETIME NOT NULL,
			start_time TEXT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			holder_token TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			expires_at DATETIME NOT NULL
		)`,

		// Reservation lifecycle audit trail
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			entity TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			action TEXT NOT NULL,
			vet_id INTEGER NOT NULL,
			date DATETIME NOT NULL,
			actor_token TEXT,
			details TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_periods_vet_dates ON schedule_periods(vet_id, start_date, end_date)`,
		`CREATE INDEX IF NOT EXISTS idx_days_off_vet_date ON days_off(vet_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_breaks_vet ON breaks(vet_id, weekday, date)`,
		`CREATE INDEX IF NOT EXISTS idx_appointments_vet_date ON appointments(vet_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_vet_date ON reservations(vet_id, date)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_expiry ON reservations(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at)`,
	}

	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("exec migration %s: %w", trimSQL(q), err)
		}
	}
	return nil
}

func trimSQL(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 60 {
		return s[:60] + "..."
	}
	return s
}
