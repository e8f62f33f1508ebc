package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// LedgerEntry records that a Mantis ticket has been synced to a Jira issue.
type LedgerEntry struct {
	SourceID      int64
	DestinationID string
	SyncTime      time.Time
	Category      string
}

// Ledger is the durable record of synced tickets.
// An entry is only written once both remote writes for a ticket have succeeded,
// and its presence is the only thing that stops a ticket being synced again.
type Ledger interface {
	Has(ctx context.Context, sourceID int64) (bool, error)
	Get(ctx context.Context, sourceID int64) (*LedgerEntry, error)
	// Record inserts entry, returning a *DuplicateKeyError if its SourceID is already recorded.
	Record(ctx context.Context, entry LedgerEntry) error
	Close() error
}

type dialect struct {
	driver string
	ddl    string
	// placeholder returns the bind parameter for the nth (1 based) argument
	placeholder  func(n int) string
	isDuplicate  func(err error) bool
	openDSNExtra string
}

var dialects = map[string]dialect{
	"sqlite3": {
		driver: "sqlite3",
		ddl: `
CREATE TABLE IF NOT EXISTS synced_tickets (
  mantis_id INTEGER PRIMARY KEY,
  jira_key TEXT NOT NULL,
  sync_time TIMESTAMP NOT NULL,
  category TEXT NOT NULL
);
`,
		placeholder: func(int) string { return "?" },
		isDuplicate: func(err error) bool {
			var sqliteErr sqlite3.Error
			return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
		},
		openDSNExtra: "_busy_timeout=5000",
	},
	"postgres": {
		driver: "postgres",
		ddl: `
CREATE TABLE IF NOT EXISTS synced_tickets (
  mantis_id bigint PRIMARY KEY,
  jira_key text NOT NULL,
  sync_time timestamptz NOT NULL,
  category text NOT NULL
);
`,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		isDuplicate: func(err error) bool {
			var pqErr *pq.Error
			return errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation"
		},
	},
}

func dialectFor(driver string) (dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return d, fmt.Errorf("unsupported ledger driver %q (expected sqlite3 or postgres)", driver)
	}
	return d, nil
}

// SQLLedger implements Ledger on a database/sql table.
type SQLLedger struct {
	db      *sql.DB
	dialect dialect
}

// OpenLedger opens the ledger described by settings and ensures its table exists.
func OpenLedger(settings LedgerSettings) (*SQLLedger, error) {
	d, err := dialectFor(settings.Driver)
	if err != nil {
		return nil, err
	}
	dsn := settings.DSN
	if d.openDSNExtra != "" {
		dsn = appendDSNParam(dsn, d.openDSNExtra)
	}
	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s ledger %w", d.driver, err)
	}
	if d.driver == "sqlite3" {
		// a single connection keeps writes serialised on the file
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	ledger, err := NewSQLLedgerWithDB(db, settings.Driver)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

// NewSQLLedgerWithDB reuses an existing *sql.DB opened with the given driver.
func NewSQLLedgerWithDB(db *sql.DB, driver string) (*SQLLedger, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(d.ddl); err != nil {
		return nil, fmt.Errorf("failed to create ledger table %w", err)
	}
	return &SQLLedger{db: db, dialect: d}, nil
}

func appendDSNParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}

func (l *SQLLedger) Has(ctx context.Context, sourceID int64) (bool, error) {
	var one int
	err := l.db.QueryRowContext(ctx,
		`SELECT 1 FROM synced_tickets WHERE mantis_id = `+l.dialect.placeholder(1), sourceID).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up Mantis #%d in ledger %w", sourceID, err)
	}
	return true, nil
}

func (l *SQLLedger) Get(ctx context.Context, sourceID int64) (*LedgerEntry, error) {
	entry := LedgerEntry{SourceID: sourceID}
	err := l.db.QueryRowContext(ctx,
		`SELECT jira_key, sync_time, category FROM synced_tickets WHERE mantis_id = `+l.dialect.placeholder(1), sourceID).
		Scan(&entry.DestinationID, &entry.SyncTime, &entry.Category)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read Mantis #%d from ledger %w", sourceID, err)
	}
	return &entry, nil
}

func (l *SQLLedger) Record(ctx context.Context, entry LedgerEntry) error {
	p := l.dialect.placeholder
	_, err := l.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO synced_tickets (mantis_id, jira_key, sync_time, category) VALUES (%s, %s, %s, %s)`, p(1), p(2), p(3), p(4)),
		entry.SourceID, entry.DestinationID, entry.SyncTime.UTC(), entry.Category)
	if err != nil {
		if l.dialect.isDuplicate(err) {
			return &DuplicateKeyError{SourceID: entry.SourceID, Err: err}
		}
		return fmt.Errorf("failed to record Mantis #%d in ledger %w", entry.SourceID, err)
	}
	return nil
}

func (l *SQLLedger) Close() error {
	return l.db.Close()
}
