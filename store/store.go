// Package store persists session outcomes so past remediations can be
// audited after the terminal output is gone.
package store

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/vulnix/vulnix/output"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	host        TEXT,
	target      TEXT,
	scan_mode   TEXT,
	started_at  TEXT,
	finished_at TEXT,
	total       INTEGER,
	critical    INTEGER,
	high        INTEGER,
	medium      INTEGER,
	low         INTEGER,
	report_path TEXT,
	script_path TEXT
);
CREATE TABLE IF NOT EXISTS execution_records (
	session_id TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	command    TEXT,
	status     TEXT,
	exit_code  INTEGER,
	output     TEXT,
	created_at TEXT,
	PRIMARY KEY (session_id, seq)
);
`

type Store struct {
	conn *sqlite.Conn
}

// DefaultPath places the history database under the user cache dir.
func DefaultPath() string {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "vulnix_history.db"
	}
	return filepath.Join(cacheDir, "vulnix", "history.db")
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create store directory")
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open session store")
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "failed to apply store schema")
	}
	return &Store{conn: conn}, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

// SaveSession appends one finished session and its execution records.
func (s *Store) SaveSession(report *output.SessionReport) error {
	err := sqlitex.Execute(s.conn, `
		INSERT INTO sessions
			(id, status, host, target, scan_mode, started_at, finished_at,
			 total, critical, high, medium, low, report_path, script_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			report.SessionID, report.Status, report.Host, report.Target, report.ScanMode,
			report.StartedAt.UTC().Format(time.RFC3339),
			report.FinishedAt.UTC().Format(time.RFC3339),
			report.Severity.Total, report.Severity.Critical, report.Severity.High,
			report.Severity.Medium, report.Severity.Low,
			report.ReportPath, report.ScriptPath,
		}})
	if err != nil {
		return errors.Wrap(err, "failed to insert session")
	}
	for i, record := range report.Records {
		err := sqlitex.Execute(s.conn, `
			INSERT INTO execution_records
				(session_id, seq, command, status, exit_code, output, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				report.SessionID, i, record.Command, record.Status,
				record.ExitCode, record.Output,
				record.Timestamp.UTC().Format(time.RFC3339),
			}})
		if err != nil {
			return errors.Wrap(err, "failed to insert execution record")
		}
	}
	return nil
}

// SessionRow is one line of the history listing.
type SessionRow struct {
	ID         string
	Status     string
	Host       string
	Target     string
	ScanMode   string
	StartedAt  string
	FinishedAt string
	Total      int
	Critical   int
	High       int
}

func (s *Store) ListSessions(limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []SessionRow
	err := sqlitex.Execute(s.conn, `
		SELECT id, status, host, target, scan_mode, started_at, finished_at,
		       total, critical, high
		FROM sessions ORDER BY started_at DESC LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				rows = append(rows, SessionRow{
					ID:         stmt.ColumnText(0),
					Status:     stmt.ColumnText(1),
					Host:       stmt.ColumnText(2),
					Target:     stmt.ColumnText(3),
					ScanMode:   stmt.ColumnText(4),
					StartedAt:  stmt.ColumnText(5),
					FinishedAt: stmt.ColumnText(6),
					Total:      stmt.ColumnInt(7),
					Critical:   stmt.ColumnInt(8),
					High:       stmt.ColumnInt(9),
				})
				return nil
			},
		})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}
	return rows, nil
}
