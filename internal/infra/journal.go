package infra

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	sqlcipher "github.com/mutecomm/go-sqlcipher/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/content_mon/internal/domain"
)

const (
	journalDBName = "journal.db"
)

// Journal implements domain.EventLog, domain.EventSink and
// domain.PermissionState using a SQLCipher encrypted SQLite database.
// A journal that cannot be decrypted, or has been closed, reports
// ErrPermissionDenied rather than an empty window.
type Journal struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
	logger *zap.Logger
}

// OpenJournal opens (or creates) the encrypted event journal in dataDir.
// The key is used as the SQLCipher passphrase via PRAGMA key.
func OpenJournal(dataDir string, key []byte, logger *zap.Logger) (*Journal, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, errors.Wrap(err, "create data directory")
	}

	dbPath := filepath.Join(dataDir, journalDBName)
	if _, err := os.Stat(dbPath); err == nil {
		encrypted, err := sqlcipher.IsEncrypted(dbPath)
		if err != nil {
			return nil, errors.Wrap(err, "inspect journal")
		}
		if !encrypted {
			return nil, errors.Wrapf(domain.ErrPermissionDenied, "journal %s is not encrypted", dbPath)
		}
	}

	db, err := openCipherDB(dbPath, key)
	if err != nil {
		return nil, err
	}

	j := &Journal{
		db:     db,
		dbPath: dbPath,
		logger: logger,
	}

	if err := j.createTables(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create journal tables")
	}

	return j, nil
}

// openCipherDB opens dbPath with key and forces a read so a wrong key
// surfaces here rather than on first use.
func openCipherDB(dbPath string, key []byte) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_pragma_key=x'%s'&_pragma_cipher_page_size=4096", dbPath, hex.EncodeToString(key))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open journal")
	}

	if _, err := db.Exec(`SELECT count(*) FROM sqlite_master`); err != nil {
		db.Close()
		return nil, errors.Wrapf(domain.ErrPermissionDenied, "unlock journal: %v", err)
	}
	return db, nil
}

func (j *Journal) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id TEXT PRIMARY KEY,
		ts INTEGER NOT NULL,
		subject TEXT NOT NULL,
		kind TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS events_ts ON events (ts);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Append persists event, assigning an id when it has none.
func (j *Journal) Append(event domain.ActivityEvent) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.db == nil {
		return errors.Wrap(domain.ErrPermissionDenied, "journal closed")
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}

	_, err := j.db.Exec(`INSERT INTO events (id, ts, subject, kind) VALUES (?, ?, ?, ?)`,
		event.ID, event.Timestamp.UnixNano(), event.SubjectID, string(event.Kind))
	return errors.Wrap(err, "append event")
}

// Query returns events with Timestamp in [from, to], oldest first.
func (j *Journal) Query(from, to time.Time) ([]domain.ActivityEvent, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.db == nil {
		return nil, errors.Wrap(domain.ErrPermissionDenied, "journal closed")
	}

	rows, err := j.db.Query(`
		SELECT id, ts, subject, kind FROM events
		WHERE ts BETWEEN ? AND ?
		ORDER BY ts, rowid`,
		from.UnixNano(), to.UnixNano())
	if err != nil {
		return nil, errors.Wrap(err, "query events")
	}
	defer rows.Close()

	var events []domain.ActivityEvent
	for rows.Next() {
		var (
			ev   domain.ActivityEvent
			ts   int64
			kind string
		)
		if err := rows.Scan(&ev.ID, &ts, &ev.SubjectID, &kind); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		ev.Timestamp = time.Unix(0, ts)
		ev.Kind = domain.EventKind(kind)
		events = append(events, ev)
	}
	return events, errors.Wrap(rows.Err(), "iterate events")
}

// Prune deletes events older than before and returns the number removed.
func (j *Journal) Prune(before time.Time) (int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.db == nil {
		return 0, errors.Wrap(domain.ErrPermissionDenied, "journal closed")
	}

	result, err := j.db.Exec(`DELETE FROM events WHERE ts < ?`, before.UnixNano())
	if err != nil {
		return 0, errors.Wrap(err, "prune events")
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// Rekey re-encrypts the journal under key and reopens it. Pooled
// connections still hold the old key, so the pool is replaced as a whole.
func (j *Journal) Rekey(key []byte) error {
	if len(key) != keySize {
		return fmt.Errorf("invalid key size: got %d, want %d", len(key), keySize)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return errors.Wrap(domain.ErrPermissionDenied, "journal closed")
	}

	conn, err := j.db.Conn(context.Background())
	if err != nil {
		return errors.Wrap(err, "acquire journal connection")
	}
	_, err = conn.ExecContext(context.Background(),
		fmt.Sprintf(`PRAGMA rekey = "x'%s'"`, hex.EncodeToString(key)))
	conn.Close()
	if err != nil {
		return errors.Wrap(err, "rekey journal")
	}

	if err := j.db.Close(); err != nil {
		j.logger.Warn("failed to close journal after rekey", zap.Error(err))
	}
	j.db = nil

	db, err := openCipherDB(j.dbPath, key)
	if err != nil {
		return errors.Wrap(err, "reopen journal after rekey")
	}
	j.db = db
	j.logger.Info("journal rekeyed", zap.String("path", j.dbPath))
	return nil
}

// HasEventLogAccess reports whether the journal is open and readable.
func (j *Journal) HasEventLogAccess() bool {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.db == nil {
		return false
	}
	if err := j.db.Ping(); err != nil {
		j.logger.Debug("journal ping failed", zap.Error(err))
		return false
	}
	return true
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.dbPath
}

// Close releases the database connection. Later calls report ErrPermissionDenied.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// Ensure Journal implements the event log interfaces.
var (
	_ domain.EventLog        = (*Journal)(nil)
	_ domain.EventSink       = (*Journal)(nil)
	_ domain.PermissionState = (*Journal)(nil)
)
