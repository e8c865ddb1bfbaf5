package framestore

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/framegraph/framegraph/internal/apperr"
	"github.com/framegraph/framegraph/internal/ids"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable Store backend: a single-writer SQLite table
// keyed by hex FrameID, following the same PRAGMA and schema conventions as
// nodestore.SQLiteStore.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

const framesSchema = `
CREATE TABLE IF NOT EXISTS frames (
	id      TEXT PRIMARY KEY,
	payload BLOB NOT NULL
);
`

// Open opens (or creates) a frame store backed by the SQLite file at path.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, apperr.New(apperr.CodeStorageError, "invalid path: empty frame store path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "open frame store", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.CodeStorageError, "set journal mode", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.CodeStorageError, "set synchronous", err)
	}
	if _, err := db.Exec(framesSchema); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.CodeStorageError, "create frames schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Store persists f durably before returning: a caller that sees Store
// return nil may safely update the head index. Re-storing an existing
// FrameID is a cheap idempotent no-op via INSERT OR IGNORE.
func (s *SQLiteStore) Store(f *Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload := Encode(f)
	_, err := s.db.Exec(`INSERT OR IGNORE INTO frames (id, payload) VALUES (?, ?)`, f.ID.Hex(), payload)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, fmt.Sprintf("store frame %s", f.ID.Hex()), err)
	}
	return nil
}

func (s *SQLiteStore) Get(id ids.FrameID) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM frames WHERE id = ?`, id.Hex()).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, fmt.Sprintf("get frame %s", id.Hex()), err)
	}
	f, err := Decode(id, payload)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidFrame, fmt.Sprintf("decode frame %s", id.Hex()), err)
	}
	return f, nil
}

func (s *SQLiteStore) Exists(id ids.FrameID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var one int
	err := s.db.QueryRow(`SELECT 1 FROM frames WHERE id = ?`, id.Hex()).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperr.Wrap(apperr.CodeStorageError, fmt.Sprintf("check frame exists %s", id.Hex()), err)
	}
	return true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Close(); err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "close frame store", err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
