package nodestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/framegraph/framegraph/internal/apperr"
	"github.com/framegraph/framegraph/internal/ids"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable Store backend. It keeps the nodes table in a
// dedicated SQLite database file: WAL journal mode with a single writer
// connection, an index on parent, and opaque JSON for the variable-shaped
// fields (children, metadata).
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

const nodesSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	id            TEXT PRIMARY KEY,
	path          TEXT NOT NULL,
	kind          INTEGER NOT NULL,
	file_size     INTEGER NOT NULL DEFAULT 0,
	content_hash  TEXT NOT NULL DEFAULT '',
	children      TEXT NOT NULL DEFAULT '[]',
	parent        TEXT,
	frame_set_root TEXT,
	metadata      TEXT NOT NULL DEFAULT '{}',
	tombstone_ns  INTEGER
);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent);
`

// Open opens (or creates) a node store backed by the SQLite file at path.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, apperr.New(apperr.CodeStorageError, "invalid path: empty node store path")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "open node store", err)
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
	if _, err := db.Exec(nodesSchema); err != nil {
		_ = db.Close()
		return nil, apperr.Wrap(apperr.CodeStorageError, "create nodes schema", err)
	}
	return &SQLiteStore{db: db}, nil
}

func encodeIDList(ids2 []ids.NodeID) (string, error) {
	hexes := make([]string, len(ids2))
	for i, id := range ids2 {
		hexes[i] = id.Hex()
	}
	b, err := json.Marshal(hexes)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeIDList(s string) ([]ids.NodeID, error) {
	var hexes []string
	if s == "" {
		return nil, nil
	}
	if err := json.Unmarshal([]byte(s), &hexes); err != nil {
		return nil, err
	}
	out := make([]ids.NodeID, 0, len(hexes))
	for _, h := range hexes {
		id, err := ids.ParseHex(h)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (s *SQLiteStore) Put(record *NodeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	childrenJSON, err := encodeIDList(record.Children)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "encode children", err)
	}
	metaJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "encode metadata", err)
	}

	var parent, frameSetRoot sql.NullString
	if record.Parent != nil {
		parent = sql.NullString{String: record.Parent.Hex(), Valid: true}
	}
	if record.FrameSetRoot != nil {
		frameSetRoot = sql.NullString{String: record.FrameSetRoot.Hex(), Valid: true}
	}

	var tombstoneNs sql.NullInt64
	if record.Tombstone != nil {
		tombstoneNs = sql.NullInt64{Int64: record.Tombstone.UnixNano(), Valid: true}
	}

	_, err = s.db.Exec(`
		INSERT INTO nodes (id, path, kind, file_size, content_hash, children, parent, frame_set_root, metadata, tombstone_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path=excluded.path, kind=excluded.kind, file_size=excluded.file_size,
			content_hash=excluded.content_hash, children=excluded.children,
			parent=excluded.parent, frame_set_root=excluded.frame_set_root,
			metadata=excluded.metadata, tombstone_ns=excluded.tombstone_ns
	`, record.ID.Hex(), record.Path, int(record.Kind), record.File.Size, record.File.ContentHash.Hex(),
		childrenJSON, parent, frameSetRoot, string(metaJSON), tombstoneNs)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, fmt.Sprintf("put node %s", record.ID.Hex()), err)
	}
	return nil
}

func (s *SQLiteStore) Get(id ids.NodeID) (*NodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(id)
}

func (s *SQLiteStore) getLocked(id ids.NodeID) (*NodeRecord, error) {
	row := s.db.QueryRow(`
		SELECT path, kind, file_size, content_hash, children, parent, frame_set_root, metadata, tombstone_ns
		FROM nodes WHERE id = ?`, id.Hex())

	var raw rawNodeRow
	err := row.Scan(&raw.path, &raw.kind, &raw.fileSize, &raw.contentHashHex, &raw.childrenJSON,
		&raw.parent, &raw.frameSetRoot, &raw.metaJSON, &raw.tombstoneNs)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, fmt.Sprintf("get node %s", id.Hex()), err)
	}
	rec, err := decodeRecord(id, raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, fmt.Sprintf("decode node %s", id.Hex()), err)
	}
	return rec, nil
}

// rawNodeRow holds the raw column values of one nodes row, decoupling the
// SQL scan step from the decode-into-NodeRecord step so Get and ListActive
// can share the latter.
type rawNodeRow struct {
	path, contentHashHex, childrenJSON, metaJSON string
	kind                                          int
	fileSize                                      int64
	parent, frameSetRoot                          sql.NullString
	tombstoneNs                                   sql.NullInt64
}

func decodeRecord(id ids.NodeID, raw rawNodeRow) (*NodeRecord, error) {
	path, kind, fileSize, contentHashHex, childrenJSON, metaJSON := raw.path, raw.kind, raw.fileSize, raw.contentHashHex, raw.childrenJSON, raw.metaJSON
	parent, frameSetRoot, tombstoneNs := raw.parent, raw.frameSetRoot, raw.tombstoneNs

	contentHash, err := ids.ParseHex(contentHashHex)
	if err != nil {
		return nil, fmt.Errorf("decode content hash: %w", err)
	}
	children, err := decodeIDList(childrenJSON)
	if err != nil {
		return nil, fmt.Errorf("decode children: %w", err)
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(metaJSON), &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}

	rec := &NodeRecord{
		ID:       id,
		Path:     path,
		Kind:     ids.NodeKind(kind),
		File:     FileInfo{Size: fileSize, ContentHash: contentHash},
		Children: children,
		Metadata: metadata,
	}
	if parent.Valid {
		pid, err := ids.ParseHex(parent.String)
		if err != nil {
			return nil, fmt.Errorf("decode parent: %w", err)
		}
		rec.Parent = &pid
	}
	if frameSetRoot.Valid {
		fsr, err := ids.ParseHex(frameSetRoot.String)
		if err != nil {
			return nil, fmt.Errorf("decode frame_set_root: %w", err)
		}
		rec.FrameSetRoot = &fsr
	}
	if tombstoneNs.Valid {
		ts := time.Unix(0, tombstoneNs.Int64).UTC()
		rec.Tombstone = &ts
	}
	return rec, nil
}

func (s *SQLiteStore) ListActive() ([]*NodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`
		SELECT id, path, kind, file_size, content_hash, children, parent, frame_set_root, metadata, tombstone_ns
		FROM nodes WHERE tombstone_ns IS NULL`)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "list active nodes", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*NodeRecord
	for rows.Next() {
		var idHex string
		var raw rawNodeRow
		if err := rows.Scan(&idHex, &raw.path, &raw.kind, &raw.fileSize, &raw.contentHashHex,
			&raw.childrenJSON, &raw.parent, &raw.frameSetRoot, &raw.metaJSON, &raw.tombstoneNs); err != nil {
			return nil, apperr.Wrap(apperr.CodeStorageError, "scan node row", err)
		}
		id, err := ids.ParseHex(idHex)
		if err != nil {
			log.Warn().Err(err).Str("id", idHex).Msg("nodestore: skipping row with corrupt id")
			continue
		}
		rec, err := decodeRecord(id, raw)
		if err != nil {
			log.Warn().Err(err).Str("id", idHex).Msg("nodestore: skipping corrupt row")
			continue
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Wrap(apperr.CodeStorageError, "iterate active nodes", err)
	}
	return out, nil
}

func (s *SQLiteStore) Flush() error {
	// SQLite commits each statement synchronously under journal_mode=WAL; no
	// buffered writes accumulate client-side, so Flush is a checkpoint.
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "flush node store", err)
	}
	return nil
}

func (s *SQLiteStore) Tombstone(id ids.NodeID, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE nodes SET tombstone_ns = ? WHERE id = ?`, ts.UnixNano(), id.Hex())
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, fmt.Sprintf("tombstone node %s", id.Hex()), err)
	}
	return checkAffected(res, id)
}

func (s *SQLiteStore) Restore(id ids.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec(`UPDATE nodes SET tombstone_ns = NULL WHERE id = ?`, id.Hex())
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, fmt.Sprintf("restore node %s", id.Hex()), err)
	}
	return checkAffected(res, id)
}

func (s *SQLiteStore) Purge(id ids.NodeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`DELETE FROM nodes WHERE id = ?`, id.Hex())
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, fmt.Sprintf("purge node %s", id.Hex()), err)
	}
	return nil
}

func checkAffected(res sql.Result, id ids.NodeID) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "check rows affected", err)
	}
	if n == 0 {
		return apperr.NodeNotFound(id.Hex())
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Close(); err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "close node store", err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)

// ValidatePath rejects paths that are empty or not absolute, the
// InvalidPath branch of StorageError.
func ValidatePath(path string) error {
	if path == "" || !strings.HasPrefix(path, "/") {
		return apperr.New(apperr.CodeStorageError, fmt.Sprintf("invalid path: %q must be absolute", path))
	}
	return nil
}
