package headindex

import (
	"encoding/json"
	"os"

	"github.com/framegraph/framegraph/internal/apperr"
	"github.com/framegraph/framegraph/internal/ids"
	"github.com/rs/zerolog/log"
)

// persistedEntry is the JSON-on-disk shape of one Entry: hex-encoded IDs,
// matching the hex-hash convention the rest of the store layer uses.
type persistedEntry struct {
	NodeID    string `json:"node_id"`
	FrameType string `json:"frame_type"`
	FrameID   string `json:"frame_id"`
}

// Persist writes the current index contents to path as a list of
// (NodeID, frame_type, FrameID) triples. Order is not significant.
func (idx *Index) Persist(path string) error {
	snapshot := idx.Snapshot()
	entries := make([]persistedEntry, len(snapshot))
	for i, e := range snapshot {
		entries[i] = persistedEntry{NodeID: e.NodeID.Hex(), FrameType: e.FrameType, FrameID: e.FrameID.Hex()}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "encode head index", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperr.Wrap(apperr.CodeStorageError, "write head index", err)
	}
	return nil
}

// Load reads path and replaces the index contents with what it finds. If
// the file is missing or corrupt, the index is left empty and a warning
// is logged rather than returning an error.
func Load(path string) *Index {
	idx := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", path).Msg("headindex: failed to read persisted index, starting empty")
		}
		return idx
	}

	var entries []persistedEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("headindex: persisted index is corrupt, starting empty")
		return idx
	}

	loaded := make([]Entry, 0, len(entries))
	for _, e := range entries {
		nodeID, err := ids.ParseHex(e.NodeID)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("headindex: skipping entry with corrupt node_id")
			continue
		}
		frameID, err := ids.ParseHex(e.FrameID)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("headindex: skipping entry with corrupt frame_id")
			continue
		}
		loaded = append(loaded, Entry{NodeID: nodeID, FrameType: e.FrameType, FrameID: frameID})
	}
	idx.LoadSnapshot(loaded)
	return idx
}
