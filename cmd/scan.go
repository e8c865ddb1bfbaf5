package cmd

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/framegraph/framegraph/internal/ids"
	"github.com/framegraph/framegraph/internal/nodestore"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Register a directory tree's nodes in the node store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]
		info, err := os.Stat(root)
		if err != nil {
			return fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", root)
		}

		e, closeFn, err := openEngine()
		if err != nil {
			return err
		}
		defer closeFn()

		count := 0
		if _, err := scanNode(e.Nodes, root, nil, &count); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		if err := e.Nodes.Flush(); err != nil {
			return fmt.Errorf("flush node store: %w", err)
		}

		fmt.Printf("Registered %d node(s) under %s\n", count, root)
		return nil
	},
}

// scanNode recursively registers path and its descendants, children before
// parents: post-order recursion because a directory's NodeID is derived
// from its already-known sorted child NodeIDs, not from parse order.
func scanNode(store nodestore.Store, path string, parent *ids.NodeID, count *int) (ids.NodeID, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return ids.NodeID{}, err
	}

	if !info.IsDir() {
		content, err := os.ReadFile(path)
		if err != nil {
			return ids.NodeID{}, err
		}
		contentHash := sha256.Sum256(content)
		nodeID := ids.ComputeNodeID(ids.KindFile, contentHash[:], nil)
		record := &nodestore.NodeRecord{
			ID:       nodeID,
			Path:     path,
			Kind:     ids.KindFile,
			File:     nodestore.FileInfo{Size: info.Size(), ContentHash: ids.Hash(contentHash)},
			Parent:   parent,
			Metadata: map[string]string{},
		}
		if err := store.Put(record); err != nil {
			return ids.NodeID{}, err
		}
		*count++
		return nodeID, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return ids.NodeID{}, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	// Children must be registered first: a directory's NodeID is derived
	// from its sorted child NodeIDs, so those have to exist before this
	// directory's own ID can be computed.
	childIDs := make([]ids.NodeID, 0, len(names))
	for _, name := range names {
		childID, err := scanNode(store, filepath.Join(path, name), nil, count)
		if err != nil {
			return ids.NodeID{}, err
		}
		childIDs = append(childIDs, childID)
	}
	// childIDs stays in name order for the record; the NodeID is derived
	// from a copy sorted by NodeID.
	sortedIDs := append([]ids.NodeID(nil), childIDs...)
	sort.Slice(sortedIDs, func(i, j int) bool { return sortedIDs[i].Hex() < sortedIDs[j].Hex() })

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	dirID := ids.ComputeNodeID(ids.KindDirectory, []byte(abs), sortedIDs)

	record := &nodestore.NodeRecord{
		ID:       dirID,
		Path:     path,
		Kind:     ids.KindDirectory,
		Children: childIDs,
		Parent:   parent,
		Metadata: map[string]string{},
	}
	if err := store.Put(record); err != nil {
		return ids.NodeID{}, err
	}
	*count++

	// Parent is out-of-band metadata, not part of any ID derivation, so it
	// is safe to backfill after the fact: re-stamp each child now that the
	// parent's ID is known.
	for _, childID := range childIDs {
		child, err := store.Get(childID)
		if err != nil {
			return ids.NodeID{}, err
		}
		if child == nil {
			continue
		}
		child.Parent = &dirID
		if err := store.Put(child); err != nil {
			return ids.NodeID{}, err
		}
	}

	return dirID, nil
}
