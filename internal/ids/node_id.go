package ids

// NodeKind distinguishes the two shapes a filesystem node can take. It is a
// closed sum type mirrored by nodestore.NodeRecord.
type NodeKind uint8

const (
	KindFile NodeKind = iota
	KindDirectory
)

// ComputeNodeID derives a NodeID from a node's kind, its canonicalized path
// or content hash, and the sorted list of its children's NodeIDs. Equal
// inputs always produce an equal NodeID, independent of which machine or
// scan produced them.
//
// pathOrContentHash is the node's canonical absolute path for directories,
// or its content hash for files — callers decide which bytes go in based on
// kind, matching the "canonicalized path or content hash" wording in the
// data model.
func ComputeNodeID(kind NodeKind, pathOrContentHash []byte, sortedChildNodeIDs []NodeID) NodeID {
	buf := make([]byte, 0, 1+len(pathOrContentHash)+32*len(sortedChildNodeIDs)+8)
	buf = append(buf, byte(kind))
	buf = lenPrefixed(buf, pathOrContentHash)
	for _, c := range sortedChildNodeIDs {
		buf = append(buf, c[:]...)
	}
	return sum256(buf)
}
