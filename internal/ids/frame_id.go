package ids

// ComputeFrameID derives a FrameID from a frame's full identity: its basis,
// content bytes, frame_type, and authoring agent_id. Two frames with
// identical inputs always produce the identical FrameID (spec invariant 1).
func ComputeFrameID(basis Basis, content []byte, frameType, agentID string) FrameID {
	buf := make([]byte, 0, 64+len(content)+len(frameType)+len(agentID))
	buf = append(buf, basis.canonicalEncode()...)
	buf = lenPrefixed(buf, content)
	buf = lenPrefixed(buf, []byte(frameType))
	buf = lenPrefixed(buf, []byte(agentID))
	return sum256(buf)
}

// ComputeSynthesisBasisHash derives the basis hash synthesized frames record
// in their metadata: a hash over the parent node, the ordered child
// FrameIDs that fed the synthesis, the frame_type, and the synthesis policy
// tag. Regeneration recomputes this and compares against the stored value
// to detect when a synthesized frame's children have moved on.
func ComputeSynthesisBasisHash(nodeID NodeID, sortedChildFrameIDs []FrameID, frameType string, policyTag string) Hash {
	buf := make([]byte, 0, len(nodeID)+32*len(sortedChildFrameIDs)+len(frameType)+len(policyTag)+16)
	buf = append(buf, nodeID[:]...)
	for _, fid := range sortedChildFrameIDs {
		buf = append(buf, fid[:]...)
	}
	buf = lenPrefixed(buf, []byte(frameType))
	buf = lenPrefixed(buf, []byte(policyTag))
	return sum256(buf)
}
