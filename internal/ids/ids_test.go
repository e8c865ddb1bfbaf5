package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashHexRoundTrip(t *testing.T) {
	h := sum256([]byte("hello"))
	parsed, err := ParseHex(h.Hex())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestParseHexRejectsBadLength(t *testing.T) {
	_, err := ParseHex("deadbeef")
	assert.Error(t, err)
}

func TestComputeFrameIDDeterministic(t *testing.T) {
	basis := NodeBasis(Hash{1})
	id1 := ComputeFrameID(basis, []byte("hello"), "note", "writer-1")
	id2 := ComputeFrameID(basis, []byte("hello"), "note", "writer-1")
	assert.Equal(t, id1, id2)
}

func TestComputeFrameIDSensitiveToEveryField(t *testing.T) {
	basis := NodeBasis(Hash{1})
	base := ComputeFrameID(basis, []byte("hello"), "note", "writer-1")

	assert.NotEqual(t, base, ComputeFrameID(FrameBasis(Hash{9}), []byte("hello"), "note", "writer-1"))
	assert.NotEqual(t, base, ComputeFrameID(basis, []byte("goodbye"), "note", "writer-1"))
	assert.NotEqual(t, base, ComputeFrameID(basis, []byte("hello"), "summary", "writer-1"))
	assert.NotEqual(t, base, ComputeFrameID(basis, []byte("hello"), "note", "writer-2"))
}

func TestComputeFrameIDNoLengthPrefixAmbiguity(t *testing.T) {
	// ("ab", "c") must hash differently from ("a", "bc") when content/frame_type
	// are concatenated without a length prefix; the length prefix prevents this.
	basis := NodeBasis(Hash{1})
	id1 := ComputeFrameID(basis, []byte("ab"), "c", "agent")
	id2 := ComputeFrameID(basis, []byte("a"), "bc", "agent")
	assert.NotEqual(t, id1, id2)
}

func TestBasisCanonicalEncodingVariesByKind(t *testing.T) {
	node := Hash{1}
	frame := Hash{2}

	hNode := ComputeBasisHash(NodeBasis(node))
	hFrame := ComputeBasisHash(FrameBasis(frame))
	hBoth := ComputeBasisHash(BothBasis(node, frame))

	assert.NotEqual(t, hNode, hFrame)
	assert.NotEqual(t, hNode, hBoth)
	assert.NotEqual(t, hFrame, hBoth)
}

func TestComputeBasisHashDeterministic(t *testing.T) {
	b := BothBasis(Hash{1}, Hash{2})
	assert.Equal(t, ComputeBasisHash(b), ComputeBasisHash(b))
}

func TestComputeSynthesisBasisHashOrderSensitive(t *testing.T) {
	node := Hash{1}
	children := []FrameID{{2}, {3}}
	reversed := []FrameID{{3}, {2}}

	h1 := ComputeSynthesisBasisHash(node, children, "note", "concatenation")
	h2 := ComputeSynthesisBasisHash(node, reversed, "note", "concatenation")
	assert.NotEqual(t, h1, h2, "child order must be part of the synthesis basis hash input")
}

func TestComputeSynthesisBasisHashDeterministic(t *testing.T) {
	node := Hash{1}
	children := []FrameID{{2}, {3}}
	h1 := ComputeSynthesisBasisHash(node, children, "note", "concatenation")
	h2 := ComputeSynthesisBasisHash(node, children, "note", "concatenation")
	assert.Equal(t, h1, h2)
}

func TestComputeNodeIDDeterministic(t *testing.T) {
	aContent := []byte{0x61}
	bContent := []byte{0x62}
	aID := ComputeNodeID(KindFile, aContent, nil)
	bID := ComputeNodeID(KindFile, bContent, nil)
	require.NotEqual(t, aID, bID)

	dirID1 := ComputeNodeID(KindDirectory, []byte("/repo/d"), []NodeID{aID, bID})
	dirID2 := ComputeNodeID(KindDirectory, []byte("/repo/d"), []NodeID{aID, bID})
	assert.Equal(t, dirID1, dirID2, "two independent builds over the same tree must agree")
}

func TestComputeNodeIDDistinguishesFileFromDirectory(t *testing.T) {
	path := []byte("/repo/x")
	fileID := ComputeNodeID(KindFile, path, nil)
	dirID := ComputeNodeID(KindDirectory, path, nil)
	assert.NotEqual(t, fileID, dirID)
}
