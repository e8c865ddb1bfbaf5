package framestore

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/framegraph/framegraph/internal/apperr"
	"github.com/framegraph/framegraph/internal/ids"
)

// On-disk frame encoding: a tagged sum type for Basis, length-prefixed
// content, UTF-8 frame_type, a sorted-key metadata map, and a fixed-width
// timestamp. Re-encoding a decoded Frame and decoding it again must
// reproduce the same FrameID.
const encodingVersion = 1

func putUint32(dst []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(dst, buf[:]...)
}

func putString(dst []byte, s string) []byte {
	dst = putUint32(dst, uint32(len(s)))
	return append(dst, s...)
}

func putBytes(dst []byte, b []byte) []byte {
	dst = putUint32(dst, uint32(len(b)))
	return append(dst, b...)
}

// Encode serializes a Frame to the on-disk format.
func Encode(f *Frame) []byte {
	buf := make([]byte, 0, 64+len(f.Content))
	buf = append(buf, byte(encodingVersion))

	buf = putBytes(buf, ids.EncodeBasis(f.Basis))
	buf = putBytes(buf, f.Content)
	buf = putString(buf, f.FrameType)

	keys := f.sortedMetadataKeys()
	buf = putUint32(buf, uint32(len(keys)))
	for _, k := range keys {
		buf = putString(buf, k)
		buf = putString(buf, f.Metadata[k])
	}

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(f.CreatedAt.UnixNano()))
	buf = append(buf, ts[:]...)

	return buf
}

type reader struct {
	b   []byte
	pos int
}

func (r *reader) readUint32() (uint32, error) {
	if r.pos+4 > len(r.b) {
		return 0, fmt.Errorf("truncated uint32 at offset %d", r.pos)
	}
	v := binary.BigEndian.Uint32(r.b[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) readBytes() ([]byte, error) {
	n, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.b) {
		return nil, fmt.Errorf("truncated bytes field at offset %d", r.pos)
	}
	out := r.b[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return out, nil
}

func (r *reader) readString() (string, error) {
	b, err := r.readBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Decode parses the on-disk format produced by Encode. id is the FrameID
// this payload was stored under; the decoded Frame's ID field is set to it
// without recomputation (callers that need to verify the derivation
// contract should use VerifyFrameID).
func Decode(id ids.FrameID, data []byte) (*Frame, error) {
	if len(data) < 1 {
		return nil, apperr.New(apperr.CodeInvalidFrame, "empty frame payload")
	}
	version := data[0]
	if version != encodingVersion {
		return nil, apperr.New(apperr.CodeInvalidFrame, fmt.Sprintf("unsupported frame encoding version %d", version))
	}

	r := &reader{b: data, pos: 1}

	basisBytes, err := r.readBytes()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidFrame, "read basis", err)
	}
	basis, err := ids.DecodeBasis(basisBytes)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidFrame, "decode basis", err)
	}

	content, err := r.readBytes()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidFrame, "read content", err)
	}
	frameType, err := r.readString()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidFrame, "read frame_type", err)
	}

	metaCount, err := r.readUint32()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeInvalidFrame, "read metadata count", err)
	}
	metadata := make(map[string]string, metaCount)
	for i := uint32(0); i < metaCount; i++ {
		k, err := r.readString()
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInvalidFrame, "read metadata key", err)
		}
		v, err := r.readString()
		if err != nil {
			return nil, apperr.Wrap(apperr.CodeInvalidFrame, "read metadata value", err)
		}
		metadata[k] = v
	}

	if r.pos+8 > len(r.b) {
		return nil, apperr.New(apperr.CodeInvalidFrame, "truncated timestamp")
	}
	ns := binary.BigEndian.Uint64(r.b[r.pos : r.pos+8])
	createdAt := time.Unix(0, int64(ns)).UTC()

	contentCopy := make([]byte, len(content))
	copy(contentCopy, content)

	return &Frame{
		ID:        id,
		Basis:     basis,
		Content:   contentCopy,
		FrameType: frameType,
		Metadata:  metadata,
		CreatedAt: createdAt,
	}, nil
}

// VerifyFrameID recomputes the FrameID from a decoded Frame's fields and
// reports whether it matches f.ID.
func VerifyFrameID(f *Frame) bool {
	want := ids.ComputeFrameID(f.Basis, f.Content, f.FrameType, f.AgentID())
	return want == f.ID
}
