package element

import (
	"encoding/binary"
	"fmt"

	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/path"
)

// Encode serializes e using bincode-style big-endian length prefixes, the
// discriminant as the first byte (spec.md §3.3).
func Encode(e Element) []byte {
	var b []byte
	b = append(b, byte(e.Kind))

	switch e.Kind {
	case KindItem:
		b = appendBytes(b, e.Value)
		b = appendFlags(b, e.Flags)

	case KindReference:
		b = appendReference(b, e.Ref)
		b = appendUint32(b, uint32(e.HopCap))
		b = appendFlags(b, e.Flags)

	case KindTree:
		b = appendOptionalBytes(b, e.ChildRootKey)
		b = appendFlags(b, e.Flags)

	case KindSumItem:
		b = appendInt64(b, e.Sum)
		b = appendFlags(b, e.Flags)

	case KindSumTree:
		b = appendOptionalBytes(b, e.ChildRootKey)
		b = appendInt64(b, e.Sum)
		b = appendFlags(b, e.Flags)

	case KindBigSumTree:
		b = appendOptionalBytes(b, e.ChildRootKey)
		b = appendInt64(b, e.BigSum.Hi)
		b = appendUint64(b, e.BigSum.Lo)
		b = appendFlags(b, e.Flags)

	case KindCountTree:
		b = appendOptionalBytes(b, e.ChildRootKey)
		b = appendUint64(b, e.Count)
		b = appendFlags(b, e.Flags)

	case KindCountSumTree:
		b = appendOptionalBytes(b, e.ChildRootKey)
		b = appendUint64(b, e.Count)
		b = appendInt64(b, e.Sum)
		b = appendFlags(b, e.Flags)

	case KindItemWithSumItem:
		b = appendBytes(b, e.Value)
		b = appendInt64(b, e.Sum)
		b = appendFlags(b, e.Flags)

	case KindProvableCountTree:
		b = appendOptionalBytes(b, e.ChildRootKey)
		b = appendUint64(b, e.Count)
		b = appendFlags(b, e.Flags)

	case KindProvableCountSumTree:
		b = appendOptionalBytes(b, e.ChildRootKey)
		b = appendUint64(b, e.Count)
		b = appendInt64(b, e.Sum)
		b = appendFlags(b, e.Flags)

	case KindCommitmentTree:
		b = appendUint64(b, e.TotalCount)
		b = append(b, e.ChunkPower)
		b = appendUint16(b, e.BufferCount)
		b = appendUint64(b, e.MmrLeafCount)
		b = appendFlags(b, e.Flags)

	case KindMmrTree:
		b = appendUint64(b, e.MmrLeafCount)
		b = appendFlags(b, e.Flags)

	case KindBulkAppendTree:
		b = appendUint64(b, e.TotalCount)
		b = append(b, e.ChunkPower)
		b = appendUint16(b, e.BufferCount)
		b = appendUint64(b, e.MmrLeafCount)
		b = appendFlags(b, e.Flags)

	case KindDenseFixedTree:
		b = appendUint16(b, e.DenseCount)
		b = append(b, e.Height)
		b = appendFlags(b, e.Flags)
	}

	return b
}

// Decode parses the bytes produced by Encode.
func Decode(data []byte) (Element, error) {
	r := &reader{buf: data}
	kindByte, err := r.byte_()
	if err != nil {
		return Element{}, wrapDecodeErr(err)
	}
	kind := Kind(kindByte)

	var e Element
	e.Kind = kind

	switch kind {
	case KindItem:
		e.Value, err = r.bytes()
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindReference:
		e.Ref, err = r.reference()
		if err == nil {
			var hc uint32
			hc, err = r.uint32()
			e.HopCap = int(hc)
		}
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindTree:
		e.ChildRootKey, err = r.optionalBytes()
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindSumItem:
		e.Sum, err = r.int64()
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindSumTree:
		e.ChildRootKey, err = r.optionalBytes()
		if err == nil {
			e.Sum, err = r.int64()
		}
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindBigSumTree:
		e.ChildRootKey, err = r.optionalBytes()
		if err == nil {
			e.BigSum.Hi, err = r.int64()
		}
		if err == nil {
			e.BigSum.Lo, err = r.uint64()
		}
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindCountTree:
		e.ChildRootKey, err = r.optionalBytes()
		if err == nil {
			e.Count, err = r.uint64()
		}
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindCountSumTree:
		e.ChildRootKey, err = r.optionalBytes()
		if err == nil {
			e.Count, err = r.uint64()
		}
		if err == nil {
			e.Sum, err = r.int64()
		}
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindItemWithSumItem:
		e.Value, err = r.bytes()
		if err == nil {
			e.Sum, err = r.int64()
		}
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindProvableCountTree:
		e.ChildRootKey, err = r.optionalBytes()
		if err == nil {
			e.Count, err = r.uint64()
		}
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindProvableCountSumTree:
		e.ChildRootKey, err = r.optionalBytes()
		if err == nil {
			e.Count, err = r.uint64()
		}
		if err == nil {
			e.Sum, err = r.int64()
		}
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindCommitmentTree:
		e.TotalCount, err = r.uint64()
		if err == nil {
			e.ChunkPower, err = r.byte_()
		}
		if err == nil {
			e.BufferCount, err = r.uint16()
		}
		if err == nil {
			e.MmrLeafCount, err = r.uint64()
		}
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindMmrTree:
		e.MmrLeafCount, err = r.uint64()
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindBulkAppendTree:
		e.TotalCount, err = r.uint64()
		if err == nil {
			e.ChunkPower, err = r.byte_()
		}
		if err == nil {
			e.BufferCount, err = r.uint16()
		}
		if err == nil {
			e.MmrLeafCount, err = r.uint64()
		}
		if err == nil {
			e.Flags, err = r.flags()
		}

	case KindDenseFixedTree:
		e.DenseCount, err = r.uint16()
		if err == nil {
			e.Height, err = r.byte_()
		}
		if err == nil {
			e.Flags, err = r.flags()
		}

	default:
		return Element{}, grovedberr.New(grovedberr.KindTypeMismatch, "element.Decode",
			fmt.Errorf("unknown discriminant %d", kindByte))
	}

	if err != nil {
		return Element{}, wrapDecodeErr(err)
	}
	return e, nil
}

func wrapDecodeErr(err error) error {
	return grovedberr.New(grovedberr.KindTypeMismatch, "element.Decode", err)
}

// --- append helpers ---

func appendUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendUint64(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func appendInt64(b []byte, v int64) []byte {
	return appendUint64(b, uint64(v))
}

func appendFlags(b []byte, f Flags) []byte {
	return appendUint32(b, uint32(f))
}

// appendBytes writes a required byte string as a 4-byte length prefix
// followed by the raw bytes.
func appendBytes(b []byte, v []byte) []byte {
	b = appendUint32(b, uint32(len(v)))
	return append(b, v...)
}

// appendOptionalBytes writes a 1-byte presence flag, then the bytes (via
// appendBytes) only when present. Used for the Tree-family child root key,
// which is absent while the child subtree is empty (spec.md §4.4.2).
func appendOptionalBytes(b []byte, v []byte) []byte {
	if v == nil {
		return append(b, 0)
	}
	b = append(b, 1)
	return appendBytes(b, v)
}

func appendReference(b []byte, ref path.Reference) []byte {
	b = append(b, byte(ref.Kind))
	b = appendPath(b, ref.AbsolutePath)
	b = appendUint32(b, uint32(ref.KeepSegments))
	b = appendPath(b, ref.AppendSegments)
	b = appendUint32(b, uint32(ref.DropSegments))
	b = appendBytes(b, ref.ReplaceSegment)
	b = appendBytes(b, ref.PushKey)
	b = appendUint32(b, uint32(ref.MaxHops))
	return b
}

func appendPath(b []byte, p path.Path) []byte {
	b = appendUint32(b, uint32(len(p)))
	for _, seg := range p {
		b = appendBytes(b, seg)
	}
	return b
}

// --- reader ---

type reader struct {
	buf []byte
	pos int
}

func (r *reader) byte_() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("unexpected end of buffer reading byte")
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("unexpected end of buffer reading %d bytes", n)
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) int64() (int64, error) {
	v, err := r.uint64()
	return int64(v), err
}

func (r *reader) flags() (Flags, error) {
	v, err := r.uint32()
	return Flags(v), err
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	v, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (r *reader) optionalBytes() ([]byte, error) {
	present, err := r.byte_()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	return r.bytes()
}

func (r *reader) pathValue() (path.Path, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	p := make(path.Path, n)
	for i := range p {
		p[i], err = r.bytes()
		if err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (r *reader) reference() (path.Reference, error) {
	var ref path.Reference
	k, err := r.byte_()
	if err != nil {
		return ref, err
	}
	ref.Kind = path.ReferenceKind(k)
	if ref.AbsolutePath, err = r.pathValue(); err != nil {
		return ref, err
	}
	var keep uint32
	if keep, err = r.uint32(); err != nil {
		return ref, err
	}
	ref.KeepSegments = int(keep)
	if ref.AppendSegments, err = r.pathValue(); err != nil {
		return ref, err
	}
	var drop uint32
	if drop, err = r.uint32(); err != nil {
		return ref, err
	}
	ref.DropSegments = int(drop)
	if ref.ReplaceSegment, err = r.bytes(); err != nil {
		return ref, err
	}
	if ref.PushKey, err = r.bytes(); err != nil {
		return ref, err
	}
	var maxHops uint32
	if maxHops, err = r.uint32(); err != nil {
		return ref, err
	}
	ref.MaxHops = int(maxHops)
	return ref, nil
}
