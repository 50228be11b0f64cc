package merk

import (
	"encoding/binary"
	"fmt"

	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/types"
)

// EncodeNode serializes n for storage in the keyspace's data column, per
// spec.md §6.2: `feature_type_tag ‖ value_hash ‖ value_len ‖ value_bytes ‖
// [left_child_link]? ‖ [right_child_link]?`. n's own Key is not included —
// it is the keyspace key under which this blob is stored, reinjected on
// decode.
func EncodeNode(n *Node) []byte {
	var b []byte
	if n.Feature.BindCount {
		b = append(b, 1)
		b = appendUint64(b, n.Feature.Count)
	} else {
		b = append(b, 0)
	}
	b = append(b, n.ValueHash.Bytes()...)
	b = appendUint32(b, uint32(len(n.Value)))
	b = append(b, n.Value...)
	b = appendLink(b, n.Left)
	b = appendLink(b, n.Right)
	return b
}

// DecodeNode parses the bytes produced by EncodeNode, reinjecting key as
// the node's Key. Child links decode into LinkReference state — callers
// needing the child bodies fetch them lazily through a Fetch.
func DecodeNode(key []byte, data []byte) (*Node, error) {
	r := &byteReader{buf: data}

	bindTag, err := r.byte_()
	if err != nil {
		return nil, wrapErr(err)
	}
	var feature Feature
	if bindTag == 1 {
		feature.BindCount = true
		if feature.Count, err = r.uint64(); err != nil {
			return nil, wrapErr(err)
		}
	}

	vh, err := r.take(types.HashLength)
	if err != nil {
		return nil, wrapErr(err)
	}
	var valueHash types.Hash
	valueHash.SetBytes(vh)

	valueLen, err := r.uint32()
	if err != nil {
		return nil, wrapErr(err)
	}
	value, err := r.take(int(valueLen))
	if err != nil {
		return nil, wrapErr(err)
	}
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	left, err := r.link()
	if err != nil {
		return nil, wrapErr(err)
	}
	right, err := r.link()
	if err != nil {
		return nil, wrapErr(err)
	}

	n := &Node{
		Key:       append([]byte(nil), key...),
		Value:     valueCopy,
		ValueHash: valueHash,
		Feature:   feature,
		Left:      left,
		Right:     right,
	}
	n.Rehash()
	return n, nil
}

func wrapErr(err error) error {
	return grovedberr.New(grovedberr.KindStorage, "merk.DecodeNode", err)
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

func appendUint16(b []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(b, tmp[:]...)
}

// appendLink encodes an optional child link as: presence(1) ‖ [hash(32) ‖
// left_height(2) ‖ right_height(2) ‖ key_len(4) ‖ key ‖ bind_count(1) ‖
// count(8)]. Persisting a link requires its Node body to be resident
// (Modified/Uncommitted/Loaded) so the pointed-to node's own child heights
// can be read off directly, per spec.md §6.2.
func appendLink(b []byte, l *Link) []byte {
	if l == nil {
		return append(b, 0)
	}
	b = append(b, 1)
	b = append(b, l.Hash.Bytes()...)

	var lh, rh int16
	if l.Node != nil {
		lh, rh = l.Node.leftHeight(), l.Node.rightHeight()
	}
	b = appendUint16(b, uint16(lh))
	b = appendUint16(b, uint16(rh))

	b = appendUint32(b, uint32(len(l.Key)))
	b = append(b, l.Key...)

	if l.Feature.BindCount {
		b = append(b, 1)
	} else {
		b = append(b, 0)
	}
	b = appendUint64(b, l.Feature.Count)
	return b
}

type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) byte_() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("unexpected end of buffer reading byte")
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("unexpected end of buffer reading %d bytes", n)
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *byteReader) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *byteReader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *byteReader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *byteReader) link() (*Link, error) {
	present, err := r.byte_()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	hashBytes, err := r.take(types.HashLength)
	if err != nil {
		return nil, err
	}
	var h types.Hash
	h.SetBytes(hashBytes)

	lh, err := r.uint16()
	if err != nil {
		return nil, err
	}
	rh, err := r.uint16()
	if err != nil {
		return nil, err
	}
	height := int16(lh)
	if int16(rh) > height {
		height = int16(rh)
	}
	height++

	keyLen, err := r.uint32()
	if err != nil {
		return nil, err
	}
	key, err := r.take(int(keyLen))
	if err != nil {
		return nil, err
	}
	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)

	bindTag, err := r.byte_()
	if err != nil {
		return nil, err
	}
	count, err := r.uint64()
	if err != nil {
		return nil, err
	}

	return &Link{
		State:   LinkReference,
		Hash:    h,
		Key:     keyCopy,
		Height:  height,
		Feature: Feature{BindCount: bindTag == 1, Count: count},
	}, nil
}
