package proof

import (
	"encoding/binary"
	"fmt"

	"github.com/grovedb/grove/internal/grovedberr"
	"github.com/grovedb/grove/merk"
	"github.com/grovedb/grove/nonmerk/bulkappend"
	"github.com/grovedb/grove/nonmerk/commitment"
	"github.com/grovedb/grove/nonmerk/dense"
	"github.com/grovedb/grove/nonmerk/mmr"
	"github.com/grovedb/grove/types"
)

// maxEnvelopeBytes bounds any single length-prefixed field this package
// decodes: a corrupted or adversarial length is rejected before it is ever
// used to allocate or slice (spec.md §6.3).
const maxEnvelopeBytes = 100 << 20

// maxCount bounds any length-prefixed element count (ops, layers, proof
// entries) the same way.
const maxCount = 10_000_000

type writer struct{ buf []byte }

func (w *writer) byte_(b byte) { w.buf = append(w.buf, b) }

func (w *writer) bool_(b bool) {
	if b {
		w.byte_(1)
	} else {
		w.byte_(0)
	}
}

func (w *writer) uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *writer) uint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
}
func (w *writer) bytes(v []byte) {
	w.uint64(uint64(len(v)))
	w.buf = append(w.buf, v...)
}
func (w *writer) hash(h types.Hash) { w.buf = append(w.buf, h.Bytes()...) }

type reader struct {
	buf []byte
	pos int
}

func (r *reader) byte_() (byte, error) {
	if r.pos >= len(r.buf) {
		return 0, fmt.Errorf("proof: unexpected end of buffer reading byte")
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) bool_() (bool, error) {
	b, err := r.byte_()
	return b != 0, err
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, fmt.Errorf("proof: unexpected end of buffer reading %d bytes", n)
	}
	v := r.buf[r.pos : r.pos+n]
	r.pos += n
	return v, nil
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

func (r *reader) count() (uint64, error) {
	n, err := r.uint64()
	if err != nil {
		return 0, err
	}
	if n > maxCount {
		return 0, fmt.Errorf("proof: element count %d exceeds the %d cap", n, maxCount)
	}
	return n, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uint64()
	if err != nil {
		return nil, err
	}
	if n > maxEnvelopeBytes {
		return nil, fmt.Errorf("proof: length-prefixed field of %d bytes exceeds the %d byte cap", n, maxEnvelopeBytes)
	}
	return r.take(int(n))
}

func (r *reader) hash() (types.Hash, error) {
	b, err := r.take(types.HashLength)
	if err != nil {
		return types.Hash{}, err
	}
	return types.BytesToHash(b), nil
}

func encodeOp(w *writer, op merk.ProofOp) {
	w.byte_(byte(op.Kind))
	w.byte_(byte(op.PayloadKind))
	switch op.PayloadKind {
	case merk.PayloadHash, merk.PayloadKVHash:
		w.hash(op.Hash)
	case merk.PayloadKV:
		w.bytes(op.Key)
		w.bytes(op.Value)
	case merk.PayloadKVValueHash:
		w.bytes(op.Key)
		w.bytes(op.Value)
		w.hash(op.ValueHash)
	case merk.PayloadKVValueHashFeature:
		w.bytes(op.Key)
		w.bytes(op.Value)
		w.hash(op.ValueHash)
		w.bool_(op.Feature.BindCount)
		w.uint64(op.Feature.Count)
	case merk.PayloadKVDigest:
		w.bytes(op.Key)
		w.hash(op.ValueHash)
	}
}

func decodeOp(r *reader) (merk.ProofOp, error) {
	kindByte, err := r.byte_()
	if err != nil {
		return merk.ProofOp{}, err
	}
	payloadByte, err := r.byte_()
	if err != nil {
		return merk.ProofOp{}, err
	}
	op := merk.ProofOp{Kind: merk.ProofOpKind(kindByte), PayloadKind: merk.ProofPayloadKind(payloadByte)}

	switch op.PayloadKind {
	case merk.PayloadHash, merk.PayloadKVHash:
		op.Hash, err = r.hash()
	case merk.PayloadKV:
		if op.Key, err = r.bytes(); err == nil {
			op.Value, err = r.bytes()
		}
	case merk.PayloadKVValueHash:
		if op.Key, err = r.bytes(); err == nil {
			if op.Value, err = r.bytes(); err == nil {
				op.ValueHash, err = r.hash()
			}
		}
	case merk.PayloadKVValueHashFeature:
		if op.Key, err = r.bytes(); err == nil {
			if op.Value, err = r.bytes(); err == nil {
				if op.ValueHash, err = r.hash(); err == nil {
					if op.Feature.BindCount, err = r.bool_(); err == nil {
						op.Feature.Count, err = r.uint64()
					}
				}
			}
		}
	case merk.PayloadKVDigest:
		if op.Key, err = r.bytes(); err == nil {
			op.ValueHash, err = r.hash()
		}
	}
	if err != nil {
		return merk.ProofOp{}, err
	}
	return op, nil
}

func encodeLayer(w *writer, l Layer) {
	w.uint64(uint64(len(l.Ops)))
	for _, op := range l.Ops {
		encodeOp(w, op)
	}
}

func decodeLayer(r *reader) (Layer, error) {
	n, err := r.count()
	if err != nil {
		return Layer{}, err
	}
	ops := make([]merk.ProofOp, n)
	for i := range ops {
		ops[i], err = decodeOp(r)
		if err != nil {
			return Layer{}, err
		}
	}
	return Layer{Ops: ops}, nil
}

func encodeMMRProof(w *writer, p mmr.Proof) {
	w.uint64(p.MmrSize)
	w.uint64(p.LeafPos)
	w.bytes(p.LeafValue)
	w.uint64(uint64(len(p.PathHashes)))
	for _, h := range p.PathHashes {
		w.hash(h)
	}
	w.uint64(uint64(len(p.OtherPeaks)))
	for _, h := range p.OtherPeaks {
		w.hash(h)
	}
	w.uint32(uint32(p.PeakIndex))
}

func decodeMMRProof(r *reader) (mmr.Proof, error) {
	var p mmr.Proof
	var err error
	if p.MmrSize, err = r.uint64(); err != nil {
		return p, err
	}
	if p.LeafPos, err = r.uint64(); err != nil {
		return p, err
	}
	if p.LeafValue, err = r.bytes(); err != nil {
		return p, err
	}
	n, err := r.count()
	if err != nil {
		return p, err
	}
	p.PathHashes = make([]types.Hash, n)
	for i := range p.PathHashes {
		if p.PathHashes[i], err = r.hash(); err != nil {
			return p, err
		}
	}
	n, err = r.count()
	if err != nil {
		return p, err
	}
	p.OtherPeaks = make([]types.Hash, n)
	for i := range p.OtherPeaks {
		if p.OtherPeaks[i], err = r.hash(); err != nil {
			return p, err
		}
	}
	peakIdx, err := r.uint32()
	if err != nil {
		return p, err
	}
	p.PeakIndex = int(peakIdx)
	return p, nil
}

func encodeDenseProof(w *writer, p dense.Proof) {
	w.uint64(uint64(len(p.Entries)))
	for _, e := range p.Entries {
		w.uint32(e.Position)
		w.bytes(e.Value)
	}
	w.uint64(uint64(len(p.AncestorValueHashes)))
	for pos, h := range p.AncestorValueHashes {
		w.uint32(pos)
		w.hash(h)
	}
	w.uint64(uint64(len(p.SiblingHashes)))
	for pos, h := range p.SiblingHashes {
		w.uint32(pos)
		w.hash(h)
	}
}

func decodeDenseProof(r *reader) (dense.Proof, error) {
	var p dense.Proof
	n, err := r.count()
	if err != nil {
		return p, err
	}
	p.Entries = make([]dense.Entry, n)
	for i := range p.Entries {
		if p.Entries[i].Position, err = r.uint32(); err != nil {
			return p, err
		}
		if p.Entries[i].Value, err = r.bytes(); err != nil {
			return p, err
		}
	}

	n, err = r.count()
	if err != nil {
		return p, err
	}
	if n > 0 {
		p.AncestorValueHashes = make(map[uint32]types.Hash, n)
	}
	for i := uint64(0); i < n; i++ {
		pos, err := r.uint32()
		if err != nil {
			return p, err
		}
		h, err := r.hash()
		if err != nil {
			return p, err
		}
		p.AncestorValueHashes[pos] = h
	}

	n, err = r.count()
	if err != nil {
		return p, err
	}
	if n > 0 {
		p.SiblingHashes = make(map[uint32]types.Hash, n)
	}
	for i := uint64(0); i < n; i++ {
		pos, err := r.uint32()
		if err != nil {
			return p, err
		}
		h, err := r.hash()
		if err != nil {
			return p, err
		}
		p.SiblingHashes[pos] = h
	}
	return p, nil
}

func encodeBulkAppendProof(w *writer, p bulkappend.RangeProof) {
	w.uint64(uint64(len(p.ChunkBlobs)))
	for _, b := range p.ChunkBlobs {
		w.bytes(b)
	}
	w.uint64(uint64(len(p.ChunkProofs)))
	for _, cp := range p.ChunkProofs {
		encodeMMRProof(w, cp)
	}
	w.uint64(uint64(len(p.BufferEntries)))
	for _, b := range p.BufferEntries {
		w.bytes(b)
	}
}

func decodeBulkAppendProof(r *reader) (bulkappend.RangeProof, error) {
	var p bulkappend.RangeProof
	n, err := r.count()
	if err != nil {
		return p, err
	}
	p.ChunkBlobs = make([][]byte, n)
	for i := range p.ChunkBlobs {
		if p.ChunkBlobs[i], err = r.bytes(); err != nil {
			return p, err
		}
	}

	n, err = r.count()
	if err != nil {
		return p, err
	}
	p.ChunkProofs = make([]mmr.Proof, n)
	for i := range p.ChunkProofs {
		if p.ChunkProofs[i], err = decodeMMRProof(r); err != nil {
			return p, err
		}
	}

	n, err = r.count()
	if err != nil {
		return p, err
	}
	p.BufferEntries = make([][]byte, n)
	for i := range p.BufferEntries {
		if p.BufferEntries[i], err = r.bytes(); err != nil {
			return p, err
		}
	}
	return p, nil
}

func encodeCommitmentProof(w *writer, p commitment.Proof) {
	w.hash(p.FrontierRoot)
	w.bool_(p.Range != nil)
	if p.Range != nil {
		encodeBulkAppendProof(w, *p.Range)
	}
}

func decodeCommitmentProof(r *reader) (commitment.Proof, error) {
	var p commitment.Proof
	var err error
	if p.FrontierRoot, err = r.hash(); err != nil {
		return p, err
	}
	hasRange, err := r.bool_()
	if err != nil {
		return p, err
	}
	if hasRange {
		rp, err := decodeBulkAppendProof(r)
		if err != nil {
			return p, err
		}
		p.Range = &rp
	}
	return p, nil
}

func encodeEnvelope(w *writer, e *Envelope) {
	w.byte_(byte(e.Kind))
	w.hash(e.ClaimedRoot)
	w.uint64(e.SizeOrCount)
	w.byte_(e.ChunkPower)
	switch e.Kind {
	case EnvelopeMMR:
		encodeMMRProof(w, *e.MMR)
	case EnvelopeDense:
		encodeDenseProof(w, *e.Dense)
	case EnvelopeBulkAppend:
		encodeBulkAppendProof(w, *e.BulkAppend)
	case EnvelopeCommitment:
		encodeCommitmentProof(w, *e.Commitment)
	}
}

func decodeEnvelope(r *reader) (*Envelope, error) {
	kindByte, err := r.byte_()
	if err != nil {
		return nil, err
	}
	e := &Envelope{Kind: EnvelopeKind(kindByte)}
	if e.ClaimedRoot, err = r.hash(); err != nil {
		return nil, err
	}
	if e.SizeOrCount, err = r.uint64(); err != nil {
		return nil, err
	}
	if e.ChunkPower, err = r.byte_(); err != nil {
		return nil, err
	}
	switch e.Kind {
	case EnvelopeMMR:
		p, err := decodeMMRProof(r)
		if err != nil {
			return nil, err
		}
		e.MMR = &p
	case EnvelopeDense:
		p, err := decodeDenseProof(r)
		if err != nil {
			return nil, err
		}
		e.Dense = &p
	case EnvelopeBulkAppend:
		p, err := decodeBulkAppendProof(r)
		if err != nil {
			return nil, err
		}
		e.BulkAppend = &p
	case EnvelopeCommitment:
		p, err := decodeCommitmentProof(r)
		if err != nil {
			return nil, err
		}
		e.Commitment = &p
	default:
		return nil, fmt.Errorf("proof: unknown envelope kind %d", e.Kind)
	}
	return e, nil
}

// Encode serializes p using the same bincode-style length-prefixed
// encoding as package element (spec.md §6.3).
func Encode(p Proof) []byte {
	w := &writer{}
	w.uint64(uint64(len(p.Layers)))
	for _, l := range p.Layers {
		encodeLayer(w, l)
	}
	w.bool_(p.Envelope != nil)
	if p.Envelope != nil {
		encodeEnvelope(w, p.Envelope)
	}
	return w.buf
}

// Decode parses the bytes Encode produced, rejecting any length-prefixed
// field that exceeds the 100 MiB envelope cap (spec.md §6.3).
func Decode(data []byte) (Proof, error) {
	r := &reader{buf: data}
	n, err := r.count()
	if err != nil {
		return Proof{}, grovedberr.New(grovedberr.KindInvalidProof, "proof.Decode", err)
	}
	layers := make([]Layer, n)
	for i := range layers {
		if layers[i], err = decodeLayer(r); err != nil {
			return Proof{}, grovedberr.New(grovedberr.KindInvalidProof, "proof.Decode", err)
		}
	}
	hasEnv, err := r.bool_()
	if err != nil {
		return Proof{}, grovedberr.New(grovedberr.KindInvalidProof, "proof.Decode", err)
	}
	var env *Envelope
	if hasEnv {
		if env, err = decodeEnvelope(r); err != nil {
			return Proof{}, grovedberr.New(grovedberr.KindInvalidProof, "proof.Decode", err)
		}
	}
	return Proof{Layers: layers, Envelope: env}, nil
}
