// Package wire implements the canonical binary encoding shared by the
// Fiat-Shamir transcript, the signature inputs and the persistent store:
// every scalar, group element, ciphertext and proof in this repository is
// serialised the same way, so independent verifiers agree byte-for-byte.
//
// Primitive encodings:
//   - bool: one byte, 0x00 or 0x01.
//   - bytes: a little-endian uint64 length prefix followed by the payload.
//   - scalar / group element: the bytes encoding of its canonical decimal
//     string.
//
// Structured messages are prefixed with a one-byte type tag in 1..18;
// aggregate messages (ballots, proof sequences) are a bytes-style uint64
// element count followed by each element's own self-delimiting encoding.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
)

// Type tags for structured messages. Purely for debugging / defensive
// deserialisation; a mismatch is always rejected.
const (
	TagCiphertext             byte = 1
	TagBallot                 byte = 2
	TagChoiceProof            byte = 3
	TagChoiceProofSequence    byte = 4
	TagCountProofBranch       byte = 5
	TagCountProof             byte = 6
	TagPartialDecryption      byte = 7
	TagDecryptionProof        byte = 8
	TagCertificate            byte = 9
	TagSignedBallot           byte = 10
	TagArbiterPublicKey       byte = 11
	TagElectionPublicKey      byte = 12
	TagVoterRegistration      byte = 13
	TagVoteRequest            byte = 14
	TagTallyResult            byte = 15
	TagSessionHandshakeClient byte = 16
	TagSessionHandshakeServer byte = 17
	TagAggregatedCiphertext   byte = 18
)

// Writer accumulates a canonical encoding.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte { return w.buf.Bytes() }

// WriteBool writes a single-byte boolean.
func (w *Writer) WriteBool(b bool) {
	if b {
		w.buf.WriteByte(0x01)
	} else {
		w.buf.WriteByte(0x00)
	}
}

// WriteTag writes a one-byte message type tag.
func (w *Writer) WriteTag(tag byte) {
	w.buf.WriteByte(tag)
}

// WriteCount writes a little-endian uint64 element count.
func (w *Writer) WriteCount(n int) {
	var lenBuf [8]byte
	binary.LittleEndian.PutUint64(lenBuf[:], uint64(n))
	w.buf.Write(lenBuf[:])
}

// WriteBytes writes a length-prefixed byte slice.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteCount(len(b))
	w.buf.Write(b)
}

// WriteBigInt writes a scalar or group element as the canonical decimal
// string of x, length-prefixed like bytes.
func (w *Writer) WriteBigInt(x *big.Int) {
	w.WriteBytes([]byte(x.String()))
}

// Reader parses a canonical encoding produced by Writer.
type Reader struct {
	data []byte
	pos  int
}

// NewReader wraps data for sequential reads.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.data) - r.pos }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("wire: unexpected end of input (need %d, have %d)", n, r.Remaining())
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadBool reads a one-byte boolean.
func (r *Reader) ReadBool() (bool, error) {
	b, err := r.take(1)
	if err != nil {
		return false, err
	}
	switch b[0] {
	case 0x00:
		return false, nil
	case 0x01:
		return true, nil
	default:
		return false, fmt.Errorf("wire: invalid bool byte 0x%x", b[0])
	}
}

// ReadTag reads a one-byte type tag and checks it matches expected.
func (r *Reader) ReadTag(expected byte) error {
	b, err := r.take(1)
	if err != nil {
		return err
	}
	if b[0] != expected {
		return fmt.Errorf("wire: type tag mismatch: got %d, expected %d", b[0], expected)
	}
	return nil
}

// ReadCount reads a little-endian uint64 element count.
func (r *Reader) ReadCount() (int, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	n := binary.LittleEndian.Uint64(b)
	if n > (1 << 32) {
		return 0, fmt.Errorf("wire: implausible element count %d", n)
	}
	return int(n), nil
}

// ReadBytes reads a length-prefixed byte slice.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadCount()
	if err != nil {
		return nil, err
	}
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadBigInt reads a scalar or group element encoded as a decimal string.
func (r *Reader) ReadBigInt() (*big.Int, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return nil, err
	}
	x, ok := new(big.Int).SetString(string(b), 10)
	if !ok {
		return nil, fmt.Errorf("wire: invalid decimal integer %q", string(b))
	}
	return x, nil
}

// Concat concatenates the canonical encodings of a sequence of components,
// in order, matching spec.md §6's "signature inputs" rule: every signed
// message is signed over the concatenation of the canonical serialisations
// of its components, not a re-encoding of the whole.
func Concat(parts ...[]byte) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		buf.Write(p)
	}
	return buf.Bytes()
}
