package wire

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"
)

func TestRoundTripPrimitives(t *testing.T) {
	c := qt.New(t)

	w := NewWriter()
	w.WriteBool(true)
	w.WriteBool(false)
	w.WriteBytes([]byte("hello"))
	w.WriteBigInt(big.NewInt(123456789))
	w.WriteTag(TagCiphertext)
	w.WriteCount(3)

	r := NewReader(w.Bytes())

	b1, err := r.ReadBool()
	c.Assert(err, qt.IsNil)
	c.Assert(b1, qt.IsTrue)

	b2, err := r.ReadBool()
	c.Assert(err, qt.IsNil)
	c.Assert(b2, qt.IsFalse)

	data, err := r.ReadBytes()
	c.Assert(err, qt.IsNil)
	c.Assert(string(data), qt.Equals, "hello")

	x, err := r.ReadBigInt()
	c.Assert(err, qt.IsNil)
	c.Assert(x.String(), qt.Equals, "123456789")

	c.Assert(r.ReadTag(TagCiphertext), qt.IsNil)

	n, err := r.ReadCount()
	c.Assert(err, qt.IsNil)
	c.Assert(n, qt.Equals, 3)

	c.Assert(r.Remaining(), qt.Equals, 0)
}

func TestReadTagMismatch(t *testing.T) {
	c := qt.New(t)
	w := NewWriter()
	w.WriteTag(TagBallot)
	r := NewReader(w.Bytes())
	err := r.ReadTag(TagCiphertext)
	c.Assert(err, qt.ErrorMatches, ".*type tag mismatch.*")
}

func TestTruncatedInput(t *testing.T) {
	c := qt.New(t)
	w := NewWriter()
	w.WriteBytes([]byte("partial"))
	truncated := w.Bytes()[:4]
	r := NewReader(truncated)
	_, err := r.ReadBytes()
	c.Assert(err, qt.ErrorMatches, ".*unexpected end of input.*")
}

func TestConcatMatchesSignatureInputOrder(t *testing.T) {
	c := qt.New(t)
	a := NewWriter()
	a.WriteBigInt(big.NewInt(1))
	b := NewWriter()
	b.WriteBigInt(big.NewInt(2))
	got := Concat(a.Bytes(), b.Bytes())

	want := NewWriter()
	want.WriteBigInt(big.NewInt(1))
	want.WriteBigInt(big.NewInt(2))

	c.Assert(got, qt.DeepEquals, want.Bytes())
}
