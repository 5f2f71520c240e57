package ballot

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/distvote/evote/crypto/elgamal"
)

func TestBuildVerifyRoundTrip(t *testing.T) {
	c := qt.New(t)
	k, err := elgamal.GenerateArbiterKey()
	c.Assert(err, qt.IsNil)

	b, err := Build(k.Public, []int{1, 0}, 1, 2)
	c.Assert(err, qt.IsNil)
	c.Assert(b.Verify(k.Public, 2), qt.IsTrue)
}

func TestBuildRejectsMismatchedCount(t *testing.T) {
	c := qt.New(t)
	k, err := elgamal.GenerateArbiterKey()
	c.Assert(err, qt.IsNil)

	_, err = Build(k.Public, []int{1, 1}, 1, 2)
	c.Assert(err, qt.ErrorMatches, ".*does not match actual sum.*")
}

func TestVerifyRejectsTamperedChoiceProof(t *testing.T) {
	c := qt.New(t)
	k, err := elgamal.GenerateArbiterKey()
	c.Assert(err, qt.IsNil)

	b, err := Build(k.Public, []int{1, 0, 0}, 1, 3)
	c.Assert(err, qt.IsNil)

	// corrupt the middle choice's per-choice proof.
	b.ChoiceProofs[1].R0 = big.NewInt(0).Add(b.ChoiceProofs[1].R0, big.NewInt(1))
	c.Assert(b.Verify(k.Public, 3), qt.IsFalse)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := qt.New(t)
	k, err := elgamal.GenerateArbiterKey()
	c.Assert(err, qt.IsNil)

	b, err := Build(k.Public, []int{1, 0}, 1, 2)
	c.Assert(err, qt.IsNil)

	data := b.Encode()
	got, err := Decode(data)
	c.Assert(err, qt.IsNil)
	c.Assert(got.Verify(k.Public, 2), qt.IsTrue)
}
