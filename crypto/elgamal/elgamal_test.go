package elgamal

import (
	"math/big"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/distvote/evote/group"
)

func TestGenerateArbiterKey(t *testing.T) {
	c := qt.New(t)
	k, err := GenerateArbiterKey()
	c.Assert(err, qt.IsNil)
	c.Assert(group.IsElement(k.Public), qt.IsTrue)
	c.Assert(group.ModExp(group.G, k.PrivateScalar()).Cmp(k.Public), qt.Equals, 0)
}

func TestCombinePublicKeys(t *testing.T) {
	c := qt.New(t)
	k1, err := GenerateArbiterKey()
	c.Assert(err, qt.IsNil)
	k2, err := GenerateArbiterKey()
	c.Assert(err, qt.IsNil)

	y, err := CombinePublicKeys(k1.Public, k2.Public)
	c.Assert(err, qt.IsNil)
	c.Assert(y.Cmp(group.Mul(k1.Public, k2.Public)), qt.Equals, 0)

	_, err = CombinePublicKeys()
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	c := qt.New(t)
	k, err := GenerateArbiterKey()
	c.Assert(err, qt.IsNil)

	for _, v := range []int{0, 1} {
		ct, r, err := EncryptRandom(k.Public, v)
		c.Assert(err, qt.IsNil)
		c.Assert(ct.Valid(), qt.IsTrue)

		// manual decryption: b / a^x = g^v
		ax := group.ModExp(ct.A, k.PrivateScalar())
		m := group.Mul(ct.B, group.ModInv(ax))
		want := group.ModExp(group.G, big.NewInt(int64(v)))
		c.Assert(m.Cmp(want), qt.Equals, 0)

		// re-derive the ciphertext from r deterministically
		ct2, err := Encrypt(k.Public, v, r)
		c.Assert(err, qt.IsNil)
		c.Assert(ct2.A.Cmp(ct.A), qt.Equals, 0)
		c.Assert(ct2.B.Cmp(ct.B), qt.Equals, 0)
	}
}

func TestEncryptRejectsOutOfRangePlaintext(t *testing.T) {
	c := qt.New(t)
	k, err := GenerateArbiterKey()
	c.Assert(err, qt.IsNil)
	r, err := group.RandScalar()
	c.Assert(err, qt.IsNil)
	_, err = Encrypt(k.Public, 2, r)
	c.Assert(err, qt.ErrorMatches, ".*must be 0 or 1.*")
}

func TestCombineIsHomomorphic(t *testing.T) {
	c := qt.New(t)
	k, err := GenerateArbiterKey()
	c.Assert(err, qt.IsNil)

	ct0, r0, err := EncryptRandom(k.Public, 1)
	c.Assert(err, qt.IsNil)
	ct1, r1, err := EncryptRandom(k.Public, 0)
	c.Assert(err, qt.IsNil)

	combined, err := Combine(ct0, ct1)
	c.Assert(err, qt.IsNil)

	// combined should decrypt to v0+v1 = 1 under randomness r0+r1
	R := group.ScalarAdd(r0, r1)
	expectedA := group.ModExp(group.G, R)
	c.Assert(combined.A.Cmp(expectedA), qt.Equals, 0)

	ax := group.ModExp(combined.A, k.PrivateScalar())
	m := group.Mul(combined.B, group.ModInv(ax))
	want := group.ModExp(group.G, big.NewInt(1))
	c.Assert(m.Cmp(want), qt.Equals, 0)
}

func TestCiphertextEncodeDecodeRoundTrip(t *testing.T) {
	c := qt.New(t)
	k, err := GenerateArbiterKey()
	c.Assert(err, qt.IsNil)
	ct, _, err := EncryptRandom(k.Public, 1)
	c.Assert(err, qt.IsNil)

	data := ct.Encode()
	got, err := DecodeCiphertext(data)
	c.Assert(err, qt.IsNil)
	c.Assert(got.A.Cmp(ct.A), qt.Equals, 0)
	c.Assert(got.B.Cmp(ct.B), qt.Equals, 0)
}
