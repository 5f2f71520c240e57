// Package choiceproof implements the Chaum-Pedersen disjunctive (OR) proof
// that a per-choice ElGamal ciphertext encodes 0 or 1, per spec.md §4.2.
package choiceproof

import (
	"fmt"
	"math/big"

	"github.com/distvote/evote/crypto/elgamal"
	"github.com/distvote/evote/group"
	"github.com/distvote/evote/wire"
)

// Proof is the eight-scalar disjunctive proof (a0, a1, b0, b1, c0, c1, r0, r1)
// of spec.md §3. a0, a1, b0, b1 are group elements; c0, c1, r0, r1 are
// scalars mod Q.
type Proof struct {
	A0, A1 *big.Int
	B0, B1 *big.Int
	C0, C1 *big.Int
	R0, R1 *big.Int
}

// Prove builds a disjunctive Chaum-Pedersen proof that ct encrypts v under
// public key y with randomness r, without revealing v. v must be 0 or 1 and
// ct must actually be Encrypt(y, v, r).
func Prove(y *big.Int, ct *elgamal.Ciphertext, v int, r *big.Int) (*Proof, error) {
	if v != 0 && v != 1 {
		return nil, fmt.Errorf("choiceproof: v must be 0 or 1, got %d", v)
	}
	if !group.IsScalar(r) {
		return nil, fmt.Errorf("choiceproof: randomness out of range")
	}

	// beta for branch 1 is b/g; used both when branch 1 is fake and when
	// computing the real branch's verification target implicitly via w.
	gInv := group.ModInv(group.G)
	betaFake := map[int]*big.Int{
		0: ct.B,
		1: group.Mul(ct.B, gInv),
	}

	fakeBranch := 1 - v
	realBranch := v

	cFake, err := group.RandScalar()
	if err != nil {
		return nil, err
	}
	rFake, err := group.RandScalar()
	if err != nil {
		return nil, err
	}

	// a_fake = g^r_fake * a^(-c_fake); computed as g^r_fake * (a^-1)^c_fake
	// so every exponent stays a non-negative scalar mod Q.
	aFake := group.Mul(group.ModExp(group.G, rFake), group.ModExp(group.ModInv(ct.A), cFake))
	bFake := group.Mul(group.ModExp(y, rFake), group.ModExp(group.ModInv(betaFake[fakeBranch]), cFake))

	w, err := group.RandScalar()
	if err != nil {
		return nil, err
	}
	aReal := group.ModExp(group.G, w)
	bReal := group.ModExp(y, w)

	var a0, a1, b0, b1 *big.Int
	if realBranch == 0 {
		a0, b0 = aReal, bReal
		a1, b1 = aFake, bFake
	} else {
		a0, b0 = aFake, bFake
		a1, b1 = aReal, bReal
	}

	c := group.HashToScalar(y, ct.A, ct.B, a0, b0, a1, b1)
	cReal := group.ScalarSub(c, cFake)
	rReal := group.ScalarAdd(w, group.ScalarMul(cReal, r))

	var c0, c1, r0, r1 *big.Int
	if realBranch == 0 {
		c0, r0 = cReal, rReal
		c1, r1 = cFake, rFake
	} else {
		c0, r0 = cFake, rFake
		c1, r1 = cReal, rReal
	}

	return &Proof{A0: a0, A1: a1, B0: b0, B1: b1, C0: c0, C1: c1, R0: r0, R1: r1}, nil
}

// Verify checks the proof against public key y and ciphertext ct, per the
// four verification equations of spec.md §4.2 plus the challenge-sum check.
func Verify(y *big.Int, ct *elgamal.Ciphertext, p *Proof) bool {
	if y == nil || ct == nil || p == nil {
		return false
	}
	for _, x := range []*big.Int{p.A0, p.A1, p.B0, p.B1} {
		if !group.IsElement(x) {
			return false
		}
	}
	for _, x := range []*big.Int{p.C0, p.C1, p.R0, p.R1} {
		if !group.IsScalar(x) {
			return false
		}
	}
	if !ct.Valid() {
		return false
	}

	// g^r0 == a0 * a^c0
	lhs := group.ModExp(group.G, p.R0)
	rhs := group.Mul(p.A0, group.ModExp(ct.A, p.C0))
	if lhs.Cmp(rhs) != 0 {
		return false
	}

	// g^r1 == a1 * a^c1
	lhs = group.ModExp(group.G, p.R1)
	rhs = group.Mul(p.A1, group.ModExp(ct.A, p.C1))
	if lhs.Cmp(rhs) != 0 {
		return false
	}

	// Y^r0 == b0 * b^c0
	lhs = group.ModExp(y, p.R0)
	rhs = group.Mul(p.B0, group.ModExp(ct.B, p.C0))
	if lhs.Cmp(rhs) != 0 {
		return false
	}

	// Y^r1 == b1 * (b/g)^c1
	betaOne := group.Mul(ct.B, group.ModInv(group.G))
	lhs = group.ModExp(y, p.R1)
	rhs = group.Mul(p.B1, group.ModExp(betaOne, p.C1))
	if lhs.Cmp(rhs) != 0 {
		return false
	}

	c := group.HashToScalar(y, ct.A, ct.B, p.A0, p.B0, p.A1, p.B1)
	return group.ScalarAdd(p.C0, p.C1).Cmp(c) == 0
}

// Encode serialises the proof using the canonical wire format.
func (p *Proof) Encode() []byte {
	w := wire.NewWriter()
	w.WriteTag(wire.TagChoiceProof)
	for _, x := range []*big.Int{p.A0, p.A1, p.B0, p.B1, p.C0, p.C1, p.R0, p.R1} {
		w.WriteBigInt(x)
	}
	return w.Bytes()
}

// Decode parses a proof encoded by Encode.
func Decode(data []byte) (*Proof, error) {
	r := wire.NewReader(data)
	if err := r.ReadTag(wire.TagChoiceProof); err != nil {
		return nil, err
	}
	vals := make([]*big.Int, 8)
	for i := range vals {
		v, err := r.ReadBigInt()
		if err != nil {
			return nil, fmt.Errorf("choiceproof: decode field %d: %w", i, err)
		}
		vals[i] = v
	}
	return &Proof{
		A0: vals[0], A1: vals[1], B0: vals[2], B1: vals[3],
		C0: vals[4], C1: vals[5], R0: vals[6], R1: vals[7],
	}, nil
}
