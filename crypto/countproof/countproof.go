// Package countproof implements the Chaum-Pedersen disjunctive proof that an
// aggregated ballot ciphertext decrypts to a declared candidate count k, per
// spec.md §4.3. It generalises crypto/choiceproof's two-branch construction
// to C+1 branches, one per permissible plaintext sum j in {0, ..., C}.
package countproof

import (
	"fmt"
	"math/big"

	"github.com/distvote/evote/group"
	"github.com/distvote/evote/wire"
)

// Branch holds one disjunctive branch's public commitments and responses.
type Branch struct {
	A *big.Int
	B *big.Int
	C *big.Int
	R *big.Int
}

// Proof is the ordered sequence of C+1 branches, indexed 0..C inclusive, per
// spec.md §4.3's resolution of the open branch-count question.
type Proof struct {
	Branches []*Branch
}

// Prove builds a disjunctive proof that the aggregated ciphertext (A, B),
// known to encrypt plaintext sum k under combined randomness R, decrypts to
// exactly k, where k ranges over 0..=maxCount inclusive (maxCount is
// typically the ballot length C).
func Prove(y, a, b *big.Int, k int, r *big.Int, maxCount int) (*Proof, error) {
	if k < 0 || k > maxCount {
		return nil, fmt.Errorf("countproof: k=%d out of range [0,%d]", k, maxCount)
	}
	if !group.IsScalar(r) {
		return nil, fmt.Errorf("countproof: randomness out of range")
	}
	if !group.IsElement(a) || !group.IsElement(b) {
		return nil, fmt.Errorf("countproof: invalid aggregated ciphertext")
	}

	n := maxCount + 1
	cs := make([]*big.Int, n)
	rs := make([]*big.Int, n)
	as := make([]*big.Int, n)
	bs := make([]*big.Int, n)

	aInv := group.ModInv(a)

	for j := 0; j < n; j++ {
		if j == k {
			continue
		}
		cj, err := group.RandScalar()
		if err != nil {
			return nil, err
		}
		rj, err := group.RandScalar()
		if err != nil {
			return nil, err
		}
		cs[j], rs[j] = cj, rj

		// a_j = g^r_j * A^(-c_j) = g^r_j * (A^-1)^c_j
		as[j] = group.Mul(group.ModExp(group.G, rj), group.ModExp(aInv, cj))

		// beta_j = B * g^-j; b_j = Y^r_j * beta_j^(-c_j) = Y^r_j * (beta_j^-1)^c_j
		betaJInv := group.ModInv(betaJModP(b, j))
		bs[j] = group.Mul(group.ModExp(y, rj), group.ModExp(betaJInv, cj))
	}

	w, err := group.RandScalar()
	if err != nil {
		return nil, err
	}
	as[k] = group.ModExp(group.G, w)
	bs[k] = group.ModExp(y, w)

	elems := make([]*big.Int, 0, 3+2*n)
	elems = append(elems, y, a, b)
	elems = append(elems, as...)
	elems = append(elems, bs...)
	c := group.HashToScalar(elems...)

	sumFake := big.NewInt(0)
	for j := 0; j < n; j++ {
		if j == k {
			continue
		}
		sumFake = group.ScalarAdd(sumFake, cs[j])
	}
	cs[k] = group.ScalarSub(c, sumFake)
	rs[k] = group.ScalarAdd(w, group.ScalarMul(cs[k], r))

	branches := make([]*Branch, n)
	for j := 0; j < n; j++ {
		branches[j] = &Branch{A: as[j], B: bs[j], C: cs[j], R: rs[j]}
	}
	return &Proof{Branches: branches}, nil
}

// betaJModP computes B * g^-j mod p as a genuine group element (g^-j via
// modular inverse, never a negative big.Int).
func betaJModP(b *big.Int, j int) *big.Int {
	gj := group.ModExp(group.G, big.NewInt(int64(j)))
	return group.Mul(b, group.ModInv(gj))
}

// Verify checks a count proof against election public key y and aggregated
// ciphertext (a, b).
func Verify(y, a, b *big.Int, p *Proof) bool {
	if y == nil || a == nil || b == nil || p == nil {
		return false
	}
	if !group.IsElement(a) || !group.IsElement(b) {
		return false
	}
	if len(p.Branches) == 0 {
		return false
	}

	sum := big.NewInt(0)
	as := make([]*big.Int, len(p.Branches))
	bs := make([]*big.Int, len(p.Branches))

	for j, br := range p.Branches {
		if br == nil || !group.IsElement(br.A) || !group.IsElement(br.B) ||
			!group.IsScalar(br.C) || !group.IsScalar(br.R) {
			return false
		}
		as[j], bs[j] = br.A, br.B

		// g^r_j == a_j * A^c_j
		lhs := group.ModExp(group.G, br.R)
		rhs := group.Mul(br.A, group.ModExp(a, br.C))
		if lhs.Cmp(rhs) != 0 {
			return false
		}

		// Y^r_j == b_j * (B * g^-j)^c_j
		betaJ := betaJModP(b, j)
		lhs = group.ModExp(y, br.R)
		rhs = group.Mul(br.B, group.ModExp(betaJ, br.C))
		if lhs.Cmp(rhs) != 0 {
			return false
		}

		sum = group.ScalarAdd(sum, br.C)
	}

	elems := make([]*big.Int, 0, 3+2*len(p.Branches))
	elems = append(elems, y, a, b)
	elems = append(elems, as...)
	elems = append(elems, bs...)
	c := group.HashToScalar(elems...)
	return sum.Cmp(c) == 0
}

// Encode serialises the proof using the canonical wire format.
func (p *Proof) Encode() []byte {
	w := wire.NewWriter()
	w.WriteTag(wire.TagCountProof)
	w.WriteCount(len(p.Branches))
	for _, br := range p.Branches {
		bw := wire.NewWriter()
		bw.WriteTag(wire.TagCountProofBranch)
		bw.WriteBigInt(br.A)
		bw.WriteBigInt(br.B)
		bw.WriteBigInt(br.C)
		bw.WriteBigInt(br.R)
		w.WriteBytes(bw.Bytes())
	}
	return w.Bytes()
}

// Decode parses a proof encoded by Encode.
func Decode(data []byte) (*Proof, error) {
	r := wire.NewReader(data)
	if err := r.ReadTag(wire.TagCountProof); err != nil {
		return nil, err
	}
	n, err := r.ReadCount()
	if err != nil {
		return nil, fmt.Errorf("countproof: decode branch count: %w", err)
	}
	branches := make([]*Branch, n)
	for i := 0; i < n; i++ {
		raw, err := r.ReadBytes()
		if err != nil {
			return nil, fmt.Errorf("countproof: decode branch %d: %w", i, err)
		}
		br := wire.NewReader(raw)
		if err := br.ReadTag(wire.TagCountProofBranch); err != nil {
			return nil, err
		}
		a, err := br.ReadBigInt()
		if err != nil {
			return nil, fmt.Errorf("countproof: decode branch %d A: %w", i, err)
		}
		b, err := br.ReadBigInt()
		if err != nil {
			return nil, fmt.Errorf("countproof: decode branch %d B: %w", i, err)
		}
		cVal, err := br.ReadBigInt()
		if err != nil {
			return nil, fmt.Errorf("countproof: decode branch %d C: %w", i, err)
		}
		rVal, err := br.ReadBigInt()
		if err != nil {
			return nil, fmt.Errorf("countproof: decode branch %d R: %w", i, err)
		}
		branches[i] = &Branch{A: a, B: b, C: cVal, R: rVal}
	}
	return &Proof{Branches: branches}, nil
}
