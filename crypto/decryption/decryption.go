// Package decryption implements partial decryption, its Chaum-Pedersen
// correctness proof, and the combine-and-recover tally step of spec.md
// §4.4-4.5. Unlike a Lagrange-interpolated threshold scheme, this protocol
// requires every arbiter's partial decryption and simply multiplies them.
package decryption

import (
	"fmt"
	"math/big"

	"github.com/distvote/evote/group"
	"github.com/distvote/evote/wire"
)

// Partial is one arbiter's partial decryption d_i = A^x_i of an aggregated
// ciphertext (A, B), together with the Chaum-Pedersen proof that x_i is the
// same exponent underlying the arbiter's public key Y_i = g^x_i.
type Partial struct {
	D *big.Int
	U *big.Int // commitment A^w
	V *big.Int // commitment g^w
	S *big.Int // response w + sigma*x_i
}

// Compute produces arbiter i's partial decryption of aggregated ciphertext
// a, along with its correctness proof, per spec.md §4.4.
func Compute(yi, a, b, xi *big.Int) (*Partial, error) {
	if !group.IsElement(yi) || !group.IsElement(a) || !group.IsElement(b) {
		return nil, fmt.Errorf("decryption: invalid group element input")
	}
	if !group.IsScalar(xi) {
		return nil, fmt.Errorf("decryption: private scalar out of range")
	}

	d := group.ModExp(a, xi)

	w, err := group.RandScalar()
	if err != nil {
		return nil, err
	}
	v := group.ModExp(group.G, w)
	u := group.ModExp(a, w)

	sigma := group.HashToScalar(yi, a, b, u, v)
	s := group.ScalarAdd(w, group.ScalarMul(sigma, xi))

	return &Partial{D: d, U: u, V: v, S: s}, nil
}

// Verify checks arbiter i's partial decryption proof against its public key
// yi and the aggregated ciphertext (a, b). An invalid proof is fatal to the
// tally: it indicates arbiter misbehavior, not a malformed ballot.
func Verify(yi, a, b *big.Int, p *Partial) bool {
	if yi == nil || a == nil || b == nil || p == nil {
		return false
	}
	if !group.IsElement(yi) || !group.IsElement(a) || !group.IsElement(b) {
		return false
	}
	if !group.IsElement(p.D) || !group.IsElement(p.U) || !group.IsElement(p.V) || !group.IsScalar(p.S) {
		return false
	}

	sigma := group.HashToScalar(yi, a, b, p.U, p.V)

	// g^s == v * Yi^sigma
	lhs := group.ModExp(group.G, p.S)
	rhs := group.Mul(p.V, group.ModExp(yi, sigma))
	if lhs.Cmp(rhs) != 0 {
		return false
	}

	// A^s == u * d^sigma
	lhs = group.ModExp(a, p.S)
	rhs = group.Mul(p.U, group.ModExp(p.D, sigma))
	return lhs.Cmp(rhs) == 0
}

// Combine multiplies every arbiter's partial decryption d_i of a single
// candidate slot's aggregated ciphertext (a, b) and recovers the plaintext
// count by brute-force discrete log, bounded by maxSearch (the number of
// ballots, per spec.md §4.5). It returns an error if no match is found
// within that bound.
func Combine(b *big.Int, partials []*big.Int, maxSearch int) (int, error) {
	if len(partials) == 0 {
		return 0, fmt.Errorf("decryption: no partial decryptions supplied")
	}
	prod := big.NewInt(1)
	for _, d := range partials {
		if !group.IsElement(d) {
			return 0, fmt.Errorf("decryption: invalid partial decryption")
		}
		prod = group.Mul(prod, d)
	}
	m := group.Mul(b, group.ModInv(prod))

	acc := big.NewInt(1)
	for t := 0; t <= maxSearch; t++ {
		if acc.Cmp(m) == 0 {
			return t, nil
		}
		acc = group.Mul(acc, group.G)
	}
	return 0, fmt.Errorf("decryption: no discrete log match for M within bound %d", maxSearch)
}

// Encode serialises a partial decryption using the canonical wire format.
func (p *Partial) Encode() []byte {
	w := wire.NewWriter()
	w.WriteTag(wire.TagPartialDecryption)
	w.WriteBigInt(p.D)
	w.WriteBigInt(p.U)
	w.WriteBigInt(p.V)
	w.WriteBigInt(p.S)
	return w.Bytes()
}

// Decode parses a partial decryption encoded by Encode.
func Decode(data []byte) (*Partial, error) {
	r := wire.NewReader(data)
	if err := r.ReadTag(wire.TagPartialDecryption); err != nil {
		return nil, err
	}
	d, err := r.ReadBigInt()
	if err != nil {
		return nil, fmt.Errorf("decryption: decode D: %w", err)
	}
	u, err := r.ReadBigInt()
	if err != nil {
		return nil, fmt.Errorf("decryption: decode U: %w", err)
	}
	v, err := r.ReadBigInt()
	if err != nil {
		return nil, fmt.Errorf("decryption: decode V: %w", err)
	}
	s, err := r.ReadBigInt()
	if err != nil {
		return nil, fmt.Errorf("decryption: decode S: %w", err)
	}
	return &Partial{D: d, U: u, V: v, S: s}, nil
}
