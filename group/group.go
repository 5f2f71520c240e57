// Package group implements the fixed-order multiplicative subgroup that the
// election protocol runs in, plus the Fiat-Shamir transcript hash shared by
// every zero-knowledge proof built on top of it.
package group

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"
)

// P is a 2048-bit safe prime (RFC 3526 MODP group 14). Q is the order of the
// subgroup generated by G; since P is safe, Q = (P-1)/2.
var (
	P *big.Int
	Q *big.Int
	G *big.Int

	one = big.NewInt(1)
	two = big.NewInt(2)
)

func init() {
	var ok bool
	P, ok = new(big.Int).SetString(
		"FFFFFFFFFFFFFFFFC90FDAA22168C234C4C6628B80DC1CD129024E08"+
			"8A67CC74020BBEA63B139B22514A08798E3404DDEF9519B3CD3A431B"+
			"302B0A6DF25F14374FE1356D6D51C245E485B576625E7EC6F44C42E9"+
			"A637ED6B0BFF5CB6F406B7EDEE386BFB5A899FA5AE9F24117C4B1FE6"+
			"49286651ECE45B3DC2007CB8A163BF0598DA48361C55D39A69163FA"+
			"8FD24CF5F83655D23DCA3AD961C62F356208552BB9ED529077096966"+
			"D670C354E4ABC9804F1746C08CA18217C32905E462E36CE3BE39E772"+
			"C180E86039B2783A2EC07A28FB5C55DF06F4C52C9DE2BCBF695581718"+
			"3995497CEA956AE515D2261898FA051015728E5A8AACAA68FFFFFFFFFFFFFFFF",
		16)
	if !ok {
		panic("group: failed to parse P")
	}
	Q = new(big.Int).Rsh(P, 1) // Q = (P-1)/2 since P = 2Q+1
	G = big.NewInt(2)
	if new(big.Int).Exp(G, Q, P).Cmp(one) != 0 {
		panic("group: G does not generate the order-Q subgroup")
	}
}

// RandScalar samples a uniform random scalar in [1, Q-1] using a
// cryptographically strong RNG.
func RandScalar() (*big.Int, error) {
	// rand.Int returns a value in [0, Q-2], so adding 1 lands us in [1, Q-1].
	qMinusOne := new(big.Int).Sub(Q, one)
	r, err := rand.Int(rand.Reader, qMinusOne)
	if err != nil {
		return nil, fmt.Errorf("group: failed to sample random scalar: %w", err)
	}
	return r.Add(r, one), nil
}

// ModExp computes base^exp mod P.
func ModExp(base, exp *big.Int) *big.Int {
	return new(big.Int).Exp(base, exp, P)
}

// ModInv computes the modular inverse of x mod P.
func ModInv(x *big.Int) *big.Int {
	return new(big.Int).ModInverse(x, P)
}

// Mul computes a*b mod P.
func Mul(a, b *big.Int) *big.Int {
	return new(big.Int).Mod(new(big.Int).Mul(a, b), P)
}

// ScalarAdd computes a+b mod Q.
func ScalarAdd(a, b *big.Int) *big.Int {
	return new(big.Int).Mod(new(big.Int).Add(a, b), Q)
}

// ScalarSub computes a-b mod Q; Go's big.Int.Mod always returns the
// non-negative representative for a positive modulus, so this can never
// yield a negative canonical form even when a-b is negative.
func ScalarSub(a, b *big.Int) *big.Int {
	return new(big.Int).Mod(new(big.Int).Sub(a, b), Q)
}

// ScalarMul computes a*b mod Q.
func ScalarMul(a, b *big.Int) *big.Int {
	return new(big.Int).Mod(new(big.Int).Mul(a, b), Q)
}

// IsElement reports whether x is a valid group element: 1 <= x < P and
// x^Q == 1 (mod P).
func IsElement(x *big.Int) bool {
	if x == nil || x.Sign() <= 0 || x.Cmp(P) >= 0 {
		return false
	}
	return ModExp(x, Q).Cmp(one) == 0
}

// IsScalar reports whether s is a valid scalar: 0 <= s < Q.
func IsScalar(s *big.Int) bool {
	return s != nil && s.Sign() >= 0 && s.Cmp(Q) < 0
}

// HashToScalar implements the protocol's Fiat-Shamir transform: it hashes an
// ordered sequence of group elements (and any other big.Int transcript
// values) into a single scalar mod Q. Each element is serialised as its
// canonical decimal string, length-prefixed with a little-endian uint64, the
// same encoding used on the wire (see package wire) so the transcript is
// reproducible byte-for-byte by any independent verifier.
func HashToScalar(elements ...*big.Int) *big.Int {
	h := sha256.New()
	for _, e := range elements {
		s := e.String()
		var lenBuf [8]byte
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(s)))
		h.Write(lenBuf[:])
		h.Write([]byte(s))
	}
	digest := h.Sum(nil)
	return new(big.Int).Mod(new(big.Int).SetBytes(digest), Q)
}
