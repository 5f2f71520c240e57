// Package elgamal implements the per-choice ElGamal encryption scheme
// described in spec.md §3-4.2: plaintext v in {0,1} is encoded as g^v, and
// ciphertexts are homomorphic under multiplication.
package elgamal

import (
	"fmt"
	"math/big"

	"github.com/distvote/evote/group"
	"github.com/distvote/evote/wire"
)

// Ciphertext is a single ElGamal-encrypted choice, (a, b) = (g^r, Y^r * g^v).
type Ciphertext struct {
	A *big.Int
	B *big.Int
}

// ArbiterKey is one arbiter's long-lived keypair.
type ArbiterKey struct {
	Public  *big.Int // Y_i = g^x_i
	private *big.Int // x_i, never serialised
}

// GenerateArbiterKey samples a fresh arbiter keypair.
func GenerateArbiterKey() (*ArbiterKey, error) {
	x, err := group.RandScalar()
	if err != nil {
		return nil, fmt.Errorf("elgamal: failed to generate arbiter key: %w", err)
	}
	return &ArbiterKey{Public: group.ModExp(group.G, x), private: x}, nil
}

// PrivateScalar returns the arbiter's secret exponent. Intended for use only
// by the arbiter's own decryption step (crypto/decryption).
func (k *ArbiterKey) PrivateScalar() *big.Int {
	return k.private
}

// NewArbiterKeyFromScalar reconstructs an ArbiterKey from a persisted secret
// scalar, e.g. when loading a key file at process startup.
func NewArbiterKeyFromScalar(x *big.Int) *ArbiterKey {
	return &ArbiterKey{Public: group.ModExp(group.G, x), private: x}
}

// CombinePublicKeys forms the election public key Y = prod(Y_i) mod p.
func CombinePublicKeys(arbiterKeys ...*big.Int) (*big.Int, error) {
	if len(arbiterKeys) == 0 {
		return nil, fmt.Errorf("elgamal: cannot combine zero arbiter keys")
	}
	y := big.NewInt(1)
	for _, yi := range arbiterKeys {
		if !group.IsElement(yi) {
			return nil, fmt.Errorf("elgamal: arbiter public key is not a valid group element")
		}
		y = group.Mul(y, yi)
	}
	return y, nil
}

// Encrypt encrypts plaintext v in {0,1} under election public key Y, using
// the given randomness r in [1, Q-1]. It returns the ciphertext; the caller
// is responsible for retaining r only long enough to build the per-choice
// ZKP (spec.md §3, Lifecycle).
func Encrypt(y *big.Int, v int, r *big.Int) (*Ciphertext, error) {
	if v != 0 && v != 1 {
		return nil, fmt.Errorf("elgamal: plaintext choice must be 0 or 1, got %d", v)
	}
	if !group.IsScalar(r) || r.Sign() == 0 {
		return nil, fmt.Errorf("elgamal: randomness out of range")
	}
	a := group.ModExp(group.G, r)
	b := group.Mul(group.ModExp(y, r), group.ModExp(group.G, big.NewInt(int64(v))))
	return &Ciphertext{A: a, B: b}, nil
}

// EncryptRandom encrypts v under y with freshly sampled randomness, returning
// both the ciphertext and the randomness used (needed by the caller to build
// the accompanying ZKPs).
func EncryptRandom(y *big.Int, v int) (*Ciphertext, *big.Int, error) {
	r, err := group.RandScalar()
	if err != nil {
		return nil, nil, fmt.Errorf("elgamal: failed to sample randomness: %w", err)
	}
	ct, err := Encrypt(y, v, r)
	if err != nil {
		return nil, nil, err
	}
	return ct, r, nil
}

// Combine homomorphically multiplies a sequence of ciphertexts, returning
// (A, B) = (prod a_i, prod b_i) mod p -- an encryption of the sum of their
// plaintexts under the combined randomness. Does not mutate its inputs
// (spec.md §3, Lifecycle: "without destroying originals").
func Combine(cts ...*Ciphertext) (*Ciphertext, error) {
	if len(cts) == 0 {
		return nil, fmt.Errorf("elgamal: cannot combine zero ciphertexts")
	}
	a := big.NewInt(1)
	b := big.NewInt(1)
	for _, ct := range cts {
		if ct == nil || !group.IsElement(ct.A) || !group.IsElement(ct.B) {
			return nil, fmt.Errorf("elgamal: invalid ciphertext in combine")
		}
		a = group.Mul(a, ct.A)
		b = group.Mul(b, ct.B)
	}
	return &Ciphertext{A: a, B: b}, nil
}

// Valid checks the ballot invariant from spec.md §3: for a tallied ballot,
// b must be nonzero mod p for every choice (b is always a group element so
// this is implied by IsElement, kept as an explicit, named check).
func (c *Ciphertext) Valid() bool {
	return c != nil && group.IsElement(c.A) && group.IsElement(c.B) && c.B.Sign() != 0
}

// Encode serialises the ciphertext using the canonical wire format, tagged
// as TagCiphertext.
func (c *Ciphertext) Encode() []byte {
	w := wire.NewWriter()
	w.WriteTag(wire.TagCiphertext)
	w.WriteBigInt(c.A)
	w.WriteBigInt(c.B)
	return w.Bytes()
}

// DecodeCiphertext parses a ciphertext encoded by Encode.
func DecodeCiphertext(data []byte) (*Ciphertext, error) {
	r := wire.NewReader(data)
	if err := r.ReadTag(wire.TagCiphertext); err != nil {
		return nil, err
	}
	a, err := r.ReadBigInt()
	if err != nil {
		return nil, fmt.Errorf("elgamal: decode A: %w", err)
	}
	b, err := r.ReadBigInt()
	if err != nil {
		return nil, fmt.Errorf("elgamal: decode B: %w", err)
	}
	return &Ciphertext{A: a, B: b}, nil
}
