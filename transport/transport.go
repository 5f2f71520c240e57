// Package transport implements the session handshake and symmetric message
// encryption of spec.md §6's "authenticated channel" collaborator: an
// ephemeral Diffie-Hellman exchange over the election group, hashed with
// SHA-256 to a symmetric key for golang.org/x/crypto/nacl/secretbox. It deliberately
// never touches ballot secrecy, which never depends on transport security.
package transport

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"math/big"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/distvote/evote/group"
)

// Session is one side of an ephemeral DH-derived symmetric channel.
type Session struct {
	private *big.Int
	public  *big.Int
	key     [32]byte
	ready   bool
}

// NewSession samples a fresh ephemeral DH keypair over the election group.
func NewSession() (*Session, error) {
	x, err := group.RandScalar()
	if err != nil {
		return nil, fmt.Errorf("transport: sample ephemeral key: %w", err)
	}
	return &Session{private: x, public: group.ModExp(group.G, x)}, nil
}

// PublicValue returns this side's DH public value (g^x), to be sent to the
// peer and included in the handshake signature per spec.md §6.
func (s *Session) PublicValue() *big.Int {
	return s.public
}

// Complete derives the shared symmetric key from the peer's DH public
// value. Must be called before Encrypt/Decrypt.
func (s *Session) Complete(peerPublic *big.Int) error {
	if !group.IsElement(peerPublic) {
		return fmt.Errorf("transport: peer DH public value is not a valid group element")
	}
	shared := group.ModExp(peerPublic, s.private)
	s.key = sha256.Sum256([]byte(shared.String()))
	s.ready = true
	return nil
}

// Encrypt seals plaintext under the session's derived key, returning a
// random 24-byte nonce followed by the sealed box.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	if !s.ready {
		return nil, fmt.Errorf("transport: session handshake not completed")
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("transport: generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &s.key)
	return sealed, nil
}

// Decrypt opens a message produced by Encrypt.
func (s *Session) Decrypt(sealed []byte) ([]byte, error) {
	if !s.ready {
		return nil, fmt.Errorf("transport: session handshake not completed")
	}
	if len(sealed) < 24 {
		return nil, fmt.Errorf("transport: sealed message too short")
	}
	var nonce [24]byte
	copy(nonce[:], sealed[:24])
	plaintext, ok := secretbox.Open(nil, sealed[24:], &nonce, &s.key)
	if !ok {
		return nil, fmt.Errorf("transport: message authentication failed")
	}
	return plaintext, nil
}
