// Package identity implements secp256k1 signing keys and the certificate /
// ballot signature scheme of spec.md §6 ("Signature inputs"), mirroring the
// corpus's SignKeys shape.
package identity

import (
	"crypto/ecdsa"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/distvote/evote/wire"
)

// Keys is a secp256k1 keypair used by a registrar, tallyer, arbiter or
// voter to sign and verify protocol messages.
type Keys struct {
	Public  ecdsa.PublicKey
	private *ecdsa.PrivateKey
}

// Generate creates a fresh signing keypair.
func Generate() (*Keys, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	return &Keys{Public: key.PublicKey, private: key}, nil
}

// FromHex loads a signing keypair from a hex-encoded private key, as
// written by a keyfile on disk.
func FromHex(hexKey string) (*Keys, error) {
	key, err := ethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("identity: parse hex key: %w", err)
	}
	return &Keys{Public: key.PublicKey, private: key}, nil
}

// HexPrivate returns the hex-encoded private key, for persisting to a
// keyfile.
func (k *Keys) HexPrivate() string {
	return fmt.Sprintf("%x", ethcrypto.FromECDSA(k.private))
}

// PublicBytes returns the compressed public key.
func (k *Keys) PublicBytes() []byte {
	return ethcrypto.CompressPubkey(&k.Public)
}

// PublicKeyFromBytes decompresses a public key as returned by PublicBytes.
func PublicKeyFromBytes(b []byte) (*ecdsa.PublicKey, error) {
	pub, err := ethcrypto.DecompressPubkey(b)
	if err != nil {
		return nil, fmt.Errorf("identity: decompress public key: %w", err)
	}
	return pub, nil
}

// Sign signs the Keccak-256 digest (matching the corpus's Ethereum-style
// hashing) of message, which the caller must already have
// built as the canonical concatenation of the signed fields per spec.md §6.
func (k *Keys) Sign(message []byte) ([]byte, error) {
	if k.private == nil {
		return nil, errors.New("identity: no private key available")
	}
	sig, err := ethcrypto.Sign(digest(message), k.private)
	if err != nil {
		return nil, fmt.Errorf("identity: sign: %w", err)
	}
	return sig, nil
}

// Verify checks that signature was produced by the holder of pub over
// message.
func Verify(pub *ecdsa.PublicKey, message, signature []byte) bool {
	if pub == nil || len(signature) != ethcrypto.SignatureLength {
		return false
	}
	sig := signature[:ethcrypto.SignatureLength-1] // drop recovery id for VerifySignature
	pubBytes := ethcrypto.CompressPubkey(pub)
	return ethcrypto.VerifySignature(pubBytes, digest(message), sig)
}

func digest(message []byte) []byte {
	return ethcrypto.Keccak256(message)
}

// CertificateSignatureInput builds the canonical signature input for a
// registrar certificate: (voter-id ‖ voter-verification-key), per spec.md §6.
func CertificateSignatureInput(voterID string, voterVerificationKey []byte) []byte {
	w := wire.NewWriter()
	w.WriteBytes([]byte(voterID))
	w.WriteBytes(voterVerificationKey)
	return w.Bytes()
}

// BallotSignatureInput builds the canonical signature input for a tallyer
// ballot record: (votes ‖ per-choice-zkps ‖ count-ciphertext ‖ count-zkps),
// where each component is already wire-encoded by its own package.
func BallotSignatureInput(votes, choiceProofs, countCiphertext, countProof []byte) []byte {
	w := wire.NewWriter()
	w.WriteBytes(votes)
	w.WriteBytes(choiceProofs)
	w.WriteBytes(countCiphertext)
	w.WriteBytes(countProof)
	return w.Bytes()
}

// HandshakeSignatureInput builds the canonical signature input for a
// session handshake: (server-dh-public ‖ client-dh-public), per spec.md §6.
func HandshakeSignatureInput(serverDHPublic, clientDHPublic []byte) []byte {
	w := wire.NewWriter()
	w.WriteBytes(serverDHPublic)
	w.WriteBytes(clientDHPublic)
	return w.Bytes()
}
