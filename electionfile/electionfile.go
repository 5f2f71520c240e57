// Package electionfile reads the small JSON descriptor that ties a tallyer,
// its arbiters and its voters to the same election: the registrar's
// signing key, the candidate count, and every arbiter's election-group
// public key share. The combined election public key is derived from the
// arbiter shares, never stored directly, so the file alone can't spoof it.
package electionfile

import (
	"crypto/ecdsa"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/distvote/evote/crypto/elgamal"
	"github.com/distvote/evote/crypto/identity"
)

// Config is the election descriptor shared out-of-band between a
// registrar, tallyer, arbiters and voters.
type Config struct {
	RegistrarPublicKeyHex string            `json:"registrarPublicKey"`
	NumSlots              int               `json:"numSlots"`
	Arbiters              map[string]string `json:"arbiters"` // arbiter id -> decimal public key
}

// Load reads and parses an election descriptor.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("electionfile: read %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("electionfile: parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes an election descriptor.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("electionfile: marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// RegistrarPublicKey decodes the registrar's compressed public key.
func (c *Config) RegistrarPublicKey() (*ecdsa.PublicKey, error) {
	b, err := hex.DecodeString(c.RegistrarPublicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("electionfile: decode registrar public key: %w", err)
	}
	return identity.PublicKeyFromBytes(b)
}

// ArbiterPublics parses every arbiter's decimal public key into a map
// suitable for tally.Recover / api.NewTallyer.
func (c *Config) ArbiterPublics() (map[string]*big.Int, error) {
	out := make(map[string]*big.Int, len(c.Arbiters))
	for id, hex := range c.Arbiters {
		y, ok := new(big.Int).SetString(hex, 10)
		if !ok {
			return nil, fmt.Errorf("electionfile: invalid public key for arbiter %q", id)
		}
		out[id] = y
	}
	return out, nil
}

// ElectionKey combines every arbiter's public key share into the election
// public key Y = ∏ g^{x_i}.
func (c *Config) ElectionKey() (*big.Int, error) {
	publics, err := c.ArbiterPublics()
	if err != nil {
		return nil, err
	}
	ys := make([]*big.Int, 0, len(publics))
	for _, y := range publics {
		ys = append(ys, y)
	}
	return elgamal.CombinePublicKeys(ys...)
}
