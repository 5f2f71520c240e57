// Package keyfile loads and persists the signing and arbiter key material
// each CLI binary needs, as a thin convenience layer over crypto/identity
// and crypto/elgamal so every cmd/* main avoids repeating the same
// read-or-generate boilerplate.
package keyfile

import (
	"encoding/json"
	"fmt"
	"math/big"
	"os"

	"github.com/distvote/evote/crypto/elgamal"
	"github.com/distvote/evote/crypto/identity"
)

// LoadOrGenerateIdentity reads a hex-encoded signing key from path, or
// generates and persists a fresh one if path does not exist.
func LoadOrGenerateIdentity(path string) (*identity.Keys, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		keys, err := identity.FromHex(string(data))
		if err != nil {
			return nil, fmt.Errorf("keyfile: parse %s: %w", path, err)
		}
		return keys, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("keyfile: read %s: %w", path, err)
	}

	keys, err := identity.Generate()
	if err != nil {
		return nil, fmt.Errorf("keyfile: generate identity key: %w", err)
	}
	if err := os.WriteFile(path, []byte(keys.HexPrivate()), 0o600); err != nil {
		return nil, fmt.Errorf("keyfile: write %s: %w", path, err)
	}
	return keys, nil
}

// arbiterKeyFile is the on-disk JSON shape for an arbiter's election-group
// keypair, written by "arbiter keygen".
type arbiterKeyFile struct {
	Public  string `json:"public"`
	Private string `json:"private"`
}

// SaveArbiterKey persists an arbiter keypair as JSON decimal strings.
func SaveArbiterKey(path string, k *elgamal.ArbiterKey) error {
	data, err := json.MarshalIndent(arbiterKeyFile{
		Public:  k.Public.String(),
		Private: k.PrivateScalar().String(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("keyfile: marshal arbiter key: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// LoadArbiterKey reads an arbiter keypair written by SaveArbiterKey.
func LoadArbiterKey(path string) (*elgamal.ArbiterKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyfile: read %s: %w", path, err)
	}
	var f arbiterKeyFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("keyfile: parse %s: %w", path, err)
	}
	x, ok := new(big.Int).SetString(f.Private, 10)
	if !ok {
		return nil, fmt.Errorf("keyfile: invalid private scalar in %s", path)
	}
	return elgamal.NewArbiterKeyFromScalar(x), nil
}
