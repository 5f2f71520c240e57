// Package ballot assembles and verifies a complete [BALLOT]: a sequence of
// per-choice ciphertexts with their disjunctive ZKPs, plus the aggregated
// count ciphertext and its ZKP, per spec.md §3-4.3.
package ballot

import (
	"fmt"
	"math/big"

	"github.com/distvote/evote/crypto/choiceproof"
	"github.com/distvote/evote/crypto/countproof"
	"github.com/distvote/evote/crypto/elgamal"
	"github.com/distvote/evote/group"
	"github.com/distvote/evote/wire"
)

// Ballot is a full ballot as a voter submits it and a tallyer persists it.
type Ballot struct {
	Votes           []*elgamal.Ciphertext
	ChoiceProofs    []*choiceproof.Proof
	CountCiphertext *elgamal.Ciphertext
	CountProof      *countproof.Proof
}

// Build encrypts each choice in votes (each must be 0 or 1) under election
// public key y, produces the per-choice disjunctive proofs, and builds the
// count proof that the choices sum to k. maxCount bounds the count proof's
// branch range (typically len(votes)).
func Build(y *big.Int, votes []int, k, maxCount int) (*Ballot, error) {
	if len(votes) == 0 {
		return nil, fmt.Errorf("ballot: empty ballot")
	}

	cts := make([]*elgamal.Ciphertext, len(votes))
	proofs := make([]*choiceproof.Proof, len(votes))
	sum := 0
	R := big.NewInt(0)

	for i, v := range votes {
		if v != 0 && v != 1 {
			return nil, fmt.Errorf("ballot: choice %d must be 0 or 1, got %d", i, v)
		}
		ct, r, err := elgamal.EncryptRandom(y, v)
		if err != nil {
			return nil, fmt.Errorf("ballot: encrypt choice %d: %w", i, err)
		}
		p, err := choiceproof.Prove(y, ct, v, r)
		if err != nil {
			return nil, fmt.Errorf("ballot: prove choice %d: %w", i, err)
		}
		cts[i] = ct
		proofs[i] = p
		sum += v
		R = group.ScalarAdd(R, r)
	}
	if sum != k {
		return nil, fmt.Errorf("ballot: declared count k=%d does not match actual sum %d", k, sum)
	}

	agg, err := elgamal.Combine(cts...)
	if err != nil {
		return nil, fmt.Errorf("ballot: aggregate ciphertexts: %w", err)
	}

	countP, err := countproof.Prove(y, agg.A, agg.B, k, R, maxCount)
	if err != nil {
		return nil, fmt.Errorf("ballot: build count proof: %w", err)
	}

	return &Ballot{Votes: cts, ChoiceProofs: proofs, CountCiphertext: agg, CountProof: countP}, nil
}

// Verify checks a ballot's structural shape, every per-choice ZKP, and the
// count ZKP against the homomorphic aggregate of its own ciphertexts.
// Per spec.md §7, an invalid ballot is excluded from the tally, never
// treated as a fatal error -- callers should check this return value
// rather than abort on it.
func (b *Ballot) Verify(y *big.Int, maxCount int) bool {
	if b == nil || len(b.Votes) == 0 || len(b.Votes) != len(b.ChoiceProofs) {
		return false
	}
	for i, ct := range b.Votes {
		if !choiceproof.Verify(y, ct, b.ChoiceProofs[i]) {
			return false
		}
	}

	agg, err := elgamal.Combine(b.Votes...)
	if err != nil {
		return false
	}
	if agg.A.Cmp(b.CountCiphertext.A) != 0 || agg.B.Cmp(b.CountCiphertext.B) != 0 {
		return false
	}

	return countproof.Verify(y, agg.A, agg.B, b.CountProof)
}

// Encode serialises the ballot using the canonical wire format.
func (b *Ballot) Encode() []byte {
	w := wire.NewWriter()
	w.WriteTag(wire.TagBallot)

	votesW := wire.NewWriter()
	votesW.WriteTag(wire.TagChoiceProofSequence)
	votesW.WriteCount(len(b.Votes))
	for _, ct := range b.Votes {
		votesW.WriteBytes(ct.Encode())
	}
	w.WriteBytes(votesW.Bytes())

	proofsW := wire.NewWriter()
	proofsW.WriteTag(wire.TagChoiceProofSequence)
	proofsW.WriteCount(len(b.ChoiceProofs))
	for _, p := range b.ChoiceProofs {
		proofsW.WriteBytes(p.Encode())
	}
	w.WriteBytes(proofsW.Bytes())

	w.WriteBytes(b.CountCiphertext.Encode())
	w.WriteBytes(b.CountProof.Encode())

	return w.Bytes()
}

// Decode parses a ballot encoded by Encode.
func Decode(data []byte) (*Ballot, error) {
	r := wire.NewReader(data)
	if err := r.ReadTag(wire.TagBallot); err != nil {
		return nil, err
	}

	votesRaw, err := r.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("ballot: decode votes: %w", err)
	}
	votes, err := decodeCiphertextSequence(votesRaw)
	if err != nil {
		return nil, err
	}

	proofsRaw, err := r.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("ballot: decode choice proofs: %w", err)
	}
	proofs, err := decodeChoiceProofSequence(proofsRaw)
	if err != nil {
		return nil, err
	}
	if len(votes) != len(proofs) {
		return nil, fmt.Errorf("ballot: votes/proofs length mismatch (%d vs %d)", len(votes), len(proofs))
	}

	countCtRaw, err := r.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("ballot: decode count ciphertext: %w", err)
	}
	countCt, err := elgamal.DecodeCiphertext(countCtRaw)
	if err != nil {
		return nil, err
	}

	countProofRaw, err := r.ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("ballot: decode count proof: %w", err)
	}
	countP, err := countproof.Decode(countProofRaw)
	if err != nil {
		return nil, err
	}

	return &Ballot{Votes: votes, ChoiceProofs: proofs, CountCiphertext: countCt, CountProof: countP}, nil
}

// DecodeComponents reassembles a Ballot from its four wire-encoded parts, as
// persisted by the tallyer (storage.VoteRecord) and signed over by
// identity.BallotSignatureInput, rather than from a single Encode blob.
func DecodeComponents(votes, choiceProofs, countCiphertext, countProof []byte) (*Ballot, error) {
	v, err := decodeCiphertextSequence(votes)
	if err != nil {
		return nil, err
	}
	p, err := decodeChoiceProofSequence(choiceProofs)
	if err != nil {
		return nil, err
	}
	if len(v) != len(p) {
		return nil, fmt.Errorf("ballot: votes/proofs length mismatch (%d vs %d)", len(v), len(p))
	}
	ct, err := elgamal.DecodeCiphertext(countCiphertext)
	if err != nil {
		return nil, err
	}
	cp, err := countproof.Decode(countProof)
	if err != nil {
		return nil, err
	}
	return &Ballot{Votes: v, ChoiceProofs: p, CountCiphertext: ct, CountProof: cp}, nil
}

// EncodeComponents returns the ballot's four parts wire-encoded separately,
// in the exact order identity.BallotSignatureInput signs over.
func (b *Ballot) EncodeComponents() (votes, choiceProofs, countCiphertext, countProof []byte) {
	votesW := wire.NewWriter()
	votesW.WriteTag(wire.TagChoiceProofSequence)
	votesW.WriteCount(len(b.Votes))
	for _, ct := range b.Votes {
		votesW.WriteBytes(ct.Encode())
	}

	proofsW := wire.NewWriter()
	proofsW.WriteTag(wire.TagChoiceProofSequence)
	proofsW.WriteCount(len(b.ChoiceProofs))
	for _, p := range b.ChoiceProofs {
		proofsW.WriteBytes(p.Encode())
	}

	return votesW.Bytes(), proofsW.Bytes(), b.CountCiphertext.Encode(), b.CountProof.Encode()
}

func decodeCiphertextSequence(data []byte) ([]*elgamal.Ciphertext, error) {
	r := wire.NewReader(data)
	if err := r.ReadTag(wire.TagChoiceProofSequence); err != nil {
		return nil, err
	}
	n, err := r.ReadCount()
	if err != nil {
		return nil, fmt.Errorf("ballot: decode ciphertext sequence count: %w", err)
	}
	out := make([]*elgamal.Ciphertext, n)
	for i := 0; i < n; i++ {
		raw, err := r.ReadBytes()
		if err != nil {
			return nil, fmt.Errorf("ballot: decode ciphertext %d: %w", i, err)
		}
		ct, err := elgamal.DecodeCiphertext(raw)
		if err != nil {
			return nil, err
		}
		out[i] = ct
	}
	return out, nil
}

func decodeChoiceProofSequence(data []byte) ([]*choiceproof.Proof, error) {
	r := wire.NewReader(data)
	if err := r.ReadTag(wire.TagChoiceProofSequence); err != nil {
		return nil, err
	}
	n, err := r.ReadCount()
	if err != nil {
		return nil, fmt.Errorf("ballot: decode proof sequence count: %w", err)
	}
	out := make([]*choiceproof.Proof, n)
	for i := 0; i < n; i++ {
		raw, err := r.ReadBytes()
		if err != nil {
			return nil, fmt.Errorf("ballot: decode proof %d: %w", i, err)
		}
		p, err := choiceproof.Decode(raw)
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
