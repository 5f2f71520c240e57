// Package tally implements the tallyer/arbiter side aggregation step of
// spec.md §4.5: combining every valid ballot's per-candidate ciphertexts
// column-wise, and recovering the final per-candidate result once every
// arbiter's partial decryption for a slot has been collected.
package tally

import (
	"fmt"
	"math/big"

	"github.com/distvote/evote/ballot"
	"github.com/distvote/evote/crypto/decryption"
	"github.com/distvote/evote/crypto/elgamal"
	"github.com/distvote/evote/log"
	"github.com/distvote/evote/storage"
)

// Tallyer aggregates accepted ballots for one election.
type Tallyer struct {
	stg         *storage.Storage
	electionKey *big.Int
	numSlots    int
}

// New builds a Tallyer over stg for an election with the given election
// public key and number of candidate slots.
func New(stg *storage.Storage, electionKey *big.Int, numSlots int) *Tallyer {
	return &Tallyer{stg: stg, electionKey: electionKey, numSlots: numSlots}
}

// Aggregate decodes every persisted ballot and delegates to AggregateBallots.
func (t *Tallyer) Aggregate() ([]*elgamal.Ciphertext, int, error) {
	records, err := t.stg.ListVotes()
	if err != nil {
		return nil, 0, fmt.Errorf("tally: list votes: %w", err)
	}

	ballots := make([]*ballot.Ballot, 0, len(records))
	for _, rec := range records {
		b, err := ballot.DecodeComponents(rec.Votes, rec.ChoiceProofs, rec.CountCiphertext, rec.CountProof)
		if err != nil {
			log.Warnw("tally: dropping unparsable ballot", "voter", rec.VoterID, "error", err)
			continue
		}
		ballots = append(ballots, b)
	}
	return AggregateBallots(ballots, t.electionKey, t.numSlots)
}

// AggregateBallots discards any ballot that fails per-choice/count
// verification (spec.md §7's "exclude, never abort") and combines the
// survivors column-wise into one aggregated ciphertext per candidate slot.
// It operates on already-decoded ballots, so an external verifier with no
// storage handle (spec.md §4.10's voter "verify" command) can recompute the
// same aggregation from public transcripts alone.
func AggregateBallots(ballots []*ballot.Ballot, electionKey *big.Int, numSlots int) ([]*elgamal.Ciphertext, int, error) {
	columns := make([][]*elgamal.Ciphertext, numSlots)
	accepted := 0

	for _, b := range ballots {
		if len(b.Votes) != numSlots {
			log.Warnw("tally: dropping ballot with wrong slot count")
			continue
		}
		if !b.Verify(electionKey, numSlots) {
			log.Warnw("tally: dropping ballot failing verification")
			continue
		}
		for i, ct := range b.Votes {
			columns[i] = append(columns[i], ct)
		}
		accepted++
	}

	out := make([]*elgamal.Ciphertext, numSlots)
	for i := range out {
		if len(columns[i]) == 0 {
			out[i] = &elgamal.Ciphertext{A: big.NewInt(1), B: big.NewInt(1)}
			continue
		}
		agg, err := elgamal.Combine(columns[i]...)
		if err != nil {
			return nil, 0, fmt.Errorf("tally: aggregate slot %d: %w", i, err)
		}
		out[i] = agg
	}
	return out, accepted, nil
}

// Contribution is one arbiter's decoded partial decryption for a slot.
type Contribution struct {
	ArbiterID string
	Partial   *decryption.Partial
}

// Recover verifies every arbiter's partial decryption for one candidate
// slot's aggregated ciphertext (aggA, aggB) against its registered public
// key in arbiterPublics, requires ALL registered arbiters to have
// contributed (this protocol has no threshold shortfall, per spec.md §4.4),
// and brute-forces the plaintext count in [0, maxSearch].
func Recover(arbiterPublics map[string]*big.Int, aggA, aggB *big.Int, contributions []Contribution, maxSearch int) (int, error) {
	if len(contributions) != len(arbiterPublics) {
		return 0, fmt.Errorf("tally: expected %d arbiter contributions, got %d", len(arbiterPublics), len(contributions))
	}
	ds := make([]*big.Int, len(contributions))
	for i, c := range contributions {
		yi, ok := arbiterPublics[c.ArbiterID]
		if !ok {
			return 0, fmt.Errorf("tally: unknown arbiter %q", c.ArbiterID)
		}
		if !decryption.Verify(yi, aggA, aggB, c.Partial) {
			return 0, fmt.Errorf("tally: partial decryption from arbiter %q fails verification", c.ArbiterID)
		}
		ds[i] = c.Partial.D
	}
	return decryption.Combine(aggB, ds, maxSearch)
}
