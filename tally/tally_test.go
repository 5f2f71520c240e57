package tally

import (
	"math/big"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/distvote/evote/ballot"
	"github.com/distvote/evote/crypto/decryption"
	"github.com/distvote/evote/crypto/elgamal"
	"github.com/distvote/evote/storage"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

func newTestStorage(c *qt.C) *storage.Storage {
	dbPath := filepath.Join(c.TempDir(), "db")
	database, err := metadb.New(db.TypePebble, dbPath)
	c.Assert(err, qt.IsNil)
	st := storage.New(database)
	c.Cleanup(func() { st.Close() })
	return st
}

func setupArbiters(c *qt.C, n int) ([]*elgamal.ArbiterKey, *big.Int) {
	keys := make([]*elgamal.ArbiterKey, n)
	for i := range keys {
		k, err := elgamal.GenerateArbiterKey()
		c.Assert(err, qt.IsNil)
		keys[i] = k
	}
	publics := make([]*big.Int, n)
	for i, k := range keys {
		publics[i] = k.Public
	}
	combined, err := elgamal.CombinePublicKeys(publics...)
	c.Assert(err, qt.IsNil)
	return keys, combined
}

func persistBallot(c *qt.C, stg *storage.Storage, voterID string, y *big.Int, votes []int, k, maxCount int) {
	b, err := ballot.Build(y, votes, k, maxCount)
	c.Assert(err, qt.IsNil)
	votesB, proofsB, countCtB, countProofB := b.EncodeComponents()
	c.Assert(stg.PutVote(&storage.VoteRecord{
		VoterID:         voterID,
		Votes:           votesB,
		ChoiceProofs:    proofsB,
		CountCiphertext: countCtB,
		CountProof:      countProofB,
	}), qt.IsNil)
}

func TestAggregateAndRecoverTwoArbitersTwoCandidates(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(c)
	arbiters, y := setupArbiters(c, 2)

	persistBallot(c, stg, "voter-1", y, []int{1, 0}, 1, 2)
	persistBallot(c, stg, "voter-2", y, []int{0, 1}, 1, 2)
	persistBallot(c, stg, "voter-3", y, []int{1, 0}, 1, 2)

	tlr := New(stg, y, 2)
	aggregates, accepted, err := tlr.Aggregate()
	c.Assert(err, qt.IsNil)
	c.Assert(accepted, qt.Equals, 3)

	arbiterPublics := map[string]*big.Int{"arbiter-0": arbiters[0].Public, "arbiter-1": arbiters[1].Public}
	counts := make([]int, 2)
	for slot, agg := range aggregates {
		var contributions []Contribution
		for i, ak := range arbiters {
			p, err := decryption.Compute(ak.Public, agg.A, agg.B, ak.PrivateScalar())
			c.Assert(err, qt.IsNil)
			id := "arbiter-0"
			if i == 1 {
				id = "arbiter-1"
			}
			contributions = append(contributions, Contribution{ArbiterID: id, Partial: p})
		}
		count, err := Recover(arbiterPublics, agg.A, agg.B, contributions, accepted)
		c.Assert(err, qt.IsNil)
		counts[slot] = count
	}
	c.Assert(counts, qt.DeepEquals, []int{2, 1})
}

func TestAggregateDropsInvalidBallot(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(c)
	_, y := setupArbiters(c, 1)

	persistBallot(c, stg, "voter-1", y, []int{1, 0}, 1, 2)

	b, err := ballot.Build(y, []int{1, 0}, 1, 2)
	c.Assert(err, qt.IsNil)
	b.ChoiceProofs[0].R0 = big.NewInt(0).Add(b.ChoiceProofs[0].R0, big.NewInt(1))
	votesB, proofsB, countCtB, countProofB := b.EncodeComponents()
	c.Assert(stg.PutVote(&storage.VoteRecord{
		VoterID: "voter-2", Votes: votesB, ChoiceProofs: proofsB,
		CountCiphertext: countCtB, CountProof: countProofB,
	}), qt.IsNil)

	tlr := New(stg, y, 2)
	_, accepted, err := tlr.Aggregate()
	c.Assert(err, qt.IsNil)
	c.Assert(accepted, qt.Equals, 1)
}

func TestRecoverRejectsMissingArbiter(t *testing.T) {
	c := qt.New(t)
	arbiters, y := setupArbiters(c, 2)
	agg, r, err := elgamal.EncryptRandom(y, 1)
	c.Assert(err, qt.IsNil)
	_ = r

	p0, err := decryption.Compute(arbiters[0].Public, agg.A, agg.B, arbiters[0].PrivateScalar())
	c.Assert(err, qt.IsNil)

	arbiterPublics := map[string]*big.Int{"arbiter-0": arbiters[0].Public, "arbiter-1": arbiters[1].Public}
	_, err = Recover(arbiterPublics, agg.A, agg.B, []Contribution{{ArbiterID: "arbiter-0", Partial: p0}}, 1)
	c.Assert(err, qt.ErrorMatches, ".*expected 2 arbiter contributions.*")
}
