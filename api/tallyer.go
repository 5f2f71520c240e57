package api

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/distvote/evote/ballot"
	"github.com/distvote/evote/crypto/decryption"
	"github.com/distvote/evote/crypto/identity"
	"github.com/distvote/evote/log"
	"github.com/distvote/evote/storage"
	"github.com/distvote/evote/tally"
)

// Tallyer is the HTTP service that accepts ballots, exposes them to
// arbiters, collects partial decryptions, and serves the recovered tally
// (spec.md §4.10).
type Tallyer struct {
	router *chi.Mux
	stg    *storage.Storage
	keys   *identity.Keys

	registrarPublic *ecdsa.PublicKey
	electionKey     *big.Int
	numSlots        int
	arbiterPublics  map[string]*big.Int
}

// NewTallyer builds a Tallyer. arbiterPublics maps arbiter id to its
// election-group public key share g^x_i; electionKey is their combination
// Y = ∏ g^x_i.
func NewTallyer(stg *storage.Storage, keys *identity.Keys, registrarPublic *ecdsa.PublicKey, electionKey *big.Int, numSlots int, arbiterPublics map[string]*big.Int) *Tallyer {
	t := &Tallyer{
		stg:             stg,
		keys:            keys,
		registrarPublic: registrarPublic,
		electionKey:     electionKey,
		numSlots:        numSlots,
		arbiterPublics:  arbiterPublics,
		router:          newRouter(),
	}
	t.registerHandlers()
	return t
}

// Router returns the tallyer's chi router, for Serve or testing.
func (t *Tallyer) Router() *chi.Mux {
	return t.router
}

func (t *Tallyer) registerHandlers() {
	log.Infow("register handler", "endpoint", BallotsEndpoint, "method", "POST")
	t.router.Post(BallotsEndpoint, t.submitBallot)
	log.Infow("register handler", "endpoint", BallotsEndpoint, "method", "GET")
	t.router.Get(BallotsEndpoint, t.listBallots)
	log.Infow("register handler", "endpoint", SlotEndpoint, "method", "POST")
	t.router.Post(SlotEndpoint, t.submitPartialDecryption)
	log.Infow("register handler", "endpoint", ResultEndpoint, "method", "GET")
	t.router.Get(ResultEndpoint, t.result)
}

// submitBallot verifies the registrar's certificate, the voter's signature
// over the ballot, and the ballot's own ZKPs, before persisting it and
// marking the voter as having voted. Any proof failure excludes the ballot
// with a 4xx response rather than corrupting state (spec.md §7).
func (t *Tallyer) submitBallot(w http.ResponseWriter, r *http.Request) {
	var req BallotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if req.VoterID == "" {
		ErrMalformedBody.Write(w)
		return
	}

	if t.stg.HasVoted(req.VoterID) {
		ErrAlreadyVoted.Write(w)
		return
	}

	certInput := identity.CertificateSignatureInput(req.VoterID, req.VerificationKey)
	if !identity.Verify(t.registrarPublic, certInput, req.CertificateSig) {
		ErrInvalidCertificate.Write(w)
		return
	}

	voterPub, err := identity.PublicKeyFromBytes(req.VerificationKey)
	if err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	ballotInput := identity.BallotSignatureInput(req.Votes, req.ChoiceProofs, req.CountCiphertext, req.CountProof)
	if !identity.Verify(voterPub, ballotInput, req.VoterSig) {
		ErrInvalidSignature.Write(w)
		return
	}

	b, err := ballot.DecodeComponents(req.Votes, req.ChoiceProofs, req.CountCiphertext, req.CountProof)
	if err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if len(b.Votes) != t.numSlots || !b.Verify(t.electionKey, t.numSlots) {
		ErrInvalidBallotProof.Write(w)
		return
	}

	tallyerSig, err := t.keys.Sign(ballotInput)
	if err != nil {
		ErrInternal.WithErr(err).Write(w)
		return
	}

	vote := &storage.VoteRecord{
		VoterID:         req.VoterID,
		Votes:           req.Votes,
		ChoiceProofs:    req.ChoiceProofs,
		CountCiphertext: req.CountCiphertext,
		CountProof:      req.CountProof,
		TallyerSig:      tallyerSig,
	}
	if err := t.stg.PutVote(vote); err != nil {
		if errors.Is(err, storage.ErrKeyAlreadyExists) {
			ErrAlreadyVoted.Write(w)
			return
		}
		ErrInternal.WithErr(err).Write(w)
		return
	}
	if err := t.stg.MarkVoted(req.VoterID); err != nil && !errors.Is(err, storage.ErrKeyAlreadyExists) {
		log.Errorw(err, "failed to mark voter as voted after persisting ballot")
	}

	httpWriteJSON(w, BallotResponse{VoterID: req.VoterID, TallyerSig: tallyerSig})
}

// listBallots returns every accepted ballot, for arbiters to fetch and
// aggregate (spec.md §4.5).
func (t *Tallyer) listBallots(w http.ResponseWriter, r *http.Request) {
	records, err := t.stg.ListVotes()
	if err != nil {
		ErrInternal.WithErr(err).Write(w)
		return
	}
	out := make([]BallotListEntry, len(records))
	for i, rec := range records {
		out[i] = BallotListEntry{
			VoterID:         rec.VoterID,
			Votes:           rec.Votes,
			ChoiceProofs:    rec.ChoiceProofs,
			CountCiphertext: rec.CountCiphertext,
			CountProof:      rec.CountProof,
		}
	}
	httpWriteJSON(w, out)
}

// submitPartialDecryption accepts one arbiter's contribution to a candidate
// slot's tally. An unverifiable proof here indicates arbiter misbehavior,
// not a malformed ballot, and is rejected outright (spec.md §7).
func (t *Tallyer) submitPartialDecryption(w http.ResponseWriter, r *http.Request) {
	slot, err := strconv.Atoi(chi.URLParam(r, SlotURLParam))
	if err != nil || slot < 0 || slot >= t.numSlots {
		ErrMalformedBody.Write(w)
		return
	}

	var req PartialDecryptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	yi, ok := t.arbiterPublics[req.ArbiterID]
	if !ok {
		ErrMalformedBody.Write(w)
		return
	}

	partial, err := decryption.Decode(req.Partial)
	if err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}

	tlr := tally.New(t.stg, t.electionKey, t.numSlots)
	aggregates, _, err := tlr.Aggregate()
	if err != nil {
		ErrInternal.WithErr(err).Write(w)
		return
	}
	agg := aggregates[slot]
	if !decryption.Verify(yi, agg.A, agg.B, partial) {
		ErrInvalidDecryptionProof.Write(w)
		return
	}

	rec := &storage.PartialDecryptionRecord{ArbiterID: req.ArbiterID, Slot: slot, Partial: req.Partial}
	if err := t.stg.PutPartialDecryption(rec); err != nil {
		ErrInternal.WithErr(err).Write(w)
		return
	}
	httpWriteOK(w)
}

// result recovers the final per-candidate tally once every arbiter has
// contributed a partial decryption for every slot.
func (t *Tallyer) result(w http.ResponseWriter, r *http.Request) {
	tlr := tally.New(t.stg, t.electionKey, t.numSlots)
	aggregates, accepted, err := tlr.Aggregate()
	if err != nil {
		ErrInternal.WithErr(err).Write(w)
		return
	}

	counts := make([]int, t.numSlots)
	for slot, agg := range aggregates {
		records, err := t.stg.ListPartialDecryptions(slot)
		if err != nil {
			ErrInternal.WithErr(err).Write(w)
			return
		}
		contributions := make([]tally.Contribution, len(records))
		for i, rec := range records {
			p, err := decryption.Decode(rec.Partial)
			if err != nil {
				ErrInternal.WithErr(err).Write(w)
				return
			}
			contributions[i] = tally.Contribution{ArbiterID: rec.ArbiterID, Partial: p}
		}
		count, err := tally.Recover(t.arbiterPublics, agg.A, agg.B, contributions, accepted)
		if err != nil {
			ErrTallyNotReady.WithErr(err).Write(w)
			return
		}
		counts[slot] = count
	}

	httpWriteJSON(w, ResultResponse{Counts: counts})
}
