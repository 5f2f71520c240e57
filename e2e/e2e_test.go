// Package e2e drives a registrar and a tallyer over real HTTP, the same
// way cmd/voter and cmd/arbiter do, against the six literal scenarios of
// spec.md §8.
package e2e

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/distvote/evote/api"
	"github.com/distvote/evote/ballot"
	"github.com/distvote/evote/crypto/decryption"
	"github.com/distvote/evote/crypto/elgamal"
	"github.com/distvote/evote/crypto/identity"
	"github.com/distvote/evote/storage"
	"github.com/distvote/evote/tally"
	"github.com/distvote/evote/transport"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

// election bundles everything a scenario needs to talk to a fresh
// registrar/tallyer pair: their HTTP servers, the registrar's identity and
// every arbiter's key share.
type election struct {
	registrarURL    string
	tallyerURL      string
	registrarPublic *ecdsa.PublicKey
	numSlots        int
	arbiters        map[string]*elgamal.ArbiterKey
	electionKey     *big.Int
}

func newStorage(c *qt.C) *storage.Storage {
	database, err := metadb.New(db.TypePebble, filepath.Join(c.TempDir(), "db"))
	c.Assert(err, qt.IsNil)
	st := storage.New(database)
	c.Cleanup(func() { st.Close() })
	return st
}

// newElection starts a fresh registrar and tallyer pair sharing an election
// with numSlots candidates and arbiterIDs key shares.
func newElection(c *qt.C, numSlots int, arbiterIDs ...string) *election {
	registrarKeys, err := identity.Generate()
	c.Assert(err, qt.IsNil)
	reg := api.NewRegistrar(newStorage(c), registrarKeys)
	regSrv := httptest.NewServer(reg.Router())
	c.Cleanup(regSrv.Close)

	arbiters := make(map[string]*elgamal.ArbiterKey, len(arbiterIDs))
	publics := make([]*big.Int, 0, len(arbiterIDs))
	arbiterPublics := make(map[string]*big.Int, len(arbiterIDs))
	for _, id := range arbiterIDs {
		k, err := elgamal.GenerateArbiterKey()
		c.Assert(err, qt.IsNil)
		arbiters[id] = k
		publics = append(publics, k.Public)
		arbiterPublics[id] = k.Public
	}
	electionKey, err := elgamal.CombinePublicKeys(publics...)
	c.Assert(err, qt.IsNil)

	tallyerKeys, err := identity.Generate()
	c.Assert(err, qt.IsNil)
	tlr := api.NewTallyer(newStorage(c), tallyerKeys, &registrarKeys.Public, electionKey, numSlots, arbiterPublics)
	tlrSrv := httptest.NewServer(tlr.Router())
	c.Cleanup(tlrSrv.Close)

	return &election{
		registrarURL:    regSrv.URL,
		tallyerURL:      tlrSrv.URL,
		registrarPublic: &registrarKeys.Public,
		numSlots:        numSlots,
		arbiters:        arbiters,
		electionKey:     electionKey,
	}
}

// handshakeWithRegistrar opens a transport session with e's registrar and
// authenticates its response, mirroring cmd/voter's registration flow.
func handshakeWithRegistrar(c *qt.C, e *election) (*transport.Session, string) {
	session, err := transport.NewSession()
	c.Assert(err, qt.IsNil)
	clientPublic := session.PublicValue().Bytes()

	body, err := json.Marshal(api.HandshakeRequest{ClientDHPublic: clientPublic})
	c.Assert(err, qt.IsNil)
	resp, err := http.Post(e.registrarURL+api.HandshakeEndpoint, "application/json", bytes.NewReader(body))
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)

	var handshakeResp api.HandshakeResponse
	c.Assert(json.NewDecoder(resp.Body).Decode(&handshakeResp), qt.IsNil)

	handshakeInput := identity.HandshakeSignatureInput(handshakeResp.ServerDHPublic, clientPublic)
	c.Assert(identity.Verify(e.registrarPublic, handshakeInput, handshakeResp.ServerSig), qt.IsTrue)
	c.Assert(session.Complete(new(big.Int).SetBytes(handshakeResp.ServerDHPublic)), qt.IsNil)
	return session, handshakeResp.SessionID
}

// voter is the client-side state a real voter CLI would keep between
// register and vote: its signing key and the certificate the registrar
// issued it.
type voter struct {
	id   string
	keys *identity.Keys
	cert api.RegisterResponse
}

func registerVoter(c *qt.C, e *election, id string) *voter {
	keys, err := identity.Generate()
	c.Assert(err, qt.IsNil)

	session, sessionID := handshakeWithRegistrar(c, e)
	plaintext, err := json.Marshal(api.RegisterRequest{VoterID: id, VerificationKey: keys.PublicBytes()})
	c.Assert(err, qt.IsNil)
	sealed, err := session.Encrypt(plaintext)
	c.Assert(err, qt.IsNil)
	envelope, err := json.Marshal(api.SealedEnvelope{SessionID: sessionID, Sealed: sealed})
	c.Assert(err, qt.IsNil)

	resp, err := http.Post(e.registrarURL+api.RegisterEndpoint, "application/json", bytes.NewReader(envelope))
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)

	var cert api.RegisterResponse
	c.Assert(json.NewDecoder(resp.Body).Decode(&cert), qt.IsNil)
	return &voter{id: id, keys: keys, cert: cert}
}

// castBallot builds and submits a ballot, returning the HTTP status code so
// scenarios can assert rejection without treating it as a test failure.
func castBallot(c *qt.C, e *election, v *voter, votes []int, k int) int {
	b, err := ballot.Build(e.electionKey, votes, k, e.numSlots)
	c.Assert(err, qt.IsNil)
	votesB, proofsB, countCtB, countProofB := b.EncodeComponents()

	ballotInput := identity.BallotSignatureInput(votesB, proofsB, countCtB, countProofB)
	voterSig, err := v.keys.Sign(ballotInput)
	c.Assert(err, qt.IsNil)

	req := api.BallotRequest{
		VoterID:         v.id,
		VerificationKey: v.cert.VerificationKey,
		CertificateSig:  v.cert.CertificateSig,
		Votes:           votesB,
		ChoiceProofs:    proofsB,
		CountCiphertext: countCtB,
		CountProof:      countProofB,
		VoterSig:        voterSig,
	}
	return postBallot(c, e, req)
}

func postBallot(c *qt.C, e *election, req api.BallotRequest) int {
	body, err := json.Marshal(req)
	c.Assert(err, qt.IsNil)
	resp, err := http.Post(e.tallyerURL+api.BallotsEndpoint, "application/json", bytes.NewReader(body))
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	return resp.StatusCode
}

// adjudicate has every arbiter in e fetch the accepted ballots, aggregate
// them, and submit its partial decryption for each slot, mirroring cmd/arbiter.
func adjudicate(c *qt.C, e *election) {
	for id, k := range e.arbiters {
		resp, err := http.Get(e.tallyerURL + api.BallotsEndpoint)
		c.Assert(err, qt.IsNil)
		var entries []api.BallotListEntry
		c.Assert(json.NewDecoder(resp.Body).Decode(&entries), qt.IsNil)
		resp.Body.Close()

		ballots := make([]*ballot.Ballot, 0, len(entries))
		for _, entry := range entries {
			b, err := ballot.DecodeComponents(entry.Votes, entry.ChoiceProofs, entry.CountCiphertext, entry.CountProof)
			c.Assert(err, qt.IsNil)
			ballots = append(ballots, b)
		}
		aggregates, _, err := tally.AggregateBallots(ballots, e.electionKey, e.numSlots)
		c.Assert(err, qt.IsNil)

		for slot, agg := range aggregates {
			partial, err := decryption.Compute(k.Public, agg.A, agg.B, k.PrivateScalar())
			c.Assert(err, qt.IsNil)
			submitPartial(c, e, slot, id, partial)
		}
	}
}

func submitPartial(c *qt.C, e *election, slot int, arbiterID string, partial *decryption.Partial) int {
	body, err := json.Marshal(api.PartialDecryptionRequest{ArbiterID: arbiterID, Partial: partial.Encode()})
	c.Assert(err, qt.IsNil)
	url := e.tallyerURL + "/partial-decryptions/" + itoa(slot)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	return resp.StatusCode
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

func fetchResult(c *qt.C, e *election) api.ResultResponse {
	resp, err := http.Get(e.tallyerURL + api.ResultEndpoint)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusOK)
	var result api.ResultResponse
	c.Assert(json.NewDecoder(resp.Body).Decode(&result), qt.IsNil)
	return result
}

func TestSingleBallotOneArbiter(t *testing.T) {
	c := qt.New(t)
	e := newElection(c, 2, "arbiter-0")

	v := registerVoter(c, e, "voter-1")
	c.Assert(castBallot(c, e, v, []int{1, 0}, 1), qt.Equals, http.StatusOK)

	adjudicate(c, e)
	result := fetchResult(c, e)
	c.Assert(result.Counts, qt.DeepEquals, []int{1, 0})
}

func TestTwoArbitersTwoBallots(t *testing.T) {
	c := qt.New(t)
	e := newElection(c, 2, "arbiter-0", "arbiter-1")

	v1 := registerVoter(c, e, "voter-1")
	v2 := registerVoter(c, e, "voter-2")
	c.Assert(castBallot(c, e, v1, []int{1, 0}, 1), qt.Equals, http.StatusOK)
	c.Assert(castBallot(c, e, v2, []int{0, 1}, 1), qt.Equals, http.StatusOK)

	adjudicate(c, e)
	result := fetchResult(c, e)
	c.Assert(result.Counts, qt.DeepEquals, []int{1, 1})
}

func TestInvalidBallotExcluded(t *testing.T) {
	c := qt.New(t)
	e := newElection(c, 2, "arbiter-0")

	v1 := registerVoter(c, e, "voter-1")
	v2 := registerVoter(c, e, "voter-2")
	v3 := registerVoter(c, e, "voter-3")
	c.Assert(castBallot(c, e, v1, []int{1, 0}, 1), qt.Equals, http.StatusOK)

	b, err := ballot.Build(e.electionKey, []int{1, 0}, 1, e.numSlots)
	c.Assert(err, qt.IsNil)
	b.ChoiceProofs[0].R0 = new(big.Int).Add(b.ChoiceProofs[0].R0, big.NewInt(1))
	votesB, proofsB, countCtB, countProofB := b.EncodeComponents()
	ballotInput := identity.BallotSignatureInput(votesB, proofsB, countCtB, countProofB)
	voterSig, err := v2.keys.Sign(ballotInput)
	c.Assert(err, qt.IsNil)
	status := postBallot(c, e, api.BallotRequest{
		VoterID:         v2.id,
		VerificationKey: v2.cert.VerificationKey,
		CertificateSig:  v2.cert.CertificateSig,
		Votes:           votesB,
		ChoiceProofs:    proofsB,
		CountCiphertext: countCtB,
		CountProof:      countProofB,
		VoterSig:        voterSig,
	})
	c.Assert(status, qt.Equals, http.StatusBadRequest)

	c.Assert(castBallot(c, e, v3, []int{1, 0}, 1), qt.Equals, http.StatusOK)

	adjudicate(c, e)
	result := fetchResult(c, e)
	c.Assert(result.Counts, qt.DeepEquals, []int{2, 0})
}

func TestBadCountRejected(t *testing.T) {
	c := qt.New(t)
	e := newElection(c, 2, "arbiter-0")
	v := registerVoter(c, e, "voter-1")

	_, err := ballot.Build(e.electionKey, []int{1, 1}, 1, e.numSlots)
	c.Assert(err, qt.ErrorMatches, ".*declared count k=1 does not match actual sum 2.*")
	_ = v
}

func TestBadPartialDecryptionRejected(t *testing.T) {
	c := qt.New(t)
	e := newElection(c, 2, "arbiter-0")
	v := registerVoter(c, e, "voter-1")
	c.Assert(castBallot(c, e, v, []int{1, 0}, 1), qt.Equals, http.StatusOK)

	resp, err := http.Get(e.tallyerURL + api.BallotsEndpoint)
	c.Assert(err, qt.IsNil)
	var entries []api.BallotListEntry
	c.Assert(json.NewDecoder(resp.Body).Decode(&entries), qt.IsNil)
	resp.Body.Close()
	ballots := make([]*ballot.Ballot, 0, len(entries))
	for _, entry := range entries {
		b, err := ballot.DecodeComponents(entry.Votes, entry.ChoiceProofs, entry.CountCiphertext, entry.CountProof)
		c.Assert(err, qt.IsNil)
		ballots = append(ballots, b)
	}
	aggregates, _, err := tally.AggregateBallots(ballots, e.electionKey, e.numSlots)
	c.Assert(err, qt.IsNil)

	k := e.arbiters["arbiter-0"]
	for slot, agg := range aggregates {
		partial, err := decryption.Compute(k.Public, agg.A, agg.B, k.PrivateScalar())
		c.Assert(err, qt.IsNil)
		partial.D = new(big.Int).Mul(partial.D, big.NewInt(2))
		status := submitPartial(c, e, slot, "arbiter-0", partial)
		c.Assert(status, qt.Equals, http.StatusBadRequest)
	}

	resp, err = http.Get(e.tallyerURL + api.ResultEndpoint)
	c.Assert(err, qt.IsNil)
	defer resp.Body.Close()
	c.Assert(resp.StatusCode, qt.Equals, http.StatusConflict)
}

func TestDoubleVoteRejected(t *testing.T) {
	c := qt.New(t)
	e := newElection(c, 2, "arbiter-0")
	v := registerVoter(c, e, "voter-1")

	c.Assert(castBallot(c, e, v, []int{1, 0}, 1), qt.Equals, http.StatusOK)
	c.Assert(castBallot(c, e, v, []int{0, 1}, 1), qt.Equals, http.StatusConflict)

	adjudicate(c, e)
	result := fetchResult(c, e)
	c.Assert(result.Counts, qt.DeepEquals, []int{1, 0})
}
