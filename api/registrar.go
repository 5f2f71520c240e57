package api

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/distvote/evote/crypto/identity"
	"github.com/distvote/evote/log"
	"github.com/distvote/evote/storage"
	"github.com/distvote/evote/transport"
)

// Registrar is the HTTP service that certifies voters (spec.md §4.10). A
// verification key never reaches it in the clear: a voter first opens an
// ephemeral DH session via handshake, then seals its RegisterRequest under
// it (spec.md §6, §4.9).
type Registrar struct {
	router *chi.Mux
	stg    *storage.Storage
	keys   *identity.Keys

	sessionsMu sync.Mutex
	sessions   map[string]*transport.Session
}

// NewRegistrar builds a Registrar bound to stg and signing with keys.
func NewRegistrar(stg *storage.Storage, keys *identity.Keys) *Registrar {
	reg := &Registrar{stg: stg, keys: keys, router: newRouter(), sessions: make(map[string]*transport.Session)}
	reg.registerHandlers()
	return reg
}

// Router returns the registrar's chi router, for Serve or testing.
func (reg *Registrar) Router() *chi.Mux {
	return reg.router
}

func (reg *Registrar) registerHandlers() {
	log.Infow("register handler", "endpoint", HandshakeEndpoint, "method", "POST")
	reg.router.Post(HandshakeEndpoint, reg.handshake)
	log.Infow("register handler", "endpoint", RegisterEndpoint, "method", "POST")
	reg.router.Post(RegisterEndpoint, reg.register)
}

// handshake opens an ephemeral DH session: it completes the caller's public
// value, signs the pair "server-dh-public ‖ client-dh-public" so the
// caller can authenticate the response, and holds the session open under a
// fresh id for the sealed RegisterRequest that should follow.
func (reg *Registrar) handshake(w http.ResponseWriter, r *http.Request) {
	var req HandshakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}

	session, err := transport.NewSession()
	if err != nil {
		ErrInternal.WithErr(err).Write(w)
		return
	}
	if err := session.Complete(new(big.Int).SetBytes(req.ClientDHPublic)); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}

	serverPublic := session.PublicValue().Bytes()
	sig, err := reg.keys.Sign(identity.HandshakeSignatureInput(serverPublic, req.ClientDHPublic))
	if err != nil {
		ErrInternal.WithErr(err).Write(w)
		return
	}

	sessionID, err := newSessionID()
	if err != nil {
		ErrInternal.WithErr(err).Write(w)
		return
	}
	reg.sessionsMu.Lock()
	reg.sessions[sessionID] = session
	reg.sessionsMu.Unlock()

	httpWriteJSON(w, HandshakeResponse{SessionID: sessionID, ServerDHPublic: serverPublic, ServerSig: sig})
}

// newSessionID returns a fresh random session identifier.
func newSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("api: generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// register certifies a voter's verification key, rejecting a voter id that
// is already registered. The body is a SealedEnvelope from a prior
// handshake; the referenced session is consumed on first use.
func (reg *Registrar) register(w http.ResponseWriter, r *http.Request) {
	var envelope SealedEnvelope
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}

	reg.sessionsMu.Lock()
	session, ok := reg.sessions[envelope.SessionID]
	delete(reg.sessions, envelope.SessionID)
	reg.sessionsMu.Unlock()
	if !ok {
		ErrNoSuchSession.Write(w)
		return
	}

	plaintext, err := session.Decrypt(envelope.Sealed)
	if err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}

	var req RegisterRequest
	if err := json.Unmarshal(plaintext, &req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	if req.VoterID == "" || len(req.VerificationKey) == 0 {
		ErrMalformedBody.Write(w)
		return
	}

	if _, err := reg.stg.GetVoter(req.VoterID); err == nil {
		ErrVoterAlreadyExists.Write(w)
		return
	} else if !errors.Is(err, storage.ErrNotFound) {
		ErrInternal.WithErr(err).Write(w)
		return
	}

	sig, err := reg.keys.Sign(identity.CertificateSignatureInput(req.VoterID, req.VerificationKey))
	if err != nil {
		ErrInternal.WithErr(err).Write(w)
		return
	}

	voter := &storage.VoterRecord{
		VoterID:         req.VoterID,
		VerificationKey: req.VerificationKey,
		CertificateSig:  sig,
	}
	if err := reg.stg.PutVoter(voter); err != nil {
		if errors.Is(err, storage.ErrKeyAlreadyExists) {
			ErrVoterAlreadyExists.Write(w)
			return
		}
		ErrInternal.WithErr(err).Write(w)
		return
	}

	httpWriteJSON(w, RegisterResponse{
		VoterID:         voter.VoterID,
		VerificationKey: voter.VerificationKey,
		CertificateSig:  voter.CertificateSig,
	})
}
