package service

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/distvote/evote/api"
	"github.com/distvote/evote/crypto/identity"
	"github.com/distvote/evote/storage"
)

// TallyerService manages a Tallyer HTTP server's lifecycle.
type TallyerService struct {
	stg             *storage.Storage
	keys            *identity.Keys
	registrarPublic *ecdsa.PublicKey
	electionKey     *big.Int
	numSlots        int
	arbiterPublics  map[string]*big.Int
	host            string
	port            int

	mu      sync.Mutex
	running bool
}

// NewTallyerService builds a TallyerService for one election.
func NewTallyerService(
	stg *storage.Storage,
	keys *identity.Keys,
	registrarPublic *ecdsa.PublicKey,
	electionKey *big.Int,
	numSlots int,
	arbiterPublics map[string]*big.Int,
	host string,
	port int,
) *TallyerService {
	return &TallyerService{
		stg:             stg,
		keys:            keys,
		registrarPublic: registrarPublic,
		electionKey:     electionKey,
		numSlots:        numSlots,
		arbiterPublics:  arbiterPublics,
		host:            host,
		port:            port,
	}
}

// Start launches the tallyer's HTTP server. It returns an error if the
// service is already running.
func (s *TallyerService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("tallyer service already running")
	}

	tlr := api.NewTallyer(s.stg, s.keys, s.registrarPublic, s.electionKey, s.numSlots, s.arbiterPublics)
	api.ListenAndServe(s.host, s.port, tlr.Router())
	s.running = true
	return nil
}

// Stop halts the tallyer's storage handle.
func (s *TallyerService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.stg.Close()
}

// HostPort returns the configured host and port.
func (s *TallyerService) HostPort() (string, int) {
	return s.host, s.port
}
