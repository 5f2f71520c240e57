// Package service wraps the registrar and tallyer HTTP APIs with a
// Start/Stop lifecycle, matching the teacher's service-layer shape.
package service

import (
	"fmt"
	"sync"

	"github.com/distvote/evote/api"
	"github.com/distvote/evote/crypto/identity"
	"github.com/distvote/evote/storage"
)

// RegistrarService manages a Registrar HTTP server's lifecycle.
type RegistrarService struct {
	stg  *storage.Storage
	keys *identity.Keys
	host string
	port int

	mu      sync.Mutex
	running bool
}

// NewRegistrarService builds a RegistrarService bound to stg, signing
// certificates with keys.
func NewRegistrarService(stg *storage.Storage, keys *identity.Keys, host string, port int) *RegistrarService {
	return &RegistrarService{stg: stg, keys: keys, host: host, port: port}
}

// Start launches the registrar's HTTP server. It returns an error if the
// service is already running.
func (s *RegistrarService) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("registrar service already running")
	}

	reg := api.NewRegistrar(s.stg, s.keys)
	api.ListenAndServe(s.host, s.port, reg.Router())
	s.running = true
	return nil
}

// Stop halts the registrar's storage handle. The HTTP listener itself has
// no graceful shutdown, matching the teacher's fire-and-forget serve loop.
func (s *RegistrarService) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	s.stg.Close()
}

// HostPort returns the configured host and port.
func (s *RegistrarService) HostPort() (string, int) {
	return s.host, s.port
}
