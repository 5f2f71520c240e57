package service

import (
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/distvote/evote/crypto/identity"
	"github.com/distvote/evote/storage"
	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/metadb"
)

func newTestStorage(c *qt.C) *storage.Storage {
	dbPath := filepath.Join(c.TempDir(), "db")
	database, err := metadb.New(db.TypePebble, dbPath)
	c.Assert(err, qt.IsNil)
	return storage.New(database)
}

func TestRegistrarServiceStartStop(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(c)
	keys, err := identity.Generate()
	c.Assert(err, qt.IsNil)

	svc := NewRegistrarService(stg, keys, "127.0.0.1", 0)
	c.Assert(svc.Start(), qt.IsNil)
	c.Assert(svc.Start(), qt.ErrorMatches, "registrar service already running")
	svc.Stop()

	host, _ := svc.HostPort()
	c.Assert(host, qt.Equals, "127.0.0.1")
}

func TestTallyerServiceStartStop(t *testing.T) {
	c := qt.New(t)
	stg := newTestStorage(c)
	keys, err := identity.Generate()
	c.Assert(err, qt.IsNil)
	registrarKeys, err := identity.Generate()
	c.Assert(err, qt.IsNil)

	svc := NewTallyerService(stg, keys, &registrarKeys.Public, nil, 2, nil, "127.0.0.1", 0)
	c.Assert(svc.Start(), qt.IsNil)
	c.Assert(svc.Start(), qt.ErrorMatches, "tallyer service already running")
	svc.Stop()
}
