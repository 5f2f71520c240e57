// Package storage is a prefixed key-value store over the four tables of
// spec.md §6's "durable store" collaborator: voter, vote, partial_decryption
// (upsert on conflict) and voted (a set). One mutex-protected handle per
// process backs all tables, matching spec.md §5's concurrency model.
package storage

import (
	"bytes"
	"encoding/gob"
	"errors"
	"sync"

	"go.vocdoni.io/dvote/db"
	"go.vocdoni.io/dvote/db/prefixeddb"
)

var (
	ErrKeyAlreadyExists = errors.New("storage: key already exists")
	ErrNotFound         = errors.New("storage: key not found")
)

// Storage wraps a database handle with the prefixed tables this protocol
// needs. All access goes through a single mutex, matching the teacher's
// single-writer concurrency model.
type Storage struct {
	db  db.Database
	mtx sync.Mutex
}

// New wraps an already-open database handle.
func New(database db.Database) *Storage {
	return &Storage{db: database}
}

// Close releases the underlying database handle.
func (s *Storage) Close() error {
	return s.db.Close()
}

// setArtifact gob-encodes artifact and stores it under prefix+key. If
// failOnConflict is set, an existing value at that key returns
// ErrKeyAlreadyExists instead of overwriting it.
func (s *Storage) setArtifact(prefix, key []byte, artifact any, failOnConflict bool) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if failOnConflict {
		if _, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key); err == nil {
			return ErrKeyAlreadyExists
		}
	}

	buf := bytes.NewBuffer(nil)
	if err := gob.NewEncoder(buf).Encode(artifact); err != nil {
		return err
	}

	wTx := prefixeddb.NewPrefixedWriteTx(s.db.WriteTx(), prefix)
	if err := wTx.Set(key, buf.Bytes()); err != nil {
		return err
	}
	return wTx.Commit()
}

// getArtifact looks up prefix+key and gob-decodes it into dest, a pointer
// to the destination value.
func (s *Storage) getArtifact(prefix, key []byte, dest any) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	data, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	if err != nil {
		return ErrNotFound
	}
	return gob.NewDecoder(bytes.NewReader(data)).Decode(dest)
}

// hasArtifact reports whether prefix+key exists, without decoding it.
func (s *Storage) hasArtifact(prefix, key []byte) bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	_, err := prefixeddb.NewPrefixedReader(s.db, prefix).Get(key)
	return err == nil
}

// iterateArtifacts calls fn for every value stored under prefix, decoding
// each into a freshly allocated value via newDest, until fn returns false.
func (s *Storage) iterateArtifacts(prefix []byte, newDest func() any, fn func(key []byte, dest any) bool) error {
	return s.iteratePrefixed(prefix, nil, newDest, fn)
}

// iteratePrefixed is iterateArtifacts restricted to keys matching
// innerPrefix within the table, for tables that group related records by a
// shared key prefix (e.g. partial decryptions grouped by candidate slot).
func (s *Storage) iteratePrefixed(prefix, innerPrefix []byte, newDest func() any, fn func(key []byte, dest any) bool) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	var decodeErr error
	prefixeddb.NewPrefixedReader(s.db, prefix).Iterate(innerPrefix, func(k, v []byte) bool {
		dest := newDest()
		if err := gob.NewDecoder(bytes.NewReader(v)).Decode(dest); err != nil {
			decodeErr = err
			return false
		}
		return fn(k, dest)
	})
	return decodeErr
}
