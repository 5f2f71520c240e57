package storage

// PutPartialDecryption stores (or overwrites) one arbiter's partial
// decryption for a candidate slot. Unlike the voter and vote tables, this
// table upserts on conflict: an arbiter may legitimately recompute and
// resubmit its contribution.
func (s *Storage) PutPartialDecryption(p *PartialDecryptionRecord) error {
	return s.setArtifact(partialDecryptionPrefix, partialDecryptionKey(p.Slot, p.ArbiterID), p, false)
}

// ListPartialDecryptions returns every arbiter's contribution to a single
// candidate slot's tally.
func (s *Storage) ListPartialDecryptions(slot int) ([]*PartialDecryptionRecord, error) {
	var out []*PartialDecryptionRecord
	err := s.iteratePrefixed(partialDecryptionPrefix, slotKeyPrefix(slot),
		func() any { return new(PartialDecryptionRecord) },
		func(_ []byte, dest any) bool {
			out = append(out, dest.(*PartialDecryptionRecord))
			return true
		})
	if err != nil {
		return nil, err
	}
	return out, nil
}
