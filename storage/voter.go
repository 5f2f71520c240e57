package storage

// PutVoter registers a voter's certificate. It fails with
// ErrKeyAlreadyExists if the voter id is already registered, matching the
// registrar's "not already registered" check (spec.md §4.10).
func (s *Storage) PutVoter(v *VoterRecord) error {
	return s.setArtifact(voterPrefix, voterKey(v.VoterID), v, true)
}

// GetVoter looks up a voter's certificate by id.
func (s *Storage) GetVoter(voterID string) (*VoterRecord, error) {
	var v VoterRecord
	if err := s.getArtifact(voterPrefix, voterKey(voterID), &v); err != nil {
		return nil, err
	}
	return &v, nil
}
