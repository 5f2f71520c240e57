package storage

// PutVote persists an accepted, tallyer-signed ballot. It fails with
// ErrKeyAlreadyExists if the voter has already cast a ballot.
func (s *Storage) PutVote(v *VoteRecord) error {
	return s.setArtifact(votePrefix, voteKey(v.VoterID), v, true)
}

// GetVote looks up a voter's cast ballot by id.
func (s *Storage) GetVote(voterID string) (*VoteRecord, error) {
	var v VoteRecord
	if err := s.getArtifact(votePrefix, voteKey(voterID), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// ListVotes returns every accepted ballot, for the arbiter's aggregation
// step (spec.md §4.5).
func (s *Storage) ListVotes() ([]*VoteRecord, error) {
	var votes []*VoteRecord
	err := s.iterateArtifacts(votePrefix, func() any { return new(VoteRecord) }, func(_ []byte, dest any) bool {
		votes = append(votes, dest.(*VoteRecord))
		return true
	})
	if err != nil {
		return nil, err
	}
	return votes, nil
}
