package storage

// MarkVoted records that voterID has cast a ballot. It fails with
// ErrKeyAlreadyExists if the voter is already marked. The tallyer rejects
// double votes by checking HasVoted before it accepts a ballot (spec.md §7).
func (s *Storage) MarkVoted(voterID string) error {
	return s.setArtifact(votedPrefix, votedKey(voterID), true, true)
}

// HasVoted reports whether voterID has already cast a ballot.
func (s *Storage) HasVoted(voterID string) bool {
	return s.hasArtifact(votedPrefix, votedKey(voterID))
}
