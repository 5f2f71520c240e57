package storage

// VoterRecord is a registrar-issued certificate for one voter, per the
// [VOTER-IDENTITY] data model: a verification key bound to a voter id by the
// registrar's signature.
type VoterRecord struct {
	VoterID         string
	VerificationKey []byte
	CertificateSig  []byte
}

// VoteRecord is a [SIGNED-BALLOT]: the ballot as accepted by the tallyer,
// wire-encoded component by component so each can be independently
// re-verified, plus the tallyer's signature over their concatenation.
type VoteRecord struct {
	VoterID         string
	Votes           []byte // wire-encoded ciphertext sequence
	ChoiceProofs    []byte // wire-encoded choice-proof sequence
	CountCiphertext []byte // wire-encoded aggregated ciphertext
	CountProof      []byte // wire-encoded count proof
	TallyerSig      []byte
}

// PartialDecryptionRecord is one arbiter's contribution to the tally for a
// single candidate slot.
type PartialDecryptionRecord struct {
	ArbiterID string
	Slot      int
	Partial   []byte // wire-encoded decryption.Partial
}
