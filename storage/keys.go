package storage

import "fmt"

var (
	voterPrefix             = []byte("voter/")
	votePrefix              = []byte("vote/")
	partialDecryptionPrefix = []byte("partial_decryption/")
	votedPrefix             = []byte("voted/")
)

func voterKey(voterID string) []byte {
	return []byte(voterID)
}

func voteKey(voterID string) []byte {
	return []byte(voterID)
}

// partialDecryptionKey groups keys by slot first so a single iteration with
// slotKeyPrefix(slot) as the inner prefix yields every arbiter's
// contribution to that candidate slot.
func partialDecryptionKey(slot int, arbiterID string) []byte {
	return []byte(fmt.Sprintf("%d/%s", slot, arbiterID))
}

func slotKeyPrefix(slot int) []byte {
	return []byte(fmt.Sprintf("%d/", slot))
}

func votedKey(voterID string) []byte {
	return []byte(voterID)
}
