package api

// Registrar endpoints.
const (
	// HandshakeEndpoint establishes the ephemeral DH session that the
	// verification key in RegisterEndpoint's body must be sealed under
	// (spec.md §6, §4.9).
	HandshakeEndpoint = "/handshake"
	RegisterEndpoint  = "/register"
)

// Tallyer endpoints.
const (
	BallotsEndpoint            = "/ballots"
	PartialDecryptionsEndpoint = "/partial-decryptions"
	ResultEndpoint             = "/result"
)

// Shared endpoints.
const (
	PingEndpoint = "/ping"

	// SlotURLParam names the chi path parameter carrying a candidate slot
	// index in the partial-decryption submission route.
	SlotURLParam = "slotId"
	SlotEndpoint = "/partial-decryptions/{" + SlotURLParam + "}"
)
