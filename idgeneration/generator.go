package idgeneration

import (
	"encoding/hex"

	"code.meridianprotocol.io/meridian/crypto"
)

// Generator produces a deterministic chain of 32-byte identifiers from a
// root hash. Used for trade IDs, seeded from the aggressor order hash, so
// every fill of a submission gets a stable, replayable identifier.
// No mutex required, the engine applies operations sequentially.
type Generator struct {
	nextIDBytes []byte
}

// New returns a generator rooted at the given hex encoded hash.
func New(rootID string) *Generator {
	nextIDBytes, err := hex.DecodeString(rootID)
	if err != nil {
		panic("failed to create deterministic id generator: " + err.Error())
	}
	return &Generator{
		nextIDBytes: nextIDBytes,
	}
}

// NewFromBytes returns a generator rooted at the given hash.
func NewFromBytes(root []byte) *Generator {
	cpy := make([]byte, len(root))
	copy(cpy, root)
	return &Generator{
		nextIDBytes: cpy,
	}
}

// NextID returns the next identifier in the chain.
func (g *Generator) NextID() string {
	if g == nil {
		panic("id generator instance is not initialised")
	}
	nextID := hex.EncodeToString(g.nextIDBytes)
	g.nextIDBytes = crypto.Hash(g.nextIDBytes)
	return nextID
}
