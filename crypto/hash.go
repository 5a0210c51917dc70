package crypto

import "golang.org/x/crypto/sha3"

// Hash returns the sha3-256 digest of the given bytes.
// All identifiers in the engine (subaccount IDs, order hashes, trade IDs)
// are derived through this single function so they stay 32 bytes wide.
func Hash(key []byte) []byte {
	hasher := sha3.New256()
	hasher.Write(key)
	return hasher.Sum(nil)
}
