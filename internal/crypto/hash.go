package crypto

import (
	"encoding/hex"

	"github.com/decred/dcrd/crypto/blake256"
	"golang.org/x/crypto/blake2b"
)

type Hash [HashSize]byte

// String returns the lowercase hex form of the hash
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// HashData hashes the input data using BLAKE2b-256
func HashData(data []byte) Hash {
	hash := blake2b.Sum256(data)
	return hash
}

// HashData512 hashes the input data using BLAKE2b-512
func HashData512(data []byte) [Hash512Size]byte {
	return blake2b.Sum512(data)
}

// Blake256 hashes the input data using the 14 round BLAKE-256 finalist,
// the same function CryptoNight uses as hash_extra_blake
func Blake256(data []byte) Hash {
	return blake256.Sum256(data)
}
