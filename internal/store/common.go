package store

import "encoding/binary"

// Prefix constants for all store types
const (
	prefixProgram byte = iota + 1
)

// PrefixToString converts a prefix byte to a string
func PrefixToString(p byte) string {
	switch p {
	case prefixProgram:
		return "program"
	default:
		return "unknown"
	}
}

// makeKey creates a key from a prefix and a big endian height, so that
// iteration follows height order
func makeKey(prefix byte, height uint64) []byte {
	key := make([]byte, 9)
	key[0] = prefix
	binary.BigEndian.PutUint64(key[1:], height)
	return key
}

func heightFromKey(key []byte) (uint64, bool) {
	if len(key) != 9 {
		return 0, false
	}
	return binary.BigEndian.Uint64(key[1:]), true
}

const (
	ErrFailedBatchCommit = "failed to commit batch: %w"
)
