package crypto

const (
	HashSize    = 32
	Hash512Size = 64
)
