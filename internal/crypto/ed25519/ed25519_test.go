package ed25519

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignVerify(t *testing.T) {
	pub, priv, err := GenerateKey(rand.Reader)
	require.NoError(t, err)

	msg := []byte("height||program")
	sig := Sign(priv, msg)
	assert.True(t, Verify(pub, msg, sig))
	assert.False(t, Verify(pub, []byte("other"), sig))
	assert.False(t, Verify(pub[:10], msg, sig))

	other, _, err := GenerateKey(rand.Reader)
	require.NoError(t, err)
	assert.False(t, Verify(other, msg, sig))
}

func TestNewKeyFromSeed(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, SeedSize)
	a := NewKeyFromSeed(seed)
	b := NewKeyFromSeed(seed)
	assert.Equal(t, a, b)
	assert.Len(t, a, PrivateKeySize)
}
