package transport

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/cnr/internal/crypto/ed25519"
	"github.com/eigerco/cnr/internal/randommath"
	"github.com/eigerco/cnr/pkg/network/cert"
)

func newKey(t *testing.T) ed25519.PrivateKey {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return priv
}

func newTransport(t *testing.T, key ed25519.PrivateKey, listenAddr string, handler StreamHandler) *Transport {
	tlsCert, err := cert.NewGenerator(cert.Config{PrivateKey: key}).GenerateCertificate()
	require.NoError(t, err)

	tr, err := NewTransport(Config{
		TLSCert:       tlsCert,
		ListenAddr:    listenAddr,
		CertValidator: cert.NewValidator(),
		Handler:       handler,
		DialRetries:   2,
		NewBackOff: func() backoff.BackOff {
			return backoff.NewConstantBackOff(50 * time.Millisecond)
		},
	})
	require.NoError(t, err)
	if listenAddr != "" {
		require.NoError(t, tr.Start())
	}
	t.Cleanup(func() {
		require.NoError(t, tr.Stop())
	})
	return tr
}

// serve starts a program server signing with signKey, the TLS identity uses
// tlsKey
func serve(t *testing.T, source ProgramSource, tlsKey, signKey ed25519.PrivateKey) *Transport {
	return newTransport(t, tlsKey, "127.0.0.1:0", NewProgramServer(source, signKey))
}

func connect(t *testing.T, server *Transport) *Conn {
	client := newTransport(t, newKey(t), "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := client.Connect(ctx, server.Addr().String())
	require.NoError(t, err)
	return conn
}

func TestNewTransport_Validation(t *testing.T) {
	tlsCert, err := cert.NewGenerator(cert.Config{PrivateKey: newKey(t)}).GenerateCertificate()
	require.NoError(t, err)

	_, err = NewTransport(Config{CertValidator: cert.NewValidator()})
	assert.Error(t, err)

	_, err = NewTransport(Config{TLSCert: tlsCert})
	assert.Error(t, err)

	_, err = NewTransport(Config{TLSCert: tlsCert, CertValidator: cert.NewValidator(), ListenAddr: "127.0.0.1:0"})
	assert.Error(t, err)

	expired, err := cert.NewGenerator(cert.Config{PrivateKey: newKey(t), CertValidityPeriod: -time.Hour}).GenerateCertificate()
	require.NoError(t, err)
	_, err = NewTransport(Config{TLSCert: expired, CertValidator: cert.NewValidator()})
	assert.ErrorIs(t, err, ErrInvalidCertificate)
}

func TestFetchProgram(t *testing.T) {
	key := newKey(t)
	server := serve(t, Generated, key, key)
	conn := connect(t, server)
	assert.Equal(t, key.Public(), conn.PeerKey())

	client := NewProgramClient(conn)
	client.VerifyLocally = true

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, height := range []uint64{0, 1, 1806260, ^uint64(0)} {
		prog, err := client.FetchProgram(ctx, height)
		require.NoError(t, err, "height %d", height)
		assert.True(t, randommath.Generate(height).Equal(prog), "height %d", height)
	}
	assert.Len(t, server.ListConnections(), 1)
}

func TestFetchProgram_Mismatch(t *testing.T) {
	key := newKey(t)
	shifted := ProgramSourceFunc(func(height uint64) (*randommath.Program, error) {
		return randommath.Generate(height + 1), nil
	})
	client := NewProgramClient(connect(t, serve(t, shifted, key, key)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// the signature is valid, only local generation catches the lie
	prog, err := client.FetchProgram(ctx, 10)
	require.NoError(t, err)
	assert.True(t, randommath.Generate(11).Equal(prog))

	client.VerifyLocally = true
	_, err = client.FetchProgram(ctx, 10)
	assert.ErrorIs(t, err, ErrProgramMismatch)
}

func TestFetchProgram_BadSignature(t *testing.T) {
	client := NewProgramClient(connect(t, serve(t, Generated, newKey(t), newKey(t))))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.FetchProgram(ctx, 10)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestFetchProgram_SourceFailure(t *testing.T) {
	key := newKey(t)
	failing := ProgramSourceFunc(func(uint64) (*randommath.Program, error) {
		return nil, errors.New("store unavailable")
	})
	client := NewProgramClient(connect(t, serve(t, failing, key, key)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := client.FetchProgram(ctx, 10)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestConnect_Unreachable(t *testing.T) {
	// grab a free port and release it so nothing answers there
	key := newKey(t)
	tlsCert, err := cert.NewGenerator(cert.Config{PrivateKey: key}).GenerateCertificate()
	require.NoError(t, err)
	tmp, err := NewTransport(Config{
		TLSCert:       tlsCert,
		ListenAddr:    "127.0.0.1:0",
		CertValidator: cert.NewValidator(),
		Handler:       NewProgramServer(Generated, key),
	})
	require.NoError(t, err)
	require.NoError(t, tmp.Start())
	addr := tmp.Addr().String()
	require.NoError(t, tmp.Stop())

	client := newTransport(t, newKey(t), "", nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = client.Connect(ctx, addr)
	assert.ErrorIs(t, err, ErrDialFailed)
}

func TestMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMessage(&buf, []byte("program")))
	assert.Equal(t, []byte{7, 0, 0, 0}, buf.Bytes()[:4])

	content, err := ReadMessage(bytes.NewReader(buf.Bytes()), 16)
	require.NoError(t, err)
	assert.Equal(t, []byte("program"), content)

	_, err = ReadMessage(bytes.NewReader(buf.Bytes()), 6)
	assert.ErrorIs(t, err, ErrMessageTooLarge)

	_, err = ReadMessage(bytes.NewReader(buf.Bytes()[:6]), 16)
	assert.Error(t, err)
}
