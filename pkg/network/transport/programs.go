package transport

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/eigerco/cnr/internal/constants"
	"github.com/eigerco/cnr/internal/crypto/ed25519"
	"github.com/eigerco/cnr/internal/randommath"
	"github.com/eigerco/cnr/pkg/log"
)

// maxProgramMessage is the encoding size of the largest possible program
const maxProgramMessage = constants.ProgramCapacity * randommath.InstructionSize

// ProgramSource looks up the program for a height, store.Programs is one
type ProgramSource interface {
	Get(height uint64) (*randommath.Program, error)
}

// ProgramSourceFunc adapts a function to ProgramSource
type ProgramSourceFunc func(height uint64) (*randommath.Program, error)

func (f ProgramSourceFunc) Get(height uint64) (*randommath.Program, error) {
	return f(height)
}

// Generated serves freshly generated programs without any caching
var Generated = ProgramSourceFunc(func(height uint64) (*randommath.Program, error) {
	return randommath.Generate(height), nil
})

// signedMessage is what the server signs for every response: BE64 height
// followed by the program encoding
func signedMessage(height uint64, encoding []byte) []byte {
	msg := make([]byte, 8+len(encoding))
	binary.BigEndian.PutUint64(msg, height)
	copy(msg[8:], encoding)
	return msg
}

func streamDeadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(StreamTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

// ProgramServer answers program requests. Each stream carries one request,
// a BE64 height, and one response: the size prefixed program encoding
// followed by the Ed25519 signature of signedMessage.
type ProgramServer struct {
	source ProgramSource
	key    ed25519.PrivateKey
}

// NewProgramServer signs responses with key, normally the private key of the
// transport certificate so clients can check it against the TLS peer key
func NewProgramServer(source ProgramSource, key ed25519.PrivateKey) *ProgramServer {
	return &ProgramServer{source: source, key: key}
}

func (s *ProgramServer) HandleStream(ctx context.Context, stream quic.Stream, peerKey ed25519.PublicKey) error {
	if err := stream.SetDeadline(streamDeadline(ctx)); err != nil {
		return fmt.Errorf("set stream deadline: %w", err)
	}

	var req [8]byte
	if _, err := io.ReadFull(stream, req[:]); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	height := binary.BigEndian.Uint64(req[:])

	prog, err := s.source.Get(height)
	if err != nil {
		return fmt.Errorf("program for height %d: %w", height, err)
	}
	encoding := prog.Bytes()
	sig := ed25519.Sign(s.key, signedMessage(height, encoding))

	if err := WriteMessage(stream, encoding); err != nil {
		return err
	}
	if _, err := stream.Write(sig); err != nil {
		return fmt.Errorf("write signature: %w", err)
	}

	log.Network.Debug().
		Hex("peer", peerKey).
		Uint64("height", height).
		Int("size", prog.Len()).
		Msg("served program")
	return stream.Close()
}

// ProgramClient fetches programs over an established connection.
type ProgramClient struct {
	conn *Conn
	// VerifyLocally regenerates every fetched program and rejects it when
	// it differs from the served one
	VerifyLocally bool
}

func NewProgramClient(conn *Conn) *ProgramClient {
	return &ProgramClient{conn: conn}
}

// FetchProgram requests the program for height, the response signature is
// checked against the key in the server certificate
func (c *ProgramClient) FetchProgram(ctx context.Context, height uint64) (*randommath.Program, error) {
	stream, err := c.conn.OpenStream(ctx)
	if err != nil {
		return nil, err
	}
	defer stream.CancelRead(0)
	if err := stream.SetDeadline(streamDeadline(ctx)); err != nil {
		return nil, fmt.Errorf("set stream deadline: %w", err)
	}

	var req [8]byte
	binary.BigEndian.PutUint64(req[:], height)
	if _, err := stream.Write(req[:]); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}
	if err := stream.Close(); err != nil {
		return nil, fmt.Errorf("close request side: %w", err)
	}

	encoding, err := ReadMessage(stream, maxProgramMessage)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStreamClosed, err)
	}
	sig := make([]byte, ed25519.SignatureSize)
	if _, err := io.ReadFull(stream, sig); err != nil {
		return nil, fmt.Errorf("%w: read signature: %w", ErrStreamClosed, err)
	}
	if !ed25519.Verify(c.conn.PeerKey(), signedMessage(height, encoding), sig) {
		return nil, fmt.Errorf("%w: height %d", ErrBadSignature, height)
	}

	prog, err := randommath.UnmarshalProgram(encoding)
	if err != nil {
		return nil, fmt.Errorf("decode program for height %d: %w", height, err)
	}
	if c.VerifyLocally && !prog.Equal(randommath.Generate(height)) {
		return nil, fmt.Errorf("%w: height %d", ErrProgramMismatch, height)
	}
	return prog, nil
}
