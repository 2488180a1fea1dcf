package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/quic-go/quic-go"

	"github.com/eigerco/cnr/internal/crypto/ed25519"
	"github.com/eigerco/cnr/pkg/log"
)

// StreamTimeout defines the maximum duration of a single request stream
const StreamTimeout = 5 * time.Second

// streamErrorCode is sent to the peer when a handler fails
const streamErrorCode quic.StreamErrorCode = 1

// Conn represents a QUIC connection with a remote peer.
// It is cancelled together with its transport.
type Conn struct {
	QConn     quic.Connection
	transport *Transport
	peerKey   ed25519.PublicKey
	ctx       context.Context
	cancel    context.CancelFunc
}

func newConn(qConn quic.Connection, transport *Transport, peerKey ed25519.PublicKey) *Conn {
	ctx, cancel := context.WithCancel(transport.ctx)
	return &Conn{
		QConn:     qConn,
		transport: transport,
		peerKey:   peerKey,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// OpenStream opens a new bidirectional QUIC stream.
func (c *Conn) OpenStream(ctx context.Context) (quic.Stream, error) {
	stream, err := c.QConn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open QUIC stream: %w", err)
	}
	return stream, nil
}

// AcceptStream waits for the next stream opened by the peer.
func (c *Conn) AcceptStream() (quic.Stream, error) {
	stream, err := c.QConn.AcceptStream(c.ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to accept QUIC stream: %w", err)
	}
	return stream, nil
}

// PeerKey returns the public key from the peer's certificate.
func (c *Conn) PeerKey() ed25519.PublicKey {
	return c.peerKey
}

// Close closes the connection and cancels all associated streams.
func (c *Conn) Close() error {
	c.cancel()
	return c.QConn.CloseWithError(0, "")
}

// Context returns the connection's context, cancelled on Close.
func (c *Conn) Context() context.Context {
	return c.ctx
}

// serveStreams hands every incoming stream to handler until the connection
// goes away
func (c *Conn) serveStreams(handler StreamHandler) {
	defer c.transport.cleanup(c)
	for {
		stream, err := c.AcceptStream()
		if err != nil {
			log.Network.Debug().Err(err).Msg("connection stopped accepting streams")
			return
		}
		go func() {
			if err := handler.HandleStream(c.ctx, stream, c.peerKey); err != nil {
				log.Network.Warn().Err(err).Msg("stream handler failed")
				stream.CancelWrite(streamErrorCode)
			}
			stream.CancelRead(0)
		}()
	}
}
