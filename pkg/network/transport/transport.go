package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/quic-go/quic-go"

	"github.com/eigerco/cnr/internal/crypto/ed25519"
	"github.com/eigerco/cnr/pkg/log"
)

// ProtocolID is the only ALPN identifier spoken by the program service
const ProtocolID = "cnr/4"

// MaxIdleTimeout defines the maximum duration a connection can be idle before timing out
const MaxIdleTimeout = 5 * time.Minute

// DefaultDialRetries is used when Config.DialRetries is zero
const DefaultDialRetries = 3

// StreamHandler processes individual QUIC streams within a connection
type StreamHandler interface {
	HandleStream(ctx context.Context, stream quic.Stream, peerKey ed25519.PublicKey) error
}

// CertValidator performs TLS certificate validation and public key extraction
type CertValidator interface {
	// ValidateCertificate checks if a certificate meets required criteria
	ValidateCertificate(cert *x509.Certificate) error
	// ExtractPublicKey retrieves the Ed25519 public key from a certificate
	ExtractPublicKey(cert *x509.Certificate) (ed25519.PublicKey, error)
}

// Config contains all configuration parameters for a Transport
type Config struct {
	TLSCert       *tls.Certificate // TLS certificate, also presented when dialing
	ListenAddr    string           // Address to listen on, empty for dial only transports
	CertValidator CertValidator    // Peer certificate validator
	Handler       StreamHandler    // Serves incoming streams, may be nil when not listening
	DialRetries   uint64           // Dial attempts after the first one
	// NewBackOff overrides the exponential backoff between dial attempts
	NewBackOff func() backoff.BackOff
}

// Transport manages QUIC connections and their lifecycles
type Transport struct {
	config   Config
	listener *quic.Listener
	mu       sync.RWMutex
	conns    map[string]*Conn // Active connections mapped by peer key
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{} // closed when the accept loop exits
}

// NewTransport creates and configures a new transport instance.
func NewTransport(config Config) (*Transport, error) {
	if config.TLSCert == nil {
		return nil, fmt.Errorf("TLS certificate required")
	}
	if config.CertValidator == nil {
		return nil, fmt.Errorf("certificate validator required")
	}
	if config.ListenAddr != "" && config.Handler == nil {
		return nil, fmt.Errorf("stream handler required")
	}
	if err := config.CertValidator.ValidateCertificate(config.TLSCert.Leaf); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	if config.DialRetries == 0 {
		config.DialRetries = DefaultDialRetries
	}
	if config.NewBackOff == nil {
		config.NewBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 100 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Transport{
		config: config,
		conns:  make(map[string]*Conn),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

func (t *Transport) quicConfig() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  MaxIdleTimeout,
		KeepAlivePeriod: MaxIdleTimeout / 2,
	}
}

func (t *Transport) verifyPeer(certs []*x509.Certificate) error {
	if len(certs) == 0 {
		return fmt.Errorf("%w: no peer certificate provided", ErrInvalidCertificate)
	}
	if err := t.config.CertValidator.ValidateCertificate(certs[0]); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
	}
	return nil
}

// Start begins listening on Config.ListenAddr and accepting connections.
func (t *Transport) Start() error {
	tlsConfig := &tls.Config{
		Certificates:       []tls.Certificate{*t.config.TLSCert},
		NextProtos:         []string{ProtocolID},
		ClientAuth:         tls.RequireAnyClientCert,
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true,
		VerifyConnection: func(cs tls.ConnectionState) error {
			return t.verifyPeer(cs.PeerCertificates)
		},
	}

	listener, err := quic.ListenAddr(t.config.ListenAddr, tlsConfig, t.quicConfig())
	if err != nil {
		return fmt.Errorf("%w: %w", ErrListenerFailed, err)
	}

	t.listener = listener
	t.done = make(chan struct{})
	go func() {
		t.acceptLoop()
		close(t.done)
	}()
	log.Network.Info().Str("addr", listener.Addr().String()).Msg("listening")
	return nil
}

// Addr returns the listening address, nil before Start
func (t *Transport) Addr() net.Addr {
	if t.listener == nil {
		return nil
	}
	return t.listener.Addr()
}

// Stop shuts down the transport and all active connections.
// Waits for the accept loop to finish before returning.
func (t *Transport) Stop() error {
	t.cancel()

	t.mu.Lock()
	for _, conn := range t.conns {
		if err := conn.Close(); err != nil {
			log.Network.Debug().Err(err).Msg("failed to close connection")
		}
	}
	t.conns = make(map[string]*Conn)
	t.mu.Unlock()

	if t.listener != nil {
		if err := t.listener.Close(); err != nil {
			return fmt.Errorf("failed to close listener: %w", err)
		}
		<-t.done
	}
	return nil
}

// Connect dials a remote peer, retrying with exponential backoff until
// DialRetries attempts failed or ctx is done.
func (t *Transport) Connect(ctx context.Context, addr string) (*Conn, error) {
	tlsConf := &tls.Config{
		Certificates:       []tls.Certificate{*t.config.TLSCert},
		NextProtos:         []string{ProtocolID},
		MinVersion:         tls.VersionTLS13,
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			certs := make([]*x509.Certificate, 0, len(rawCerts))
			for _, raw := range rawCerts {
				c, err := x509.ParseCertificate(raw)
				if err != nil {
					return fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
				}
				certs = append(certs, c)
			}
			return t.verifyPeer(certs)
		},
	}

	var qConn quic.Connection
	attempt := 0
	dial := func() error {
		attempt++
		c, err := quic.DialAddr(ctx, addr, tlsConf, t.quicConfig())
		if err != nil {
			if errors.Is(err, ErrInvalidCertificate) {
				return backoff.Permanent(err)
			}
			return err
		}
		qConn = c
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(t.config.NewBackOff(), t.config.DialRetries), ctx)
	notify := func(err error, wait time.Duration) {
		log.Network.Debug().Err(err).Str("addr", addr).Int("attempt", attempt).Dur("wait", wait).Msg("dial failed, retrying")
	}
	if err := backoff.RetryNotify(dial, policy, notify); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDialFailed, addr, err)
	}

	conn := t.handleConnection(qConn)
	if conn == nil {
		return nil, ErrConnFailed
	}
	return conn, nil
}

// ListConnections returns a slice of all active connections.
func (t *Transport) ListConnections() []*Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	conns := make([]*Conn, 0, len(t.conns))
	for _, conn := range t.conns {
		conns = append(conns, conn)
	}
	return conns
}

func (t *Transport) acceptLoop() {
	for {
		qConn, err := t.listener.Accept(t.ctx)
		if err != nil {
			if t.ctx.Err() != nil {
				return
			}
			log.Network.Warn().Err(err).Msg("failed to accept connection")
			continue
		}
		go t.handleConnection(qConn)
	}
}

// handleConnection registers a fresh QUIC connection under its peer key and
// starts serving its streams when a handler is configured
func (t *Transport) handleConnection(qConn quic.Connection) *Conn {
	certs := qConn.ConnectionState().TLS.PeerCertificates
	if len(certs) == 0 {
		_ = qConn.CloseWithError(0, ErrInvalidCertificate.Error())
		return nil
	}
	peerKey, err := t.config.CertValidator.ExtractPublicKey(certs[0])
	if err != nil {
		log.Network.Warn().Err(err).Msg("failed to extract peer key")
		_ = qConn.CloseWithError(0, fmt.Sprintf("%s: %v", ErrInvalidCertificate, err))
		return nil
	}

	conn := newConn(qConn, t, peerKey)

	t.mu.Lock()
	if existing, ok := t.conns[string(peerKey)]; ok {
		log.Network.Debug().Hex("peer", peerKey).Msg("replacing existing connection")
		if err := existing.Close(); err != nil {
			log.Network.Debug().Err(err).Msg("failed to close existing connection")
		}
	}
	t.conns[string(peerKey)] = conn
	t.mu.Unlock()

	if t.config.Handler != nil {
		go conn.serveStreams(t.config.Handler)
	}
	return conn
}

// cleanup removes conn from the map unless it was already replaced
func (t *Transport) cleanup(conn *Conn) {
	t.mu.Lock()
	if t.conns[string(conn.peerKey)] == conn {
		delete(t.conns, string(conn.peerKey))
	}
	t.mu.Unlock()
}
