package cert

import (
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base32"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/eigerco/cnr/internal/crypto/ed25519"
)

// DNSNamePrefix is prepended to the encoded public key in certificate DNS names
const DNSNamePrefix = "c"

// dnsNameLength prefix plus 52 base32 characters for a 32 byte key
const dnsNameLength = 53

// DefaultValidity is used when Config.CertValidityPeriod is zero
const DefaultValidity = 24 * time.Hour

var (
	ErrNotEd25519      = errors.New("certificate public key is not Ed25519")
	ErrSignatureAlgo   = errors.New("invalid signature algorithm: expected Ed25519")
	ErrDNSName         = errors.New("invalid certificate DNS name")
	ErrNotYetValid     = errors.New("certificate is not yet valid")
	ErrExpired         = errors.New("certificate has expired")
	ErrPrivateKeyInput = errors.New("invalid Ed25519 private key")
)

// base32Encoding lower case alphabet without padding, valid in DNS labels
var base32Encoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// Config contains the parameters needed for certificate generation.
type Config struct {
	// PrivateKey signs the certificate, its public half is embedded
	PrivateKey ed25519.PrivateKey
	// CertValidityPeriod defines how long the certificate remains valid
	CertValidityPeriod time.Duration
}

// Generator creates self signed TLS certificates that bind an Ed25519 key to
// a DNS name derived from it.
type Generator struct {
	config Config
}

func NewGenerator(config Config) *Generator {
	if config.CertValidityPeriod == 0 {
		config.CertValidityPeriod = DefaultValidity
	}
	return &Generator{config: config}
}

// GenerateCertificate creates a new self-signed certificate usable for both
// server and client authentication.
func (g *Generator) GenerateCertificate() (*tls.Certificate, error) {
	if len(g.config.PrivateKey) != ed25519.PrivateKeySize {
		return nil, ErrPrivateKeyInput
	}
	pubKey := g.config.PrivateKey.Public().(ed25519.PublicKey)
	dnsName := EncodePubKeyToDNS(pubKey)

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject:      pkix.Name{CommonName: dnsName},
		DNSNames:     []string{dnsName},
		NotBefore:    now,
		NotAfter:     now.Add(g.config.CertValidityPeriod),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageServerAuth,
			x509.ExtKeyUsageClientAuth,
		},
		SignatureAlgorithm:    x509.PureEd25519,
		PublicKeyAlgorithm:    x509.Ed25519,
		BasicConstraintsValid: true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, pubKey, g.config.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  g.config.PrivateKey,
		Leaf:        leaf,
	}, nil
}

// Validator checks peer certificates. It satisfies transport.CertValidator.
type Validator struct {
	now func() time.Time
}

func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// ValidateCertificate accepts Ed25519 certificates carrying exactly one DNS
// name that encodes their own public key, within the validity period.
func (v *Validator) ValidateCertificate(cert *x509.Certificate) error {
	if cert.SignatureAlgorithm != x509.PureEd25519 {
		return ErrSignatureAlgo
	}
	pubKey, err := v.ExtractPublicKey(cert)
	if err != nil {
		return err
	}

	if len(cert.DNSNames) != 1 {
		return fmt.Errorf("%w: expected exactly one, got %d", ErrDNSName, len(cert.DNSNames))
	}
	dnsName := cert.DNSNames[0]
	if len(dnsName) != dnsNameLength || !strings.HasPrefix(dnsName, DNSNamePrefix) {
		return fmt.Errorf("%w: %s (length: %d)", ErrDNSName, dnsName, len(dnsName))
	}
	if dnsName != EncodePubKeyToDNS(pubKey) {
		return fmt.Errorf("%w: does not match public key", ErrDNSName)
	}

	now := v.now()
	if now.Before(cert.NotBefore) {
		return ErrNotYetValid
	}
	if now.After(cert.NotAfter) {
		return ErrExpired
	}
	return nil
}

// ExtractPublicKey retrieves the Ed25519 public key from a certificate.
func (v *Validator) ExtractPublicKey(cert *x509.Certificate) (ed25519.PublicKey, error) {
	pubKey, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok {
		return nil, ErrNotEd25519
	}
	return pubKey, nil
}

// EncodePubKeyToDNS encodes an Ed25519 public key as DNSNamePrefix followed
// by its base32 form.
func EncodePubKeyToDNS(pubKey ed25519.PublicKey) string {
	return DNSNamePrefix + base32Encoding.EncodeToString(pubKey)
}
