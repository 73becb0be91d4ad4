// Package tlsconf derives deterministic TLS credentials from a passphrase so
// the daemon's TCP port can be encrypted without any PKI.
//
// Both sides derive the same Ed25519 key pair from the passphrase. The server
// presents a throwaway self-signed certificate for that key; clients ignore
// the chain and accept the connection only if the certificate's public key is
// the one they derived themselves. A wrong passphrase fails the handshake.
//
// Key derivation:
//
//	HKDF-SHA256(ikm=passphrase, salt="clipstash-tls-v1", info="ed25519-seed") → 32-byte seed
package tlsconf

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"golang.org/x/crypto/hkdf"
	"google.golang.org/grpc/credentials"
)

// DefaultPassphrase is used when TLS is on but no token is configured.
const DefaultPassphrase = "clipstash"

const serverName = "clipstash"

var errKeyMismatch = errors.New("tlsconf: server public key does not match passphrase")

// Credentials holds both halves of a passphrase-derived TLS setup.
type Credentials struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
	cert tls.Certificate
}

// New derives credentials from passphrase. An empty passphrase selects
// DefaultPassphrase.
func New(passphrase string) (*Credentials, error) {
	if passphrase == "" {
		passphrase = DefaultPassphrase
	}
	seed := make([]byte, ed25519.SeedSize)
	r := hkdf.New(sha256.New, []byte(passphrase), []byte("clipstash-tls-v1"), []byte("ed25519-seed"))
	if _, err := io.ReadFull(r, seed); err != nil {
		return nil, fmt.Errorf("tlsconf: derive key: %w", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	der, err := selfSigned(priv, pub)
	if err != nil {
		return nil, fmt.Errorf("tlsconf: cert: %w", err)
	}
	return &Credentials{
		priv: priv,
		pub:  pub,
		cert: tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv},
	}, nil
}

// Server returns the listener config. ALPN offers h2 and http/1.1 so gRPC
// and HTTP clients can share the listener ahead of cmux.
func (c *Credentials) Server() *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{c.cert},
		NextProtos:   []string{"h2", "http/1.1"},
		MinVersion:   tls.VersionTLS13,
	}
}

// Client returns gRPC transport credentials that pin the derived key.
func (c *Credentials) Client() credentials.TransportCredentials {
	return credentials.NewTLS(&tls.Config{
		// Chain verification is replaced by the public-key check below.
		InsecureSkipVerify:    true, //nolint:gosec
		ServerName:            serverName,
		MinVersion:            tls.VersionTLS13,
		VerifyPeerCertificate: c.verify,
	})
}

func (c *Credentials) verify(rawCerts [][]byte, _ [][]*x509.Certificate) error {
	if len(rawCerts) == 0 {
		return errors.New("tlsconf: server presented no certificate")
	}
	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return fmt.Errorf("tlsconf: parse server cert: %w", err)
	}
	pub, ok := cert.PublicKey.(ed25519.PublicKey)
	if !ok || !pub.Equal(c.pub) {
		return errKeyMismatch
	}
	return nil
}

// ClientCredentials is shorthand for New(passphrase) followed by Client.
func ClientCredentials(passphrase string) (credentials.TransportCredentials, error) {
	c, err := New(passphrase)
	if err != nil {
		return nil, err
	}
	return c.Client(), nil
}

// selfSigned issues a long-lived certificate for pub. Its contents beyond
// the key are irrelevant to clients.
func selfSigned(priv ed25519.PrivateKey, pub ed25519.PublicKey) ([]byte, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: serverName},
		DNSNames:              []string{serverName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	return x509.CreateCertificate(rand.Reader, tmpl, tmpl, pub, priv)
}
