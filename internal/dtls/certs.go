package dtls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"hash"
	"math/big"
	"time"

	"github.com/pkg/errors"
)

// Certificate is a self-signed identity used for DTLS mutual authentication.
// WebRTC-class DTLS-SRTP never validates certificates against a CA; instead
// the remote party verifies a fingerprint carried out-of-band in the SDP
// offer/answer (RFC 8122), so every peer simply mints its own.
type Certificate struct {
	PrivateKey *ecdsa.PrivateKey
	DER        []byte
}

// GenerateSelfSignedCertificate creates a fresh ECDSA P-256 self-signed
// certificate, valid for one year, suitable for use as a DTLS identity.
func GenerateSelfSignedCertificate(commonName string) (*Certificate, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "dtls: generate certificate key")
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, errors.Wrap(err, "dtls: generate certificate serial")
	}

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(1, 0, 0),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &priv.PublicKey, priv)
	if err != nil {
		return nil, errors.Wrap(err, "dtls: create certificate")
	}

	return &Certificate{PrivateKey: priv, DER: der}, nil
}

// FingerprintAlgorithm identifies a hash algorithm used to compute a
// certificate fingerprint for SDP's a=fingerprint attribute (RFC 8122).
type FingerprintAlgorithm string

const (
	FingerprintSHA1   FingerprintAlgorithm = "sha-1"
	FingerprintSHA224 FingerprintAlgorithm = "sha-224"
	FingerprintSHA256 FingerprintAlgorithm = "sha-256"
	FingerprintSHA384 FingerprintAlgorithm = "sha-384"
	FingerprintSHA512 FingerprintAlgorithm = "sha-512"
)

var fingerprintHashes = map[FingerprintAlgorithm]func() hash.Hash{
	FingerprintSHA1:   sha1.New,
	FingerprintSHA224: sha256.New224,
	FingerprintSHA256: sha256.New,
	FingerprintSHA384: sha512.New384,
	FingerprintSHA512: sha512.New,
}

// Fingerprint computes the colon-separated uppercase-hex fingerprint of a
// DER certificate under the named algorithm, formatted as it appears in an
// SDP a=fingerprint line.
func Fingerprint(der []byte, algo FingerprintAlgorithm) (string, error) {
	newHash, ok := fingerprintHashes[algo]
	if !ok {
		return "", errors.Errorf("dtls: unsupported fingerprint algorithm %q", algo)
	}
	h := newHash()
	h.Write(der)
	sum := h.Sum(nil)

	out := make([]byte, 0, len(sum)*3-1)
	for i, b := range sum {
		if i > 0 {
			out = append(out, ':')
		}
		out = append(out, []byte(fmt.Sprintf("%02X", b))...)
	}
	return string(out), nil
}

// VerifyFingerprint reports whether der's fingerprint under algo matches
// expected (case-insensitively, ignoring the representation's separators).
func VerifyFingerprint(der []byte, algo FingerprintAlgorithm, expected string) (bool, error) {
	got, err := Fingerprint(der, algo)
	if err != nil {
		return false, err
	}
	return normalizeFingerprint(got) == normalizeFingerprint(expected), nil
}

func normalizeFingerprint(s string) string {
	out := make([]byte, 0, len(s))
	for _, c := range []byte(s) {
		if c == ':' {
			continue
		}
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}
