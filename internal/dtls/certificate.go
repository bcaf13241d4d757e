package dtls

import (
	"crypto/x509"

	"golang.org/x/crypto/cryptobyte"
	"github.com/pkg/errors"
)

// certificateMessage carries a chain of DER-encoded certificates, per
// RFC 5246 Section 7.4.2. WebRTC-class DTLS uses self-signed certificates,
// so the chain is always a single entry.
type certificateMessage struct {
	certificates [][]byte // DER
}

func (c *certificateMessage) marshal() []byte {
	var b cryptobyte.Builder
	b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, der := range c.certificates {
			b.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(der)
			})
		}
	})
	return b.BytesOrPanic()
}

func parseCertificateMessage(body []byte) (certificateMessage, error) {
	var cm certificateMessage
	s := cryptobyte.String(body)
	var chain cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&chain) {
		return cm, errors.New("dtls: malformed Certificate message")
	}
	for !chain.Empty() {
		var der cryptobyte.String
		if !chain.ReadUint24LengthPrefixed(&der) {
			return cm, errors.New("dtls: malformed Certificate message: entry")
		}
		cm.certificates = append(cm.certificates, append([]byte(nil), der...))
	}
	return cm, nil
}

// leaf parses and returns the first certificate in the chain.
func (c *certificateMessage) leaf() (*x509.Certificate, error) {
	if len(c.certificates) == 0 {
		return nil, errors.New("dtls: empty certificate chain")
	}
	return x509.ParseCertificate(c.certificates[0])
}
