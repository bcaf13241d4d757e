package dtls

import (
	"golang.org/x/crypto/cryptobyte"
	"github.com/pkg/errors"
)

// namedCurveSecp256r1 (P-256) is the only curve this engine offers and accepts, per
// RFC 8422 (and the curve_type=named_curve encoding of RFC 4492).
const (
	curveTypeNamedCurve uint8  = 3
	namedCurveSecp256r1 uint16 = 23
)

// serverKeyExchange carries the server's ephemeral ECDHE public key and a
// signature over (client_random || server_random || ECDH params), per
// RFC 4492 Section 5.4.
type serverKeyExchange struct {
	curve           uint16
	publicKey       []byte
	signatureScheme uint16
	signature       []byte
}

func (m *serverKeyExchange) paramBytes() []byte {
	var b cryptobyte.Builder
	b.AddUint8(curveTypeNamedCurve)
	b.AddUint16(m.curve)
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.publicKey) })
	return b.BytesOrPanic()
}

func (m *serverKeyExchange) marshal() []byte {
	var b cryptobyte.Builder
	b.AddBytes(m.paramBytes())
	b.AddUint16(m.signatureScheme)
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.signature) })
	return b.BytesOrPanic()
}

func parseServerKeyExchange(body []byte) (serverKeyExchange, error) {
	var m serverKeyExchange
	s := cryptobyte.String(body)

	var curveType uint8
	if !s.ReadUint8(&curveType) || curveType != curveTypeNamedCurve {
		return m, errors.New("dtls: unsupported ECDHE curve_type")
	}
	if !s.ReadUint16(&m.curve) {
		return m, errors.New("dtls: malformed ServerKeyExchange: curve")
	}
	pub, ok := readLP8(&s)
	if !ok {
		return m, errors.New("dtls: malformed ServerKeyExchange: public key")
	}
	m.publicKey = pub

	if !s.ReadUint16(&m.signatureScheme) {
		return m, errors.New("dtls: malformed ServerKeyExchange: signature_scheme")
	}
	var sig cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&sig) {
		return m, errors.New("dtls: malformed ServerKeyExchange: signature")
	}
	m.signature = append([]byte(nil), sig...)
	return m, nil
}

// clientKeyExchange carries the client's ephemeral ECDHE public key, per
// RFC 4492 Section 5.7. The client side of this exchange never signs its
// key (signature-free ECDHE_anon-style client auth is not used here; the
// server authenticates via its certificate/ServerKeyExchange signature
// instead, matching WebRTC's DTLS-SRTP usage).
type clientKeyExchange struct {
	publicKey []byte
}

func (m *clientKeyExchange) marshal() []byte {
	var b cryptobyte.Builder
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(m.publicKey) })
	return b.BytesOrPanic()
}

func parseClientKeyExchange(body []byte) (clientKeyExchange, error) {
	var m clientKeyExchange
	s := cryptobyte.String(body)
	pub, ok := readLP8(&s)
	if !ok {
		return m, errors.New("dtls: malformed ClientKeyExchange")
	}
	m.publicKey = pub
	return m, nil
}
