package dtls

import (
	"golang.org/x/crypto/cryptobyte"
	"github.com/pkg/errors"
)

// CipherSuite identifies the key-exchange/cipher/hash combination used for
// the handshake itself. This engine only negotiates the one suite every
// WebRTC-class DTLS stack is required to support.
type CipherSuite uint16

const (
	TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256 CipherSuite = 0xc02b
)

// compressionMethod is always "null" for DTLS.
type compressionMethod uint8

const compressionMethodNull compressionMethod = 0

// random is the 32-byte client/server random exchanged in Hello messages,
// per RFC 5246 Section 7.4.1.2. gmtUnixTime is folded into the 32 bytes on
// the wire (the first 4 bytes); it is not transmitted separately.
type random [32]byte

type clientHello struct {
	version            [2]byte
	random             random
	sessionID          []byte
	cookie             []byte // DTLS-only: echoes HelloVerifyRequest's cookie
	cipherSuites       []CipherSuite
	compressionMethods []compressionMethod
	extensions         offeredExtensions
}

func (c *clientHello) marshal() []byte {
	var b cryptobyte.Builder
	b.AddBytes(c.version[:])
	b.AddBytes(c.random[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(c.sessionID) })
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(c.cookie) })
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, cs := range c.cipherSuites {
			b.AddUint16(uint16(cs))
		}
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, cm := range c.compressionMethods {
			b.AddUint8(uint8(cm))
		}
	})
	b.AddBytes(marshalExtensions(c.extensions, false))
	return b.BytesOrPanic()
}

// readLP8 reads a uint8-length-prefixed byte string and copies it out of s.
func readLP8(s *cryptobyte.String) ([]byte, bool) {
	var lp cryptobyte.String
	if !s.ReadUint8LengthPrefixed(&lp) {
		return nil, false
	}
	return append([]byte(nil), lp...), true
}

func parseClientHello(body []byte) (clientHello, error) {
	var ch clientHello
	s := cryptobyte.String(body)

	var ver, rnd []byte
	if !s.ReadBytes(&ver, 2) {
		return ch, errors.New("dtls: malformed ClientHello: version")
	}
	if !s.ReadBytes(&rnd, 32) {
		return ch, errors.New("dtls: malformed ClientHello: random")
	}
	copy(ch.version[:], ver)
	copy(ch.random[:], rnd)

	sessionID, ok := readLP8(&s)
	if !ok {
		return ch, errors.New("dtls: malformed ClientHello: session_id")
	}
	ch.sessionID = sessionID

	cookie, ok := readLP8(&s)
	if !ok {
		return ch, errors.New("dtls: malformed ClientHello: cookie")
	}
	ch.cookie = cookie

	var suites cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&suites) {
		return ch, errors.New("dtls: malformed ClientHello: cipher_suites")
	}
	for !suites.Empty() {
		var cs uint16
		if !suites.ReadUint16(&cs) {
			return ch, errors.New("dtls: malformed ClientHello: cipher_suites list")
		}
		ch.cipherSuites = append(ch.cipherSuites, CipherSuite(cs))
	}

	compressions, ok := readLP8(&s)
	if !ok {
		return ch, errors.New("dtls: malformed ClientHello: compression_methods")
	}
	for _, cm := range compressions {
		ch.compressionMethods = append(ch.compressionMethods, compressionMethod(cm))
	}

	parsed, err := parseExtensions(s)
	if err != nil {
		return ch, errors.Wrap(err, "dtls: ClientHello extensions")
	}
	ch.extensions = offeredExtensions{
		srtpProfiles:         parsed.srtpProfiles,
		supportedGroups:      parsed.supportedGroups,
		signatureAlgorithms:  parsed.signatureAlgorithms,
		extendedMasterSecret: parsed.extendedMasterSecret,
	}
	return ch, nil
}

type serverHello struct {
	version           [2]byte
	random            random
	sessionID         []byte
	cipherSuite       CipherSuite
	compressionMethod compressionMethod
	extensions        offeredExtensions
}

func (s *serverHello) marshal() []byte {
	var b cryptobyte.Builder
	b.AddBytes(s.version[:])
	b.AddBytes(s.random[:])
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) { b.AddBytes(s.sessionID) })
	b.AddUint16(uint16(s.cipherSuite))
	b.AddUint8(uint8(s.compressionMethod))
	b.AddBytes(marshalExtensions(s.extensions, true))
	return b.BytesOrPanic()
}

func parseServerHello(body []byte) (serverHello, error) {
	var sh serverHello
	s := cryptobyte.String(body)

	var ver, rnd []byte
	if !s.ReadBytes(&ver, 2) || !s.ReadBytes(&rnd, 32) {
		return sh, errors.New("dtls: malformed ServerHello")
	}
	copy(sh.version[:], ver)
	copy(sh.random[:], rnd)

	sessionID, ok := readLP8(&s)
	if !ok {
		return sh, errors.New("dtls: malformed ServerHello: session_id")
	}
	sh.sessionID = sessionID

	var cs uint16
	var cm uint8
	if !s.ReadUint16(&cs) || !s.ReadUint8(&cm) {
		return sh, errors.New("dtls: malformed ServerHello: cipher_suite/compression")
	}
	sh.cipherSuite = CipherSuite(cs)
	sh.compressionMethod = compressionMethod(cm)

	if !s.Empty() {
		parsed, err := parseExtensions(s)
		if err != nil {
			return sh, errors.Wrap(err, "dtls: ServerHello extensions")
		}
		sh.extensions = offeredExtensions{
			srtpProfiles:         parsed.srtpProfiles,
			extendedMasterSecret: parsed.extendedMasterSecret,
		}
	}
	return sh, nil
}
