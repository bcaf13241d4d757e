// Package srtp implements the Secure RTP/RTCP key derivation and packet
// transform defined in RFC 3711, decoupled from any particular transport or
// RTP framing library: callers hand it whole serialized RTP/RTCP packets
// (e.g. produced by internal/rtp) and get back protected or recovered bytes.
package srtp

import (
	"github.com/lanikai/ng911core/internal/logging"
)

var log = logging.New("srtp")

// Policy describes the cipher and authentication parameters negotiated for
// a single SRTP/SRTCP crypto suite. RTP and RTCP use the same cipher and
// auth algorithm, but (per RFC 3711 Section 8.2, Table 3) can specify
// different authentication tag lengths, hence the separate RTP/RTCP fields.
type Policy struct {
	Cipher Cipher
	Auth   Auth

	CipherKeyLen  int
	CipherSaltLen int
	AuthKeyLen    int

	// RTPAuthTagLen and RTCPAuthTagLen let a profile shorten (or, for NULL
	// auth, zero) the tag independently for the two packet types.
	RTPAuthTagLen  int
	RTCPAuthTagLen int

	// ReplayWindowSize is the number of trailing sequence numbers considered
	// for replay detection. RFC 3711 Section 3.3.2 recommends 64.
	ReplayWindowSize uint64
}

// Cipher identifies the confidentiality transform.
type Cipher int

const (
	CipherAESCM Cipher = iota // RFC 3711 Section 4.1.1, the default
	CipherNull                // RFC 3711 Section 4.1.3
)

// Auth identifies the message-authentication transform.
type Auth int

const (
	AuthHMACSHA1 Auth = iota // RFC 3711 Section 4.2, the default
	AuthNull
)

// DefaultPolicy returns the mandatory-to-implement SRTP profile:
// AES_CM_128_HMAC_SHA1_80 for RTP, AES_CM_128_HMAC_SHA1_80 for RTCP.
// See https://tools.ietf.org/html/rfc3711#section-8.2
func DefaultPolicy() Policy {
	return Policy{
		Cipher:           CipherAESCM,
		Auth:             AuthHMACSHA1,
		CipherKeyLen:     16,
		CipherSaltLen:    14,
		AuthKeyLen:       20,
		RTPAuthTagLen:    10,
		RTCPAuthTagLen:   10,
		ReplayWindowSize: 64,
	}
}

// NullPolicy returns a profile with no confidentiality (NULL cipher) that
// keeps the default HMAC-SHA1 authentication with 10-byte tags, used only
// for testing and for DTLS-SRTP negotiations that explicitly pin
// SRTP_NULL_HMAC_SHA1_80/32 for debugging.
func NullPolicy() Policy {
	p := DefaultPolicy()
	p.Cipher = CipherNull
	return p
}
