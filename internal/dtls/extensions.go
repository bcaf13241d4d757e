package dtls

import (
	"golang.org/x/crypto/cryptobyte"
	"github.com/pkg/errors"
)

// ExtensionType identifies a DTLS/TLS hello extension.
type ExtensionType uint16

const (
	ExtensionSignatureAlgorithms  ExtensionType = 13
	ExtensionUseSRTP              ExtensionType = 14
	ExtensionSupportedGroups      ExtensionType = 10
	ExtensionExtendedMasterSecret ExtensionType = 23
)

// SRTPProtectionProfile identifies a negotiated SRTP cipher/auth suite, per
// the IANA registry established by RFC 5764 Section 4.1.2.
type SRTPProtectionProfile uint16

const (
	SRTP_AES128_CM_HMAC_SHA1_80 SRTPProtectionProfile = 0x0001
	SRTP_AES128_CM_HMAC_SHA1_32 SRTPProtectionProfile = 0x0002
	SRTP_NULL_HMAC_SHA1_80      SRTPProtectionProfile = 0x0005
	SRTP_NULL_HMAC_SHA1_32      SRTPProtectionProfile = 0x0006
)

// offeredExtensions is the set of extensions this engine includes in every
// ClientHello and, when it acts as a DTLS server, expects to find on the
// ClientHello it receives.
type offeredExtensions struct {
	srtpProfiles          []SRTPProtectionProfile
	supportedGroups       []uint16 // named curve IDs, RFC 8422
	signatureAlgorithms   []uint16 // (hash, signature) pairs packed per RFC 5246 7.4.1.4.1
	extendedMasterSecret  bool
}

// marshalExtensions serializes the extensions block of a ClientHello or
// ServerHello (the part after compression methods / after cipher suite).
func marshalExtensions(ext offeredExtensions, isServerHello bool) []byte {
	var b cryptobyte.Builder
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		if len(ext.srtpProfiles) > 0 {
			addExtension(b, ExtensionUseSRTP, func(b *cryptobyte.Builder) {
				b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
					for _, p := range ext.srtpProfiles {
						b.AddUint16(uint16(p))
					}
				})
				b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {}) // empty MKI
			})
		}
		if ext.extendedMasterSecret {
			addExtension(b, ExtensionExtendedMasterSecret, func(b *cryptobyte.Builder) {})
		}
		if !isServerHello {
			if len(ext.supportedGroups) > 0 {
				addExtension(b, ExtensionSupportedGroups, func(b *cryptobyte.Builder) {
					b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
						for _, g := range ext.supportedGroups {
							b.AddUint16(g)
						}
					})
				})
			}
			if len(ext.signatureAlgorithms) > 0 {
				addExtension(b, ExtensionSignatureAlgorithms, func(b *cryptobyte.Builder) {
					b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
						for _, sa := range ext.signatureAlgorithms {
							b.AddUint16(sa)
						}
					})
				})
			}
		}
	})
	return b.BytesOrPanic()
}

func addExtension(b *cryptobyte.Builder, t ExtensionType, body func(*cryptobyte.Builder)) {
	b.AddUint16(uint16(t))
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		body(b)
	})
}

// parsedExtensions is the result of parsing a peer's extensions block.
type parsedExtensions struct {
	srtpProfiles         []SRTPProtectionProfile
	extendedMasterSecret bool
	supportedGroups      []uint16
	signatureAlgorithms  []uint16
}

func parseExtensions(raw []byte) (parsedExtensions, error) {
	var out parsedExtensions
	if len(raw) == 0 {
		return out, nil
	}
	in := cryptobyte.String(raw)
	var s cryptobyte.String
	if !in.ReadUint16LengthPrefixed(&s) || !in.Empty() {
		return out, errors.New("dtls: malformed extensions block")
	}
	for !s.Empty() {
		var (
			extType uint16
			body    cryptobyte.String
		)
		if !s.ReadUint16(&extType) || !s.ReadUint16LengthPrefixed(&body) {
			return out, errors.New("dtls: malformed extension")
		}
		switch ExtensionType(extType) {
		case ExtensionUseSRTP:
			var profiles cryptobyte.String
			if !body.ReadUint16LengthPrefixed(&profiles) {
				return out, errors.New("dtls: malformed use_srtp extension")
			}
			for !profiles.Empty() {
				var p uint16
				if !profiles.ReadUint16(&p) {
					return out, errors.New("dtls: malformed use_srtp profile list")
				}
				out.srtpProfiles = append(out.srtpProfiles, SRTPProtectionProfile(p))
			}
		case ExtensionExtendedMasterSecret:
			out.extendedMasterSecret = true
		case ExtensionSupportedGroups:
			var groups cryptobyte.String
			if !body.ReadUint16LengthPrefixed(&groups) {
				return out, errors.New("dtls: malformed supported_groups extension")
			}
			for !groups.Empty() {
				var g uint16
				if !groups.ReadUint16(&g) {
					return out, errors.New("dtls: malformed supported_groups list")
				}
				out.supportedGroups = append(out.supportedGroups, g)
			}
		case ExtensionSignatureAlgorithms:
			var algos cryptobyte.String
			if !body.ReadUint16LengthPrefixed(&algos) {
				return out, errors.New("dtls: malformed signature_algorithms extension")
			}
			for !algos.Empty() {
				var a uint16
				if !algos.ReadUint16(&a) {
					return out, errors.New("dtls: malformed signature_algorithms list")
				}
				out.signatureAlgorithms = append(out.signatureAlgorithms, a)
			}
		default:
			// Unknown extension; ignore its body.
		}
	}
	return out, nil
}

// NegotiateSRTPProfile picks the first profile in local, in local's order,
// that also appears in peer. No profile is preferred beyond that order.
func NegotiateSRTPProfile(local, peer []SRTPProtectionProfile) (SRTPProtectionProfile, bool) {
	for _, l := range local {
		for _, p := range peer {
			if l == p {
				return l, true
			}
		}
	}
	return 0, false
}
