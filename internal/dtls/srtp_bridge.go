package dtls

import (
	"github.com/pkg/errors"

	"github.com/lanikai/ng911core/internal/srtp"
)

// PolicyForProfile maps a negotiated SRTP protection profile to the
// internal/srtp policy that implements it.
func PolicyForProfile(profile SRTPProtectionProfile) (srtp.Policy, error) {
	switch profile {
	case SRTP_AES128_CM_HMAC_SHA1_80:
		p := srtp.DefaultPolicy()
		p.RTPAuthTagLen, p.RTCPAuthTagLen = 10, 10
		return p, nil
	case SRTP_AES128_CM_HMAC_SHA1_32:
		p := srtp.DefaultPolicy()
		p.RTPAuthTagLen, p.RTCPAuthTagLen = 4, 4
		return p, nil
	case SRTP_NULL_HMAC_SHA1_80:
		p := srtp.NullPolicy()
		p.RTPAuthTagLen, p.RTCPAuthTagLen = 10, 10
		return p, nil
	case SRTP_NULL_HMAC_SHA1_32:
		p := srtp.NullPolicy()
		p.RTPAuthTagLen, p.RTCPAuthTagLen = 4, 4
		return p, nil
	default:
		return srtp.Policy{}, errors.Errorf("dtls: unsupported SRTP protection profile %#04x", profile)
	}
}

// SRTPKeyingMaterial exports and splits the keying material for the
// negotiated SRTP profile, ready to build an *srtp.Context for each
// direction of the media session.
func (p *Peer) SRTPKeyingMaterial() (srtp.Policy, srtp.ExportedKeyingMaterial, error) {
	policy, err := PolicyForProfile(p.negotiatedProfile)
	if err != nil {
		return srtp.Policy{}, srtp.ExportedKeyingMaterial{}, err
	}

	material := p.ExportKeyingMaterial(2 * (policy.CipherKeyLen + policy.CipherSaltLen))
	split, err := srtp.SplitKeyingMaterial(material, policy.CipherKeyLen, policy.CipherSaltLen)
	if err != nil {
		return srtp.Policy{}, srtp.ExportedKeyingMaterial{}, err
	}
	return policy, split, nil
}

// IsClient reports whether this Peer initiated the handshake.
func (p *Peer) IsClient() bool { return p.config.IsClient }
