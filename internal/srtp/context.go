package srtp

import (
	"encoding/binary"

	"github.com/pion/transport/v3/replaydetector"
)

// RFC 3711 default key management parameters.
const (
	// maxSRTPIndex is the largest representable 48-bit SRTP packet index
	// (ROC*2^16 + SEQ).
	maxSRTPIndex = 1<<48 - 1

	// maxSRTCPIndex is the largest representable 31-bit SRTCP index.
	maxSRTCPIndex = 1<<31 - 1

	// eFlagMask is the encryption flag combined with the SRTCP index.
	// See https://tools.ietf.org/html/rfc3711#section-3.4
	eFlagMask = 1 << 31
)

// Context holds the unidirectional cryptographic state of one session
// direction: the derived session keys, plus rollover-counter tracking and
// replay detection kept per SSRC.
// A DTLS-SRTP peer keeps two contexts per media stream (inbound/outbound),
// built from the two halves of the exported keying material.
type Context struct {
	policy Policy
	keys   sessionKeys

	encryptRTP  keystreamFunc
	encryptRTCP keystreamFunc
	authRTP     macFunc
	authRTCP    macFunc

	roc map[uint32]*rocTracker

	// rtcpSendIndex tracks the next outgoing SRTCP index per SSRC. It is
	// independent of roc: RTP and RTCP for the same SSRC have unrelated
	// index spaces (a 48-bit extended sequence number vs. a 31-bit
	// monotonic packet counter), even though both are keyed by SSRC.
	rtcpSendIndex map[uint32]uint64

	rtpReplay  map[uint32]replaydetector.ReplayDetector
	rtcpReplay map[uint32]replaydetector.ReplayDetector
}

// NewContext derives session keys from the given master key/salt pair and
// prepares an empty per-SSRC replay/rollover table.
func NewContext(policy Policy, masterKey, masterSalt []byte) *Context {
	keys := deriveSessionKeys(policy, masterKey, masterSalt)
	return &Context{
		policy:      policy,
		keys:        keys,
		encryptRTP:  newKeystream(policy.Cipher, keys.srtpEncrypt, keys.srtpSalt),
		encryptRTCP: newKeystream(policy.Cipher, keys.srtcpEncrypt, keys.srtcpSalt),
		authRTP:     newMAC(policy.Auth, keys.srtpAuth, policy.RTPAuthTagLen),
		authRTCP:    newMAC(policy.Auth, keys.srtcpAuth, policy.RTCPAuthTagLen),
		roc:           make(map[uint32]*rocTracker),
		rtcpSendIndex: make(map[uint32]uint64),
		rtpReplay:     make(map[uint32]replaydetector.ReplayDetector),
		rtcpReplay:    make(map[uint32]replaydetector.ReplayDetector),
	}
}

func (c *Context) rocFor(ssrc uint32) *rocTracker {
	t, ok := c.roc[ssrc]
	if !ok {
		t = new(rocTracker)
		c.roc[ssrc] = t
	}
	return t
}

func (c *Context) rtpReplayFor(ssrc uint32) replaydetector.ReplayDetector {
	d, ok := c.rtpReplay[ssrc]
	if !ok {
		d = replaydetector.New(c.policy.ReplayWindowSize, maxSRTPIndex)
		c.rtpReplay[ssrc] = d
	}
	return d
}

func (c *Context) rtcpReplayFor(ssrc uint32) replaydetector.ReplayDetector {
	d, ok := c.rtcpReplay[ssrc]
	if !ok {
		d = replaydetector.New(c.policy.ReplayWindowSize, maxSRTCPIndex)
		c.rtcpReplay[ssrc] = d
	}
	return d
}

// ProtectRTP encrypts and authenticates a serialized RTP packet in place,
// appending the auth tag, and returns the protected packet. headerLen must be
// the length in bytes of the fixed+CSRC RTP header (i.e. the payload
// offset); ssrc and sequence come from the packet's own header fields.
// See https://tools.ietf.org/html/rfc3711#section-3.1
func (c *Context) ProtectRTP(packet []byte, headerLen int, ssrc uint32, sequence uint16) ([]byte, error) {
	if headerLen > len(packet) {
		return nil, newError(ErrShortPacket, "srtp: header length %d exceeds packet size %d", headerLen, len(packet))
	}

	roc := c.rocFor(ssrc)
	index := roc.index(sequence)
	roc.advance(sequence)

	c.encryptRTP(packet[headerLen:], ssrc, index&0xffffffffffff)

	out := appendUint32(packet, uint32(index>>16))
	tag := c.authRTP(out)
	out = out[:len(out)-4] // drop the scratch ROC bytes we appended for the MAC
	return append(out, tag...), nil
}

// UnprotectRTP verifies the auth tag of an SRTP packet, decrypts the
// payload in place, and returns the plaintext payload (aliasing packet).
func (c *Context) UnprotectRTP(packet []byte, headerLen int, ssrc uint32, sequence uint16) ([]byte, error) {
	tagLen := c.policy.RTPAuthTagLen
	if len(packet) < headerLen+tagLen {
		return nil, newError(ErrShortPacket, "srtp: packet too short: %d bytes", len(packet))
	}

	roc := c.rocFor(ssrc)
	index := roc.index(sequence)

	if tagLen > 0 {
		body := packet[:len(packet)-tagLen]
		tag := packet[len(packet)-tagLen:]
		expected := c.authRTP(appendUint32(body, uint32(index>>16)))
		if !hmacEqual(tag, expected) {
			return nil, newError(ErrAuthFailed, "srtp: RTP authentication failed for ssrc=%08x seq=%d", ssrc, sequence)
		}
	}

	replay := c.rtpReplayFor(ssrc)
	accept, ok := replay.Check(index)
	if !ok {
		return nil, newError(ErrReplay, "srtp: replayed RTP packet: ssrc=%08x seq=%d", ssrc, sequence)
	}

	payload := packet[headerLen : len(packet)-tagLen]
	c.encryptRTP(payload, ssrc, index&0xffffffffffff)

	roc.advance(sequence)
	accept()
	return payload, nil
}

// ProtectRTCP encrypts and authenticates a serialized RTCP compound packet
// in place, appending the E flag || SRTCP index and auth tag.
// See https://tools.ietf.org/html/rfc3711#section-3.4
func (c *Context) ProtectRTCP(packet []byte, ssrc uint32) ([]byte, error) {
	if len(packet) < 8 {
		return nil, newError(ErrShortPacket, "srtp: RTCP packet too short: %d bytes", len(packet))
	}

	index := c.nextRTCPIndex(ssrc)
	c.encryptRTCP(packet[8:], ssrc, index)

	out := appendUint32(packet, eFlagMask|uint32(index))
	tag := c.authRTCP(out)
	return append(out, tag...), nil
}

// UnprotectRTCP verifies and decrypts an SRTCP packet, returning its
// plaintext (aliasing packet) and the SRTCP index it carried.
func (c *Context) UnprotectRTCP(packet []byte, ssrc uint32) ([]byte, uint32, error) {
	tagLen := c.policy.RTCPAuthTagLen
	if len(packet) < 8+4+tagLen {
		return nil, 0, newError(ErrShortPacket, "srtp: RTCP packet too short: %d bytes", len(packet))
	}

	tagStart := len(packet) - tagLen
	indexStart := tagStart - 4

	if tagLen > 0 {
		expected := c.authRTCP(packet[:tagStart])
		if !hmacEqual(packet[tagStart:], expected) {
			return nil, 0, newError(ErrAuthFailed, "srtp: RTCP authentication failed for ssrc=%08x", ssrc)
		}
	}

	raw := binary.BigEndian.Uint32(packet[indexStart:])
	encrypted := raw&eFlagMask != 0
	index := raw &^ eFlagMask

	replay := c.rtcpReplayFor(ssrc)
	accept, ok := replay.Check(uint64(index))
	if !ok {
		return nil, 0, newError(ErrReplay, "srtp: replayed RTCP packet: ssrc=%08x index=%d", ssrc, index)
	}

	payload := packet[8:indexStart]
	if encrypted {
		c.encryptRTCP(payload, ssrc, uint64(index))
	}

	accept()
	return payload, index, nil
}

// nextRTCPIndex returns (and advances) the monotonic SRTCP index for ssrc.
// There's no rollover/disorder correction for RTCP: the sender's own index
// is always the next integer in sequence.
func (c *Context) nextRTCPIndex(ssrc uint32) uint64 {
	c.rtcpSendIndex[ssrc]++
	return c.rtcpSendIndex[ssrc]
}

func appendUint32(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func hmacEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
