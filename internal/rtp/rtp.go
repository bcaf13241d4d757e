// Package rtp implements stateless encoding and decoding of RTP data packets
// and RTCP control packets, as defined in RFC 3550. It has no notion of a
// transport, a session, or a cryptographic context: callers that need SRTP
// protection run a Packet's marshaled bytes through internal/srtp before
// sending, and the reverse after receiving.
package rtp

import (
	"encoding/binary"
	"fmt"

	errors "golang.org/x/xerrors"

	"github.com/lanikai/ng911core/internal/logging"
	"github.com/lanikai/ng911core/internal/packet"
)

var log = logging.New("rtp")

// RTP Data Transfer Protocol, as defined in RFC 3550 Section 5.

// Header is the fixed and variable-length portion of an RTP packet that
// precedes the payload.
// See https://tools.ietf.org/html/rfc3550#section-5.1
//    0                   1                   2                   3
//    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |V=2|P|X|  CC   |M|     PT      |       sequence number         |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |                           timestamp                           |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |           synchronization source (SSRC) identifier            |
//   +=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+=+
//   |            contributing source (CSRC) identifiers             |
//   |                             ....                              |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type Header struct {
	Padding     bool
	Extension   bool // header extension bytes are not parsed; they stay at the start of the payload
	Marker      bool
	PayloadType byte
	Sequence    uint16
	Timestamp   uint32
	SSRC        uint32
	CSRC        []uint32
}

const (
	// HeaderSize is the length in bytes of the fixed RTP header, excluding
	// any CSRC identifiers.
	HeaderSize = 12

	version = 2
)

// Length returns the size in bytes of the header, including CSRC identifiers.
func (h *Header) Length() int {
	return HeaderSize + 4*len(h.CSRC)
}

func (h *Header) writeTo(w *packet.Writer) {
	w.WriteByte(joinByte2114(version, h.Padding, h.Extension, byte(len(h.CSRC))))
	w.WriteByte(joinByte17(h.Marker, h.PayloadType))
	w.WriteUint16(h.Sequence)
	w.WriteUint32(h.Timestamp)
	w.WriteUint32(h.SSRC)
	for i := range h.CSRC {
		w.WriteUint32(h.CSRC[i])
	}
}

func (h *Header) readFrom(r *packet.Reader) error {
	if err := r.CheckRemaining(HeaderSize); err != nil {
		return errors.Errorf("short RTP header: %v", err)
	}

	var v, csrcCount byte
	v, h.Padding, h.Extension, csrcCount = splitByte2114(r.ReadByte())
	if v != version {
		return errBadVersion(v)
	}
	if err := r.CheckRemaining(4 * int(csrcCount)); err != nil {
		return errors.Errorf("short RTP header: %v", err)
	}
	h.Marker, h.PayloadType = splitByte17(r.ReadByte())
	h.Sequence = r.ReadUint16()
	h.Timestamp = r.ReadUint32()
	h.SSRC = r.ReadUint32()
	h.CSRC = nil
	for i := 0; i < int(csrcCount); i++ {
		h.CSRC = append(h.CSRC, r.ReadUint32())
	}
	return nil
}

// Packet is a single RTP data packet: a header plus payload bytes. The
// payload may still be SRTP-protected ciphertext; this package doesn't care.
type Packet struct {
	Header
	Payload []byte
}

// Marshal serializes p into buf, returning the slice of buf that was
// written. A new slice is allocated if buf is too small.
func (p *Packet) Marshal(buf []byte) ([]byte, error) {
	need := p.Length() + len(p.Payload)
	if cap(buf) < need {
		buf = make([]byte, need)
	} else {
		buf = buf[:need]
	}

	w := packet.NewWriter(buf)
	p.Header.writeTo(w)
	if err := w.WriteSlice(p.Payload); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Unmarshal parses buf as a single RTP packet. The returned Packet's
// Payload aliases buf; callers that retain it past the lifetime of buf
// must copy it first.
func Unmarshal(buf []byte) (Packet, error) {
	var p Packet
	r := packet.NewReader(buf)
	if err := p.Header.readFrom(r); err != nil {
		return Packet{}, err
	}
	p.Payload = r.ReadRemaining()
	return p, nil
}

type errBadVersion byte

func (e errBadVersion) Error() string {
	return fmt.Sprintf("invalid RTP version: %d", byte(e))
}

// Demux reports whether buf, a single datagram received on a combined
// RTP/RTCP transport, holds an RTCP packet rather than an RTP packet, and
// extracts its (S)SRC without fully parsing it.
// See https://tools.ietf.org/html/rfc5761#section-4.
func Demux(buf []byte) (isRTCP bool, ssrc uint32, err error) {
	if len(buf) < 8 {
		return false, 0, errors.Errorf("short RTP/RTCP packet: %d bytes", len(buf))
	}
	packetType := buf[1]
	if rtcpPacketTypeMin <= packetType && packetType <= rtcpPacketTypeMax {
		return true, binary.BigEndian.Uint32(buf[4:8]), nil
	}
	if len(buf) < HeaderSize {
		return false, 0, errors.New("short RTP packet")
	}
	return false, binary.BigEndian.Uint32(buf[8:12]), nil
}
