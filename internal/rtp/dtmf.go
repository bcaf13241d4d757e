package rtp

import (
	errors "golang.org/x/xerrors"

	"github.com/lanikai/ng911core/internal/packet"
)

// RTP payload format for DTMF digits and named telephone events.
// See [RFC 4733](https://tools.ietf.org/html/rfc4733).

// Standard event codes from RFC 4733 Section 7.
const (
	DTMFDigit0 = 0
	DTMFDigit1 = 1
	DTMFDigit2 = 2
	DTMFDigit3 = 3
	DTMFDigit4 = 4
	DTMFDigit5 = 5
	DTMFDigit6 = 6
	DTMFDigit7 = 7
	DTMFDigit8 = 8
	DTMFDigit9 = 9
	DTMFStar   = 10
	DTMFPound  = 11
	DTMFA      = 12
	DTMFB      = 13
	DTMFC      = 14
	DTMFD      = 15
)

// TelephoneEvent is the payload of an RFC 4733 named telephone-event RTP
// packet.
//    0                   1                   2                   3
//    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |     event     |E|R| volume    |          duration             |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type TelephoneEvent struct {
	Event byte

	// End marks the last packet of an event; it is sent several times for
	// reliability against packet loss.
	End bool

	// Volume is the power level of the tone, in dBm0, clamped to [-63, 0]
	// and encoded as its absolute value (0-63).
	Volume int

	// Duration is the cumulative duration of the event, in timestamp units,
	// measured from the event's start.
	Duration uint16
}

const telephoneEventSize = 4

// Marshal encodes the event into buf (a new 4-byte slice is allocated when
// buf is shorter than 4 bytes) and returns the written slice.
func (e *TelephoneEvent) Marshal(buf []byte) ([]byte, error) {
	if len(buf) < telephoneEventSize {
		buf = make([]byte, telephoneEventSize)
	}
	w := packet.NewWriter(buf[:telephoneEventSize])
	w.WriteByte(e.Event)

	volume := e.Volume
	if volume > 0 {
		volume = 0
	}
	volume = -volume
	if volume > 63 {
		volume = 63
	}
	var b byte = byte(volume) & 0x3f
	if e.End {
		b |= 0x80
	}
	w.WriteByte(b)
	w.WriteUint16(e.Duration)
	return w.Bytes(), nil
}

// UnmarshalTelephoneEvent decodes an RFC 4733 telephone-event payload.
func UnmarshalTelephoneEvent(buf []byte) (TelephoneEvent, error) {
	if len(buf) < telephoneEventSize {
		return TelephoneEvent{}, errors.Errorf("short telephone-event payload: %d bytes", len(buf))
	}
	r := packet.NewReader(buf)
	var e TelephoneEvent
	e.Event = r.ReadByte()
	b := r.ReadByte()
	e.End = b&0x80 != 0
	e.Volume = -int(b & 0x3f)
	e.Duration = r.ReadUint16()
	return e, nil
}
