// Package rtt implements the Real-Time Text redundancy receiver (RFC 4103
// §4.2): reassembly of a T.140 character stream from RTP packets that may
// arrive on the plain T.140 payload type or on a "red" (RFC 2198) payload
// type carrying redundant copies of earlier primary blocks.
package rtt

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/xerrors"

	"github.com/lanikai/ng911core/internal/packet"
)

const lineSeparator = " "

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// redundancyHeader is one 4-byte header preceding a redundant block in a
// "red" RTP payload: marker bit, 7-bit payload type, 14-bit timestamp
// offset, 10-bit block length.
type redundancyHeader struct {
	Marker          bool
	PayloadType     byte
	TimestampOffset uint16
	BlockLength     uint16
}

func readRedundancyHeaders(r *packet.Reader) ([]redundancyHeader, error) {
	var headers []redundancyHeader
	for {
		if err := r.CheckRemaining(4); err != nil {
			return nil, xerrors.Errorf("rtt: short redundancy header: %w", err)
		}
		b0 := r.ReadByte()
		b1 := r.ReadByte()
		b2 := r.ReadByte()
		b3 := r.ReadByte()

		marker := b0&0x80 != 0
		pt := b0 & 0x7f
		tsOffset := uint16(b1)<<6 | uint16(b2)>>2
		blockLen := uint16(b2&0x03)<<8 | uint16(b3)

		headers = append(headers, redundancyHeader{
			Marker:          marker,
			PayloadType:     pt,
			TimestampOffset: tsOffset,
			BlockLength:     blockLen,
		})
		if !marker {
			return headers, nil
		}
	}
}

// Receiver reassembles the T.140 character stream for one incoming SSRC.
// It is not safe for concurrent use; the caller serializes packet delivery
// (packet ordering within an RTP stream is the caller's concern, not this
// receiver's).
type Receiver struct {
	t140PayloadType byte
	redPayloadType  byte
	redundancyLevel int

	hasSeen  bool
	lastSeq  uint16
}

// NewReceiver constructs a Receiver for a single RTP stream. redundancyLevel
// is the N negotiated via the "red" payload's fmtp (number of prior T.140
// blocks each red packet repeats).
func NewReceiver(t140PayloadType, redPayloadType byte, redundancyLevel int) *Receiver {
	return &Receiver{
		t140PayloadType: t140PayloadType,
		redPayloadType:  redPayloadType,
		redundancyLevel: redundancyLevel,
	}
}

// Receive processes one RTP packet's payload and returns the text it
// recovers, which may be empty (e.g. a packet carrying only already-seen
// redundant data). It is the caller's job to feed packets in the order
// they were received off the wire, including lost ones as gaps in sequence
// (Receive is never called for a packet that never arrived).
func (r *Receiver) Receive(payloadType byte, sequence uint16, marker bool, payload []byte) (string, error) {
	missed := r.missedSince(sequence, marker)

	var text string
	var err error
	switch payloadType {
	case r.t140PayloadType:
		text, err = decodeT140(payload)
	case r.redPayloadType:
		text, err = r.decodeRed(payload, missed)
	default:
		return "", xerrors.Errorf("rtt: unrecognized payload type %d", payloadType)
	}
	if err != nil {
		return "", err
	}

	r.hasSeen = true
	r.lastSeq = sequence
	return normalize(text), nil
}

func (r *Receiver) missedSince(sequence uint16, marker bool) int {
	if !r.hasSeen {
		if marker {
			return 0
		}
		return 1
	}
	missed := int(uint16(sequence - r.lastSeq - 1))
	if missed > r.redundancyLevel {
		missed = r.redundancyLevel
	}
	return missed
}

func decodeT140(payload []byte) (string, error) {
	payload = bytesTrimBOM(payload)
	if !utf8.Valid(payload) {
		return "", xerrors.New("rtt: invalid UTF-8 in T.140 payload")
	}
	return string(payload), nil
}

func bytesTrimBOM(b []byte) []byte {
	if len(b) >= 3 && b[0] == utf8BOM[0] && b[1] == utf8BOM[1] && b[2] == utf8BOM[2] {
		return b[3:]
	}
	return b
}

// decodeRed decodes a "red" payload, emitting the primary block plus the
// most recent min(missed, N) redundant blocks that precede it, oldest
// first.
func (r *Receiver) decodeRed(payload []byte, missed int) (string, error) {
	pr := packet.NewReader(payload)
	headers, err := readRedundancyHeaders(pr)
	if err != nil {
		return "", err
	}

	redundant := headers[:len(headers)-1] // oldest (index 0) .. newest
	primary := headers[len(headers)-1]

	var blocks [][]byte
	for _, h := range redundant {
		n := int(h.BlockLength)
		if err := pr.CheckRemaining(n); err != nil {
			return "", xerrors.Errorf("rtt: short redundant block: %w", err)
		}
		blocks = append(blocks, pr.ReadSlice(n))
	}
	primaryPayload := pr.ReadRemaining()
	_ = primary.BlockLength // primary length is implicit in the remaining bytes

	if missed > len(blocks) {
		missed = len(blocks)
	}
	var buf []byte
	for _, b := range blocks[len(blocks)-missed:] {
		buf = append(buf, b...)
	}
	buf = append(buf, primaryPayload...)

	buf = bytesTrimBOM(buf)
	if !utf8.Valid(buf) {
		return "", xerrors.New("rtt: invalid UTF-8 in red payload")
	}
	return string(buf), nil
}

// normalize replaces the UTF-8 line-separator U+2028 with '\n', as T.140
// receivers are expected to for conventional line-oriented display.
func normalize(s string) string {
	return strings.ReplaceAll(s, lineSeparator, "\n")
}
