// Package dtls implements just enough of DTLS 1.2 (RFC 6347, profiled for
// WebRTC by RFC 7350/RFC 8827) to negotiate an SRTP protection profile with
// a remote peer and export the keying material defined by RFC 5764 — it
// does not implement DTLS as a general application-data transport, since
// media after the handshake flows over SRTP, not over DTLS records.
package dtls

import (
	"golang.org/x/crypto/cryptobyte"
	"github.com/pkg/errors"

	"github.com/lanikai/ng911core/internal/logging"
)

// uint48 helpers. cryptobyte has no native 48-bit accessor, so the 6-byte
// DTLS epoch+sequence-number field is built/parsed as raw bytes.
func putUint48(b []byte, v uint64) {
	b[0] = byte(v >> 40)
	b[1] = byte(v >> 32)
	b[2] = byte(v >> 24)
	b[3] = byte(v >> 16)
	b[4] = byte(v >> 8)
	b[5] = byte(v)
}

func getUint48(b []byte) uint64 {
	return uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 |
		uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
}

var log = logging.New("dtls")

// ContentType identifies the payload of a DTLS record.
// See https://tools.ietf.org/html/rfc6347#section-4.1
type ContentType uint8

const (
	ContentTypeChangeCipherSpec ContentType = 20
	ContentTypeAlert            ContentType = 21
	ContentTypeHandshake        ContentType = 22
	ContentTypeApplicationData  ContentType = 23
)

// protocolVersion is DTLS 1.2, encoded per RFC 6347 as the one's complement
// of the equivalent TLS version (TLS 1.2 is {3,3}; DTLS 1.2 is {254,253}).
var protocolVersion = [2]byte{0xfe, 0xfd}

// recordHeaderSize is the length in bytes of a DTLS record header, i.e.
// everything preceding the record's fragment.
const recordHeaderSize = 13

// record is a single DTLS record: a content type, an epoch/sequence-number
// pair identifying its position in the handshake, and an opaque payload.
type record struct {
	contentType    ContentType
	epoch          uint16
	sequenceNumber uint64 // 48-bit
	fragment       []byte
}

func (r *record) marshal() []byte {
	var b cryptobyte.Builder
	b.AddUint8(uint8(r.contentType))
	b.AddBytes(protocolVersion[:])
	b.AddUint16(r.epoch)
	var seq [6]byte
	putUint48(seq[:], r.sequenceNumber)
	b.AddBytes(seq[:])
	b.AddUint16LengthPrefixed(func(c *cryptobyte.Builder) {
		c.AddBytes(r.fragment)
	})
	return b.BytesOrPanic()
}

// parseRecords splits buf, a single datagram, into the DTLS records it
// contains. DTLS never fragments a record across datagrams, so this never
// needs to buffer partial input.
func parseRecords(buf []byte) ([]record, error) {
	var records []record
	s := cryptobyte.String(buf)
	for !s.Empty() {
		var (
			ct      uint8
			ver     []byte
			epoch   uint16
			seq     []byte
			payload cryptobyte.String
		)
		if !s.ReadUint8(&ct) ||
			!s.ReadBytes(&ver, 2) ||
			!s.ReadUint16(&epoch) ||
			!s.ReadBytes(&seq, 6) ||
			!s.ReadUint16LengthPrefixed(&payload) {
			return records, errors.New("dtls: malformed record header")
		}
		records = append(records, record{
			contentType:    ContentType(ct),
			epoch:          epoch,
			sequenceNumber: getUint48(seq),
			fragment:       append([]byte(nil), payload...),
		})
	}
	return records, nil
}
