package dtls

import (
	"golang.org/x/crypto/cryptobyte"
	"github.com/pkg/errors"
)

// HandshakeType identifies a DTLS handshake message.
// See https://tools.ietf.org/html/rfc6347#section-4.3.2
type HandshakeType uint8

const (
	HandshakeTypeHelloRequest       HandshakeType = 0
	HandshakeTypeClientHello        HandshakeType = 1
	HandshakeTypeServerHello        HandshakeType = 2
	HandshakeTypeHelloVerifyRequest HandshakeType = 3
	HandshakeTypeCertificate        HandshakeType = 11
	HandshakeTypeServerKeyExchange  HandshakeType = 12
	HandshakeTypeCertificateRequest HandshakeType = 13
	HandshakeTypeServerHelloDone    HandshakeType = 14
	HandshakeTypeCertificateVerify  HandshakeType = 15
	HandshakeTypeClientKeyExchange  HandshakeType = 16
	HandshakeTypeFinished           HandshakeType = 20
)

// handshakeHeaderSize is the length of a DTLS handshake message header
// (RFC 6347 Section 4.2.2), which adds message_seq/fragment_offset/
// fragment_length to the 4-byte TLS handshake header.
const handshakeHeaderSize = 12

// handshakeMessage is one reassembled handshake message. This engine only
// ever sends (and only ever needs to reassemble) a handshake message as a
// single fragment: its ClientHello/ServerHello/Certificate messages are
// small enough to fit in one DTLS record on any realistic MTU, so
// out-of-order fragment reassembly across multiple records is not
// implemented.
type handshakeMessage struct {
	msgType        HandshakeType
	messageSeq     uint16
	body           []byte // the handshake message body, without the header
	rawWithHeader  []byte // header+body, as hashed into the handshake transcript
}

func newHandshakeMessage(msgType HandshakeType, seq uint16, body []byte) handshakeMessage {
	var b cryptobyte.Builder
	b.AddUint8(uint8(msgType))
	b.AddUint24(uint32(len(body)))
	b.AddUint16(seq)
	b.AddUint24(0) // fragment_offset
	b.AddUint24(uint32(len(body)))
	b.AddBytes(body)
	raw := b.BytesOrPanic()
	return handshakeMessage{msgType: msgType, messageSeq: seq, body: body, rawWithHeader: raw}
}

func parseHandshakeMessage(fragment []byte) (handshakeMessage, error) {
	s := cryptobyte.String(fragment)
	var (
		msgType uint8
		length  uint32
		seq     uint16
		fragOff uint32
		fragLen uint32
		body    []byte
	)
	if !s.ReadUint8(&msgType) ||
		!s.ReadUint24(&length) ||
		!s.ReadUint16(&seq) ||
		!s.ReadUint24(&fragOff) ||
		!s.ReadUint24(&fragLen) ||
		!s.ReadBytes(&body, int(fragLen)) {
		return handshakeMessage{}, errors.New("dtls: malformed handshake header")
	}
	if fragOff != 0 || fragLen != length {
		return handshakeMessage{}, errors.New("dtls: fragmented handshake messages are not supported")
	}
	return handshakeMessage{
		msgType:       HandshakeType(msgType),
		messageSeq:    seq,
		body:          append([]byte(nil), body...),
		rawWithHeader: append([]byte(nil), fragment[:handshakeHeaderSize+len(body)]...),
	}, nil
}
