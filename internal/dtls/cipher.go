package dtls

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"

	"github.com/pkg/errors"
)

// keyBlockLength is the total key material derived for
// TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256: a 16-byte write key and a
// 4-byte fixed IV for each direction. GCM cipher suites carry no separate
// MAC key, since the AEAD tag covers integrity.
const (
	gcmKeyLength   = 16
	gcmFixedIVLen  = 4
	gcmRecordIVLen = 8
	keyBlockLength = 2*gcmKeyLength + 2*gcmFixedIVLen
)

type recordKeys struct {
	writeKey [gcmKeyLength]byte
	writeIV  [gcmFixedIVLen]byte
}

// deriveRecordKeys splits the RFC 5246 Section 6.3 key_block into the
// client and server write keys/IVs.
func deriveRecordKeys(masterSecret, serverRandom, clientRandom []byte) (clientKeys, serverKeys recordKeys) {
	seed := append(append([]byte(nil), serverRandom...), clientRandom...)
	block := prf(masterSecret, []byte(labelKeyExpansion), seed, keyBlockLength)

	off := 0
	copy(clientKeys.writeKey[:], block[off:off+gcmKeyLength])
	off += gcmKeyLength
	copy(serverKeys.writeKey[:], block[off:off+gcmKeyLength])
	off += gcmKeyLength
	copy(clientKeys.writeIV[:], block[off:off+gcmFixedIVLen])
	off += gcmFixedIVLen
	copy(serverKeys.writeIV[:], block[off:off+gcmFixedIVLen])

	return clientKeys, serverKeys
}

// gcmProtector seals/opens DTLS records under AES-128-GCM, per RFC 5246
// Section 6.2.3.3's "GenericAEADCipher" construction, profiled for DTLS by
// carrying the explicit nonce as the record's epoch+sequence_number rather
// than a separately transmitted value (RFC 6347 Section 4.1.2.6 shorthand,
// also used by QUIC-less DTLS 1.2 stacks generally).
type gcmProtector struct {
	aead cipher.AEAD
	iv   [gcmFixedIVLen]byte
}

func newGCMProtector(keys recordKeys) (*gcmProtector, error) {
	block, err := aes.NewCipher(keys.writeKey[:])
	if err != nil {
		return nil, errors.Wrap(err, "dtls: aes.NewCipher")
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "dtls: cipher.NewGCM")
	}
	return &gcmProtector{aead: aead, iv: keys.writeIV}, nil
}

func (g *gcmProtector) nonce(epoch uint16, seq uint64) []byte {
	nonce := make([]byte, 0, gcmFixedIVLen+8)
	nonce = append(nonce, g.iv[:]...)
	var seqBytes [8]byte
	binary.BigEndian.PutUint16(seqBytes[0:2], epoch)
	putUint48(seqBytes[2:8], seq)
	nonce = append(nonce, seqBytes[:]...)
	return nonce
}

func aad(epoch uint16, seq uint64, contentType ContentType, plaintextLen int) []byte {
	var out [13]byte
	binary.BigEndian.PutUint16(out[0:2], epoch)
	putUint48(out[2:8], seq)
	out[8] = byte(contentType)
	out[9] = protocolVersion[0]
	out[10] = protocolVersion[1]
	binary.BigEndian.PutUint16(out[11:13], uint16(plaintextLen))
	return out[:]
}

// seal encrypts plaintext into a DTLS GCM record fragment consisting of
// ciphertext+tag only. The 8-byte explicit nonce (epoch||sequence_number)
// is not written into the fragment; both sides rebuild it from the record
// header.
func (g *gcmProtector) seal(epoch uint16, seq uint64, contentType ContentType, plaintext []byte) []byte {
	nonce := g.nonce(epoch, seq)
	return g.aead.Seal(nil, nonce, plaintext, aad(epoch, seq, contentType, len(plaintext)))
}

func (g *gcmProtector) open(epoch uint16, seq uint64, contentType ContentType, ciphertext []byte) ([]byte, error) {
	nonce := g.nonce(epoch, seq)
	plainLen := len(ciphertext) - g.aead.Overhead()
	if plainLen < 0 {
		return nil, errors.New("dtls: ciphertext shorter than AEAD tag")
	}
	plaintext, err := g.aead.Open(nil, nonce, ciphertext, aad(epoch, seq, contentType, plainLen))
	if err != nil {
		return nil, errors.Wrap(err, "dtls: record authentication failed")
	}
	return plaintext, nil
}
