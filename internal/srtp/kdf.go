package srtp

import (
	"crypto/cipher"
	"fmt"

	"github.com/lanikai/ng911core/internal/aes"
)

// SRTP key derivation labels, from https://tools.ietf.org/html/rfc3711#section-4.3.2
const (
	labelSRTPEncryption  = 0x00
	labelSRTPAuth        = 0x01
	labelSRTPSalt        = 0x02
	labelSRTCPEncryption = 0x03
	labelSRTCPAuth       = 0x04
	labelSRTCPSalt       = 0x05
)

// sessionKeys holds the six session keys derived from a single master
// key/salt pair, per RFC 3711 Section 4.3.
type sessionKeys struct {
	srtpEncrypt, srtpAuth, srtpSalt    []byte
	srtcpEncrypt, srtcpAuth, srtcpSalt []byte
}

func deriveSessionKeys(p Policy, masterKey, masterSalt []byte) sessionKeys {
	return sessionKeys{
		srtpEncrypt:  deriveKey(masterKey, masterSalt, labelSRTPEncryption, p.CipherKeyLen),
		srtpAuth:     deriveKey(masterKey, masterSalt, labelSRTPAuth, p.AuthKeyLen),
		srtpSalt:     deriveKey(masterKey, masterSalt, labelSRTPSalt, p.CipherSaltLen),
		srtcpEncrypt: deriveKey(masterKey, masterSalt, labelSRTCPEncryption, p.CipherKeyLen),
		srtcpAuth:    deriveKey(masterKey, masterSalt, labelSRTCPAuth, p.AuthKeyLen),
		srtcpSalt:    deriveKey(masterKey, masterSalt, labelSRTCPSalt, p.CipherSaltLen),
	}
}

// deriveKey implements the SRTP key derivation PRF: given a 48-bit key
// derivation rate of 0 (the only rate this engine negotiates), this reduces
// to PRF_n(master_key, label XOR master_salt * 2^16).
// See https://tools.ietf.org/html/rfc3711#section-4.3
func deriveKey(masterKey, masterSalt []byte, label byte, n int) []byte {
	// x = (label || 0*) XOR master_salt, where label occupies the byte 7
	// from the end (the key_derivation_rate field is always zero here so r
	// contributes nothing).
	x := append([]byte(nil), masterSalt...)
	x[len(x)-7] ^= label

	block, err := aes.NewCipher(masterKey)
	if err != nil {
		panic(err) // invalid master key length, a programmer error
	}

	iv := padRight(x, aes.BlockSize)
	stream := cipher.NewCTR(block, iv)

	key := make([]byte, n)
	stream.XORKeyStream(key, key)
	return key
}

// padRight pads b with zeros on the right up to size, without mutating b.
func padRight(b []byte, size int) []byte {
	if len(b) >= size {
		return b
	}
	out := make([]byte, size)
	copy(out, b)
	return out
}

// ExportedKeyingMaterial is the 4-way split of the opaque keying material
// exported by a DTLS handshake's "EXTRACTOR-dtls_srtp" label, as defined by
// the SRTP profile's key/salt lengths.
// See https://tools.ietf.org/html/rfc5764#section-4.2
type ExportedKeyingMaterial struct {
	ClientKey  []byte
	ServerKey  []byte
	ClientSalt []byte
	ServerSalt []byte
}

// SplitKeyingMaterial splits the raw keying material exported from a DTLS
// handshake (length 2*(keyLen+saltLen)) into the client and server SRTP
// master key/salt pairs, per the layout:
//   client_write_SRTP_master_key, server_write_SRTP_master_key,
//   client_write_SRTP_master_salt, server_write_SRTP_master_salt
func SplitKeyingMaterial(material []byte, keyLen, saltLen int) (ExportedKeyingMaterial, error) {
	need := 2 * (keyLen + saltLen)
	if len(material) < need {
		return ExportedKeyingMaterial{}, errShortKeyingMaterial{need, len(material)}
	}

	offset := 0
	next := func(n int) []byte {
		b := material[offset : offset+n]
		offset += n
		return b
	}

	return ExportedKeyingMaterial{
		ClientKey:  next(keyLen),
		ServerKey:  next(keyLen),
		ClientSalt: next(saltLen),
		ServerSalt: next(saltLen),
	}, nil
}

type errShortKeyingMaterial struct{ need, got int }

func (e errShortKeyingMaterial) Error() string {
	return fmt.Sprintf("srtp: short DTLS keying material export: need %d bytes, got %d", e.need, e.got)
}
