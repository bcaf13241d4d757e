package srtp

import (
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1"

	"github.com/lanikai/ng911core/internal/aes"
)

// keystreamFunc XORs a payload in place with a unique keystream determined
// by the session salt, the packet's SSRC, and its 48-bit (SRTP) or 31-bit
// (SRTCP) index.
type keystreamFunc func(payload []byte, ssrc uint32, index uint64)

// macFunc computes a truncated authentication tag over M.
type macFunc func(m []byte) []byte

func newKeystream(c Cipher, key, salt []byte) keystreamFunc {
	switch c {
	case CipherNull:
		return func(payload []byte, ssrc uint32, index uint64) {}
	default:
		return aesCounterMode(key, salt)
	}
}

func newMAC(a Auth, key []byte, tagLen int) macFunc {
	switch a {
	case AuthNull:
		return func(m []byte) []byte { return nil }
	default:
		return hmacSHA1(key, tagLen)
	}
}

// aesCounterMode implements the default SRTP encryption transform.
// See https://tools.ietf.org/html/rfc3711#section-4.1.1
func aesCounterMode(key, salt []byte) keystreamFunc {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err) // invalid session key length
	}

	return func(payload []byte, ssrc uint32, index uint64) {
		// IV = (session_salt * 2^16) XOR (SSRC * 2^64) XOR (index * 2^16)
		iv := make([]byte, aes.BlockSize)
		copy(iv, salt)
		xor32(iv[4:], ssrc)
		xor64(iv[6:], index)
		cipher.NewCTR(block, iv).XORKeyStream(payload, payload)
	}
}

// hmacSHA1 implements the default SRTP authentication transform.
// See https://tools.ietf.org/html/rfc3711#section-4.2
func hmacSHA1(key []byte, tagLen int) macFunc {
	return func(m []byte) []byte {
		mac := hmac.New(sha1.New, key)
		mac.Write(m)
		return mac.Sum(nil)[:tagLen]
	}
}

// xor32 XORs the first 4 bytes of buf with v, in place.
func xor32(buf []byte, v uint32) {
	buf[0] ^= byte(v >> 24)
	buf[1] ^= byte(v >> 16)
	buf[2] ^= byte(v >> 8)
	buf[3] ^= byte(v)
}

// xor64 XORs the first 8 bytes of buf with v, in place.
func xor64(buf []byte, v uint64) {
	xor32(buf[0:4], uint32(v>>32))
	xor32(buf[4:8], uint32(v))
}
