package srtp

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

// AES-CM Test Vectors: https://tools.ietf.org/html/rfc3711#appendix-B.2
func TestAESCounterMode(t *testing.T) {
	sessionKey, _ := hex.DecodeString("2B7E151628AED2A6ABF7158809CF4F3C")
	sessionSalt, _ := hex.DecodeString("F0F1F2F3F4F5F6F7F8F9FAFBFCFD0000")
	encrypt := aesCounterMode(sessionKey[:16], sessionSalt[:14])

	keystream := make([]byte, 48)
	encrypt(keystream, uint32(0), uint64(0))

	checkHex(t, keystream, "E03EAD0935C95E80E166B16DD92B4EB4"+
		"D23513162B02D0F72A43A2FE4A5F97AB"+
		"41E95B3BB0A2E8DD477901E4FCA894C0")
}

func TestProtectUnprotectRTP(t *testing.T) {
	masterKey := []byte("TopSecret128bits")
	masterSalt := []byte("SodiumChloride")[:14]

	policy := DefaultPolicy()
	sender := NewContext(policy, masterKey, masterSalt)
	receiver := NewContext(policy, masterKey, masterSalt)

	const ssrc = 0x1337d00d
	const seq = uint16(42)
	header := []byte{
		0x80, 100, // V=2,P=0,X=0,CC=0 ; M=0,PT=100
		byte(seq >> 8), byte(seq),
		0, 0, 0x03, 0x4f, // timestamp
		0x13, 0x37, 0xd0, 0x0d, // ssrc
	}
	payload := []byte("abcdefghijklmnopqrstuvwxyz")

	packet := append(append([]byte(nil), header...), payload...)
	protected, err := sender.ProtectRTP(packet, len(header), ssrc, seq)
	assert.NoError(t, err)
	assert.NotEqual(t, payload, protected[len(header):len(header)+len(payload)])

	plaintext, err := receiver.UnprotectRTP(protected, len(header), ssrc, seq)
	assert.NoError(t, err)
	assert.Equal(t, payload, plaintext)
}

func TestUnprotectRTPRejectsReplay(t *testing.T) {
	masterKey := []byte("TopSecret128bits")
	masterSalt := []byte("SodiumChloride")[:14]
	policy := DefaultPolicy()
	sender := NewContext(policy, masterKey, masterSalt)
	receiver := NewContext(policy, masterKey, masterSalt)

	const ssrc = 0xabad1dea
	const seq = uint16(7)
	header := make([]byte, 12)
	header[0] = 0x80
	header[1] = 0
	header[8], header[9], header[10], header[11] = 0xab, 0xad, 0x1d, 0xea

	packet := append(append([]byte(nil), header...), []byte("hello")...)
	protected, err := sender.ProtectRTP(packet, len(header), ssrc, seq)
	assert.NoError(t, err)

	cp := append([]byte(nil), protected...)
	_, err = receiver.UnprotectRTP(protected, len(header), ssrc, seq)
	assert.NoError(t, err)

	_, err = receiver.UnprotectRTP(cp, len(header), ssrc, seq)
	assert.Error(t, err)
}

func TestProtectUnprotectRTCP(t *testing.T) {
	masterKey := []byte("TopSecret128bits")
	masterSalt := []byte("SodiumChloride")[:14]
	policy := DefaultPolicy()
	sender := NewContext(policy, masterKey, masterSalt)
	receiver := NewContext(policy, masterKey, masterSalt)

	const ssrc = 0x1337d00d
	header := []byte{0x80, 200, 0, 6, 0x13, 0x37, 0xd0, 0x0d}
	payload := []byte("abcdefghijklmnopqrstuvwxyz")
	packet := append(append([]byte(nil), header...), payload...)

	protected, err := sender.ProtectRTCP(packet, ssrc)
	assert.NoError(t, err)

	plaintext, _, err := receiver.UnprotectRTCP(protected, ssrc)
	assert.NoError(t, err)
	assert.Equal(t, payload, plaintext)
}
