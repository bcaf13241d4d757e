package srtp

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func checkHex(t *testing.T, value []byte, expectedHex string) {
	t.Helper()
	assert.Equal(t, strings.ToLower(expectedHex), hex.EncodeToString(value))
}

// Key Derivation Test Vectors: https://tools.ietf.org/html/rfc3711#appendix-B.3
func TestDeriveKey(t *testing.T) {
	masterKey, _ := hex.DecodeString("E1F97A0D3E018BE0D64FA32C06DE4139")
	masterSalt, _ := hex.DecodeString("0EC675AD498AFEEBB6960B3AABE6")

	key := deriveKey(masterKey, masterSalt, labelSRTPEncryption, 16)
	checkHex(t, key, "C61E7A93744F39EE10734AFE3FF7A087")

	salt := deriveKey(masterKey, masterSalt, labelSRTPSalt, 14)
	checkHex(t, salt, "30CBBC08863D8C85D49DB34A9AE1")

	authKey := deriveKey(masterKey, masterSalt, labelSRTPAuth, 94)
	checkHex(t, authKey,
		"CEBE321F6FF7716B6FD4AB49AF256A15"+
			"6D38BAA48F0A0ACF3C34E2359E6CDBCE"+
			"E049646C43D9327AD175578EF7227098"+
			"6371C10C9A369AC2F94A8C5FBCDDDC25"+
			"6D6E919A48B610EF17C2041E47403576"+
			"6B68642C59BBFC2F34DB60DBDFB2")
}

func TestSplitKeyingMaterial(t *testing.T) {
	material := make([]byte, 2*(16+14))
	for i := range material {
		material[i] = byte(i)
	}

	km, err := SplitKeyingMaterial(material, 16, 14)
	assert.NoError(t, err)
	assert.Equal(t, material[0:16], km.ClientKey)
	assert.Equal(t, material[16:32], km.ServerKey)
	assert.Equal(t, material[32:46], km.ClientSalt)
	assert.Equal(t, material[46:60], km.ServerSalt)
}

func TestSplitKeyingMaterialShort(t *testing.T) {
	_, err := SplitKeyingMaterial(make([]byte, 10), 16, 14)
	assert.Error(t, err)
}
