package digest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCanonicalResponse reproduces the worked example from RFC 2617
// Section 3.5.
func TestCanonicalResponse(t *testing.T) {
	challenge := Challenge{
		Realm: "testrealm@host.com",
		Nonce: "dcd98b7102dd2f0e8b11d0f600bfb0c093",
		QOP:   "auth",
	}
	cred := Credentials{
		Username: "Mufasa",
		Password: "Circle Of Life",
		Method:   "GET",
		URI:      "/dir/index.html",
		Cnonce:   "0a4f113b",
		NC:       "00000001",
	}

	resp, err := Response(challenge, cred)
	require.NoError(t, err)
	assert.Equal(t, "6629fae49393a05397450978507c4ef1", resp)
}

func TestLegacyResponseWithoutQOP(t *testing.T) {
	challenge := Challenge{Realm: "realm", Nonce: "abc123"}
	cred := Credentials{Username: "alice", Password: "secret", Method: "INVITE", URI: "sip:bob@example.com"}

	resp, err := Response(challenge, cred)
	require.NoError(t, err)
	assert.Len(t, resp, 32)

	ok, err := Verify(challenge, cred, resp)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestParseChallenge(t *testing.T) {
	header := `Digest realm="testrealm@host.com", qop="auth,auth-int", nonce="dcd98b7102dd2f0e8b11d0f600bfb0c093", opaque="5ccc069c403ebaf9f0171e9517f40e41"`
	c, err := ParseChallenge(header)
	require.NoError(t, err)
	assert.Equal(t, "testrealm@host.com", c.Realm)
	assert.Equal(t, "auth", c.QOP)
	assert.Equal(t, "dcd98b7102dd2f0e8b11d0f600bfb0c093", c.Nonce)
	assert.Equal(t, "5ccc069c403ebaf9f0171e9517f40e41", c.Opaque)
}

func TestBuildAuthorizationHeaderRoundTrip(t *testing.T) {
	params := map[string]string{
		"username": "Mufasa",
		"realm":    "testrealm@host.com",
		"nonce":    "dcd98b7102dd2f0e8b11d0f600bfb0c093",
		"uri":      "/dir/index.html",
		"response": "6629fae49393a05397450978507c4ef1",
		"qop":      "auth",
		"nc":       "00000001",
		"cnonce":   "0a4f113b",
	}
	header := BuildAuthorizationHeader(params)

	parsed, err := ParseAuthorizationHeader(header)
	require.NoError(t, err)
	for k, v := range params {
		assert.Equal(t, v, parsed[k], k)
	}
}
