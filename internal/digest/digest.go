// Package digest implements HTTP Digest authentication (RFC 2617) as used
// by SIP's WWW-Authenticate/Authorization and Proxy-Authenticate/
// Proxy-Authorization headers.
package digest

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"golang.org/x/xerrors"
)

// Challenge is the set of parameters offered by a server's 401/407
// WWW-Authenticate / Proxy-Authenticate header.
type Challenge struct {
	Realm     string
	Nonce     string
	Opaque    string
	QOP       string // "auth", "auth-int", or empty for legacy RFC 2069 mode
	Algorithm string // "MD5" (default) or "MD5-sess"
	Stale     bool
}

// Credentials is everything needed to compute a digest response.
type Credentials struct {
	Username string
	Password string
	Method   string
	URI      string
	Cnonce   string // client nonce, required when QOP is set
	NC       string // nonce count, 8-hex-digit, required when QOP is set
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HA1 computes MD5(username ":" realm ":" password).
func HA1(username, realm, password string) string {
	return md5Hex(username + ":" + realm + ":" + password)
}

// HA2 computes MD5(method ":" uri).
func HA2(method, uri string) string {
	return md5Hex(method + ":" + uri)
}

// Response computes the RFC 2617 digest response. When challenge.QOP is
// "auth" (the only qop value SIP digest uses in practice), the response
// includes cnonce and nc; when it is empty, the RFC 2069 form is used. Any
// other qop value (e.g. "auth-int") is rejected with an error.
func Response(challenge Challenge, cred Credentials) (string, error) {
	ha1 := HA1(cred.Username, challenge.Realm, cred.Password)
	ha2 := HA2(cred.Method, cred.URI)

	if challenge.QOP == "" {
		return md5Hex(ha1 + ":" + challenge.Nonce + ":" + ha2), nil
	}

	if challenge.QOP != "auth" {
		return "", xerrors.Errorf("digest: unsupported qop %q", challenge.QOP)
	}
	if cred.Cnonce == "" || cred.NC == "" {
		return "", xerrors.New("digest: cnonce and nc are required when qop is set")
	}
	return md5Hex(strings.Join([]string{ha1, challenge.Nonce, cred.NC, cred.Cnonce, challenge.QOP, ha2}, ":")), nil
}

// Verify recomputes the expected response for cred against challenge and
// reports whether it matches the response the client supplied.
func Verify(challenge Challenge, cred Credentials, clientResponse string) (bool, error) {
	expected, err := Response(challenge, cred)
	if err != nil {
		return false, err
	}
	return expected == clientResponse, nil
}
