package digest

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// quotedParams are the digest parameters whose values are always quoted on
// the wire, per RFC 2617 Section 3.2.1/3.2.2.
var quotedParams = map[string]bool{
	"username": true, "realm": true, "nonce": true, "uri": true,
	"response": true, "cnonce": true, "opaque": true, "domain": true,
}

// ParseAuthorizationHeader parses the parameter list following the
// "Digest " scheme token in an Authorization/Proxy-Authorization header
// into a map, unquoting quoted values.
func ParseAuthorizationHeader(value string) (map[string]string, error) {
	value = strings.TrimSpace(value)
	const prefix = "Digest "
	if !strings.HasPrefix(strings.ToLower(value), strings.ToLower(prefix)) {
		return nil, xerrors.Errorf("digest: header does not start with %q", prefix)
	}
	return parseParams(value[len(prefix):])
}

// ParseChallenge parses a WWW-Authenticate/Proxy-Authenticate header value
// into a Challenge.
func ParseChallenge(value string) (Challenge, error) {
	params, err := ParseAuthorizationHeader(value)
	if err != nil {
		return Challenge{}, err
	}
	c := Challenge{
		Realm:     params["realm"],
		Nonce:     params["nonce"],
		Opaque:    params["opaque"],
		QOP:       firstQOP(params["qop"]),
		Algorithm: params["algorithm"],
	}
	if c.Algorithm == "" {
		c.Algorithm = "MD5"
	}
	c.Stale, _ = strconv.ParseBool(strings.ToLower(params["stale"]))
	return c, nil
}

// firstQOP picks "auth" out of a comma-separated qop-options list if
// present, else returns the list's first token.
func firstQOP(qop string) string {
	if qop == "" {
		return ""
	}
	for _, tok := range strings.Split(qop, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "auth" {
			return tok
		}
	}
	return strings.TrimSpace(strings.Split(qop, ",")[0])
}

func parseParams(s string) (map[string]string, error) {
	params := make(map[string]string)
	for _, field := range splitParams(s) {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		eq := strings.IndexByte(field, '=')
		if eq < 0 {
			return nil, xerrors.Errorf("digest: malformed parameter %q", field)
		}
		key := strings.TrimSpace(field[:eq])
		val := strings.TrimSpace(field[eq+1:])
		val = unquote(val)
		params[strings.ToLower(key)] = val
	}
	return params, nil
}

// splitParams splits on commas that are not inside a quoted string.
func splitParams(s string) []string {
	var fields []string
	var inQuotes bool
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				fields = append(fields, s[start:i])
				start = i + 1
			}
		}
	}
	fields = append(fields, s[start:])
	return fields
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// BuildAuthorizationHeader formats an Authorization/Proxy-Authorization
// header value from the given digest parameters, quoting per RFC 2617.
func BuildAuthorizationHeader(params map[string]string) string {
	// RFC 2617 gives no mandated order, but real SIP stacks and the
	// canonical example render username/realm/nonce/uri/response first.
	order := []string{"username", "realm", "nonce", "uri", "response", "algorithm", "cnonce", "opaque", "qop", "nc"}

	var b strings.Builder
	b.WriteString("Digest ")
	first := true
	emit := func(k, v string) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		if quotedParams[k] {
			fmt.Fprintf(&b, "%s=%q", k, v)
		} else {
			fmt.Fprintf(&b, "%s=%s", k, v)
		}
	}

	seen := make(map[string]bool)
	for _, k := range order {
		if v, ok := params[k]; ok {
			emit(k, v)
			seen[k] = true
		}
	}
	var rest []string
	for k := range params {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		emit(k, params[k])
	}
	return b.String()
}
