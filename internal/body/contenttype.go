package body

import (
	"strings"

	"golang.org/x/xerrors"
)

// Param is a single name-value pair from a Content-Type or
// Content-Disposition parameter list. Order is preserved because callers
// may round-trip a part without re-deriving a canonical order.
type Param struct {
	Name  string
	Value string
}

// Params is an ordered name-value list, parsed by splitting on ";" then
// "=" the same way SDP fmtp attribute lists are, extended here with
// quoted-value handling that bare fmtp strings never need.
type Params []Param

// Get returns the value of the first parameter named name (case-insensitive),
// and whether it was present.
func (p Params) Get(name string) (string, bool) {
	for _, kv := range p {
		if strings.EqualFold(kv.Name, name) {
			return kv.Value, true
		}
	}
	return "", false
}

// parseTypeAndParams splits a header value like
// `multipart/mixed; boundary="abc"; charset=utf-8` into its leading token
// ("multipart/mixed") and an ordered parameter list.
func parseTypeAndParams(value string) (string, Params, error) {
	fields := splitUnquoted(value, ';')
	if len(fields) == 0 {
		return "", nil, xerrors.New("body: empty header value")
	}

	typ := strings.TrimSpace(fields[0])
	var params Params
	for _, field := range fields[1:] {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		eq := strings.IndexByte(field, '=')
		if eq < 0 {
			return "", nil, xerrors.Errorf("body: malformed parameter %q", field)
		}
		name := strings.TrimSpace(field[:eq])
		val := strings.TrimSpace(field[eq+1:])
		val = unquote(val)
		params = append(params, Param{Name: name, Value: val})
	}
	return typ, params, nil
}

// splitUnquoted splits s on sep, ignoring occurrences of sep inside a
// double-quoted span.
func splitUnquoted(s string, sep byte) []string {
	var fields []string
	var inQuotes bool
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case sep:
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

// needsQuoting reports whether v must be wrapped in double quotes to be a
// valid RFC 2045 token on the wire.
func needsQuoting(v string) bool {
	if v == "" {
		return true
	}
	for i := 0; i < len(v); i++ {
		switch c := v[i]; {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case strings.ContainsRune("!#$%&'*+-.^_`|~", rune(c)):
		default:
			return true
		}
	}
	return false
}

func formatParams(typ string, params Params) string {
	var b strings.Builder
	b.WriteString(typ)
	for _, p := range params {
		b.WriteString("; ")
		b.WriteString(p.Name)
		b.WriteByte('=')
		if needsQuoting(p.Value) {
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(p.Value, `"`, `\"`))
			b.WriteByte('"')
		} else {
			b.WriteString(p.Value)
		}
	}
	return b.String()
}
