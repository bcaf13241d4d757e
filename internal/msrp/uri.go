package msrp

import (
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// URI is a parsed MSRP URI: `msrp://host:port/session-id;transport` (or
// `msrps:` for the TLS variant). Parsing follows the same shape as an ICE
// candidate string — scheme, then host/port, then semicolon-delimited
// trailing parameters — applied here to MSRP's own URI grammar
// (RFC 4975 §6).
type URI struct {
	Secure    bool // true for msrps
	Host      string
	Port      int
	SessionID string
	Transport string // almost always "tcp"
}

// ParseURI parses an MSRP URI of the form
// "msrp://host:port/session-id;transport".
func ParseURI(s string) (URI, error) {
	var u URI
	switch {
	case strings.HasPrefix(s, "msrps://"):
		u.Secure = true
		s = s[len("msrps://"):]
	case strings.HasPrefix(s, "msrp://"):
		s = s[len("msrp://"):]
	default:
		return URI{}, xerrors.Errorf("msrp: unrecognized URI scheme in %q", s)
	}

	slash := strings.IndexByte(s, '/')
	if slash < 0 {
		return URI{}, xerrors.Errorf("msrp: URI missing session path: %q", s)
	}
	hostport := s[:slash]
	rest := s[slash+1:]

	host, portStr, err := splitHostPort(hostport)
	if err != nil {
		return URI{}, xerrors.Errorf("msrp: %w", err)
	}
	u.Host = host
	if portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return URI{}, xerrors.Errorf("msrp: malformed port %q", portStr)
		}
		u.Port = port
	} else {
		if u.Secure {
			u.Port = 2855
		} else {
			u.Port = 2855
		}
	}

	fields := strings.Split(rest, ";")
	u.SessionID = fields[0]
	if len(fields) > 1 {
		u.Transport = fields[1]
	} else {
		u.Transport = "tcp"
	}
	return u, nil
}

func splitHostPort(hostport string) (host, port string, err error) {
	if strings.HasPrefix(hostport, "[") {
		// IPv6 literal: [::1]:port
		end := strings.IndexByte(hostport, ']')
		if end < 0 {
			return "", "", xerrors.Errorf("unterminated IPv6 literal in %q", hostport)
		}
		host = hostport[1:end]
		remainder := hostport[end+1:]
		if strings.HasPrefix(remainder, ":") {
			port = remainder[1:]
		}
		return host, port, nil
	}
	colon := strings.LastIndexByte(hostport, ':')
	if colon < 0 {
		return hostport, "", nil
	}
	return hostport[:colon], hostport[colon+1:], nil
}

// String formats u back into wire form.
func (u URI) String() string {
	scheme := "msrp"
	if u.Secure {
		scheme = "msrps"
	}
	host := u.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	transport := u.Transport
	if transport == "" {
		transport = "tcp"
	}
	return scheme + "://" + host + ":" + strconv.Itoa(u.Port) + "/" + u.SessionID + ";" + transport
}
