// Package sip implements the SIP transaction layer of RFC 3261 §17: the
// four per-transaction state machines (client/server, INVITE/non-INVITE),
// their reliability timers, and the dispatcher that routes inbound
// messages to the matching transaction. It is deliberately not a
// user-agent or dialog layer — callers hand it a parsed Message to send
// or receive and are told when the transaction completes; everything
// above the transaction (dialogs, registration, call control) lives
// outside this package.
package sip

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/lanikai/ng911core/internal/logging"
)

var log = logging.New("sip")

// Header is one "Name: value" line. Names are matched case-insensitively
// but the original casing is preserved for re-serialization.
type Header struct {
	Name  string
	Value string
}

// Message is a SIP request or response: a start-line, an ordered header
// list, and an optional body.
type Message struct {
	// Request fields. Method and RequestURI are empty for a response.
	Method     string
	RequestURI string

	// Response fields. StatusCode is 0 for a request.
	StatusCode int
	ReasonPhrase string

	Headers []Header
	Body    []byte
}

// IsRequest reports whether m is a request (as opposed to a response).
func (m *Message) IsRequest() bool {
	return m.StatusCode == 0
}

// Header returns the value of the first header named name (case
// insensitive), and whether one was present.
func (m *Message) Header(name string) (string, bool) {
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}

// AddHeader appends a header, preserving order.
func (m *Message) AddHeader(name, value string) {
	m.Headers = append(m.Headers, Header{Name: name, Value: value})
}

// ReplaceHeader replaces the first header named name with value, or
// appends it if absent.
func (m *Message) ReplaceHeader(name, value string) {
	for i := range m.Headers {
		if strings.EqualFold(m.Headers[i].Name, name) {
			m.Headers[i].Value = value
			return
		}
	}
	m.AddHeader(name, value)
}

// CSeq is the parsed form of a Message's CSeq header.
type CSeq struct {
	Number uint32
	Method string
}

// ParseCSeq parses a Message's CSeq header.
func (m *Message) ParseCSeq() (CSeq, error) {
	v, ok := m.Header("CSeq")
	if !ok {
		return CSeq{}, errors.New("sip: missing CSeq header")
	}
	fields := strings.Fields(v)
	if len(fields) != 2 {
		return CSeq{}, errors.Errorf("sip: malformed CSeq %q", v)
	}
	n, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return CSeq{}, errors.Wrapf(err, "sip: malformed CSeq sequence number %q", fields[0])
	}
	return CSeq{Number: uint32(n), Method: fields[1]}, nil
}

// ViaParams is the parsed top Via header: the branch parameter (the input
// to transaction matching) plus the sent-by host/port needed to route
// responses.
type ViaParams struct {
	Transport string
	SentBy    string
	Branch    string
}

// TopVia parses the first Via header on m.
func (m *Message) TopVia() (ViaParams, error) {
	v, ok := m.Header("Via")
	if !ok {
		return ViaParams{}, errors.New("sip: missing Via header")
	}
	// A Via header may list multiple comma-separated entries; only the
	// first (topmost) one matters for transaction matching.
	top := strings.SplitN(v, ",", 2)[0]

	fields := strings.SplitN(top, " ", 2)
	if len(fields) != 2 {
		return ViaParams{}, errors.Errorf("sip: malformed Via %q", v)
	}
	transportField := strings.TrimSpace(fields[0])
	transportParts := strings.SplitN(transportField, "/", 3)
	transport := ""
	if len(transportParts) == 3 {
		transport = transportParts[2]
	}

	rest := strings.TrimSpace(fields[1])
	parts := strings.Split(rest, ";")
	sentBy := strings.TrimSpace(parts[0])

	var branch string
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(strings.ToLower(p), "branch=") {
			branch = p[len("branch="):]
		}
	}
	return ViaParams{Transport: transport, SentBy: sentBy, Branch: branch}, nil
}

// ToTag extracts the "tag" parameter from the To header, if present.
func (m *Message) ToTag() string {
	return headerParam(m, "To", "tag")
}

// FromTag extracts the "tag" parameter from the From header, if present.
func (m *Message) FromTag() string {
	return headerParam(m, "From", "tag")
}

func headerParam(m *Message, header, param string) string {
	v, ok := m.Header(header)
	if !ok {
		return ""
	}
	for _, p := range strings.Split(v, ";") {
		p = strings.TrimSpace(p)
		prefix := param + "="
		if strings.HasPrefix(strings.ToLower(p), prefix) {
			return p[len(prefix):]
		}
	}
	return ""
}

// BranchMagicCookie is the RFC 3261 §8.1.1.7 prefix every compliant Via
// branch parameter starts with, used to identify transaction-capable
// elements in the dialog path.
const BranchMagicCookie = "z9hG4bK"
