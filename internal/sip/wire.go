package sip

import (
	"bytes"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// ErrMalformedSip is returned by Parse for any framing violation: a
// missing CRLF-terminated start line, a header block with no terminating
// blank line, or a Content-Length that disagrees with the actual body
// length.
var ErrMalformedSip = xerrors.New("sip: malformed message")

// Parse decodes a single SIP message (request or response) from data.
// data must contain exactly one message; MSRP-style framing and
// pipelined-message splitting are the transport layer's job.
func Parse(data []byte) (*Message, error) {
	headerEnd := bytes.Index(data, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return nil, ErrMalformedSip
	}
	lines := strings.Split(string(data[:headerEnd]), "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, ErrMalformedSip
	}

	m := &Message{}
	if err := parseStartLine(m, lines[0]); err != nil {
		return nil, xerrors.Errorf("%v: %w", err, ErrMalformedSip)
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return nil, xerrors.Errorf("sip: malformed header %q: %w", line, ErrMalformedSip)
		}
		m.AddHeader(strings.TrimSpace(line[:colon]), strings.TrimSpace(line[colon+1:]))
	}

	body := data[headerEnd+4:]
	if cl, ok := m.Header("Content-Length"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(cl))
		if err != nil {
			return nil, xerrors.Errorf("sip: malformed Content-Length %q: %w", cl, ErrMalformedSip)
		}
		if n != len(body) {
			return nil, xerrors.Errorf("sip: Content-Length %d does not match body length %d: %w", n, len(body), ErrMalformedSip)
		}
	}
	m.Body = append([]byte(nil), body...)
	return m, nil
}

func parseStartLine(m *Message, line string) error {
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return xerrors.Errorf("sip: malformed start line %q", line)
	}
	if strings.HasPrefix(fields[0], "SIP/") {
		// Response: SIP-Version SP Status-Code SP Reason-Phrase
		code, err := strconv.Atoi(fields[1])
		if err != nil {
			return xerrors.Errorf("sip: malformed status code %q", fields[1])
		}
		m.StatusCode = code
		if len(fields) == 3 {
			m.ReasonPhrase = fields[2]
		}
		return nil
	}
	// Request: Method SP Request-URI SP SIP-Version
	if len(fields) != 3 {
		return xerrors.Errorf("sip: malformed request line %q", line)
	}
	m.Method = fields[0]
	m.RequestURI = fields[1]
	return nil
}

// Marshal serializes m to its wire form, setting/overwriting Content-Length
// to match the current body.
func (m *Message) Marshal() []byte {
	var b bytes.Buffer
	if m.IsRequest() {
		b.WriteString(m.Method)
		b.WriteByte(' ')
		b.WriteString(m.RequestURI)
		b.WriteString(" SIP/2.0\r\n")
	} else {
		b.WriteString("SIP/2.0 ")
		b.WriteString(strconv.Itoa(m.StatusCode))
		b.WriteByte(' ')
		b.WriteString(m.ReasonPhrase)
		b.WriteString("\r\n")
	}

	wroteContentLength := false
	for _, h := range m.Headers {
		if strings.EqualFold(h.Name, "Content-Length") {
			wroteContentLength = true
		}
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	if !wroteContentLength {
		b.WriteString("Content-Length: ")
		b.WriteString(strconv.Itoa(len(m.Body)))
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.Write(m.Body)
	return b.Bytes()
}
