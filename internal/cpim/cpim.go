// Package cpim implements the message/CPIM wrapper format (RFC 3862) used
// to carry sender/recipient identity alongside MSRP multi-party text
// bodies. Framing is line-oriented CRLF scanning over the raw bytes; the
// wrapped MIME body is preserved as raw bytes so it may itself be binary.
package cpim

import (
	"bytes"
	"strings"

	"golang.org/x/xerrors"
)

// Address is a CPIM "name <uri>" header value, e.g. From/To.
type Address struct {
	Name string
	URI  string
}

func (a Address) String() string {
	if a.Name == "" {
		return a.URI
	}
	return a.Name + " <" + a.URI + ">"
}

func parseAddress(value string) Address {
	value = strings.TrimSpace(value)
	lt := strings.IndexByte(value, '<')
	gt := strings.LastIndexByte(value, '>')
	if lt < 0 || gt < lt {
		return Address{URI: value}
	}
	return Address{
		Name: strings.TrimSpace(value[:lt]),
		URI:  strings.TrimSpace(value[lt+1 : gt]),
	}
}

// Header is an arbitrary "Namespace.Name: value" CPIM top-level header,
// covering NS, Require, and any other namespaced extension header not
// promoted to a named Message field.
type Header struct {
	Name  string
	Value string
}

// Message is a parsed message/CPIM wrapper.
type Message struct {
	From     Address
	To       []Address
	DateTime string
	Subject  []string
	NS       []string
	Require  []string
	Extra    []Header

	MIMEContentType string
	MIMEContentID   string

	Body []byte
}

// errMalformed is returned for any CPIM framing violation: a top-level
// header block missing its terminating blank line, or a MIME header block
// missing its own.
var errMalformed = xerrors.New("cpim: malformed message")

// Parse decodes a message/CPIM body into a Message. The body is treated as
// raw bytes throughout except for the two header blocks, which are ASCII.
func Parse(data []byte) (Message, error) {
	topEnd := bytes.Index(data, []byte("\r\n\r\n"))
	if topEnd < 0 {
		return Message{}, errMalformed
	}
	var msg Message
	for _, line := range strings.Split(string(data[:topEnd]), "\r\n") {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return Message{}, xerrors.Errorf("cpim: malformed header %q", line)
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		switch {
		case strings.EqualFold(name, "From"):
			msg.From = parseAddress(value)
		case strings.EqualFold(name, "To"):
			msg.To = append(msg.To, parseAddress(value))
		case strings.EqualFold(name, "DateTime"):
			msg.DateTime = value
		case strings.EqualFold(name, "Subject"):
			msg.Subject = append(msg.Subject, value)
		case strings.EqualFold(name, "NS"):
			msg.NS = append(msg.NS, value)
		case strings.EqualFold(name, "Require"):
			msg.Require = append(msg.Require, value)
		default:
			msg.Extra = append(msg.Extra, Header{Name: name, Value: value})
		}
	}

	rest := data[topEnd+4:]
	mimeEnd := bytes.Index(rest, []byte("\r\n\r\n"))
	if mimeEnd < 0 {
		return Message{}, errMalformed
	}
	for _, line := range strings.Split(string(rest[:mimeEnd]), "\r\n") {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return Message{}, xerrors.Errorf("cpim: malformed MIME header %q", line)
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		switch {
		case strings.EqualFold(name, "Content-Type"):
			msg.MIMEContentType = value
		case strings.EqualFold(name, "Content-ID"):
			msg.MIMEContentID = value
		}
	}
	msg.Body = append([]byte(nil), rest[mimeEnd+4:]...)
	return msg, nil
}

// Build serializes a Message back into its wire form.
func Build(msg Message) []byte {
	var b bytes.Buffer
	b.WriteString("From: ")
	b.WriteString(msg.From.String())
	b.WriteString("\r\n")
	for _, to := range msg.To {
		b.WriteString("To: ")
		b.WriteString(to.String())
		b.WriteString("\r\n")
	}
	if msg.DateTime != "" {
		b.WriteString("DateTime: ")
		b.WriteString(msg.DateTime)
		b.WriteString("\r\n")
	}
	for _, s := range msg.Subject {
		b.WriteString("Subject: ")
		b.WriteString(s)
		b.WriteString("\r\n")
	}
	for _, ns := range msg.NS {
		b.WriteString("NS: ")
		b.WriteString(ns)
		b.WriteString("\r\n")
	}
	for _, r := range msg.Require {
		b.WriteString("Require: ")
		b.WriteString(r)
		b.WriteString("\r\n")
	}
	for _, h := range msg.Extra {
		b.WriteString(h.Name)
		b.WriteString(": ")
		b.WriteString(h.Value)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	if msg.MIMEContentType != "" {
		b.WriteString("Content-Type: ")
		b.WriteString(msg.MIMEContentType)
		b.WriteString("\r\n")
	}
	if msg.MIMEContentID != "" {
		b.WriteString("Content-ID: ")
		b.WriteString(msg.MIMEContentID)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.Write(msg.Body)
	return b.Bytes()
}
