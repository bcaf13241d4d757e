// Package body implements the byte-exact multipart/mixed codec (RFC 2046)
// shared by the SIP and MSRP layers. Unlike net/mime's multipart reader, it
// never promotes the message to a character string: boundaries are located
// by byte-wise search so that binary parts (JPEG stills, ISUP payloads)
// survive parse/build round-trips unchanged.
package body

import (
	"bytes"
	"strings"

	"golang.org/x/xerrors"
)

// knownBinaryTypes classifies a part as binary by content-type alone, even
// when no Content-Transfer-Encoding is present.
var knownBinaryTypes = map[string]bool{
	"application/octet-stream": true,
	"application/isup":         true,
	"application/jpeg":         true,
	"application/jpg":          true,
	"image/jpeg":               true,
}

// Part is a single body part of a multipart/mixed message.
type Part struct {
	ContentType             string
	ContentTypeParams       Params
	ContentDisposition      string
	ContentDispositionParams Params
	ContentID               string
	ContentDescription      string
	TransferEncoding        string

	// Binary reports which of Text/Bytes holds the payload. A part is
	// binary iff its Content-Transfer-Encoding contains "binary"
	// (case-insensitive) or its content-type is a known-binary type.
	Binary bool
	Text   string
	Bytes  []byte
}

// Payload returns the part's payload as bytes regardless of which of
// Text/Bytes is populated.
func (p *Part) Payload() []byte {
	if p.Binary {
		return p.Bytes
	}
	return []byte(p.Text)
}

func isBinaryPart(contentType, transferEncoding string) bool {
	if strings.Contains(strings.ToLower(transferEncoding), "binary") {
		return true
	}
	mediatype, _, err := parseTypeAndParams(contentType)
	if err != nil {
		return false
	}
	return knownBinaryTypes[strings.ToLower(strings.TrimSpace(mediatype))]
}

// Boundary extracts the boundary parameter from a multipart Content-Type
// header value, e.g. `multipart/mixed; boundary="abc123"`.
func Boundary(contentType string) (string, error) {
	mediatype, params, err := parseTypeAndParams(contentType)
	if err != nil {
		return "", xerrors.Errorf("body: %w", err)
	}
	if !strings.HasPrefix(strings.ToLower(mediatype), "multipart/") {
		return "", xerrors.Errorf("body: %q is not a multipart content-type", mediatype)
	}
	b, ok := params.Get("boundary")
	if !ok || b == "" {
		return "", ErrMissingBoundary
	}
	return b, nil
}

// Parse splits a multipart/mixed body into its constituent Parts. contentType
// is the message's own Content-Type header value, used only to recover the
// boundary parameter.
func Parse(data []byte, contentType string) ([]Part, error) {
	if len(data) == 0 {
		return nil, ErrMalformedBody
	}

	boundary, err := Boundary(contentType)
	if err != nil {
		return nil, err
	}

	delim := append([]byte("--"), boundary...)

	start := bytes.Index(data, delim)
	if start < 0 || (start > 0 && !bytes.HasSuffix(data[:start], []byte("\r\n"))) {
		return nil, ErrMalformedBody
	}
	pos := start + len(delim)

	var parts []Part
	for {
		if pos+2 > len(data) {
			return nil, ErrMalformedBody
		}
		if bytes.HasPrefix(data[pos:], []byte("--")) {
			// Final boundary; remainder is an ignored epilogue.
			return parts, nil
		}
		if !bytes.HasPrefix(data[pos:], []byte("\r\n")) {
			return nil, ErrMalformedBody
		}
		pos += 2

		nextDelim := bytes.Index(data[pos:], append([]byte("\r\n--"), boundary...))
		if nextDelim < 0 {
			return nil, ErrMalformedBody
		}
		raw := data[pos : pos+nextDelim]

		part, err := parsePart(raw)
		if err != nil {
			return nil, err
		}
		parts = append(parts, part)

		pos += nextDelim + len("\r\n--") + len(boundary)
	}
}

func parsePart(raw []byte) (Part, error) {
	headerEnd := bytes.Index(raw, []byte("\r\n\r\n"))
	if headerEnd < 0 {
		return Part{}, ErrMalformedBody
	}
	headerBlock := string(raw[:headerEnd])
	payload := raw[headerEnd+4:]

	var part Part
	for _, line := range strings.Split(headerBlock, "\r\n") {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			return Part{}, ErrMalformedBody
		}
		name := strings.TrimSpace(line[:colon])
		value := strings.TrimSpace(line[colon+1:])
		switch strings.ToLower(name) {
		case "content-type":
			mediatype, params, err := parseTypeAndParams(value)
			if err != nil {
				return Part{}, xerrors.Errorf("body: %w", err)
			}
			part.ContentType = mediatype
			part.ContentTypeParams = params
		case "content-disposition":
			disp, params, err := parseTypeAndParams(value)
			if err != nil {
				return Part{}, xerrors.Errorf("body: %w", err)
			}
			part.ContentDisposition = disp
			part.ContentDispositionParams = params
		case "content-id":
			part.ContentID = value
		case "content-description":
			part.ContentDescription = value
		case "content-transfer-encoding":
			part.TransferEncoding = value
		}
	}

	part.Binary = isBinaryPart(part.ContentType, part.TransferEncoding)
	if part.Binary {
		part.Bytes = append([]byte(nil), payload...)
	} else {
		part.Text = string(payload)
	}
	return part, nil
}

// Build serializes parts into a multipart/mixed body delimited by boundary.
// The caller is responsible for setting the enclosing message's
// Content-Type to "multipart/mixed; boundary=<boundary>".
func Build(parts []Part, boundary string) []byte {
	var buf bytes.Buffer
	for _, p := range parts {
		buf.WriteString("--")
		buf.WriteString(boundary)
		buf.WriteString("\r\n")

		if p.ContentType != "" {
			buf.WriteString("Content-Type: ")
			buf.WriteString(formatParams(p.ContentType, p.ContentTypeParams))
			buf.WriteString("\r\n")
		}
		if p.ContentDisposition != "" {
			buf.WriteString("Content-Disposition: ")
			buf.WriteString(formatParams(p.ContentDisposition, p.ContentDispositionParams))
			buf.WriteString("\r\n")
		}
		if p.ContentID != "" {
			buf.WriteString("Content-ID: ")
			buf.WriteString(p.ContentID)
			buf.WriteString("\r\n")
		}
		if p.ContentDescription != "" {
			buf.WriteString("Content-Description: ")
			buf.WriteString(p.ContentDescription)
			buf.WriteString("\r\n")
		}
		if p.TransferEncoding != "" {
			buf.WriteString("Content-Transfer-Encoding: ")
			buf.WriteString(p.TransferEncoding)
			buf.WriteString("\r\n")
		}
		buf.WriteString("\r\n")
		buf.Write(p.Payload())
		buf.WriteString("\r\n")
	}
	buf.WriteString("--")
	buf.WriteString(boundary)
	buf.WriteString("--\r\n")
	return buf.Bytes()
}
