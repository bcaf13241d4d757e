package body

import "golang.org/x/xerrors"

// Errors returned by Parse. They are always recovered locally by the
// caller (a dropped frame plus a counter increment); this package never
// panics on malformed input.
var (
	// ErrMalformedBody covers a missing CRLFCRLF header/body separator,
	// a missing final boundary, or a zero-length body.
	ErrMalformedBody = xerrors.New("body: malformed multipart body")

	// ErrMissingBoundary is returned when a multipart Content-Type has no
	// boundary parameter.
	ErrMissingBoundary = xerrors.New("body: multipart content-type missing boundary parameter")
)
