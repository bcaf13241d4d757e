package msrp

import "golang.org/x/xerrors"

// DefaultMaxMessageBytes is the default cap on a fully reassembled
// message's size.
const DefaultMaxMessageBytes = 10 * 1024 * 1024

// DefaultChunkPayloadBytes is the default cap on one outgoing chunk's
// payload.
const DefaultChunkPayloadBytes = 2048

var (
	// ErrMalformedMsrp is a chunk framing violation: a missing start
	// line, an unterminated header block, or an invalid completion flag.
	ErrMalformedMsrp = xerrors.New("msrp: malformed chunk")

	// ErrMessageTooLarge is returned when a reassembled message (or an
	// unterminated chunk) exceeds its configured size limit.
	ErrMessageTooLarge = xerrors.New("msrp: message exceeds maximum size")

	// ErrChunkTimeout indicates a fragmented message's continuation chunk
	// never arrived.
	ErrChunkTimeout = xerrors.New("msrp: chunk timeout")

	// ErrPathMismatch indicates an inbound SEND's From-Path/To-Path
	// didn't match the session's expected peer/local URIs.
	ErrPathMismatch = xerrors.New("msrp: path mismatch")
)
