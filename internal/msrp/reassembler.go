package msrp

import (
	"sync"

	"github.com/pkg/errors"
)

// Message is one complete, reassembled MSRP message.
type Message struct {
	TransactionID string // of the chunk that completed the message
	FromPath      []URI
	ToPath        []URI
	MessageID     string
	ContentType   string
	Content       []byte
	ByteRange     ByteRange
	FailureReport string // "yes" (default), "no", or "partial"
	SuccessReport string // "yes" or "no" (default)
}

// partial tracks one in-progress fragmented message, keyed by Message-ID.
type partial struct {
	fromPath      []URI
	toPath        []URI
	contentType   string
	failureReport string
	successReport string
	total         int64 // -1 if unknown so far
	buf           []byte
}

// Reassembler reassembles fragmented SEND chunks into complete Messages,
// by Message-ID. It follows the same idiom as a NAL-unit reassembler: a
// map of partial buffers keyed by identifier, flushed on a terminal
// marker ('$' here, a start code there).
type Reassembler struct {
	mu              sync.Mutex
	partials        map[string]*partial
	maxMessageBytes int
}

// NewReassembler constructs a Reassembler with the given per-message size
// cap.
func NewReassembler(maxMessageBytes int) *Reassembler {
	if maxMessageBytes <= 0 {
		maxMessageBytes = DefaultMaxMessageBytes
	}
	return &Reassembler{
		partials:        make(map[string]*partial),
		maxMessageBytes: maxMessageBytes,
	}
}

// Feed processes one SEND chunk. It returns a non-nil Message once the
// chunk carrying Completion==Complete arrives for that Message-ID; nil,
// nil while a Continuation chunk is absorbed awaiting more; and an error
// for a malformed chunk or one that pushes the reassembled message past
// the size limit.
func (r *Reassembler) Feed(c *Chunk) (*Message, error) {
	messageID, _ := c.Header("Message-ID")
	if messageID == "" {
		return nil, errors.New("msrp: SEND chunk missing Message-ID")
	}

	byteRangeHdr, _ := c.Header("Byte-Range")
	var br ByteRange
	if byteRangeHdr != "" {
		var err error
		br, err = ParseByteRange(byteRangeHdr)
		if err != nil {
			return nil, errors.Wrap(err, "msrp: reassembling message")
		}
	} else {
		br = ByteRange{Start: 1, End: int64(len(c.Body)), Total: int64(len(c.Body))}
	}

	r.mu.Lock()
	p, ok := r.partials[messageID]
	if !ok {
		p = &partial{
			fromPath:      parsePathHeader(c, "From-Path"),
			toPath:        parsePathHeader(c, "To-Path"),
			total:         -1,
			failureReport: headerOrDefault(c, "Failure-Report", "yes"),
			successReport: headerOrDefault(c, "Success-Report", "no"),
		}
		if ct, ok := c.Header("Content-Type"); ok {
			p.contentType = ct
		}
		r.partials[messageID] = p
	}
	p.buf = append(p.buf, c.Body...)
	if br.Total >= 0 {
		p.total = br.Total
	}
	tooLarge := len(p.buf) > r.maxMessageBytes || (p.total >= 0 && p.total > int64(r.maxMessageBytes))
	complete := c.Completion == Complete
	aborted := c.Completion == Abort
	if complete || tooLarge || aborted {
		delete(r.partials, messageID)
	}
	r.mu.Unlock()

	if tooLarge {
		return nil, ErrMessageTooLarge
	}
	if c.Completion == Abort {
		return nil, errors.Errorf("msrp: message %s aborted mid-transfer", messageID)
	}
	if !complete {
		return nil, nil
	}

	return &Message{
		TransactionID: c.TransactionID,
		FromPath:      p.fromPath,
		ToPath:        p.toPath,
		MessageID:     messageID,
		ContentType:   p.contentType,
		Content:       p.buf,
		ByteRange:     ByteRange{Start: 1, End: int64(len(p.buf)), Total: int64(len(p.buf))},
		FailureReport: p.failureReport,
		SuccessReport: p.successReport,
	}, nil
}

func headerOrDefault(c *Chunk, name, def string) string {
	if v, ok := c.Header(name); ok && v != "" {
		return v
	}
	return def
}

func parsePathHeader(c *Chunk, name string) []URI {
	v, ok := c.Header(name)
	if !ok {
		return nil
	}
	var uris []URI
	for _, tok := range splitFields(v) {
		u, err := ParseURI(tok)
		if err != nil {
			continue
		}
		uris = append(uris, u)
	}
	return uris
}

func splitFields(s string) []string {
	var fields []string
	start := -1
	for i := 0; i <= len(s); i++ {
		if i < len(s) && s[i] != ' ' && s[i] != '\t' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			fields = append(fields, s[start:i])
			start = -1
		}
	}
	return fields
}
