package msrp

import (
	"io"
	"net"
	"sync"

	"github.com/pkg/errors"

	"github.com/lanikai/ng911core/internal/logging"
)

var log = logging.New("msrp")

// Config configures a Session.
type Config struct {
	LocalPath  []URI
	RemotePath []URI

	// MaxMessageBytes bounds a single reassembled message. Zero selects
	// DefaultMaxMessageBytes.
	MaxMessageBytes int

	// ChunkPayloadBytes bounds one outgoing chunk's body. Zero selects
	// DefaultChunkPayloadBytes.
	ChunkPayloadBytes int

	// OutgoingQueueDepth bounds how many outgoing chunks (SEND fragments,
	// responses and REPORTs) may wait for the writer loop; enqueueing
	// blocks while the queue is full, providing backpressure.
	OutgoingQueueDepth int
}

// Session ties one MSRP connection's reader and writer loops together
// (RFC 4975 §5): inbound chunks are deframed and reassembled into
// Messages, REPORTs are generated and matched, and outbound Messages are
// fragmented and serialized. Its lifecycle follows the same shape as a
// Mux: own goroutines draining a conn, a stop channel, and a WaitGroup to
// join on Close.
type Session struct {
	conn   net.Conn
	config Config

	parser      *Parser
	reassembler *Reassembler

	onMessage func(*Message)
	onReport  func(*Report)

	outgoing chan *Chunk

	mu      sync.Mutex
	pending map[string]chan *Chunk // transaction ID -> response channel
	sent    map[string]struct{}    // Message-ID of messages this side sent, awaiting REPORT

	stopCh chan struct{}
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// NewSession constructs a Session bound to conn. conn is assumed already
// connected (active or passive TCP/TLS establishment happens one layer
// up, the same way internal/dtls.Peer takes ownership of an already
// connected net.Conn rather than dialing itself).
func NewSession(conn net.Conn, config Config) *Session {
	if config.OutgoingQueueDepth <= 0 {
		config.OutgoingQueueDepth = 32
	}
	return &Session{
		conn:        conn,
		config:      config,
		parser:      NewParser(config.MaxMessageBytes),
		reassembler: NewReassembler(config.MaxMessageBytes),
		outgoing:    make(chan *Chunk, config.OutgoingQueueDepth),
		pending:     make(map[string]chan *Chunk),
		sent:        make(map[string]struct{}),
		stopCh:      make(chan struct{}),
	}
}

// OnMessage registers the callback invoked once a full Message has been
// reassembled from inbound SEND chunks.
func (s *Session) OnMessage(fn func(*Message)) { s.onMessage = fn }

// OnReport registers the callback invoked for each inbound REPORT whose
// Message-ID is in this session's sent-message table; REPORTs for other
// Message-IDs are logged and dropped.
func (s *Session) OnReport(fn func(*Report)) { s.onReport = fn }

// Run starts the session's reader and writer loops and blocks until the
// connection closes or Close is called.
func (s *Session) Run() error {
	s.wg.Add(2)
	errCh := make(chan error, 1)
	go s.readLoop(errCh)
	go s.writeLoop()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-s.stopCh:
		return nil
	}
}

// Close tears the session down, unblocking Run and any pending Send.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopCh)
		s.closeErr = s.conn.Close()
		s.wg.Wait()
	})
	return s.closeErr
}

func (s *Session) readLoop(errCh chan error) {
	defer s.wg.Done()
	buf := make([]byte, 4096)
	for {
		for {
			chunk, err := s.parser.Next()
			if err != nil {
				errCh <- err
				return
			}
			if chunk == nil {
				break
			}
			s.handleChunk(chunk)
		}

		n, err := s.conn.Read(buf)
		if n > 0 {
			s.parser.Feed(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				errCh <- errors.Wrap(err, "msrp: reading session")
			}
			return
		}
	}
}

func (s *Session) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case c := <-s.outgoing:
			if _, err := s.conn.Write(c.Marshal()); err != nil {
				log.Warn("msrp write failed: %v", err)
				return
			}
		case <-s.stopCh:
			return
		}
	}
}

func (s *Session) handleChunk(c *Chunk) {
	if !c.IsRequest() {
		s.deliverResponse(c)
		return
	}

	switch c.Method {
	case "SEND":
		s.handleSend(c)
	case "REPORT":
		s.handleReport(c)
	default:
		s.enqueue(response(c, 501, "Not Implemented", s.config.LocalPath, s.config.RemotePath))
	}
}

func (s *Session) handleSend(c *Chunk) {
	if !s.pathsMatch(c) {
		s.enqueue(response(c, 400, "Bad Request", s.config.LocalPath, s.config.RemotePath))
		return
	}

	msg, err := s.reassembler.Feed(c)
	s.enqueue(response(c, 200, "OK", s.config.LocalPath, s.config.RemotePath))

	if err != nil {
		log.Warn("msrp: reassembly failed: %v", err)
		return
	}
	if msg == nil {
		return
	}
	if s.onMessage != nil {
		s.onMessage(msg)
	}
	if wantsReport(msg.FailureReport, msg.SuccessReport, 200) {
		s.enqueue(buildReport(msg, 200, "OK", s.config.LocalPath, s.config.RemotePath))
	}
}

func (s *Session) handleReport(c *Chunk) {
	s.enqueue(response(c, 200, "OK", s.config.LocalPath, s.config.RemotePath))
	rpt, err := parseReport(c)
	if err != nil {
		log.Warn("msrp: malformed REPORT: %v", err)
		return
	}

	// Resolve the REPORT against the sent-message table so a REPORT for a
	// Message-ID this side never sent (e.g. stray or duplicate delivery)
	// is logged rather than handed to the caller.
	s.mu.Lock()
	_, wasSent := s.sent[rpt.MessageID]
	if wasSent && rpt.ByteRange.End == rpt.ByteRange.Total {
		delete(s.sent, rpt.MessageID)
	}
	s.mu.Unlock()
	if !wasSent {
		log.Warn("msrp: REPORT for unknown message %s", rpt.MessageID)
		return
	}

	if s.onReport != nil {
		s.onReport(rpt)
	}
}

func (s *Session) pathsMatch(c *Chunk) bool {
	toPath, _ := c.Header("To-Path")
	if len(s.config.LocalPath) == 0 || toPath == "" {
		return true
	}
	u, err := ParseURI(splitFields(toPath)[0])
	if err != nil {
		return false
	}
	return u.SessionID == s.config.LocalPath[0].SessionID
}

func (s *Session) deliverResponse(c *Chunk) {
	s.mu.Lock()
	ch, ok := s.pending[c.TransactionID]
	if ok {
		delete(s.pending, c.TransactionID)
	}
	s.mu.Unlock()
	if ok {
		ch <- c
	}
}

func (s *Session) enqueue(c *Chunk) {
	select {
	case s.outgoing <- c:
	case <-s.stopCh:
	}
}

// Send fragments content into SEND chunks, transmits them in order, and
// waits for each fragment's transaction-level response before sending the
// next (RFC 4975 §7.1.1 allows pipelining, but serializing keeps ordering
// trivial to reason about). messageID is registered in the sent-message
// table so a subsequent end-to-end REPORT is delivered to onReport rather
// than dropped as unknown.
func (s *Session) Send(messageID, contentType string, content []byte, failureReport, successReport string) error {
	s.mu.Lock()
	s.sent[messageID] = struct{}{}
	s.mu.Unlock()

	chunks := fragment(messageID, contentType, content, s.config.ChunkPayloadBytes, s.config.LocalPath, s.config.RemotePath, failureReport, successReport)
	for _, c := range chunks {
		respCh := make(chan *Chunk, 1)
		s.mu.Lock()
		s.pending[c.TransactionID] = respCh
		s.mu.Unlock()

		s.enqueue(c)

		select {
		case resp := <-respCh:
			if resp.StatusCode >= 300 {
				return errors.Errorf("msrp: chunk %s rejected: %d %s", c.TransactionID, resp.StatusCode, resp.ReasonPhrase)
			}
		case <-s.stopCh:
			return errors.New("msrp: session closed while awaiting chunk response")
		}
	}
	return nil
}
