package sip

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// TickInterval is the default period of Engine's periodic scheduler, kept
// well under the smallest RFC 3261 retransmit interval (T1, 500ms).
const TickInterval = 100 * time.Millisecond

// RequestHandler lets the application accept inbound requests that don't
// match any existing transaction. SupportsMethod gates which methods may
// spawn a server transaction at all; NewTransaction is invoked
// synchronously, under no lock, right after the transaction is created and
// entered into the table, so the application can register its
// TransactionUser callbacks and, for INVITE, call txn.SendResponse with its
// initial response before NewTransaction returns.
type RequestHandler interface {
	SupportsMethod(method string) bool
	NewTransaction(txn *Transaction, req *Message)
}

// Engine is the dispatcher over RFC 3261 §17's four transaction state
// machines: a transaction table keyed by ID, driven by a periodic ticker,
// with each transaction's own mutex serializing its state transitions.
type Engine struct {
	timers  Timers
	handler RequestHandler

	mu   sync.Mutex
	txns map[ID]*Transaction

	unmatchedResponses uint64

	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewEngine constructs an Engine with the given timer configuration
// (zero fields default to the RFC values) and request handler.
func NewEngine(timers Timers, handler RequestHandler) *Engine {
	e := &Engine{
		timers:  timers.withDefaults(),
		handler: handler,
		txns:    make(map[ID]*Transaction),
		stopCh:  make(chan struct{}),
	}
	e.ticker = time.NewTicker(TickInterval)
	e.wg.Add(1)
	go e.run()
	return e
}

// Stop halts the periodic scheduler. It does not terminate live
// transactions.
func (e *Engine) Stop() {
	close(e.stopCh)
	e.ticker.Stop()
	e.wg.Wait()
}

func (e *Engine) run() {
	defer e.wg.Done()
	for {
		select {
		case now := <-e.ticker.C:
			e.tick(now)
		case <-e.stopCh:
			return
		}
	}
}

func (e *Engine) tick(now time.Time) {
	e.mu.Lock()
	txns := make([]*Transaction, 0, len(e.txns))
	for _, t := range e.txns {
		txns = append(txns, t)
	}
	e.mu.Unlock()

	for _, t := range txns {
		t.onTick(now)
	}
}

func (e *Engine) insert(t *Transaction) {
	e.mu.Lock()
	e.txns[t.id] = t
	e.mu.Unlock()
}

func (e *Engine) remove(id ID) {
	e.mu.Lock()
	delete(e.txns, id)
	e.mu.Unlock()
}

func (e *Engine) lookup(id ID) (*Transaction, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.txns[id]
	return t, ok
}

// UnmatchedResponseCount returns the number of responses dropped because
// no client transaction matched them.
func (e *Engine) UnmatchedResponseCount() uint64 {
	return atomic.LoadUint64(&e.unmatchedResponses)
}

// HandleMessage routes an inbound message, received from remote over
// transport, to its matching transaction, or spawns a new server
// transaction for an unmatched request.
func (e *Engine) HandleMessage(msg *Message, remote string, transport Transport) error {
	if msg.IsRequest() {
		return e.handleRequest(msg, remote, transport)
	}
	return e.handleResponse(msg)
}

func (e *Engine) handleResponse(resp *Message) error {
	id, err := ResponseID(resp)
	if err != nil {
		return errors.Wrap(err, "sip: dispatch")
	}
	txn, ok := e.lookup(id)
	if !ok {
		atomic.AddUint64(&e.unmatchedResponses, 1)
		return nil
	}
	switch txn.kind {
	case ClientInvite:
		txn.handleResponse(resp)
	case ClientNonInvite:
		txn.handleResponse(resp)
	}
	return nil
}

func (e *Engine) handleRequest(req *Message, remote string, transport Transport) error {
	id, err := RequestID(req)
	if err != nil {
		return errors.Wrap(err, "sip: dispatch")
	}

	if txn, ok := e.lookup(id); ok {
		if req.Method == "ACK" && txn.kind == ServerInvite {
			txn.handleAck()
			return nil
		}
		txn.handleRequestRetransmission(req)
		return nil
	}

	if req.Method == "ACK" {
		// An ACK that matches no INVITE server transaction (e.g. ACK to a
		// 2xx, which terminates the server transaction immediately per
		// §17.2.1) is passed through to the application directly; the
		// dispatcher itself has no transaction to hand it to.
		if e.handler != nil {
			e.handler.NewTransaction(nil, req)
		}
		return nil
	}

	if e.handler == nil || !e.handler.SupportsMethod(req.Method) {
		return nil
	}

	kind := ServerNonInvite
	if req.Method == "INVITE" {
		kind = ServerInvite
	}
	txn := newServerTransaction(kind, id, e.timers, transport, remote, req, e)
	e.insert(txn)
	e.handler.NewTransaction(txn, req)
	return nil
}
