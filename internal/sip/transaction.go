package sip

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// Kind identifies which of the four RFC 3261 §17 state machines a
// Transaction implements. The four kinds share one record of timers,
// remote endpoint, and scheduling state as a tagged union; Engine
// dispatches on Kind rather than through separate types.
type Kind int

const (
	ClientInvite Kind = iota
	ClientNonInvite
	ServerInvite
	ServerNonInvite
)

func (k Kind) String() string {
	switch k {
	case ClientInvite:
		return "ClientInvite"
	case ClientNonInvite:
		return "ClientNonInvite"
	case ServerInvite:
		return "ServerInvite"
	case ServerNonInvite:
		return "ServerNonInvite"
	default:
		return "Unknown"
	}
}

// State is a transaction's position in its state machine. Not every value
// is reachable by every Kind; see RFC 3261 §17.1.1-§17.2.2 for the
// per-kind transition diagrams.
type State int

const (
	StateCalling State = iota
	StateTrying
	StateProceeding
	StateCompleted
	StateConfirmed
	StateTerminated
	StateForceTerminated
)

func (s State) String() string {
	switch s {
	case StateCalling:
		return "Calling"
	case StateTrying:
		return "Trying"
	case StateProceeding:
		return "Proceeding"
	case StateCompleted:
		return "Completed"
	case StateConfirmed:
		return "Confirmed"
	case StateTerminated:
		return "Terminated"
	case StateForceTerminated:
		return "ForceTerminated"
	default:
		return "Unknown"
	}
}

// Transaction is one SIP transaction: a tagged union over the four kinds,
// guarded by a single serializing lock — one mutex per transaction guards
// state, timers, and the last response sent/received.
type Transaction struct {
	mu sync.Mutex

	kind      Kind
	id        ID
	timers    Timers
	transport Transport
	remote    string
	reliable  bool

	request              *Message
	lastResponseSent     *Message
	lastResponseReceived *Message

	state  State
	reason TerminationReason

	handlers   eventHandlers
	completion *completion

	// retransmission scheduling, driven by Engine's periodic tick via
	// onTick: a periodic ticker drives the due timer events on every live
	// transaction.
	retransmitAt       time.Time
	retransmitInterval time.Duration
	retransmitCapped   bool // true: cap doubling at T2 (non-INVITE, server INVITE Timer G)

	totalDeadline time.Time // whichever of B/D/F/H/I/J/K governs the current state

	// cancelTxn is set on a ClientInvite transaction once Cancel has
	// spawned its CANCEL client non-INVITE transaction.
	cancelTxn *Transaction

	engine *Engine
}

// ID returns the transaction's identifier.
func (t *Transaction) ID() ID { return t.id }

// Kind returns which of the four state machines this transaction runs.
func (t *Transaction) Kind() Kind { return t.kind }

// State returns the transaction's current state.
func (t *Transaction) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Request returns the transaction's original request.
func (t *Transaction) Request() *Message { return t.request }

// OnProvisionalResponse registers a callback fired for every 1xx (other
// than 100) a client transaction receives.
func (t *Transaction) OnProvisionalResponse(f func(*Message)) {
	t.handlers.addProvisional(f)
}

// OnFinalResponse registers a callback fired once with the final (2xx-6xx)
// response a client transaction receives.
func (t *Transaction) OnFinalResponse(f func(*Message)) {
	t.handlers.addFinal(f)
}

// OnRequestRetransmission registers a callback fired on a server
// transaction each time the client retransmits its request.
func (t *Transaction) OnRequestRetransmission(f func(*Message)) {
	t.handlers.addRequest(f)
}

// OnTerminated registers a callback fired exactly once when the
// transaction terminates.
func (t *Transaction) OnTerminated(f func(TerminationReason)) {
	t.completion.OnTerminated(f)
}

// AwaitCompletion blocks until the transaction terminates and returns why.
func (t *Transaction) AwaitCompletion() TerminationReason {
	return t.completion.Await()
}

// Done returns a channel that closes when the transaction terminates.
func (t *Transaction) Done() <-chan struct{} {
	return t.completion.Done()
}

func (t *Transaction) terminate(reason TerminationReason) {
	t.reason = reason
	t.state = StateTerminated
	t.retransmitAt = time.Time{}
	t.totalDeadline = time.Time{}
	t.completion.resolve(reason)
	if t.engine != nil {
		t.engine.remove(t.id)
	}
}

func (t *Transaction) forceTerminate(reason TerminationReason) {
	t.reason = reason
	t.state = StateForceTerminated
	t.retransmitAt = time.Time{}
	t.totalDeadline = time.Time{}
	t.completion.resolve(reason)
	if t.engine != nil {
		t.engine.remove(t.id)
	}
}

func (t *Transaction) send(msg *Message) error {
	if err := t.transport.Send(msg, t.remote); err != nil {
		return errors.Wrapf(err, "sip: %v transaction %+v: send failed", t.kind, t.id)
	}
	return nil
}

// onTick is invoked by Engine's periodic scheduler, under t.mu, for every
// live transaction to check its due timer events.
func (t *Transaction) onTick(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateTerminated || t.state == StateForceTerminated {
		return
	}

	if !t.retransmitAt.IsZero() && !now.Before(t.retransmitAt) {
		t.retransmit()
		t.scheduleNextRetransmit(now)
	}
	if !t.totalDeadline.IsZero() && !now.Before(t.totalDeadline) {
		t.onTotalDeadline()
	}
}

func (t *Transaction) scheduleNextRetransmit(now time.Time) {
	next := t.retransmitInterval * 2
	if t.retransmitCapped && next > t.timers.T2 {
		next = t.timers.T2
	}
	t.retransmitInterval = next
	t.retransmitAt = now.Add(next)
}

// retransmit resends the message appropriate to the current state: the
// original request for a client transaction in Calling/Trying, or the last
// sent response for a server transaction in Completed (Timer G).
func (t *Transaction) retransmit() {
	switch t.kind {
	case ClientInvite, ClientNonInvite:
		_ = t.send(t.request)
	case ServerInvite:
		if t.lastResponseSent != nil {
			_ = t.send(t.lastResponseSent)
		}
	}
}

func (t *Transaction) onTotalDeadline() {
	switch t.kind {
	case ClientInvite:
		switch t.state {
		case StateCalling:
			t.terminate(ReasonNoResponseReceived)
		case StateCompleted:
			t.terminate(ReasonFinalResponseReceived) // Timer D: silent termination
		}
	case ClientNonInvite:
		switch t.state {
		case StateTrying:
			t.terminate(ReasonNoResponseReceived)
		case StateProceeding:
			t.terminate(ReasonNoFinalResponseReceived)
		case StateCompleted:
			t.terminate(t.reason) // Timer K; t.reason was set to Ok/FinalResponseReceived on entry
		}
	case ServerInvite:
		switch t.state {
		case StateCompleted:
			t.terminate(ReasonAckToFinalResponseNotReceived) // Timer H
		case StateConfirmed:
			t.terminate(ReasonNone) // Timer I: silent termination
		}
	case ServerNonInvite:
		if t.state == StateCompleted {
			t.terminate(ReasonNone) // Timer J: silent termination
		}
	}
}
