package sip

import "time"

// newServerTransaction constructs a server transaction (INVITE or
// non-INVITE) in its initial state, without sending anything — the
// application sends the first response via SendResponse from within
// RequestHandler.NewTransaction.
func newServerTransaction(kind Kind, id ID, timers Timers, transport Transport, remote string, req *Message, e *Engine) *Transaction {
	state := StateTrying
	if kind == ServerInvite {
		state = StateProceeding
	}
	return &Transaction{
		kind:       kind,
		id:         id,
		timers:     timers,
		transport:  transport,
		remote:     remote,
		reliable:   transport.Reliable(),
		request:    req,
		state:      state,
		completion: newCompletion(),
		engine:     e,
	}
}

// SendResponse sends resp from a server transaction's TransactionUser,
// per RFC 3261 §17.2.1 (INVITE) / §17.2.2 (non-INVITE).
func (t *Transaction) SendResponse(resp *Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.kind == ServerInvite {
		return t.sendInviteResponseLocked(resp)
	}
	return t.sendNonInviteResponseLocked(resp)
}

func (t *Transaction) sendInviteResponseLocked(resp *Message) error {
	if t.state != StateProceeding && t.state != StateCompleted {
		return errTransactionNotProceeding
	}

	status := resp.StatusCode
	if err := t.send(resp); err != nil {
		return err
	}
	t.lastResponseSent = resp

	switch {
	case status >= 100 && status < 200:
		// stays in Proceeding

	case status >= 200 && status < 300:
		// §17.2.1: a 2xx exits the server transaction entirely, even when
		// it is the very first response the application supplies
		// an unusual but RFC-compliant immediate-Terminated path.
		t.terminate(ReasonOkReceived)

	default: // 3xx-6xx
		t.state = StateCompleted
		if !t.reliable {
			t.retransmitInterval = minDuration(2*t.timers.T1, t.timers.T2)
			t.retransmitAt = time.Now().Add(t.retransmitInterval)
			t.retransmitCapped = true
			t.totalDeadline = time.Now().Add(t.timers.H)
		} else {
			t.terminate(ReasonFinalResponseReceived)
		}
	}
	return nil
}

// handleAck processes an inbound ACK matching this server INVITE
// transaction's Completed state, moving it to Confirmed (UDP) or directly
// Terminated (reliable transports), per RFC 3261 §17.2.1.
func (t *Transaction) handleAck() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != StateCompleted {
		return
	}
	t.retransmitAt = time.Time{}
	if t.reliable {
		t.terminate(ReasonNone)
		return
	}
	t.state = StateConfirmed
	t.totalDeadline = time.Now().Add(t.timers.I)
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

var errTransactionNotProceeding = transactionStateError("sip: server transaction cannot send a response from its current state")

type transactionStateError string

func (e transactionStateError) Error() string { return string(e) }
