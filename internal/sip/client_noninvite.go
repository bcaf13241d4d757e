package sip

import (
	"time"

	"github.com/pkg/errors"
)

// StartClientNonInvite creates and starts a client non-INVITE transaction,
// sending req immediately and entering Trying.
func (e *Engine) StartClientNonInvite(req *Message, remote string, transport Transport) (*Transaction, error) {
	id, err := RequestID(req)
	if err != nil {
		return nil, errors.Wrap(err, "sip: starting client non-INVITE transaction")
	}

	t := &Transaction{
		kind:       ClientNonInvite,
		id:         id,
		timers:     e.timers,
		transport:  transport,
		remote:     remote,
		reliable:   transport.Reliable(),
		request:    req,
		state:      StateTrying,
		completion: newCompletion(),
		engine:     e,
	}

	if err := t.send(req); err != nil {
		return nil, err
	}

	if !t.reliable {
		t.retransmitInterval = t.timers.T1
		t.retransmitAt = time.Now().Add(t.retransmitInterval)
		t.retransmitCapped = true // non-INVITE retransmit doubling is capped at T2
	}
	t.totalDeadline = time.Now().Add(t.timers.F)

	e.insert(t)
	return t, nil
}

// handleNonInviteResponseLocked processes an inbound response to a client
// non-INVITE transaction (Trying/Proceeding/Completed).
func (t *Transaction) handleNonInviteResponseLocked(resp *Message) {
	t.lastResponseReceived = resp
	status := resp.StatusCode

	switch {
	case status >= 100 && status < 200:
		t.handlers.fireProvisional(resp)
		if t.state == StateTrying {
			t.state = StateProceeding
		}

	default: // 2xx - 6xx final
		t.handlers.fireFinal(resp)
		t.state = StateCompleted
		t.retransmitAt = time.Time{}
		reason := ReasonFinalResponseReceived
		if status >= 200 && status < 300 {
			reason = ReasonOkReceived
		}
		if t.reliable {
			t.terminate(reason)
		} else {
			t.reason = reason
			t.totalDeadline = time.Now().Add(t.timers.K)
		}
	}
}
