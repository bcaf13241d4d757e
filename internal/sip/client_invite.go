package sip

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// StartClientInvite creates and starts a client INVITE transaction,
// sending req immediately and entering Calling.
func (e *Engine) StartClientInvite(req *Message, remote string, transport Transport) (*Transaction, error) {
	id, err := RequestID(req)
	if err != nil {
		return nil, errors.Wrap(err, "sip: starting client INVITE transaction")
	}

	t := &Transaction{
		kind:       ClientInvite,
		id:         id,
		timers:     e.timers,
		transport:  transport,
		remote:     remote,
		reliable:   transport.Reliable(),
		request:    req,
		state:      StateCalling,
		completion: newCompletion(),
		engine:     e,
	}

	if err := t.send(req); err != nil {
		return nil, err
	}

	if !t.reliable {
		t.retransmitInterval = t.timers.T1
		t.retransmitAt = time.Now().Add(t.retransmitInterval)
		t.retransmitCapped = false // client INVITE retransmit doubles uncapped until Timer B
	}
	t.totalDeadline = time.Now().Add(t.timers.B)

	e.insert(t)
	return t, nil
}

// handleResponse processes an inbound response to a client INVITE
// transaction, per the Calling/Proceeding/Completed transitions of
// RFC 3261 §17.1.1.
func (t *Transaction) handleResponse(resp *Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state == StateTerminated || t.state == StateForceTerminated {
		return
	}

	if t.kind == ClientInvite {
		t.handleInviteResponseLocked(resp)
		return
	}
	t.handleNonInviteResponseLocked(resp)
}

func (t *Transaction) handleInviteResponseLocked(resp *Message) {
	t.lastResponseReceived = resp
	status := resp.StatusCode

	switch {
	case status >= 100 && status < 200:
		t.retransmitAt = time.Time{} // any response received silences retransmission
		if status != 100 {
			t.handlers.fireProvisional(resp)
			if t.state == StateCalling {
				t.state = StateProceeding
			}
		}

	case status >= 200 && status < 300:
		ack := t.buildAck(resp)
		_ = t.send(ack)
		t.handlers.fireFinal(resp)
		t.terminate(ReasonOkReceived)

	default: // 3xx - 6xx
		ack := t.buildAck(resp)
		_ = t.send(ack)
		t.handlers.fireFinal(resp)
		t.state = StateCompleted
		t.retransmitAt = time.Time{}
		if t.reliable {
			t.terminate(ReasonFinalResponseReceived)
		} else {
			t.totalDeadline = time.Now().Add(t.timers.D)
		}
	}
}

// buildAck constructs the ACK for a final response to an INVITE, per RFC
// 3261 §17.1.1.3: same Call-ID/From/CSeq-number/top-Via/Request-URI as the
// INVITE, To taken from the response (to pick up its tag), CSeq method
// changed to ACK.
func (t *Transaction) buildAck(resp *Message) *Message {
	ack := &Message{
		Method:     "ACK",
		RequestURI: t.request.RequestURI,
	}
	for _, h := range t.request.Headers {
		switch strings.ToLower(h.Name) {
		case "to":
			continue // replaced below with the response's To (carries the tag)
		case "cseq", "content-length", "content-type":
			continue
		default:
			ack.AddHeader(h.Name, h.Value)
		}
	}
	if to, ok := resp.Header("To"); ok {
		ack.AddHeader("To", to)
	}
	cseq, err := t.request.ParseCSeq()
	if err == nil {
		ack.AddHeader("CSeq", itoa(cseq.Number)+" ACK")
	}
	return ack
}

// Cancel issues a CANCEL for this INVITE transaction. It is accepted only
// in Proceeding, since a provisional response must have been received
// first (RFC 3261 §9.1).
func (t *Transaction) Cancel() bool {
	t.mu.Lock()
	if t.kind != ClientInvite || t.state != StateProceeding || t.cancelTxn != nil {
		t.mu.Unlock()
		return false
	}

	cancelReq := t.buildCancel()
	t.mu.Unlock()

	cancelTxn, err := t.engine.StartClientNonInvite(cancelReq, t.remote, t.transport)
	if err != nil {
		return false
	}

	t.mu.Lock()
	t.cancelTxn = cancelTxn
	t.mu.Unlock()

	cancelTxn.OnTerminated(func(reason TerminationReason) {
		if reason != ReasonOkReceived && reason != ReasonFinalResponseReceived {
			t.mu.Lock()
			if t.state != StateTerminated && t.state != StateForceTerminated {
				t.forceTerminate(ReasonCancelRequestFailed)
			}
			t.mu.Unlock()
		}
		// On CANCEL success, the engine simply waits for the server's 487
		// to the original INVITE; no action needed here.
	})
	return true
}

// buildCancel constructs a CANCEL request sharing the original INVITE's
// branch (so it lands on the same server transaction) and CSeq number
// (RFC 3261 §9.1), but runs as an independent client non-INVITE
// transaction (branch+method folds CANCEL to a distinct transaction ID
// from the original INVITE).
func (t *Transaction) buildCancel() *Message {
	cancel := &Message{
		Method:     "CANCEL",
		RequestURI: t.request.RequestURI,
	}
	cseq, _ := t.request.ParseCSeq()
	for _, h := range t.request.Headers {
		switch strings.ToLower(h.Name) {
		case "cseq", "content-length", "content-type":
			continue
		default:
			cancel.AddHeader(h.Name, h.Value)
		}
	}
	cancel.AddHeader("CSeq", itoa(cseq.Number)+" CANCEL")
	return cancel
}

func itoa(n uint32) string {
	if n == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
