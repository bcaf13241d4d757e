package sip

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu       sync.Mutex
	reliable bool
	sent     []*Message
}

func (f *fakeTransport) Send(msg *Message, remote string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeTransport) Reliable() bool { return f.reliable }

func (f *fakeTransport) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func newInvite(branch string) *Message {
	req := &Message{Method: "INVITE", RequestURI: "sip:bob@192.0.2.10"}
	req.AddHeader("Via", "SIP/2.0/UDP 192.0.2.1:5060;branch="+branch)
	req.AddHeader("From", "Alice <sip:alice@example.com>;tag=1928301774")
	req.AddHeader("To", "Bob <sip:bob@example.com>")
	req.AddHeader("Call-ID", "a84b4c76e66710@192.0.2.1")
	req.AddHeader("CSeq", "1 INVITE")
	return req
}

func responseTo(req *Message, status int, toTag string) *Message {
	resp := &Message{StatusCode: status, ReasonPhrase: "Test"}
	via, _ := req.Header("Via")
	resp.AddHeader("Via", via)
	resp.AddHeader("From", mustHeader(req, "From"))
	to := mustHeader(req, "To")
	if toTag != "" {
		to += ";tag=" + toTag
	}
	resp.AddHeader("To", to)
	resp.AddHeader("Call-ID", mustHeader(req, "Call-ID"))
	resp.AddHeader("CSeq", mustHeader(req, "CSeq"))
	return resp
}

func mustHeader(m *Message, name string) string {
	v, _ := m.Header(name)
	return v
}

func TestTransactionIDStability(t *testing.T) {
	req := newInvite("z9hG4bK776asdhds")
	resp := responseTo(req, 200, "314159")

	reqID, err := RequestID(req)
	require.NoError(t, err)
	respID, err := ResponseID(resp)
	require.NoError(t, err)
	require.Equal(t, reqID, respID)
}

func TestInviteOkAck(t *testing.T) {
	transport := &fakeTransport{}
	engine := NewEngine(DefaultTimers(), nil)
	defer engine.Stop()

	req := newInvite("z9hG4bK-1")
	txn, err := engine.StartClientInvite(req, "192.0.2.10:5060", transport)
	require.NoError(t, err)

	var finalResp *Message
	txn.OnFinalResponse(func(resp *Message) { finalResp = resp })

	trying := responseTo(req, 100, "")
	txn.handleResponse(trying)
	require.Equal(t, StateCalling, txn.State())

	ringing := responseTo(req, 180, "")
	txn.handleResponse(ringing)
	require.Equal(t, StateProceeding, txn.State())

	ok := responseTo(req, 200, "xyz123")
	txn.handleResponse(ok)

	reason := txn.AwaitCompletion()
	require.Equal(t, ReasonOkReceived, reason)
	require.Equal(t, ok, finalResp)

	// The last sent message must be the ACK, whose CSeq number matches the
	// INVITE's and whose To carries the 200's tag.
	require.Equal(t, 2, transport.sentCount())
	ack := transport.sent[1]
	require.Equal(t, "ACK", ack.Method)
	cseq, err := ack.ParseCSeq()
	require.NoError(t, err)
	require.Equal(t, uint32(1), cseq.Number)
	to, _ := ack.Header("To")
	require.Contains(t, to, "xyz123")
}

func TestInviteTimeoutRetransmissionBound(t *testing.T) {
	transport := &fakeTransport{}
	timers := DefaultTimers()
	timers.T1 = 10 * time.Millisecond
	timers.B = 64 * timers.T1
	engine := NewEngine(timers, nil)
	defer engine.Stop()

	req := newInvite("z9hG4bK-2")
	txn, err := engine.StartClientInvite(req, "192.0.2.10:5060", transport)
	require.NoError(t, err)

	start := time.Now()
	// Drive the transaction's scheduler by hand, advancing a simulated
	// clock well past Timer B, without sleeping in real time.
	for i := 1; i <= 200 && txn.State() != StateTerminated; i++ {
		txn.onTick(start.Add(time.Duration(i) * timers.T1))
	}

	require.Equal(t, StateTerminated, txn.State())
	require.Equal(t, ReasonNoResponseReceived, txn.AwaitCompletion())

	// ceil(log2(B/T1)) + 1 = ceil(log2(64)) + 1 = 6 + 1 = 7 copies.
	require.Equal(t, 7, transport.sentCount())
}

func TestCancelGateRejectsOutsideProceeding(t *testing.T) {
	transport := &fakeTransport{}
	engine := NewEngine(DefaultTimers(), nil)
	defer engine.Stop()

	req := newInvite("z9hG4bK-3")
	txn, err := engine.StartClientInvite(req, "192.0.2.10:5060", transport)
	require.NoError(t, err)

	require.Equal(t, StateCalling, txn.State())
	ok := txn.Cancel()
	require.False(t, ok)
	// Only the original INVITE was sent; Cancel produced no traffic.
	require.Equal(t, 1, transport.sentCount())
}

func TestCancelAfter180(t *testing.T) {
	transport := &fakeTransport{reliable: true}
	engine := NewEngine(DefaultTimers(), nil)
	defer engine.Stop()

	req := newInvite("z9hG4bK-4")
	txn, err := engine.StartClientInvite(req, "192.0.2.10:5060", transport)
	require.NoError(t, err)

	ringing := responseTo(req, 180, "")
	txn.handleResponse(ringing)
	require.Equal(t, StateProceeding, txn.State())

	ok := txn.Cancel()
	require.True(t, ok)
	require.Equal(t, 2, transport.sentCount()) // INVITE + CANCEL

	cancel := transport.sent[1]
	require.Equal(t, "CANCEL", cancel.Method)

	// Simulate the server's 200 to CANCEL (on the CANCEL's own client
	// non-INVITE transaction) and its 487 to the INVITE.
	cancelID, err := RequestID(cancel)
	require.NoError(t, err)
	cancelTxn, ok := engine.lookup(cancelID)
	require.True(t, ok)
	cancelOK := responseTo(cancel, 200, "")
	cancelTxn.handleResponse(cancelOK)

	terminated := responseTo(req, 487, "")
	txn.handleResponse(terminated)

	reason := txn.AwaitCompletion()
	require.Equal(t, ReasonFinalResponseReceived, reason)

	// ACK to the 487 was auto-sent: INVITE, CANCEL, ACK.
	require.Equal(t, 3, transport.sentCount())
	require.Equal(t, "ACK", transport.sent[2].Method)
}

func TestServerInviteImmediate2xxTerminates(t *testing.T) {
	transport := &fakeTransport{}
	req := newInvite("z9hG4bK-5")
	txn := newServerTransaction(ServerInvite, ID{Branch: "z9hG4bK-5", Method: "INVITE"}, DefaultTimers(), transport, "192.0.2.1:5060", req, nil)

	resp := responseTo(req, 200, "srv-tag")
	err := txn.SendResponse(resp)
	require.NoError(t, err)
	require.Equal(t, StateTerminated, txn.State())
}

func TestServerInviteRetransmitOnDuplicateRequest(t *testing.T) {
	transport := &fakeTransport{}
	req := newInvite("z9hG4bK-6")
	txn := newServerTransaction(ServerInvite, ID{Branch: "z9hG4bK-6", Method: "INVITE"}, DefaultTimers(), transport, "192.0.2.1:5060", req, nil)

	busy := responseTo(req, 486, "srv-tag")
	require.NoError(t, txn.SendResponse(busy))
	require.Equal(t, StateCompleted, txn.State())

	txn.handleRequestRetransmission(req)
	require.Equal(t, 2, transport.sentCount())
	require.Equal(t, busy, transport.sent[1])
}

func TestDispatcherDropsUnmatchedResponse(t *testing.T) {
	engine := NewEngine(DefaultTimers(), nil)
	defer engine.Stop()

	req := newInvite(fmt.Sprintf("z9hG4bK-%d", 999))
	resp := responseTo(req, 200, "t")
	err := engine.HandleMessage(resp, "192.0.2.1:5060", &fakeTransport{})
	require.NoError(t, err)
	require.Equal(t, uint64(1), engine.UnmatchedResponseCount())
}
