package sip

import "sync"

// eventHandlers holds a transaction's callback registrations as explicit
// lists of closures: events are multicast delegates, not single-subscriber
// fields. Firing a set of handlers snapshots the list and invokes each one
// after releasing the transaction lock, so a callback can safely call back
// into the transaction (e.g. Cancel) without deadlocking.
type eventHandlers struct {
	mu sync.Mutex

	onProvisional []func(*Message)
	onFinal       []func(*Message)
	onRequest     []func(*Message) // server transactions: request retransmissions
}

func (e *eventHandlers) addProvisional(f func(*Message)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onProvisional = append(e.onProvisional, f)
}

func (e *eventHandlers) addFinal(f func(*Message)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onFinal = append(e.onFinal, f)
}

func (e *eventHandlers) addRequest(f func(*Message)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onRequest = append(e.onRequest, f)
}

func (e *eventHandlers) fireProvisional(resp *Message) {
	e.mu.Lock()
	handlers := append([]func(*Message){}, e.onProvisional...)
	e.mu.Unlock()
	for _, h := range handlers {
		h(resp)
	}
}

func (e *eventHandlers) fireFinal(resp *Message) {
	e.mu.Lock()
	handlers := append([]func(*Message){}, e.onFinal...)
	e.mu.Unlock()
	for _, h := range handlers {
		h(resp)
	}
}

func (e *eventHandlers) fireRequest(req *Message) {
	e.mu.Lock()
	handlers := append([]func(*Message){}, e.onRequest...)
	e.mu.Unlock()
	for _, h := range handlers {
		h(req)
	}
}

// completion is a single-shot future, resolved exactly once when a
// transaction enters Terminated/ForceTerminated. Both a registered
// callback and this future observe the same single resolution.
type completion struct {
	once     sync.Once
	done     chan struct{}
	reason   TerminationReason
	onDone   []func(TerminationReason)
	doneMu   sync.Mutex
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

// OnTerminated registers a callback fired exactly once, at the moment the
// transaction resolves. If the transaction has already resolved, the
// callback fires immediately (inline) with the recorded reason.
func (c *completion) OnTerminated(f func(TerminationReason)) {
	c.doneMu.Lock()
	select {
	case <-c.done:
		c.doneMu.Unlock()
		f(c.reason)
		return
	default:
	}
	c.onDone = append(c.onDone, f)
	c.doneMu.Unlock()
}

// resolve signals completion with reason, exactly once; subsequent calls
// are no-ops.
func (c *completion) resolve(reason TerminationReason) {
	c.once.Do(func() {
		c.doneMu.Lock()
		c.reason = reason
		handlers := c.onDone
		c.onDone = nil
		c.doneMu.Unlock()

		close(c.done)
		for _, h := range handlers {
			h(reason)
		}
	})
}

// Await blocks until the transaction terminates and returns the reason.
func (c *completion) Await() TerminationReason {
	<-c.done
	return c.reason
}

// Done returns the channel that closes on resolution, for use in a select.
func (c *completion) Done() <-chan struct{} {
	return c.done
}
