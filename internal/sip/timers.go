package sip

import "time"

// Timers holds the RFC 3261 §17 reliability timer configuration for one
// Engine. There is no process-wide mutable timer table — each Engine is
// constructed with its own Timers, defaulted from DefaultTimers when the
// caller passes the zero value.
type Timers struct {
	// T1 is the RTT estimate: the base retransmit interval.
	T1 time.Duration
	// T2 is the retransmit interval cap for non-INVITE and INVITE-response
	// retransmits.
	T2 time.Duration
	// T4 is the maximum duration a message can remain in the network.
	T4 time.Duration

	// B: client INVITE "Calling" total duration.
	B time.Duration
	// D: client INVITE "Completed" duration on unreliable transports.
	D time.Duration
	// F: client non-INVITE total duration.
	F time.Duration
	// H: server INVITE "Completed" total duration, waiting for ACK.
	H time.Duration
	// I: server INVITE "Confirmed" duration on unreliable transports.
	I time.Duration
	// J: server non-INVITE "Completed" duration on unreliable transports.
	J time.Duration
	// K: client non-INVITE "Completed" duration on unreliable transports.
	K time.Duration
}

// DefaultTimers returns the RFC 3261 §17.1.1.1 default timer values.
func DefaultTimers() Timers {
	t1 := 500 * time.Millisecond
	t2 := 4 * time.Second
	t4 := 5 * time.Second
	return Timers{
		T1: t1,
		T2: t2,
		T4: t4,
		B:  64 * t1,
		D:  32 * time.Second,
		F:  64 * t1,
		H:  64 * t1,
		I:  t4,
		J:  64 * t1,
		K:  t4,
	}
}

// withDefaults fills any zero-valued field of t with the RFC default,
// letting callers override individual timers without having to specify
// all of them.
func (t Timers) withDefaults() Timers {
	d := DefaultTimers()
	if t.T1 == 0 {
		t.T1 = d.T1
	}
	if t.T2 == 0 {
		t.T2 = d.T2
	}
	if t.T4 == 0 {
		t.T4 = d.T4
	}
	if t.B == 0 {
		t.B = 64 * t.T1
	}
	if t.D == 0 {
		t.D = d.D
	}
	if t.F == 0 {
		t.F = 64 * t.T1
	}
	if t.H == 0 {
		t.H = 64 * t.T1
	}
	if t.I == 0 {
		t.I = t.T4
	}
	if t.J == 0 {
		t.J = 64 * t.T1
	}
	if t.K == 0 {
		t.K = t.T4
	}
	return t
}
