package srtp

// rocTracker maintains the rollover counter (ROC) for one SSRC, combining it
// with the 16-bit RTP sequence number into a single 48-bit packet index.
// See https://tools.ietf.org/html/rfc3711#section-3.3.1, which in turn
// follows the disambiguation algorithm of RFC 3550 Appendix A.1.
type rocTracker struct {
	initialized bool

	// Most recently accepted sequence number.
	lastSequence uint16

	// Estimate of the sender's packet index, based on lastSequence and the
	// number of times it has rolled over.
	lastIndex uint64
}

// index returns the 48-bit packet index (ROC*2^16 + seq) corresponding to
// the given sequence number, without updating the tracker's notion of the
// "current" index. Callers that accept the packet (e.g. because it also
// passes replay detection) must call advance with the same sequence number.
func (t *rocTracker) index(sequence uint16) uint64 {
	if !t.initialized {
		return uint64(sequence)
	}

	delta := int64(sequence) - int64(t.lastSequence)
	if delta > 32768 {
		delta -= 65536
	} else if delta <= -32768 {
		delta += 65536
	}

	index := int64(t.lastIndex) + delta
	if index < 0 {
		index = int64(sequence)
	}
	return uint64(index)
}

// advance records sequence as the most recently accepted packet, updating
// the rollover counter if it advances the index forward.
func (t *rocTracker) advance(sequence uint16) {
	index := t.index(sequence)
	if !t.initialized || index >= t.lastIndex {
		t.lastIndex = index
		t.lastSequence = sequence
		t.initialized = true
	}
}

// rolloverCounter returns the current ROC, i.e. the number of times the
// 16-bit sequence number has wrapped around.
func (t *rocTracker) rolloverCounter() uint32 {
	return uint32(t.lastIndex >> 16)
}
