package sip

// TerminationReason records why a transaction entered the Terminated state,
// carried to the application exactly once via the completion callback and
// the completion future.
type TerminationReason int

const (
	// ReasonNone is the zero value; never observed on a terminated
	// transaction.
	ReasonNone TerminationReason = iota
	// ReasonOkReceived: a client transaction received a 2xx, or a server
	// INVITE transaction sent one.
	ReasonOkReceived
	// ReasonFinalResponseReceived: client transaction received a
	// non-2xx final response.
	ReasonFinalResponseReceived
	// ReasonNoResponseReceived: Timer B/F expired with no response at all.
	ReasonNoResponseReceived
	// ReasonNoFinalResponseReceived: a provisional response arrived but no
	// final response followed before the transaction otherwise terminated.
	ReasonNoFinalResponseReceived
	// ReasonConnectionFailure: the underlying transport reported failure.
	ReasonConnectionFailure
	// ReasonAckToFinalResponseNotReceived: Timer H expired in a server
	// INVITE transaction's Completed state without an ACK.
	ReasonAckToFinalResponseNotReceived
	// ReasonCancelRequestFailed: the CANCEL client transaction spawned by
	// Cancel itself failed, force-terminating the INVITE transaction.
	ReasonCancelRequestFailed
)

func (r TerminationReason) String() string {
	switch r {
	case ReasonOkReceived:
		return "OkReceived"
	case ReasonFinalResponseReceived:
		return "FinalResponseReceived"
	case ReasonNoResponseReceived:
		return "NoResponseReceived"
	case ReasonNoFinalResponseReceived:
		return "NoFinalResponseReceived"
	case ReasonConnectionFailure:
		return "ConnectionFailure"
	case ReasonAckToFinalResponseNotReceived:
		return "AckToFinalResponseNotReceived"
	case ReasonCancelRequestFailed:
		return "CancelRequestFailed"
	default:
		return "None"
	}
}
