package sip

import "github.com/pkg/errors"

// ID is a stable transaction identifier, derived per RFC 3261 §17.1.3/
// §17.2.3 from the branch parameter of the top Via plus the method — with
// ACK folded to INVITE, since an ACK to a non-2xx final response belongs to
// the INVITE transaction it acknowledges rather than starting a new one.
type ID struct {
	Branch string
	Method string
}

// matchMethod folds ACK to INVITE for transaction-id purposes.
func matchMethod(method string) string {
	if method == "ACK" {
		return "INVITE"
	}
	return method
}

// RequestID computes the transaction-id of a request.
func RequestID(req *Message) (ID, error) {
	via, err := req.TopVia()
	if err != nil {
		return ID{}, errors.Wrap(err, "sip: computing transaction-id")
	}
	if via.Branch == "" {
		return ID{}, errors.New("sip: request missing Via branch parameter")
	}
	return ID{Branch: via.Branch, Method: matchMethod(req.Method)}, nil
}

// ResponseID computes the transaction-id a response matches, which is the
// id of the request it answers (taken from the response's own top Via and
// CSeq, since a compliant response copies both from the request).
func ResponseID(resp *Message) (ID, error) {
	via, err := resp.TopVia()
	if err != nil {
		return ID{}, errors.Wrap(err, "sip: computing transaction-id")
	}
	if via.Branch == "" {
		return ID{}, errors.New("sip: response missing Via branch parameter")
	}
	cseq, err := resp.ParseCSeq()
	if err != nil {
		return ID{}, errors.Wrap(err, "sip: computing transaction-id")
	}
	return ID{Branch: via.Branch, Method: matchMethod(cseq.Method)}, nil
}
