package msrp

import (
	"strconv"

	"github.com/google/uuid"
)

// ReportStatus is the parsed Status header of a REPORT request
// ("000 <code> <comment>").
type ReportStatus struct {
	Namespace int
	Code      int
	Comment   string
}

// Report is a received REPORT, delivered to the application once a
// message (or one of its chunks) has been accounted for end to end.
type Report struct {
	MessageID string
	ByteRange ByteRange
	Status    ReportStatus
}

// wantsReport decides, per the Failure-Report/Success-Report headers
// (RFC 4975 §7.1.2), whether a REPORT should be generated for a message
// that completed with the given status code.
//
//   - Failure-Report: "no"      -> never report
//   - Failure-Report: "partial" -> report failures only, never success
//   - otherwise ("yes" or absent, the RFC 4975 default) -> report both
//
// Success-Report itself defaults to "no": a successful SEND is only
// reported when the sender explicitly asked for it.
func wantsReport(failureReport, successReport string, statusCode int) bool {
	success := statusCode >= 200 && statusCode < 300
	switch failureReport {
	case "no":
		return false
	case "partial":
		return !success
	}
	if success {
		return successReport == "yes"
	}
	return true
}

// buildReport constructs the REPORT request chunk that acknowledges msg's
// outcome, per RFC 4975 §7.1.2.
func buildReport(msg *Message, statusCode int, comment string, localPath, remotePath []URI) *Chunk {
	c := &Chunk{
		TransactionID: newTransactionID(),
		Method:        "REPORT",
		Completion:    Complete,
	}
	c.addHeader("To-Path", joinURIs(remotePath))
	c.addHeader("From-Path", joinURIs(localPath))
	c.addHeader("Message-ID", msg.MessageID)
	c.addHeader("Byte-Range", msg.ByteRange.String())
	c.addHeader("Status", "000 "+strconv.Itoa(statusCode)+" "+comment)
	return c
}

// parseReport extracts a Report from a received REPORT request chunk.
func parseReport(c *Chunk) (*Report, error) {
	messageID, _ := c.Header("Message-ID")
	statusHdr, _ := c.Header("Status")
	status, err := parseStatus(statusHdr)
	if err != nil {
		return nil, err
	}
	br := ByteRange{Start: 1, End: -1, Total: -1}
	if v, ok := c.Header("Byte-Range"); ok {
		br, err = ParseByteRange(v)
		if err != nil {
			return nil, err
		}
	}
	return &Report{MessageID: messageID, ByteRange: br, Status: status}, nil
}

func parseStatus(v string) (ReportStatus, error) {
	fields := splitFields(v)
	if len(fields) < 2 {
		return ReportStatus{}, ErrMalformedMsrp
	}
	ns, err := strconv.Atoi(fields[0])
	if err != nil {
		return ReportStatus{}, ErrMalformedMsrp
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return ReportStatus{}, ErrMalformedMsrp
	}
	comment := ""
	if len(fields) > 2 {
		for i, f := range fields[2:] {
			if i > 0 {
				comment += " "
			}
			comment += f
		}
	}
	return ReportStatus{Namespace: ns, Code: code, Comment: comment}, nil
}

func joinURIs(uris []URI) string {
	s := ""
	for i, u := range uris {
		if i > 0 {
			s += " "
		}
		s += u.String()
	}
	return s
}

// newTransactionID generates a fresh, short MSRP transaction identifier.
func newTransactionID() string {
	return uuid.New().String()[:8]
}
