package dtls

import "fmt"

// AlertLevel and AlertDescription identify the contents of a DTLS alert
// record, per RFC 5246 Section 7.2.
type AlertLevel uint8

const (
	AlertLevelWarning AlertLevel = 1
	AlertLevelFatal   AlertLevel = 2
)

type AlertDescription uint8

const (
	AlertCloseNotify            AlertDescription = 0
	AlertUnexpectedMessage      AlertDescription = 10
	AlertBadRecordMAC           AlertDescription = 20
	AlertHandshakeFailure       AlertDescription = 40
	AlertBadCertificate         AlertDescription = 42
	AlertCertificateUnknown     AlertDescription = 46
	AlertIllegalParameter       AlertDescription = 47
	AlertDecodeError            AlertDescription = 50
	AlertDecryptError           AlertDescription = 51
	AlertProtocolVersion        AlertDescription = 70
	AlertInsufficientSecurity   AlertDescription = 71
	AlertInternalError          AlertDescription = 80
	AlertNoRenegotiation        AlertDescription = 100
	AlertMissingExtension       AlertDescription = 109
	AlertUnsupportedExtension   AlertDescription = 110
)

// ErrExtendedMasterSecretRequired is returned when a peer configured to
// require RFC 7627 extended master secret negotiation finds the other side
// did not offer or accept the extension.
var ErrExtendedMasterSecretRequired = &HandshakeError{reason: "extended_master_secret required but not negotiated"}

// ErrHandshakeTimeout is returned when the handshake's retransmission
// schedule is exhausted without completing.
var ErrHandshakeTimeout = &HandshakeError{reason: "handshake timed out"}

// HandshakeFailureError wraps a fatal alert received from (or sent to) the
// peer, reporting the alert description that ended the handshake.
type HandshakeFailureError struct {
	Description AlertDescription
}

func (e *HandshakeFailureError) Error() string {
	return fmt.Sprintf("dtls: handshake failure, alert %d", e.Description)
}

// HandshakeError is a general handshake-protocol error not tied to a
// specific received alert.
type HandshakeError struct {
	reason string
}

func (e *HandshakeError) Error() string {
	return "dtls: " + e.reason
}
