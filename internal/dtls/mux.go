package dtls

import (
	"net"

	"github.com/lanikai/ng911core/internal/mux"
)

// muxBufferBytes bounds one queued DTLS record or SRTP/SRTCP packet; both
// fit comfortably under a typical path MTU.
const muxBufferBytes = 1500

// NewDemuxedPeer wraps conn in an internal/mux.Mux that separates inbound
// DTLS handshake/alert records from already-established SRTP/SRTCP media
// arriving on the same 5-tuple, per RFC 5764 Section 5.1.2's
// demultiplexing table. It returns a Peer bound to the DTLS side, ready
// for Handshake, and a net.Conn carrying the SRTP side for the caller's
// SRTP transform layer to read and write once the handshake completes.
func NewDemuxedPeer(conn net.Conn, config Config) (*Peer, net.Conn) {
	m := mux.NewMux(conn, muxBufferBytes)
	dtlsEndpoint := m.NewEndpoint(mux.MatchDTLS)
	srtpEndpoint := m.NewEndpoint(mux.MatchSRTP)
	return NewPeer(dtlsEndpoint, config), srtpEndpoint
}
