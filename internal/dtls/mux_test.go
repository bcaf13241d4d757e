package dtls

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewDemuxedPeerRoutesByContentType exercises the RFC 5764 Section
// 5.1.2 demultiplexing table directly: a DTLS record (ContentType byte in
// [20, 63]) must reach the Peer's handshake side, and an SRTP/SRTCP
// packet (first byte in [128, 191]) on the same 5-tuple must reach the
// returned media-side net.Conn instead.
func TestNewDemuxedPeerRoutesByContentType(t *testing.T) {
	wire, remote := net.Pipe()
	defer wire.Close()
	defer remote.Close()

	peer, srtpConn := NewDemuxedPeer(remote, Config{})
	defer srtpConn.Close()

	dtlsRecord := []byte{22, 254, 253, 0, 0, 0, 0, 0, 0, 0, 1}
	srtpPacket := []byte{128, 96, 0, 1, 0, 0, 0, 1, 0, 0, 0, 2}

	go func() {
		_, _ = wire.Write(dtlsRecord)
		_, _ = wire.Write(srtpPacket)
	}()

	_ = remote.SetReadDeadline(time.Now().Add(2 * time.Second))

	buf := make([]byte, 64)
	n, err := peer.conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, dtlsRecord, buf[:n])

	n, err = srtpConn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, srtpPacket, buf[:n])
}
