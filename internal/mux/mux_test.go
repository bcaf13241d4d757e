package mux

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMuxDemuxesDTLSAndSRTP(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	m := NewMux(server, 1500)
	defer m.Close()

	dtls := m.NewEndpoint(MatchDTLS)
	srtp := m.NewEndpoint(MatchSRTP)

	go func() {
		client.Write([]byte{20, 0xfe, 0xfd, 1}) // DTLS ContentType=handshake
		client.Write([]byte{0x80, 100, 0, 1})   // RTP version 2
	}()

	buf := make([]byte, 1500)
	n, err := dtls.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, byte(20), buf[0])
	assert.Equal(t, 4, n)

	n, err = srtp.Read(buf)
	assert.NoError(t, err)
	assert.Equal(t, byte(0x80), buf[0])
	assert.Equal(t, 4, n)
}

func TestMuxEndpointClosesOnMuxClose(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	m := NewMux(server, 1500)
	e := m.NewEndpoint(MatchDTLS)

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Close()
	}()

	buf := make([]byte, 1500)
	_, err := e.Read(buf)
	assert.Error(t, err)
}
