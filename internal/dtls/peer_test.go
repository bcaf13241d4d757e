package dtls

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeEndToEnd(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	clientCert, err := GenerateSelfSignedCertificate("client.invalid")
	require.NoError(t, err)
	serverCert, err := GenerateSelfSignedCertificate("server.invalid")
	require.NoError(t, err)

	client := NewPeer(clientConn, Config{
		IsClient:                true,
		Certificate:             clientCert,
		SRTPProtectionProfiles:  []SRTPProtectionProfile{SRTP_AES128_CM_HMAC_SHA1_80},
		ExtendedMasterSecret:    ExtendedMasterSecretRequire,
		InitialRetransmitTimeout: 50 * time.Millisecond,
		MaxRetransmitTimeout:     500 * time.Millisecond,
	})
	server := NewPeer(serverConn, Config{
		IsClient:                false,
		Certificate:             serverCert,
		SRTPProtectionProfiles:  []SRTPProtectionProfile{SRTP_AES128_CM_HMAC_SHA1_80},
		ExtendedMasterSecret:    ExtendedMasterSecretRequire,
		InitialRetransmitTimeout: 50 * time.Millisecond,
		MaxRetransmitTimeout:     500 * time.Millisecond,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct{ err error }
	clientDone := make(chan result, 1)
	serverDone := make(chan result, 1)

	go func() { clientDone <- result{client.Handshake(ctx)} }()
	go func() { serverDone <- result{server.Handshake(ctx)} }()

	cr := <-clientDone
	sr := <-serverDone
	require.NoError(t, cr.err)
	require.NoError(t, sr.err)

	assert.Equal(t, SRTP_AES128_CM_HMAC_SHA1_80, client.SRTPProtectionProfile())
	assert.Equal(t, SRTP_AES128_CM_HMAC_SHA1_80, server.SRTPProtectionProfile())
	assert.True(t, client.extendedMasterSecret)
	assert.True(t, server.extendedMasterSecret)

	clientMaterial := client.ExportKeyingMaterial(60)
	serverMaterial := server.ExportKeyingMaterial(60)
	assert.Equal(t, clientMaterial, serverMaterial)

	assert.Equal(t, serverCert.DER, client.RemoteCertificate())
	assert.Equal(t, clientCert.DER, server.RemoteCertificate())
}

func TestFingerprintRoundTrip(t *testing.T) {
	cert, err := GenerateSelfSignedCertificate("peer.invalid")
	require.NoError(t, err)

	fp, err := Fingerprint(cert.DER, FingerprintSHA256)
	require.NoError(t, err)
	assert.Contains(t, fp, ":")

	ok, err := VerifyFingerprint(cert.DER, FingerprintSHA256, fp)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyFingerprint(cert.DER, FingerprintSHA256, "00:11:22:33")
	require.NoError(t, err)
	assert.False(t, ok)
}
