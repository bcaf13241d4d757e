package dtls

import (
	"context"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"net"
	"time"

	"github.com/pkg/errors"
)

// ExtendedMasterSecretPolicy controls whether this peer requires the
// remote side to negotiate RFC 7627 extended master secret.
type ExtendedMasterSecretPolicy int

const (
	// ExtendedMasterSecretRequire aborts the handshake if the peer does
	// not accept the extension. It is the zero value, so a Config left
	// unset requires RFC 7627 rather than silently tolerating a
	// downgraded, non-extended master secret.
	ExtendedMasterSecretRequire ExtendedMasterSecretPolicy = iota
	// ExtendedMasterSecretRequest offers the extension but proceeds with
	// the legacy master secret computation if the peer doesn't support it.
	ExtendedMasterSecretRequest
	// ExtendedMasterSecretDisable never offers the extension.
	ExtendedMasterSecretDisable
)

// Config configures a DTLS handshake.
type Config struct {
	// Certificate is this peer's self-signed identity.
	Certificate *Certificate

	// IsClient selects the ClientHello-initiating role.
	IsClient bool

	// SRTPProtectionProfiles are offered (as a client) or accepted (as a
	// server) for the subsequent SRTP session, in preference order.
	SRTPProtectionProfiles []SRTPProtectionProfile

	ExtendedMasterSecret ExtendedMasterSecretPolicy

	// VerifyPeerCertificate is called with the peer's leaf certificate DER
	// once received; typically checks it against an SDP a=fingerprint
	// attribute (RFC 8122). A nil func accepts any certificate.
	VerifyPeerCertificate func(der []byte) error

	// InitialRetransmitTimeout and MaxRetransmitTimeout bound the
	// handshake flight retransmission backoff (RFC 6347 Section 4.2.4).
	InitialRetransmitTimeout time.Duration
	MaxRetransmitTimeout     time.Duration
}

func (c *Config) initialTimeout() time.Duration {
	if c.InitialRetransmitTimeout > 0 {
		return c.InitialRetransmitTimeout
	}
	return 100 * time.Millisecond
}

func (c *Config) maxTimeout() time.Duration {
	if c.MaxRetransmitTimeout > 0 {
		return c.MaxRetransmitTimeout
	}
	return 6 * time.Second
}

// Peer drives one DTLS handshake to completion over a packet-oriented
// transport (typically an endpoint carved out of internal/mux), then
// exposes the negotiated SRTP protection profile and exported keying
// material. It is not a general DTLS record-layer transport: once the
// handshake finishes, the Peer is done, and media flows over SRTP.
type Peer struct {
	conn   net.Conn
	config Config

	sendEpoch uint16
	sendSeq   uint64
	msgSeq    uint16

	transcript []byte // concatenation of rawWithHeader for every handshake message

	clientRandom, serverRandom []byte
	masterSecret               []byte
	negotiatedProfile          SRTPProtectionProfile
	extendedMasterSecret       bool
	peerCertDER                []byte

	ecdhKey *ecdh.PrivateKey

	sendProtector *gcmProtector
	recvProtector *gcmProtector
}

// NewPeer creates a Peer bound to conn, ready to run Handshake.
func NewPeer(conn net.Conn, config Config) *Peer {
	return &Peer{conn: conn, config: config}
}

// Handshake runs the DTLS handshake to completion, blocking until it either
// succeeds, the peer sends a fatal alert, or ctx is done.
func (p *Peer) Handshake(ctx context.Context) error {
	var err error
	if p.config.IsClient {
		err = p.clientHandshake(ctx)
	} else {
		err = p.serverHandshake(ctx)
	}
	if err != nil {
		return err
	}
	log.Info("dtls handshake complete, srtp profile %#04x", p.negotiatedProfile)
	return nil
}

// SRTPProtectionProfile returns the negotiated SRTP profile.
func (p *Peer) SRTPProtectionProfile() SRTPProtectionProfile { return p.negotiatedProfile }

// RemoteCertificate returns the peer's leaf certificate, DER-encoded.
func (p *Peer) RemoteCertificate() []byte { return p.peerCertDER }

// ExportKeyingMaterial returns length bytes of SRTP keying material per
// RFC 5764 Section 4.2, ready to be split via internal/srtp.SplitKeyingMaterial.
func (p *Peer) ExportKeyingMaterial(length int) []byte {
	return exportKeyingMaterial(p.masterSecret, p.clientRandom, p.serverRandom, length)
}

func newRandomBytes() random {
	var r random
	_, _ = rand.Read(r[:])
	return r
}

func (p *Peer) localExtensions() offeredExtensions {
	ext := offeredExtensions{
		srtpProfiles: p.config.SRTPProtectionProfiles,
	}
	if len(ext.srtpProfiles) == 0 {
		ext.srtpProfiles = []SRTPProtectionProfile{SRTP_AES128_CM_HMAC_SHA1_80, SRTP_AES128_CM_HMAC_SHA1_32}
	}
	if p.config.ExtendedMasterSecret != ExtendedMasterSecretDisable {
		ext.extendedMasterSecret = true
	}
	if p.config.IsClient {
		ext.supportedGroups = []uint16{namedCurveSecp256r1}
		ext.signatureAlgorithms = []uint16{0x0403} // ecdsa_secp256r1_sha256, RFC 5246/8422
	}
	return ext
}

// buildHandshakeRecord wraps body in a handshake header, appends it to the
// transcript, and returns the marshaled DTLS record bytes. The returned
// bytes are transmitted verbatim on every retransmission of the flight
// that contains them; they are built exactly once.
func (p *Peer) buildHandshakeRecord(msgType HandshakeType, body []byte) []byte {
	msg := newHandshakeMessage(msgType, p.msgSeq, body)
	p.msgSeq++
	p.transcript = append(p.transcript, msg.rawWithHeader...)

	rec := record{
		contentType:    ContentTypeHandshake,
		epoch:          p.sendEpoch,
		sequenceNumber: p.sendSeq,
		fragment:       msg.rawWithHeader,
	}
	p.sendSeq++
	return rec.marshal()
}

// buildChangeCipherSpecRecord returns the marshaled ChangeCipherSpec record
// and flips the peer to the next send epoch for subsequent records.
func (p *Peer) buildChangeCipherSpecRecord() []byte {
	rec := record{
		contentType:    ContentTypeChangeCipherSpec,
		epoch:          p.sendEpoch,
		sequenceNumber: p.sendSeq,
		fragment:       []byte{1},
	}
	p.sendSeq++
	out := rec.marshal()
	p.sendEpoch++
	p.sendSeq = 0
	return out
}

// buildEncryptedHandshakeRecord builds a handshake record whose fragment is
// GCM-protected under protector, for use once an epoch's keys are live
// (i.e. for Finished, the only handshake message this engine ever encrypts).
func (p *Peer) buildEncryptedHandshakeRecord(protector *gcmProtector, msgType HandshakeType, body []byte) []byte {
	msg := newHandshakeMessage(msgType, p.msgSeq, body)
	p.msgSeq++
	p.transcript = append(p.transcript, msg.rawWithHeader...)

	ciphertext := protector.seal(p.sendEpoch, p.sendSeq, ContentTypeHandshake, msg.rawWithHeader)
	rec := record{
		contentType:    ContentTypeHandshake,
		epoch:          p.sendEpoch,
		sequenceNumber: p.sendSeq,
		fragment:       ciphertext,
	}
	p.sendSeq++
	return rec.marshal()
}

// readDatagram reads and parses one datagram's worth of records, returning
// any handshake messages found (appending each to the transcript) and
// whether a ChangeCipherSpec record was seen.
func (p *Peer) readDatagram(buf []byte) ([]handshakeMessage, bool, error) {
	records, err := parseRecords(buf)
	if err != nil {
		return nil, false, err
	}

	var msgs []handshakeMessage
	var sawCCS bool
	for _, rec := range records {
		switch rec.contentType {
		case ContentTypeHandshake:
			fragment := rec.fragment
			if rec.epoch > 0 {
				if p.recvProtector == nil {
					return nil, false, errors.New("dtls: received encrypted record before keys were established")
				}
				plain, err := p.recvProtector.open(rec.epoch, rec.sequenceNumber, ContentTypeHandshake, rec.fragment)
				if err != nil {
					return nil, false, err
				}
				fragment = plain
			}
			msg, err := parseHandshakeMessage(fragment)
			if err != nil {
				return nil, false, err
			}
			p.transcript = append(p.transcript, msg.rawWithHeader...)
			msgs = append(msgs, msg)
		case ContentTypeChangeCipherSpec:
			sawCCS = true
		case ContentTypeAlert:
			if len(rec.fragment) >= 2 {
				return nil, false, &HandshakeFailureError{Description: AlertDescription(rec.fragment[1])}
			}
			return nil, false, errors.New("dtls: received malformed alert")
		}
	}
	return msgs, sawCCS, nil
}

// runFlight transmits flight, then reads datagrams, accumulating handshake
// messages and retransmitting the same flight bytes on each retransmission
// timeout, until accumulate reports done or the handshake deadline
// (RFC 6347 Section 4.2.4 backoff, bounded by config) expires.
func (p *Peer) runFlight(ctx context.Context, flight []byte, accumulate func([]handshakeMessage, bool) bool) error {
	if _, err := p.conn.Write(flight); err != nil {
		return err
	}

	timeout := p.config.initialTimeout()
	buf := make([]byte, 4096)

	for {
		readDeadline := time.Now().Add(timeout)
		if deadline, ok := ctx.Deadline(); ok && deadline.Before(readDeadline) {
			readDeadline = deadline
		}
		_ = p.conn.SetReadDeadline(readDeadline)

		n, err := p.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				select {
				case <-ctx.Done():
					return ErrHandshakeTimeout
				default:
				}
				timeout *= 2
				if timeout > p.config.maxTimeout() {
					return ErrHandshakeTimeout
				}
				if _, err := p.conn.Write(flight); err != nil {
					return err
				}
				continue
			}
			return err
		}

		msgs, sawCCS, err := p.readDatagram(buf[:n])
		if err != nil {
			return err
		}
		if accumulate(msgs, sawCCS) {
			return nil
		}
	}
}

// waitForFlight blocks reading datagrams, with no flight of its own to
// (re)transmit, until accumulate reports done or ctx's deadline passes.
// Used by the server for the initial ClientHello it has no prior flight to
// prompt with.
func (p *Peer) waitForFlight(ctx context.Context, accumulate func([]handshakeMessage, bool) bool) error {
	buf := make([]byte, 4096)
	for {
		if deadline, ok := ctx.Deadline(); ok {
			_ = p.conn.SetReadDeadline(deadline)
		} else {
			_ = p.conn.SetReadDeadline(time.Now().Add(p.config.maxTimeout()))
		}

		n, err := p.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return ErrHandshakeTimeout
			}
			return err
		}

		msgs, sawCCS, err := p.readDatagram(buf[:n])
		if err != nil {
			return err
		}
		if accumulate(msgs, sawCCS) {
			return nil
		}
	}
}

func (p *Peer) transcriptHash() []byte {
	h := sha256.Sum256(p.transcript)
	return h[:]
}

func (p *Peer) deriveMasterSecret(preMasterSecret []byte) {
	var seed []byte
	if p.extendedMasterSecret {
		seed = p.transcriptHash()
	} else {
		seed = append(append([]byte(nil), p.clientRandom...), p.serverRandom...)
	}
	p.masterSecret = deriveMasterSecret(preMasterSecret, seed, p.extendedMasterSecret)
}

// newECDHEKey generates a fresh P-256 ephemeral key pair for one handshake.
func newECDHEKey() (*ecdh.PrivateKey, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "dtls: generate ECDHE key")
	}
	return priv, nil
}

// ecdhSharedSecret generates this peer's own ephemeral ECDHE key (stored in
// p.ecdhKey) and computes the shared secret with the peer's public key.
// Used by the client, which learns the server's public key only after
// generating its own.
func (p *Peer) ecdhSharedSecret(peerPubKey []byte) ([]byte, error) {
	priv, err := newECDHEKey()
	if err != nil {
		return nil, err
	}
	p.ecdhKey = priv
	return ecdhSharedSecretWith(priv, peerPubKey)
}

// ecdhSharedSecretWith computes the ECDHE shared secret between an
// already-generated local private key and a peer's wire-encoded public key.
// Used by the server, which generates its ephemeral key before it has seen
// the client's ClientKeyExchange.
func ecdhSharedSecretWith(priv *ecdh.PrivateKey, peerPubKey []byte) ([]byte, error) {
	peerKey, err := ecdh.P256().NewPublicKey(peerPubKey)
	if err != nil {
		return nil, errors.Wrap(err, "dtls: parse peer ECDHE public key")
	}
	return priv.ECDH(peerKey)
}

func signParams(priv *ecdsa.PrivateKey, clientRandom, serverRandom, params []byte) ([]byte, error) {
	h := sha256.New()
	h.Write(clientRandom)
	h.Write(serverRandom)
	h.Write(params)
	digest := h.Sum(nil)
	return ecdsa.SignASN1(rand.Reader, priv, digest)
}

func verifyParamsSignature(cert *x509.Certificate, clientRandom, serverRandom, params, sig []byte) error {
	pub, ok := cert.PublicKey.(*ecdsa.PublicKey)
	if !ok {
		return errors.New("dtls: peer certificate is not ECDSA")
	}
	h := sha256.New()
	h.Write(clientRandom)
	h.Write(serverRandom)
	h.Write(params)
	digest := h.Sum(nil)
	if !ecdsa.VerifyASN1(pub, digest, sig) {
		return errors.New("dtls: ServerKeyExchange signature verification failed")
	}
	return nil
}
