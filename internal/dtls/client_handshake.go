package dtls

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
)

// finishedMessageLen is the wire length (header+body) of a Finished
// handshake message: a 12-byte header plus a 12-byte verify_data.
const finishedMessageLen = handshakeHeaderSize + 12

func (p *Peer) clientHandshake(ctx context.Context) error {
	cr := newRandomBytes()
	p.clientRandom = append([]byte(nil), cr[:]...)

	ch := clientHello{
		version:            protocolVersion,
		cookie:             nil,
		cipherSuites:       []CipherSuite{TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256},
		compressionMethods: []compressionMethod{compressionMethodNull},
		extensions:         p.localExtensions(),
	}
	copy(ch.random[:], p.clientRandom)

	flight1 := p.buildHandshakeRecord(HandshakeTypeClientHello, ch.marshal())

	var (
		serverHelloMsg    *serverHello
		certMsg           *certificateMessage
		serverKeyExchange *serverKeyExchange
		sawServerDone     bool
	)
	err := p.runFlight(ctx, flight1, func(msgs []handshakeMessage, _ bool) bool {
		for i := range msgs {
			switch msgs[i].msgType {
			case HandshakeTypeServerHello:
				sh, err := parseServerHello(msgs[i].body)
				if err != nil {
					continue
				}
				serverHelloMsg = &sh
			case HandshakeTypeCertificate:
				cm, err := parseCertificateMessage(msgs[i].body)
				if err != nil {
					continue
				}
				certMsg = &cm
			case HandshakeTypeServerKeyExchange:
				ske, err := parseServerKeyExchange(msgs[i].body)
				if err != nil {
					continue
				}
				serverKeyExchange = &ske
			case HandshakeTypeServerHelloDone:
				sawServerDone = true
			}
		}
		return serverHelloMsg != nil && certMsg != nil && serverKeyExchange != nil && sawServerDone
	})
	if err != nil {
		return err
	}

	p.serverRandom = append([]byte(nil), serverHelloMsg.random[:]...)
	p.negotiatedProfile, _ = NegotiateSRTPProfile(p.config.SRTPProtectionProfiles, serverHelloMsg.extensions.srtpProfiles)
	p.extendedMasterSecret = serverHelloMsg.extensions.extendedMasterSecret
	if p.config.ExtendedMasterSecret == ExtendedMasterSecretRequire && !p.extendedMasterSecret {
		return ErrExtendedMasterSecretRequired
	}

	leaf, err := certMsg.leaf()
	if err != nil {
		return errors.Wrap(err, "dtls: parse peer certificate")
	}
	p.peerCertDER = certMsg.certificates[0]
	if p.config.VerifyPeerCertificate != nil {
		if err := p.config.VerifyPeerCertificate(p.peerCertDER); err != nil {
			return errors.Wrap(err, "dtls: peer certificate verification failed")
		}
	}
	if err := verifyParamsSignature(leaf, p.clientRandom, p.serverRandom, serverKeyExchange.paramBytes(), serverKeyExchange.signature); err != nil {
		return err
	}

	preMasterSecret, err := p.ecdhSharedSecret(serverKeyExchange.publicKey)
	if err != nil {
		return err
	}
	cke := clientKeyExchange{publicKey: p.ecdhKey.PublicKey().Bytes()}
	ckeRec := p.buildHandshakeRecord(HandshakeTypeClientKeyExchange, cke.marshal())
	p.deriveMasterSecret(preMasterSecret)
	ccsRec := p.buildChangeCipherSpecRecord()

	clientKeys, serverKeys := deriveRecordKeys(p.masterSecret, p.serverRandom, p.clientRandom)
	p.sendProtector, err = newGCMProtector(clientKeys)
	if err != nil {
		return err
	}
	p.recvProtector, err = newGCMProtector(serverKeys)
	if err != nil {
		return err
	}

	verifyData := finishedVerifyData(p.masterSecret, true, p.transcriptHash())
	finishedRec := p.buildEncryptedHandshakeRecord(p.sendProtector, HandshakeTypeFinished, verifyData)

	flight2 := append(append(append([]byte(nil), ckeRec...), ccsRec...), finishedRec...)

	var sawPeerFinished bool
	return p.runFlight(ctx, flight2, func(msgs []handshakeMessage, sawCCS bool) bool {
		for i := range msgs {
			if msgs[i].msgType == HandshakeTypeFinished {
				expected := finishedVerifyData(p.masterSecret, false, p.transcriptHashExcludingTrailing(finishedMessageLen))
				if !bytes.Equal(expected, msgs[i].body) {
					return false
				}
				sawPeerFinished = true
			}
		}
		_ = sawCCS
		return sawPeerFinished
	})
}

// transcriptHashExcludingTrailing hashes the handshake transcript minus its
// last n bytes, for verifying a Finished message's verify_data against the
// transcript as it stood immediately before that Finished was appended.
func (p *Peer) transcriptHashExcludingTrailing(n int) []byte {
	prior := p.transcript
	if len(prior) >= n {
		prior = prior[:len(prior)-n]
	}
	saved := p.transcript
	p.transcript = prior
	h := p.transcriptHash()
	p.transcript = saved
	return h
}
