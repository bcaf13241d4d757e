package dtls

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
)

func (p *Peer) serverHandshake(ctx context.Context) error {
	if p.config.Certificate == nil {
		return errors.New("dtls: server requires a Certificate")
	}

	var clientHelloMsg *clientHello
	err := p.waitForFlight(ctx, func(msgs []handshakeMessage, _ bool) bool {
		for i := range msgs {
			if msgs[i].msgType == HandshakeTypeClientHello {
				ch, err := parseClientHello(msgs[i].body)
				if err == nil {
					clientHelloMsg = &ch
				}
			}
		}
		return clientHelloMsg != nil
	})
	if err != nil {
		return err
	}

	p.clientRandom = append([]byte(nil), clientHelloMsg.random[:]...)
	sr := newRandomBytes()
	p.serverRandom = append([]byte(nil), sr[:]...)

	profile, ok := NegotiateSRTPProfile(clientHelloMsg.extensions.srtpProfiles, p.config.SRTPProtectionProfiles)
	if !ok {
		return errors.New("dtls: no common SRTP protection profile")
	}
	p.negotiatedProfile = profile
	p.extendedMasterSecret = clientHelloMsg.extensions.extendedMasterSecret && p.config.ExtendedMasterSecret != ExtendedMasterSecretDisable
	if p.config.ExtendedMasterSecret == ExtendedMasterSecretRequire && !p.extendedMasterSecret {
		return ErrExtendedMasterSecretRequired
	}

	sh := serverHello{
		version:           protocolVersion,
		sessionID:         nil,
		cipherSuite:       TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		compressionMethod: compressionMethodNull,
		extensions: offeredExtensions{
			srtpProfiles:         []SRTPProtectionProfile{profile},
			extendedMasterSecret: p.extendedMasterSecret,
		},
	}
	copy(sh.random[:], p.serverRandom)
	shRec := p.buildHandshakeRecord(HandshakeTypeServerHello, sh.marshal())

	certMsg := certificateMessage{certificates: [][]byte{p.config.Certificate.DER}}
	certRec := p.buildHandshakeRecord(HandshakeTypeCertificate, certMsg.marshal())

	ecdhPriv, err := newECDHEKey()
	if err != nil {
		return err
	}
	p.ecdhKey = ecdhPriv

	ske := serverKeyExchange{
		curve:     namedCurveSecp256r1,
		publicKey: ecdhPriv.PublicKey().Bytes(),
	}
	sig, err := signParams(p.config.Certificate.PrivateKey, p.clientRandom, p.serverRandom, ske.paramBytes())
	if err != nil {
		return err
	}
	ske.signatureScheme = 0x0403
	ske.signature = sig
	skeRec := p.buildHandshakeRecord(HandshakeTypeServerKeyExchange, ske.marshal())

	doneRec := p.buildHandshakeRecord(HandshakeTypeServerHelloDone, nil)

	flight1 := append(append(append(append([]byte(nil), shRec...), certRec...), skeRec...), doneRec...)

	var clientKeyExchangeMsg *clientKeyExchange
	err = p.runFlight(ctx, flight1, func(msgs []handshakeMessage, _ bool) bool {
		for i := range msgs {
			if msgs[i].msgType == HandshakeTypeClientKeyExchange {
				cke, err := parseClientKeyExchange(msgs[i].body)
				if err == nil {
					clientKeyExchangeMsg = &cke
				}
			}
		}
		return clientKeyExchangeMsg != nil
	})
	if err != nil {
		return err
	}

	preMasterSecret, err := ecdhSharedSecretWith(p.ecdhKey, clientKeyExchangeMsg.publicKey)
	if err != nil {
		return err
	}
	p.deriveMasterSecret(preMasterSecret)

	clientKeys, serverKeys := deriveRecordKeys(p.masterSecret, p.serverRandom, p.clientRandom)
	p.recvProtector, err = newGCMProtector(clientKeys)
	if err != nil {
		return err
	}
	p.sendProtector, err = newGCMProtector(serverKeys)
	if err != nil {
		return err
	}

	var sawClientFinished bool
	err = p.waitForFlight(ctx, func(msgs []handshakeMessage, sawCCS bool) bool {
		for i := range msgs {
			if msgs[i].msgType == HandshakeTypeFinished {
				expected := finishedVerifyData(p.masterSecret, true, p.transcriptHashExcludingTrailing(finishedMessageLen))
				if !bytes.Equal(expected, msgs[i].body) {
					return false
				}
				sawClientFinished = true
			}
		}
		_ = sawCCS
		return sawClientFinished
	})
	if err != nil {
		return err
	}

	ccsRec := p.buildChangeCipherSpecRecord()
	verifyData := finishedVerifyData(p.masterSecret, false, p.transcriptHash())
	finishedRec := p.buildEncryptedHandshakeRecord(p.sendProtector, HandshakeTypeFinished, verifyData)
	flight2 := append(append([]byte(nil), ccsRec...), finishedRec...)

	_, err = p.conn.Write(flight2)
	return err
}
