package dtls

import (
	"crypto/hmac"
	"crypto/sha256"
	"hash"
)

// prf implements the TLS 1.2 pseudorandom function (RFC 5246 Section 5),
// specialized to P_SHA256 as required for every cipher suite this engine
// negotiates. There is no maintained third-party implementation of the
// legacy TLS 1.2 PRF in the example corpus or the wider ecosystem (modern
// libraries only expose full handshake state machines, not this primitive
// in isolation), so it is hand-rolled directly against the RFC using
// stdlib crypto/hmac and crypto/sha256.
func prf(secret, label, seed []byte, length int) []byte {
	out := make([]byte, length)
	labelSeed := append(append([]byte(nil), label...), seed...)
	pHash(out, secret, labelSeed, sha256.New)
	return out
}

func pHash(out, secret, seed []byte, newHash func() hash.Hash) {
	h := hmac.New(newHash, secret)
	h.Write(seed)
	a := h.Sum(nil)

	for len(out) > 0 {
		h.Reset()
		h.Write(a)
		h.Write(seed)
		chunk := h.Sum(nil)

		n := copy(out, chunk)
		out = out[n:]

		h.Reset()
		h.Write(a)
		a = h.Sum(nil)
	}
}

// masterSecretLength and the PRF labels below are defined by RFC 5246,
// RFC 7627 and RFC 5705/5764.
const masterSecretLength = 48

const (
	labelMasterSecret         = "master secret"
	labelExtendedMasterSecret = "extended master secret"
	labelKeyExpansion         = "key expansion"
	labelClientFinished       = "client finished"
	labelServerFinished       = "server finished"
	labelEKTMaterial          = "EXTRACTOR-dtls_srtp"
)

// deriveMasterSecret implements RFC 5246 Section 8.1's master_secret
// derivation, or its RFC 7627 extended variant when extendedMasterSecret
// is true (in which case seed is the session_hash of the handshake
// transcript up to and including ClientKeyExchange, rather than
// client_random||server_random).
func deriveMasterSecret(preMasterSecret, seed []byte, extendedMasterSecret bool) []byte {
	label := labelMasterSecret
	if extendedMasterSecret {
		label = labelExtendedMasterSecret
	}
	return prf(preMasterSecret, []byte(label), seed, masterSecretLength)
}

// exportKeyingMaterial implements RFC 5705 keying material export, using
// the "EXTRACTOR-dtls_srtp" label and empty context, as required by
// RFC 5764 Section 4.2 for deriving SRTP session keys from the DTLS
// handshake's master secret.
func exportKeyingMaterial(masterSecret, clientRandom, serverRandom []byte, length int) []byte {
	seed := append(append([]byte(nil), clientRandom...), serverRandom...)
	return prf(masterSecret, []byte(labelEKTMaterial), seed, length)
}

// finishedVerifyData implements RFC 5246 Section 7.4.9: 12 bytes of PRF
// output keyed by the master secret over "client finished"/"server
// finished" and the handshake transcript hash.
func finishedVerifyData(masterSecret []byte, isClient bool, transcriptHash []byte) []byte {
	label := labelServerFinished
	if isClient {
		label = labelClientFinished
	}
	return prf(masterSecret, []byte(label), transcriptHash, 12)
}
