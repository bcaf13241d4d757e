package mux

// MatchFunc examines the first bytes of a datagram and reports whether it
// belongs to the endpoint it's registered for. Exactly one MatchFunc should
// match any given packet on a properly demultiplexed connection.
type MatchFunc func(buf []byte) bool

// MatchDTLS matches datagrams carrying a DTLS record, per the
// demultiplexing table in https://tools.ietf.org/html/rfc5764#section-5.1.2:
// the first byte of a DTLS record (ContentType) falls in [20, 63].
func MatchDTLS(buf []byte) bool {
	return len(buf) > 0 && buf[0] >= 20 && buf[0] <= 63
}

// MatchSRTP matches datagrams carrying SRTP or SRTCP, per the same table:
// the first byte (RTP version/padding/extension bits, or the RTCP
// packet-type byte) falls in [128, 191].
func MatchSRTP(buf []byte) bool {
	return len(buf) > 0 && buf[0] >= 128 && buf[0] <= 191
}
