package rtp

// common.go holds constants shared between the RTP data protocol (rtp.go)
// and the RTCP control protocol (rtcp.go, avpf.go).

const (
	// IANA-assigned range of RTCP packet types, used to distinguish RTCP
	// from RTP on a combined transport. See
	// https://tools.ietf.org/html/rfc5761#section-4.
	rtcpPacketTypeMin = 192
	rtcpPacketTypeMax = 223
)
