package rtp

import (
	errors "golang.org/x/xerrors"

	"github.com/lanikai/ng911core/internal/packet"
)

// RTP Control Protocol (RTCP), as defined in RFC 3550 Section 6.

// RTCP packets come in several different types. While they differ
// structurally, they all share a common 4-byte prefix header (where the
// meaning of count depends on packet type).
// See https://tools.ietf.org/html/rfc3550#section-6.
//    0                   1                   2                   3
//    0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
//   |V=2|P|  count  |  packet type  |             length            |
//   +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
type rtcpHeader struct {
	padding    bool
	count      int
	packetType byte
	length     int // length of RTCP packet in 32-bit words minus one
}

func (h *rtcpHeader) readFrom(r *packet.Reader) error {
	var v, count byte
	v, h.padding, count = splitByte215(r.ReadByte())
	if v != version {
		return errBadVersion(v)
	}
	h.count = int(count)
	h.packetType = r.ReadByte()
	h.length = int(r.ReadUint16())
	return nil
}

func (h *rtcpHeader) writeTo(w *packet.Writer) error {
	if err := w.CheckCapacity(rtcpHeaderSize); err != nil {
		return errors.Errorf("insufficient buffer for RTCP header: %v", err)
	}
	w.WriteByte(joinByte215(version, h.padding, byte(h.count)))
	w.WriteByte(h.packetType)
	w.WriteUint16(uint16(h.length))
	return nil
}

const (
	rtcpHeaderSize = 4
	rtcpReportSize = 6 * 4

	// From RFC 3550 Section 6.
	rtcpSenderReportType      = 200
	rtcpReceiverReportType    = 201
	rtcpSourceDescriptionType = 202
	rtcpGoodbyeType           = 203
	rtcpAppType               = 204

	// From RFC 4585.
	rtcpTransportLayerFeedbackType  = 205
	rtcpPayloadSpecificFeedbackType = 206
)

// Packet is a single packet within an RTCP compound packet.
type Packet interface {
	writeTo(w *packet.Writer) error
	readFrom(r *packet.Reader, h *rtcpHeader) error
}

// ReceptionReport is a report block for sender and receiver reports.
// See https://tools.ietf.org/html/rfc3550#section-6.4.1
type ReceptionReport struct {
	// Source is the SSRC that this report refers to.
	Source uint32

	// FractionLost is the fraction of packets lost since the last report
	// for this source.
	FractionLost float32

	// TotalLost is the cumulative number of packets lost from this source
	// for the entire session.
	TotalLost int

	// LastSequence is the extended sequence number of the last packet
	// received from this source.
	LastSequence uint32

	// Jitter is the interarrival jitter, measured in timestamp units.
	Jitter uint32

	// LastSRTimestamp is the truncated NTP timestamp of the most recent
	// Sender Report received from this source.
	LastSRTimestamp uint32

	// LastSRDelay is the time in 1/65536 seconds since the most recent
	// Sender Report from this source, or 0 if none has been received.
	LastSRDelay uint32
}

func (r ReceptionReport) writeTo(w *packet.Writer) {
	w.WriteUint32(r.Source)
	w.WriteByte(byte(r.FractionLost * 256))
	w.WriteUint24(uint32(r.TotalLost))
	w.WriteUint32(r.LastSequence)
	w.WriteUint32(r.Jitter)
	w.WriteUint32(r.LastSRTimestamp)
	w.WriteUint32(r.LastSRDelay)
}

func (r *ReceptionReport) readFrom(rd *packet.Reader) {
	r.Source = rd.ReadUint32()
	r.FractionLost = float32(rd.ReadByte()) / 256
	r.TotalLost = int(rd.ReadUint24())
	r.LastSequence = rd.ReadUint32()
	r.Jitter = rd.ReadUint32()
	r.LastSRTimestamp = rd.ReadUint32()
	r.LastSRDelay = rd.ReadUint32()
}

// SenderReport is an RTCP Sender Report (SR) packet.
// See https://tools.ietf.org/html/rfc3550#section-6.4.1
type SenderReport struct {
	Sender       uint32 // sender SSRC
	NTPTimestamp uint64 // NTP timestamp
	RTPTimestamp uint32 // RTP timestamp
	PacketCount  uint32 // number of RTP packets sent
	OctetCount   uint32 // number of payload bytes sent
	Reports      []ReceptionReport
}

func (p *SenderReport) writeTo(w *packet.Writer) error {
	h := rtcpHeader{
		packetType: rtcpSenderReportType,
		count:      len(p.Reports),
		length:     (24 + len(p.Reports)*rtcpReportSize) / 4,
	}
	if err := h.writeTo(w); err != nil {
		return err
	}
	if err := w.CheckCapacity(4 * h.length); err != nil {
		return errors.Errorf("insufficient buffer for SenderReport: %v", err)
	}
	w.WriteUint32(p.Sender)
	w.WriteUint64(p.NTPTimestamp)
	w.WriteUint32(p.RTPTimestamp)
	w.WriteUint32(p.PacketCount)
	w.WriteUint32(p.OctetCount)
	for i := range p.Reports {
		p.Reports[i].writeTo(w)
	}
	return nil
}

func (p *SenderReport) readFrom(r *packet.Reader, h *rtcpHeader) error {
	if 4*h.length != 24+h.count*rtcpReportSize {
		return errors.Errorf("invalid SenderReport: length = %d, count = %d", h.length, h.count)
	}
	p.Sender = r.ReadUint32()
	p.NTPTimestamp = r.ReadUint64()
	p.RTPTimestamp = r.ReadUint32()
	p.PacketCount = r.ReadUint32()
	p.OctetCount = r.ReadUint32()
	for i := 0; i < h.count; i++ {
		var rr ReceptionReport
		rr.readFrom(r)
		p.Reports = append(p.Reports, rr)
	}
	return nil
}

// ReceiverReport is an RTCP Receiver Report (RR) packet.
// See https://tools.ietf.org/html/rfc3550#section-6.4.2
type ReceiverReport struct {
	Receiver uint32 // SSRC of the receiver that sent the report
	Reports  []ReceptionReport
}

func (p *ReceiverReport) writeTo(w *packet.Writer) error {
	h := rtcpHeader{
		packetType: rtcpReceiverReportType,
		count:      len(p.Reports),
		length:     (4 + len(p.Reports)*rtcpReportSize) / 4,
	}
	if err := h.writeTo(w); err != nil {
		return err
	}
	if err := w.CheckCapacity(4 * h.length); err != nil {
		return errors.Errorf("insufficient buffer for ReceiverReport: %v", err)
	}
	w.WriteUint32(p.Receiver)
	for i := range p.Reports {
		p.Reports[i].writeTo(w)
	}
	return nil
}

func (p *ReceiverReport) readFrom(r *packet.Reader, h *rtcpHeader) error {
	if 4*h.length != 4+h.count*rtcpReportSize {
		return errors.Errorf("invalid ReceiverReport: length = %d, count = %d", h.length, h.count)
	}
	p.Receiver = r.ReadUint32()
	for i := 0; i < h.count; i++ {
		var rr ReceptionReport
		rr.readFrom(r)
		p.Reports = append(p.Reports, rr)
	}
	return nil
}

// SourceDescription is an RTCP SDES packet, restricted to a single chunk
// (one SSRC/CNAME pair), which is all this engine ever generates or expects.
// See https://tools.ietf.org/html/rfc3550#section-6.5
type SourceDescription struct {
	SSRC  uint32
	CNAME string
}

const (
	sdesItemEnd   = 0
	sdesItemCNAME = 1
)

type sdesItem struct {
	what byte
	text string
}

func (item *sdesItem) size() int {
	if item.what == sdesItemEnd {
		return 1
	}
	return 2 + len(item.text)
}

func (item *sdesItem) writeTo(w *packet.Writer) {
	w.WriteByte(item.what)
	if item.what == sdesItemEnd {
		w.Align(4)
	} else {
		w.WriteByte(uint8(len(item.text)))
		w.WriteString(item.text)
	}
}

func (item *sdesItem) readFrom(r *packet.Reader) {
	item.what = r.ReadByte()
	if item.what == sdesItemEnd {
		// Discard zeros up to the next 32-bit (i.e. 4-byte) boundary.
		r.Align(4)
	} else {
		length := int(r.ReadByte())
		item.text = r.ReadString(length)
	}
}

func (sdes *SourceDescription) writeTo(w *packet.Writer) error {
	items := []sdesItem{
		{sdesItemCNAME, sdes.CNAME},
		{sdesItemEnd, ""},
	}
	totalSize := 0
	for _, item := range items {
		totalSize += item.size()
	}

	h := rtcpHeader{
		packetType: rtcpSourceDescriptionType,
		count:      1,
		length:     1 + (totalSize+3)/4,
	}
	if err := h.writeTo(w); err != nil {
		return err
	}
	if err := w.CheckCapacity(4 * h.length); err != nil {
		return errors.Errorf("insufficient buffer for SourceDescription: %v", err)
	}

	w.WriteUint32(sdes.SSRC)
	for _, item := range items {
		item.writeTo(w)
	}
	return nil
}

func (sdes *SourceDescription) readFrom(r *packet.Reader, h *rtcpHeader) error {
	if h.count != 1 || h.length < 1 {
		return errors.Errorf("invalid SourceDescription header: %#v", h)
	}
	sdes.SSRC = r.ReadUint32()

	var item sdesItem
	for r.Remaining() > 0 {
		item.readFrom(r)
		switch item.what {
		case sdesItemEnd:
			return nil
		case sdesItemCNAME:
			sdes.CNAME = item.text
		default:
			log.Trace(4, "ignoring unimplemented SDES item type: %d", item.what)
		}
	}
	return nil
}

// Goodbye is an RTCP BYE packet.
// See https://tools.ietf.org/html/rfc3550#section-6.6
type Goodbye struct {
	SSRC   uint32
	Reason string
}

func (bye *Goodbye) writeTo(w *packet.Writer) error {
	length := 1
	if bye.Reason != "" {
		length += (1 + len(bye.Reason) + 3) / 4
	}
	h := rtcpHeader{
		packetType: rtcpGoodbyeType,
		count:      1,
		length:     length,
	}
	if err := h.writeTo(w); err != nil {
		return err
	}
	w.WriteUint32(bye.SSRC)
	if bye.Reason != "" {
		w.WriteByte(byte(len(bye.Reason)))
		w.WriteString(bye.Reason)
		w.Align(4)
	}
	return nil
}

func (bye *Goodbye) readFrom(r *packet.Reader, h *rtcpHeader) error {
	if err := r.CheckRemaining(4); err != nil {
		return err
	}
	bye.SSRC = r.ReadUint32()
	if r.Remaining() > 0 {
		n := int(r.ReadByte())
		if n > 0 && r.Remaining() >= n {
			bye.Reason = r.ReadString(n)
		}
	}
	return nil
}

// ParseCompound parses buf as a compound RTCP packet: one or more RTCP
// packets concatenated back to back, as produced by MarshalCompound.
func ParseCompound(buf []byte) ([]Packet, error) {
	var packets []Packet
	var h rtcpHeader
	r := packet.NewReader(buf)
	for r.Remaining() > 0 {
		if err := h.readFrom(r); err != nil {
			return packets, err
		}

		var p Packet
		switch h.packetType {
		case rtcpReceiverReportType:
			p = new(ReceiverReport)
		case rtcpSenderReportType:
			p = new(SenderReport)
		case rtcpSourceDescriptionType:
			p = new(SourceDescription)
		case rtcpGoodbyeType:
			p = new(Goodbye)
		case rtcpTransportLayerFeedbackType, rtcpPayloadSpecificFeedbackType:
			p = newFeedbackPacket(h.packetType, h.count)
		default:
			log.Debug("ignoring unimplemented RTCP packet type: %d", h.packetType)
		}

		if len(packets) == 0 && !isCompoundHead(h.packetType) {
			return packets, errors.Errorf("compound RTCP packet must open with SR or RR, got type %d", h.packetType)
		}

		if p == nil {
			r.Skip(4 * h.length)
			continue
		}
		if err := p.readFrom(r, &h); err != nil {
			return packets, err
		}
		packets = append(packets, p)
	}
	return packets, nil
}

// isCompoundHead reports whether packetType may legally open a compound
// packet. RFC 3550 Section 6.1 requires SR or RR first; RFC 5506 Section 3
// additionally permits a reduced-size feedback message to stand alone
// (e.g. an immediate NACK sent ahead of the next regular reporting
// interval, per RFC 4585).
func isCompoundHead(packetType byte) bool {
	switch packetType {
	case rtcpSenderReportType, rtcpReceiverReportType,
		rtcpTransportLayerFeedbackType, rtcpPayloadSpecificFeedbackType:
		return true
	default:
		return false
	}
}

// MarshalCompound serializes packets as a single RTCP compound packet into
// buf, returning the written slice. A new slice is allocated if buf is too
// small.
func MarshalCompound(buf []byte, packets ...Packet) ([]byte, error) {
	if len(packets) == 0 {
		return nil, errors.New("MarshalCompound requires at least one packet")
	}
	if buf == nil {
		buf = make([]byte, 1500)
	}
	w := packet.NewWriter(buf)
	for _, p := range packets {
		if err := p.writeTo(w); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}
