package rtp

import (
	errors "golang.org/x/xerrors"

	"github.com/lanikai/ng911core/internal/packet"
)

// RTP/AVPF profile for RTCP-based feedback.
// See [RFC 4585](https://tools.ietf.org/html/rfc4585).

const (
	fmtNACK = 1
	fmtPLI  = 1
	fmtREMB = 15
)

func newFeedbackPacket(packetType byte, fmt int) Packet {
	if packetType == rtcpTransportLayerFeedbackType {
		switch fmt {
		case fmtNACK:
			return new(NACK)
		}
	} else if packetType == rtcpPayloadSpecificFeedbackType {
		switch fmt {
		case fmtPLI:
			return new(PLI)
		case fmtREMB:
			return new(REMB)
		}
	}

	log.Debug("unimplemented Feedback Message: type = %d, FMT = %d", packetType, fmt)
	return nil
}

// NACK is a Generic NACK transport-layer feedback message, requesting
// retransmission of one or more lost RTP packets.
// See https://tools.ietf.org/html/rfc4585#section-6.2.1
type NACK struct {
	Sender uint32 // SSRC of NACK sender
	Source uint32 // SSRC of media source

	pid uint16 // packet ID (sequence number of lost packet)
	blp uint16 // bitmask of following lost packets
}

func (nack *NACK) writeTo(w *packet.Writer) error {
	h := rtcpHeader{
		packetType: rtcpTransportLayerFeedbackType,
		count:      fmtNACK,
		length:     3,
	}
	if err := h.writeTo(w); err != nil {
		return err
	}
	if err := w.CheckCapacity(4 * h.length); err != nil {
		return err
	}
	w.WriteUint32(nack.Sender)
	w.WriteUint32(nack.Source)
	w.WriteUint16(nack.pid)
	w.WriteUint16(nack.blp)
	return nil
}

func (nack *NACK) readFrom(r *packet.Reader, h *rtcpHeader) error {
	if h.length != 3 {
		return errors.Errorf("invalid NACK Feedback Message: length = %d", h.length)
	}
	nack.Sender = r.ReadUint32()
	nack.Source = r.ReadUint32()
	nack.pid = r.ReadUint16()
	nack.blp = r.ReadUint16()
	return nil
}

// LostPackets returns the sequence numbers that this NACK identifies as
// lost.
func (nack *NACK) LostPackets() []uint16 {
	lost := []uint16{nack.pid}
	mask := nack.blp
	seq := nack.pid + 1
	for mask != 0 {
		if mask&0x1 == 0x1 {
			lost = append(lost, seq)
		}
		seq++
		mask >>= 1
	}
	return lost
}

// SetLostPackets encodes the given (ascending) sequence numbers as the
// packet ID plus bitmask pair that make up a single NACK message. All of
// them must fall within a 17-packet window of the first.
func (nack *NACK) SetLostPackets(lost []uint16) error {
	if len(lost) == 0 {
		return errors.New("NACK: cannot set zero lost packets")
	}
	nack.pid = lost[0]
	nack.blp = 0
	for _, seq := range lost[1:] {
		bit := seq - nack.pid - 1
		if bit >= 16 {
			return errors.Errorf("lost packets span more than one NACK window: %v", lost)
		}
		nack.blp |= 1 << bit
	}
	return nil
}

// PLI is a Picture Loss Indication payload-specific feedback message,
// requesting an immediate full (key) frame.
// See https://tools.ietf.org/html/rfc4585#section-6.3.1
type PLI struct {
	Sender uint32 // SSRC of PLI sender
	Source uint32 // SSRC of media source
}

func (pli *PLI) writeTo(w *packet.Writer) error {
	h := rtcpHeader{
		packetType: rtcpPayloadSpecificFeedbackType,
		count:      fmtPLI,
		length:     2,
	}
	if err := h.writeTo(w); err != nil {
		return err
	}
	if err := w.CheckCapacity(4 * h.length); err != nil {
		return err
	}
	w.WriteUint32(pli.Sender)
	w.WriteUint32(pli.Source)
	return nil
}

func (pli *PLI) readFrom(r *packet.Reader, h *rtcpHeader) error {
	if h.length != 2 {
		return errors.Errorf("invalid PLI Feedback Message: length = %d", h.length)
	}
	pli.Sender = r.ReadUint32()
	pli.Source = r.ReadUint32()
	return nil
}

// REMB is a Receiver Estimated Maximum Bitrate payload-specific feedback
// message.
// See https://tools.ietf.org/html/draft-alvestrand-rmcat-remb-03#section-2.2
type REMB struct {
	Sender   uint32   // SSRC of REMB sender
	exponent uint32   // total estimated maximum bitrate
	mantissa uint32   // total estimated maximum bitrate
	Sources  []uint32 // one or more SSRCs this feedback applies to
}

func (remb *REMB) writeTo(w *packet.Writer) error {
	h := rtcpHeader{
		packetType: rtcpPayloadSpecificFeedbackType,
		count:      fmtREMB,
		length:     4 + len(remb.Sources),
	}
	if err := h.writeTo(w); err != nil {
		return err
	}
	if err := w.CheckCapacity(4 * h.length); err != nil {
		return err
	}
	w.WriteUint32(remb.Sender)
	w.WriteUint32(0) // SSRC of media source is always 0
	w.WriteString("REMB")
	w.WriteByte(byte(len(remb.Sources)))
	w.WriteUint24(((remb.exponent & 0x3F) << 18) | (remb.mantissa & 0x3FFFF))
	for _, source := range remb.Sources {
		w.WriteUint32(source)
	}
	return nil
}

func (remb *REMB) readFrom(r *packet.Reader, h *rtcpHeader) error {
	// Require at least 1 source (length = 5).
	if h.length < 5 {
		return errors.Errorf("invalid REMB Feedback Message: length = %d", h.length)
	}
	remb.Sender = r.ReadUint32()
	if 0 != r.ReadUint32() {
		return errors.New("invalid REMB Feedback Message: non-zero source")
	}
	if "REMB" != r.ReadString(4) {
		return errors.New("invalid REMB Feedback Message: invalid id")
	}
	numSources := int(r.ReadByte())

	em := r.ReadUint24()
	remb.exponent = (em >> 18) & 0x3F
	remb.mantissa = em & 0x3FFFF

	for i := 0; i < numSources && i < (r.Remaining()>>2); i++ {
		remb.Sources = append(remb.Sources, r.ReadUint32())
	}
	return nil
}

// SetEstimatedBitrate sets the exponent/mantissa pair encoding bps.
func (remb *REMB) SetEstimatedBitrate(bps uint64) {
	exponent := uint32(0)
	mantissa := bps
	for mantissa > 0x3FFFF {
		mantissa >>= 1
		exponent++
	}
	remb.exponent = exponent
	remb.mantissa = uint32(mantissa)
}

// EstimatedBitrate returns the estimated maximum bitrate in bits per second.
func (remb *REMB) EstimatedBitrate() uint64 {
	return uint64(remb.mantissa) << remb.exponent
}
