package rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCompoundSenderReportFirst(t *testing.T) {
	sr := &SenderReport{Sender: 0xaabbccdd, NTPTimestamp: 1, RTPTimestamp: 2, PacketCount: 3, OctetCount: 4}
	sdes := &SourceDescription{SSRC: 0xaabbccdd, CNAME: "caller@example.invalid"}

	buf, err := MarshalCompound(nil, sr, sdes)
	assert.NoError(t, err)

	packets, err := ParseCompound(buf)
	assert.NoError(t, err)
	assert.Len(t, packets, 2)

	_, ok := packets[0].(*SenderReport)
	assert.True(t, ok)
}

func TestParseCompoundRejectsNonSRRRFirst(t *testing.T) {
	sdes := &SourceDescription{SSRC: 0x1, CNAME: "caller@example.invalid"}

	buf, err := MarshalCompound(nil, sdes)
	assert.NoError(t, err)

	_, err = ParseCompound(buf)
	assert.Error(t, err)
}
