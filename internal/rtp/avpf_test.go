package rtp

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lanikai/ng911core/internal/packet"
)

func TestNACK(t *testing.T) {
	var nack NACK

	require := assert.New(t)
	require.NoError(nack.SetLostPackets([]uint16{5, 6, 10}))
	require.EqualValues(5, nack.pid)
	require.EqualValues(0x11, nack.blp) // 6 -> bit 0, 10 -> bit 4

	lost := nack.LostPackets()
	require.Equal([]uint16{5, 6, 10}, lost)
}

func TestNACKRoundTrip(t *testing.T) {
	var nack NACK
	nack.Sender = 0x11223344
	nack.Source = 0x55667788
	assert.NoError(t, nack.SetLostPackets([]uint16{100, 101, 105}))

	buf := make([]byte, 1500)
	w := packet.NewWriter(buf)
	assert.NoError(t, nack.writeTo(w))

	packets, err := ParseCompound(w.Bytes())
	assert.NoError(t, err)
	assert.Len(t, packets, 1)

	got, ok := packets[0].(*NACK)
	assert.True(t, ok)
	assert.Equal(t, nack.Sender, got.Sender)
	assert.Equal(t, nack.Source, got.Source)
	assert.Equal(t, []uint16{100, 101, 105}, got.LostPackets())
}
