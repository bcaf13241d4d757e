package rtt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	t140PT = 96
	redPT  = 97
)

func buildRedHeader(marker bool, pt byte, tsOffset, blockLen uint16) []byte {
	b0 := pt & 0x7f
	if marker {
		b0 |= 0x80
	}
	b1 := byte(tsOffset >> 6)
	b2 := byte(tsOffset<<2) | byte(blockLen>>8)
	b3 := byte(blockLen)
	return []byte{b0, b1, b2, b3}
}

// buildRedPacket builds a "red" payload carrying, oldest first, the given
// redundant blocks (already-sent primaries) followed by the new primary.
func buildRedPacket(blocks [][]byte, primary []byte) []byte {
	var out []byte
	for i, b := range blocks {
		out = append(out, buildRedHeader(true, t140PT, uint16(len(blocks)-i), uint16(len(b)))...)
	}
	out = append(out, buildRedHeader(false, t140PT, 0, 0)...)
	for _, b := range blocks {
		out = append(out, b...)
	}
	out = append(out, primary...)
	return out
}

// TestRedundancyRecoversDroppedPackets reproduces an RTT recovery
// scenario: "hello" sent one character per packet at redundancy level 2,
// with packets 2 and 4 dropped.
func TestRedundancyRecoversDroppedPackets(t *testing.T) {
	chars := []string{"h", "e", "l", "l", "o"}
	recv := NewReceiver(t140PT, redPT, 2)

	var out string
	var seq uint16 = 1000

	// Packet 1: "h", no history, marker set (start of talk spurt).
	text, err := recv.Receive(redPT, seq, true, buildRedPacket(nil, []byte(chars[0])))
	require.NoError(t, err)
	out += text

	// Packet 2 ("e") is dropped on the wire; never delivered to Receive.
	seq += 2

	// Packet 3 ("l") carries redundant copies of "h" and "e".
	text, err = recv.Receive(redPT, seq, false, buildRedPacket([][]byte{[]byte(chars[0]), []byte(chars[1])}, []byte(chars[2])))
	require.NoError(t, err)
	out += text

	// Packet 4 ("l") is dropped.
	seq += 2

	// Packet 5 ("o") carries redundant copies of "l" (pkt3) and "l" (pkt4).
	text, err = recv.Receive(redPT, seq, false, buildRedPacket([][]byte{[]byte(chars[2]), []byte(chars[3])}, []byte(chars[4])))
	require.NoError(t, err)
	out += text

	require.Equal(t, "hello", out)
}

func TestT140Plain(t *testing.T) {
	recv := NewReceiver(t140PT, redPT, 2)
	text, err := recv.Receive(t140PT, 1, true, []byte("hi"))
	require.NoError(t, err)
	require.Equal(t, "hi", text)
}

func TestT140BOMStripped(t *testing.T) {
	recv := NewReceiver(t140PT, redPT, 2)
	payload := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hi")...)
	text, err := recv.Receive(t140PT, 1, true, payload)
	require.NoError(t, err)
	require.Equal(t, "hi", text)
}

func TestLineSeparatorNormalized(t *testing.T) {
	recv := NewReceiver(t140PT, redPT, 2)
	text, err := recv.Receive(t140PT, 1, true, []byte("a b"))
	require.NoError(t, err)
	require.Equal(t, "a\nb", text)
}
