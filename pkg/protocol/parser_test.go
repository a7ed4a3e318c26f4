package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParserByteAtATime(t *testing.T) {
	frame := EncodeDataFrame([]byte{1, 2, 3, 4})

	whole := NewParser()
	wholePackets := whole.Feed(frame)
	require.Len(t, wholePackets, 1)

	byByte := NewParser()
	var gathered []Packet
	for _, b := range frame {
		gathered = append(gathered, byByte.Feed([]byte{b})...)
	}
	require.Len(t, gathered, 1)
	require.Equal(t, wholePackets[0].Raw, gathered[0].Raw)
}

func TestParserDiscardsLeadingGarbage(t *testing.T) {
	garbage := []byte{0x00, 0x11, 0x22, 0x33}
	ack := EncodeShortFrame(TypeAck)

	p := NewParser()
	packets := p.Feed(append(append([]byte(nil), garbage...), ack...))

	require.Len(t, packets, 1)
	require.Equal(t, TypeAck, packets[0].Type)
}

func TestParserRecoversFromCorruptFrame(t *testing.T) {
	corrupt := EncodeDataFrame([]byte{0xaa, 0xbb})
	corrupt[6] ^= 0xff // flip a payload byte so the CRC no longer matches
	ack := EncodeShortFrame(TypeAck)

	p := NewParser()
	packets := p.Feed(append(corrupt, ack...))

	require.Len(t, packets, 1)
	require.Equal(t, TypeAck, packets[0].Type)
}

func TestParserFragmentedFrameInterleavedWithControlFrame(t *testing.T) {
	// A complete control frame addressed to the host, followed by a long
	// frame delivered in two fragments, must both come out correctly.
	ack := EncodeShortFrame(TypeAck)
	data := EncodeDataFrame([]byte{9, 9, 9, 9, 9})

	p := NewParser()
	var packets []Packet
	packets = append(packets, p.Feed(ack)...)
	require.Len(t, packets, 1)
	require.Equal(t, TypeAck, packets[0].Type)

	packets = append(packets, p.Feed(data[:4])...)
	require.Len(t, packets, 1) // no new packet yet, still fragmented

	packets = append(packets, p.Feed(data[4:])...)
	require.Len(t, packets, 2)
	require.Equal(t, TypeData, packets[1].Type)
	require.Equal(t, data, packets[1].Raw)
}

func TestParserNakAckAbort(t *testing.T) {
	p := NewParser()
	packets := p.Feed(append(EncodeShortFrame(TypeNak), EncodeShortFrame(TypeAckAbort)...))
	require.Len(t, packets, 2)
	require.Equal(t, TypeNak, packets[0].Type)
	require.Equal(t, TypeAckAbort, packets[1].Type)
}
