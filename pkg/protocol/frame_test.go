package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeShortFramePing(t *testing.T) {
	require.Equal(t, []byte{0x5a, 0xa6}, EncodeShortFrame(TypePing))
}

func TestEncodeDecodeLongFrameRoundTrip(t *testing.T) {
	payload := []byte{0xde, 0xad, 0xbe, 0xef, 0x01, 0x02}
	frame := EncodeLongFrame(TypeData, payload)

	p := NewParser()
	packets := p.Feed(frame)
	require.Len(t, packets, 1)
	require.Equal(t, TypeData, packets[0].Type)
	require.Equal(t, payload, packets[0].Raw[6:])
}

func TestEncodeCommandFrameLayout(t *testing.T) {
	frame := EncodeCommandFrame(CommandFlashEraseRegion, 0, 0x1000, 0x2000)

	// start, type, len_lo, len_hi, crc_lo, crc_hi, tag, flags, reserved, count, 2x u32
	require.Equal(t, byte(StartByte), frame[0])
	require.Equal(t, byte(TypeCommand), frame[1])
	require.Equal(t, byte(12), frame[2]) // 4 header + 2*4 params
	require.Equal(t, byte(0), frame[3])

	payload := frame[6:]
	require.Equal(t, CommandFlashEraseRegion, CommandTag(payload[0]))
	require.Equal(t, uint8(2), payload[3])
}

func TestDecodePingResponseVersion(t *testing.T) {
	frame := make([]byte, 10)
	frame[0] = StartByte
	frame[1] = byte(TypePingResponse)
	frame[2] = 0 // bugfix
	frame[3] = 2 // minor
	frame[4] = 1 // major
	frame[5] = 'P'
	frame[6] = 0
	frame[7] = 0

	resp := DecodePingResponse(frame)
	require.Equal(t, "P1.2.0", resp.Version())
}
