package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lauszus/pyblhost/pkg/protocol"
)

// fakeTransport is an in-memory Transport used to drive the engine's
// dispatch logic directly from test code without a real serial/CAN link.
type fakeTransport struct {
	sent [][]byte
}

func (f *fakeTransport) SendBytes(data []byte) error {
	cp := append([]byte(nil), data...)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeTransport) Shutdown(time.Duration) error { return nil }

func newTestEngine() (*Engine, *fakeTransport) {
	ft := &fakeTransport{}
	return New(ft, nil), ft
}

func TestEngineAckSetsSignal(t *testing.T) {
	e, _ := newTestEngine()
	e.Feed(protocol.EncodeShortFrame(protocol.TypeAck))
	require.True(t, e.Ack.Wait(time.Second))
}

func TestEngineNakRetransmitsLastPacket(t *testing.T) {
	e, ft := newTestEngine()
	require.NoError(t, e.SendCommand(protocol.CommandReset, 0))
	require.Len(t, ft.sent, 1)

	e.Feed(protocol.EncodeShortFrame(protocol.TypeNak))

	require.Len(t, ft.sent, 2)
	require.Equal(t, ft.sent[0], ft.sent[1])
}

func TestEngineNakWithoutPriorSendIsNoop(t *testing.T) {
	e, ft := newTestEngine()
	e.Feed(protocol.EncodeShortFrame(protocol.TypeNak))
	require.Empty(t, ft.sent)
}

func TestEngineCommandResponseSendsExactlyOneAck(t *testing.T) {
	e, ft := newTestEngine()
	frame := genericResponseFrame(t, protocol.CommandReset, protocol.StatusSuccess)

	e.Feed(frame)

	require.Len(t, ft.sent, 1)
	require.Equal(t, protocol.EncodeShortFrame(protocol.TypeAck), ft.sent[0])
	require.True(t, e.ResetResponse.Wait(time.Second))
	require.True(t, e.GetCommandResponse.Wait(time.Second))
}

func TestEngineGenericResponseRoutesByCommandTag(t *testing.T) {
	e, _ := newTestEngine()

	e.Feed(genericResponseFrame(t, protocol.CommandFlashEraseRegion, protocol.StatusSuccess))
	require.True(t, e.FlashEraseRegion.Wait(time.Second))
	require.False(t, e.ResetResponse.Wait(10*time.Millisecond))
}

func TestEngineReliableUpdateAcceptsBothSuccessCodes(t *testing.T) {
	e, _ := newTestEngine()
	e.Feed(genericResponseFrame(t, protocol.CommandReliableUpdate, protocol.StatusReliableUpdateSuccess))
	require.True(t, e.GetCommandResponse.Wait(time.Second))

	e.GetCommandResponse.Clear()
	e.Feed(genericResponseFrame(t, protocol.CommandReliableUpdate, protocol.StatusFail))
	require.False(t, e.GetCommandResponse.Wait(10*time.Millisecond))
}

func TestEngineDataFramePulsesDataChunkAndAppendsBuffer(t *testing.T) {
	e, _ := newTestEngine()
	e.ResetMemoryBuffer()

	e.Feed(protocol.EncodeDataFrame([]byte{1, 2, 3}))
	require.True(t, e.DataChunk.Wait(time.Second))
	require.Equal(t, []byte{1, 2, 3}, e.MemoryBuffer())

	e.Feed(protocol.EncodeDataFrame([]byte{4, 5}))
	require.Equal(t, []byte{1, 2, 3, 4, 5}, e.MemoryBuffer())
}

// genericResponseFrame hand-builds a Command frame carrying a
// GenericResponse(status, commandTag) payload, the shape the target
// sends back for Reset/FlashEraseRegion/ReadMemory/WriteMemory/ReliableUpdate.
func genericResponseFrame(t *testing.T, commandTag protocol.CommandTag, status protocol.StatusCode) []byte {
	t.Helper()
	payload := make([]byte, 4+4*2)
	payload[0] = byte(protocol.ResponseGeneric)
	payload[1] = 0
	payload[2] = 0
	payload[3] = 2 // parameter_count: status + command_tag
	putU32LE(payload[4:8], uint32(status))
	putU32LE(payload[8:12], uint32(commandTag))
	return protocol.EncodeLongFrame(protocol.TypeCommand, payload)
}

func putU32LE(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
