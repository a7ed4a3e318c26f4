package workflow

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lauszus/pyblhost/pkg/engine"
	"github.com/Lauszus/pyblhost/pkg/protocol"
)

// loopbackTransport is a Transport whose SendBytes queues the sent frame
// for a responder callback, which can feed synthetic replies straight
// back into the engine. The responder runs on its own goroutine, like a
// real transport's read loop: the engine holds its send lock for the
// whole SendBytes call, so a reply fed back from inside SendBytes would
// block on the ACK the engine sends for it. This exercises the full
// send -> parse -> dispatch -> signal path without a real wire.
type loopbackTransport struct {
	respond func(sent []byte)

	startOnce sync.Once
	queue     chan []byte
}

func (l *loopbackTransport) SendBytes(data []byte) error {
	l.startOnce.Do(func() {
		l.queue = make(chan []byte, 256)
		go func() {
			for sent := range l.queue {
				if l.respond != nil {
					l.respond(sent)
				}
			}
		}()
	})
	l.queue <- append([]byte(nil), data...)
	return nil
}

func (l *loopbackTransport) Shutdown(time.Duration) error { return nil }

// buildPingResponse hand-encodes a 10-byte PingResponse frame: start,
// type, bugfix, minor, major, name, options(u16), crc(u16).
func buildPingResponse(bugfix, minor, major, name byte, options uint16) []byte {
	buf := make([]byte, 10)
	buf[0] = protocol.StartByte
	buf[1] = byte(protocol.TypePingResponse)
	buf[2] = bugfix
	buf[3] = minor
	buf[4] = major
	buf[5] = name
	binary.LittleEndian.PutUint16(buf[6:8], options)
	crc := protocol.CRC16Xmodem(buf[:8], 0)
	binary.LittleEndian.PutUint16(buf[8:10], crc)
	return buf
}

// genericResponseFrame hand-builds a Command frame carrying a
// GenericResponse(status, commandTag) payload.
func genericResponseFrame(commandTag protocol.CommandTag, status protocol.StatusCode) []byte {
	payload := make([]byte, 4+4*2)
	payload[0] = byte(protocol.ResponseGeneric)
	payload[3] = 2
	binary.LittleEndian.PutUint32(payload[4:8], uint32(status))
	binary.LittleEndian.PutUint32(payload[8:12], uint32(commandTag))
	return protocol.EncodeLongFrame(protocol.TypeCommand, payload)
}

// readMemoryResponseFrame hand-builds the ReadMemoryResponse Command
// frame the target sends right after accepting a ReadMemory request.
func readMemoryResponseFrame(status protocol.StatusCode, dataByteCount uint32) []byte {
	payload := make([]byte, 4+4*2)
	payload[0] = byte(protocol.ResponseReadMemory)
	payload[3] = 2
	binary.LittleEndian.PutUint32(payload[4:8], uint32(status))
	binary.LittleEndian.PutUint32(payload[8:12], dataByteCount)
	return protocol.EncodeLongFrame(protocol.TypeCommand, payload)
}

// alwaysPingsSuccessfully wraps respond so every outbound Ping frame is
// answered with a valid P1.2.0 ping response.
func alwaysPingsSuccessfully(e *engine.Engine, next func(sent []byte)) func(sent []byte) {
	return func(sent []byte) {
		if len(sent) == 2 && protocol.PacketType(sent[1]) == protocol.TypePing {
			e.Feed(buildPingResponse(0, 2, 1, 'P', 0))
			return
		}
		if next != nil {
			next(sent)
		}
	}
}

// uploadResponder models a target that accepts an upload: it answers
// FlashEraseRegion and the initial WriteMemory command immediately, ACKs
// every Data frame, and only feeds the *terminal* WriteMemory status
// (which write_memory_response also gates, per its dual use) once
// paddedTotal bytes have been ACKed. If blockReset is set, Reset never
// gets a response, simulating a target that hangs after the data phase.
func uploadResponder(e *engine.Engine, paddedTotal int, blockReset bool) func(sent []byte) {
	var bytesAcked int
	return alwaysPingsSuccessfully(e, func(sent []byte) {
		switch protocol.PacketType(sent[1]) {
		case protocol.TypeData:
			bytesAcked += len(sent[6:])
			e.Feed(protocol.EncodeShortFrame(protocol.TypeAck))
			if bytesAcked >= paddedTotal {
				e.Feed(genericResponseFrame(protocol.CommandWriteMemory, protocol.StatusSuccess))
			}
		case protocol.TypeCommand:
			tag := protocol.CommandTag(sent[6])
			if tag == protocol.CommandReset && blockReset {
				return
			}
			e.Feed(genericResponseFrame(tag, protocol.StatusSuccess))
		}
	})
}

func TestWorkflowPingSuccess(t *testing.T) {
	lt := &loopbackTransport{}
	e := engine.New(lt, nil)
	lt.respond = alwaysPingsSuccessfully(e, nil)

	wf := New(e)
	require.True(t, wf.Ping(time.Second))
	require.Equal(t, protocol.ExpectedProtocolVersion, e.LastPingVersion)
}

func TestWorkflowResetFailurePropagatesThroughUpload(t *testing.T) {
	lt := &loopbackTransport{}
	e := engine.New(lt, nil)

	// "hello" (5 bytes) pads to 16; the data phase and terminal write
	// status both succeed, but Reset never gets a response.
	lt.respond = uploadResponder(e, 16, true)

	wf := New(e)
	ok, err := wf.Upload([]byte("hello"), 0x1000, 0x2000, UploadOptions{
		Timeout:    50 * time.Millisecond,
		PingRepeat: 1,
		Attempts:   1,
		ResetAfter: true,
	})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWorkflowUpload100Bytes(t *testing.T) {
	lt := &loopbackTransport{}
	e := engine.New(lt, nil)

	lt.respond = uploadResponder(e, 112, false)

	wf := New(e)
	var progress []float64
	data := make([]byte, 100)
	for i := range data {
		data[i] = 0x41
	}

	ok, err := wf.Upload(data, 0x1000, 0x2000, UploadOptions{
		Timeout:    time.Second,
		PingRepeat: 1,
		Attempts:   1,
		ResetAfter: true,
		Progress:   func(p float64) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	require.True(t, ok)

	// 112 bytes (16-aligned) sent as 32,32,32,16: 0, ~28.57, ~57.14, ~85.71, 100.
	require.Len(t, progress, 5)
	require.InDelta(t, 0.0, progress[0], 0.01)
	require.InDelta(t, 28.57, progress[1], 0.1)
	require.InDelta(t, 57.14, progress[2], 0.1)
	require.InDelta(t, 85.71, progress[3], 0.1)
	require.InDelta(t, 100.0, progress[4], 0.01)
}

func TestWorkflowUploadInvalidArgument(t *testing.T) {
	lt := &loopbackTransport{}
	lt.respond = func([]byte) { t.Fatal("transport should not be touched when attempts < 1") }
	e := engine.New(lt, nil)

	wf := New(e)
	ok, err := wf.Upload([]byte{1, 2, 3}, 0, 0, UploadOptions{Attempts: 0})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidArgument)
	require.False(t, ok)
}

func TestWorkflowRead100BytesAsTwoChunks(t *testing.T) {
	lt := &loopbackTransport{}
	e := engine.New(lt, nil)

	firstChunk := make([]byte, 50)
	secondChunk := make([]byte, 50)
	for i := range firstChunk {
		firstChunk[i] = byte(i)
		secondChunk[i] = byte(i + 50)
	}

	lt.respond = alwaysPingsSuccessfully(e, func(sent []byte) {
		if protocol.PacketType(sent[1]) != protocol.TypeCommand {
			return
		}
		payload := sent[6:]
		tag := protocol.CommandTag(payload[0])
		if tag != protocol.CommandReadMemory {
			return
		}
		e.Feed(readMemoryResponseFrame(protocol.StatusSuccess, 100))
		e.Feed(protocol.EncodeDataFrame(firstChunk))
		e.Feed(protocol.EncodeDataFrame(secondChunk))
		e.Feed(genericResponseFrame(protocol.CommandReadMemory, protocol.StatusSuccess))
	})

	wf := New(e)
	var progress []float64
	// The fake transport answers right after the ReadMemory command is
	// sent, so both data frames and the terminal status can land before
	// the read loop's first data_chunk_event wait; the final wait then
	// has nothing left to wait for and must genuinely time out before
	// the loop notices the terminal status, hence a short timeout.
	buf, err := wf.Read(0x1000, 100, ReadOptions{
		Timeout:    50 * time.Millisecond,
		PingRepeat: 1,
		Progress:   func(p float64) { progress = append(progress, p) },
	})
	require.NoError(t, err)
	require.Len(t, buf, 100)
	require.Equal(t, append(append([]byte{}, firstChunk...), secondChunk...), buf)

	require.NotEmpty(t, progress)
	require.GreaterOrEqual(t, progress[len(progress)-1], 100.0-0.001)
}
