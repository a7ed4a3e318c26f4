// Package engine implements the protocol engine (spec §4.4): command
// issuance, response dispatch, completion signaling and retransmit-on-NAK,
// on top of pkg/protocol's codec and parser and pkg/transport's byte sink.
package engine

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Lauszus/pyblhost/pkg/metrics"
	"github.com/Lauszus/pyblhost/pkg/protocol"
	"github.com/Lauszus/pyblhost/pkg/transport"
)

// Engine owns the completion signals, the read buffer for memory reads,
// and the transport handle. It is created once per connection and reset
// between high-level operations by the workflow orchestrator.
type Engine struct {
	transport transport.Transport
	parser    *protocol.Parser
	metrics   *metrics.Registry

	sendMu         sync.Mutex
	lastSentPacket []byte

	lastCrcErrorCount int

	Ack                  *Signal
	PingResponse         *Signal
	FlashEraseRegion     *Signal
	ReadMemoryResponse   *Signal
	ReadMemoryResponseTag *Signal
	WriteMemoryResponse  *Signal
	ResetResponse        *Signal
	GetCommandResponse   *Signal

	memMu      sync.Mutex
	memBuffer  []byte
	DataChunk  *Signal

	// LastPingVersion records the most recently observed ping-response
	// protocol version string, for callers that want to surface it.
	LastPingVersion string

	// LastPropertyValues holds the raw parameter words of the most
	// recent successful GetPropertyResponse (status word excluded).
	LastPropertyValues []uint32
}

// New creates an Engine bound to t. The engine starts reading from the
// transport's delivered bytes via Feed, which the caller must wire up
// (e.g. pass (e.Feed) as the delivered callback to transport.NewSerial/NewCAN).
func New(t transport.Transport, reg *metrics.Registry) *Engine {
	return &Engine{
		transport: t,
		parser:    protocol.NewParser(),
		metrics:   reg,

		Ack:                   NewSignal(),
		PingResponse:          NewSignal(),
		FlashEraseRegion:      NewSignal(),
		ReadMemoryResponse:    NewSignal(),
		ReadMemoryResponseTag: NewSignal(),
		WriteMemoryResponse:   NewSignal(),
		ResetResponse:         NewSignal(),
		GetCommandResponse:    NewSignal(),
		DataChunk:             NewSignal(),
	}
}

// SetTransport binds the engine to t. Transports need the engine's Feed
// method as their delivered-bytes callback, and the engine needs the
// transport to send through — constructing the engine first with a nil
// transport and calling SetTransport once the transport is open breaks
// that cycle. It must be called before any Send* method and is not safe
// to call concurrently with one.
func (e *Engine) SetTransport(t transport.Transport) {
	e.transport = t
}

// Feed is the delivered-bytes callback: it runs the stream parser over
// newly arrived bytes and dispatches every resulting packet in order.
// This is the "reader" side of spec §5's two-actor model; it must be
// invoked from one goroutine at a time (the transport's read loop).
func (e *Engine) Feed(data []byte) {
	for _, pkt := range e.parser.Feed(data) {
		e.dispatch(pkt)
	}

	if e.metrics != nil {
		if n := e.parser.CrcErrors(); n > e.lastCrcErrorCount {
			e.metrics.CrcErrors.Add(float64(n - e.lastCrcErrorCount))
			e.lastCrcErrorCount = n
		}
	}
}

// send stores data as the last-sent packet and writes it to the
// transport, serializing concurrent sends behind sendMu so the engine's
// own NAK-triggered retransmit from the reader goroutine never
// interleaves with a foreground send.
func (e *Engine) send(data []byte) error {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	e.lastSentPacket = data
	if err := e.transport.SendBytes(data); err != nil {
		return err
	}
	if e.metrics != nil {
		e.metrics.FramesSent.Inc()
	}
	return nil
}

// SendShortFrame sends a two-byte control frame (Ping, Ack, ...).
func (e *Engine) SendShortFrame(t protocol.PacketType) error {
	return e.send(protocol.EncodeShortFrame(t))
}

// SendCommand sends a Command frame for tag with the given parameters.
func (e *Engine) SendCommand(tag protocol.CommandTag, flags uint8, params ...uint32) error {
	return e.send(protocol.EncodeCommandFrame(tag, flags, params...))
}

// SendData sends one Data frame carrying payload.
func (e *Engine) SendData(payload []byte) error {
	return e.send(protocol.EncodeDataFrame(payload))
}

// ackTarget acknowledges receipt of a Command or Data frame. Per spec
// §5, this must happen before the inbound dispatcher returns, i.e.
// before any further packets from the same Feed call are processed —
// dispatch is synchronous and single-threaded per Engine, so that
// ordering holds automatically.
func (e *Engine) ackTarget() {
	if err := e.SendShortFrame(protocol.TypeAck); err != nil {
		logrus.Warnf("engine: failed to send ACK: %v", err)
	}
}

// ResetMemoryBuffer clears the read accumulator; called by the workflow
// orchestrator at the start of each read operation.
func (e *Engine) ResetMemoryBuffer() {
	e.memMu.Lock()
	defer e.memMu.Unlock()
	e.memBuffer = e.memBuffer[:0]
}

// MemoryBuffer returns a copy of the bytes accumulated so far by read().
func (e *Engine) MemoryBuffer() []byte {
	e.memMu.Lock()
	defer e.memMu.Unlock()
	out := make([]byte, len(e.memBuffer))
	copy(out, e.memBuffer)
	return out
}

// MemoryBufferLen returns the current length of the read accumulator
// without copying it, for cheap progress computation.
func (e *Engine) MemoryBufferLen() int {
	e.memMu.Lock()
	defer e.memMu.Unlock()
	return len(e.memBuffer)
}

func (e *Engine) appendMemoryBuffer(b []byte) {
	e.memMu.Lock()
	e.memBuffer = append(e.memBuffer, b...)
	e.memMu.Unlock()
}

// Shutdown releases the underlying transport, bounding how long it
// waits for the reader goroutine to stop.
func (e *Engine) Shutdown(timeout time.Duration) error {
	return e.transport.Shutdown(timeout)
}
