package workflow

import (
	"fmt"
	"time"

	"github.com/Lauszus/pyblhost/pkg/protocol"
)

// ReadOptions configures Read.
type ReadOptions struct {
	Timeout    time.Duration
	PingRepeat int
	Progress   ProgressFunc
}

// Read pings the target, issues a ReadMemory command for
// [startAddress, startAddress+byteCount), and accumulates the resulting
// Data frames until the target's terminal status arrives. It returns
// exactly byteCount bytes on success.
func (w *Workflow) Read(startAddress, byteCount uint32, opts ReadOptions) ([]byte, error) {
	if !w.pingWithRetries(opts.Timeout, opts.PingRepeat) {
		return nil, fmt.Errorf("read: target did not respond to ping")
	}

	w.Engine.ResetMemoryBuffer()
	w.Engine.DataChunk.Clear()
	w.Engine.ReadMemoryResponseTag.Clear()

	w.Engine.ReadMemoryResponse.Clear()
	if err := w.Engine.SendCommand(protocol.CommandReadMemory, 0, startAddress, byteCount); err != nil {
		return nil, fmt.Errorf("read: failed to send ReadMemory: %w", err)
	}
	if !w.Engine.ReadMemoryResponse.Wait(opts.Timeout) {
		return nil, fmt.Errorf("read: timed out waiting for initial read memory response")
	}

	for {
		opts.Progress.report(float64(w.Engine.MemoryBufferLen()) / float64(byteCount) * 100.0)

		w.Engine.DataChunk.Clear()
		if w.Engine.DataChunk.Wait(opts.Timeout) {
			continue
		}

		// The data stream stopped; if the target's terminal status for
		// the ReadMemory command already arrived, the stream ended
		// cleanly. Otherwise this is a genuine timeout.
		if w.Engine.ReadMemoryResponseTag.IsSet() {
			opts.Progress.report(100.0)
			break
		}
		return nil, fmt.Errorf("read: timed out waiting for data and no terminal status arrived")
	}

	if w.Engine.MemoryBufferLen() != int(byteCount) {
		return nil, fmt.Errorf("read: received %d bytes, expected %d", w.Engine.MemoryBufferLen(), byteCount)
	}

	return w.Engine.MemoryBuffer(), nil
}
