package workflow

import (
	"time"

	"github.com/Lauszus/pyblhost/pkg/protocol"
)

// Ping clears the ping-response signal, sends a Ping frame, and waits for
// the target to answer within timeout. A failed send is treated the same
// as a timeout: the operation simply reports false.
func (w *Workflow) Ping(timeout time.Duration) bool {
	w.Engine.PingResponse.Clear()
	if err := w.Engine.SendShortFrame(protocol.TypePing); err != nil {
		return false
	}
	return w.Engine.PingResponse.Wait(timeout)
}
