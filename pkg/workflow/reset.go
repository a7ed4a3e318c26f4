package workflow

import (
	"time"

	"github.com/Lauszus/pyblhost/pkg/protocol"
)

// Reset clears reset_response, sends a Reset command with no parameters,
// and waits for the target's acknowledgement within timeout.
func (w *Workflow) Reset(timeout time.Duration) bool {
	w.Engine.ResetResponse.Clear()
	if err := w.Engine.SendCommand(protocol.CommandReset, 0); err != nil {
		return false
	}
	return w.Engine.ResetResponse.Wait(timeout)
}
