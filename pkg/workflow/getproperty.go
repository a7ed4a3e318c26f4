package workflow

import (
	"time"

	"github.com/Lauszus/pyblhost/pkg/protocol"
)

// GetProperty pings the target (up to pingRepeat times) and, once alive,
// requests property tag for memoryID. It returns the raw parameter words
// of the response (status word excluded) and whether the operation
// succeeded. The slice is nil on failure.
func (w *Workflow) GetProperty(tag protocol.PropertyTag, memoryID uint32, timeout time.Duration, pingRepeat int) ([]uint32, bool) {
	if !w.pingWithRetries(timeout, pingRepeat) {
		return nil, false
	}

	w.Engine.GetCommandResponse.Clear()
	if err := w.Engine.SendCommand(protocol.CommandGetProperty, 0, uint32(tag), memoryID); err != nil {
		return nil, false
	}
	if !w.Engine.GetCommandResponse.Wait(timeout) {
		return nil, false
	}
	return w.Engine.LastPropertyValues, true
}
