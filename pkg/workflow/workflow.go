// Package workflow implements the multi-step operations (ping, reset,
// get-property, upload, read) that drive the protocol engine through a
// complete exchange with the target bootloader, per spec §4.5.
package workflow

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Lauszus/pyblhost/pkg/engine"
)

// Workflow wraps an Engine with the orchestration logic for the five
// supported operations. One Workflow is created per connection and the
// caller is responsible for issuing operations one at a time (spec §3:
// "at most one command is in flight per engine instance").
type Workflow struct {
	Engine *engine.Engine
}

// New returns a Workflow driving e.
func New(e *engine.Engine) *Workflow {
	return &Workflow{Engine: e}
}

// ProgressFunc receives progress updates in [0, 100] as an operation
// advances. It is called synchronously from the workflow goroutine; a nil
// ProgressFunc is valid and simply discards progress.
type ProgressFunc func(percent float64)

func (f ProgressFunc) report(percent float64) {
	if f != nil {
		f(percent)
	}
}

// pingWithRetries issues up to attempts ping frames, returning true on
// the first one that gets a valid response. Every operation that accepts
// a pingRepeat parameter uses this to make sure the target is alive
// before issuing its real command. A ping response reporting an
// unexpected protocol version is logged by the engine but still counts
// as a response here.
func (w *Workflow) pingWithRetries(timeout time.Duration, attempts int) bool {
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		if w.Ping(timeout) {
			return true
		}
		logrus.Warnf("workflow: ping attempt %d/%d failed", i+1, attempts)
	}
	return false
}
