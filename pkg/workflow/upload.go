package workflow

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Lauszus/pyblhost/pkg/protocol"
)

// uploadChunkSize is the size of each Data frame sent during an upload;
// orthogonal to any transport-level fragmentation (e.g. CAN's 8 bytes).
const uploadChunkSize = 32

// uploadPaddingAlignment is the byte boundary the binary is padded to
// before upload. The bootloader's own documentation says 4, but the
// hardware this driver targets requires 16-byte alignment; 16 is kept.
const uploadPaddingAlignment = 16

// ErrInvalidArgument is returned when an operation's caller-supplied
// arguments violate a precondition the protocol requires.
var ErrInvalidArgument = fmt.Errorf("invalid argument")

// UploadOptions configures Upload.
type UploadOptions struct {
	Timeout       time.Duration
	PingRepeat    int
	Attempts      int
	ResetAfter    bool
	AssumeSuccess bool
	Progress      ProgressFunc
}

// padUpload right-pads data with 0xFF to the next multiple of
// uploadPaddingAlignment bytes.
func padUpload(data []byte) []byte {
	rem := len(data) % uploadPaddingAlignment
	if rem == 0 {
		return data
	}
	pad := uploadPaddingAlignment - rem
	padded := make([]byte, len(data), len(data)+pad)
	copy(padded, data)
	for i := 0; i < pad; i++ {
		padded = append(padded, 0xff)
	}
	return padded
}

// Upload erases [startAddress, startAddress+eraseByteCount), writes data
// into startAddress in 32-byte chunks, and retries the whole sequence up
// to opts.Attempts times. On failure it erases the backup region again
// so a partially written image is never left behind. If opts.ResetAfter
// is set, the target is reset once the sequence completes (success or
// not); a failed reset turns an otherwise-successful upload into a
// failure, since a target stuck in bootloader mode is unacceptable.
func (w *Workflow) Upload(data []byte, startAddress, eraseByteCount uint32, opts UploadOptions) (bool, error) {
	if opts.Attempts < 1 {
		return false, fmt.Errorf("upload: attempts must be >= 1: %w", ErrInvalidArgument)
	}

	padded := padUpload(data)
	total := len(padded)

	var success, anyAttemptRan bool
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		logrus.Infof("workflow: upload attempt %d/%d to 0x%x (%d bytes)", attempt, opts.Attempts, startAddress, total)

		if !w.pingWithRetries(opts.Timeout, opts.PingRepeat) {
			logrus.Warn("workflow: upload: target did not respond to ping")
			continue
		}
		anyAttemptRan = true

		if w.uploadAttempt(padded, startAddress, eraseByteCount, total, opts) {
			success = true
			break
		}
	}

	if !success && anyAttemptRan {
		logrus.Infof("workflow: upload failed, erasing flash region 0x%x..0x%x", startAddress, uint64(startAddress)+uint64(eraseByteCount))
		w.Engine.FlashEraseRegion.Clear()
		if err := w.Engine.SendCommand(protocol.CommandFlashEraseRegion, 0, startAddress, eraseByteCount); err != nil {
			logrus.Warnf("workflow: failed to send cleanup FlashEraseRegion: %v", err)
		} else if !w.Engine.FlashEraseRegion.Wait(opts.Timeout) {
			logrus.Error("workflow: timed out waiting for cleanup flash erase region response")
		}
	}

	if opts.ResetAfter {
		if !w.Reset(opts.Timeout) {
			logrus.Error("workflow: timed out waiting for post-upload reset response")
			success = false
		}
	}

	return success, nil
}

// uploadAttempt runs one erase/write/stream cycle, assuming the target
// has already answered a ping. It reports progress via opts.Progress as
// data chunks are acknowledged.
func (w *Workflow) uploadAttempt(padded []byte, startAddress, eraseByteCount uint32, total int, opts UploadOptions) bool {
	w.Engine.FlashEraseRegion.Clear()
	if err := w.Engine.SendCommand(protocol.CommandFlashEraseRegion, 0, startAddress, eraseByteCount); err != nil {
		logrus.Warnf("workflow: failed to send FlashEraseRegion: %v", err)
		return false
	}
	if !w.Engine.FlashEraseRegion.Wait(opts.Timeout) {
		logrus.Warn("workflow: timed out waiting for initial flash erase region response")
		return false
	}

	w.Engine.WriteMemoryResponse.Clear()
	if err := w.Engine.SendCommand(protocol.CommandWriteMemory, 0, startAddress, uint32(total)); err != nil {
		logrus.Warnf("workflow: failed to send WriteMemory: %v", err)
		return false
	}
	if !w.Engine.WriteMemoryResponse.Wait(opts.Timeout) {
		logrus.Warn("workflow: timed out waiting for write memory response")
		return false
	}

	// write_memory_response gates two distinct events: the initial
	// acknowledgement just waited above, and the terminal status after
	// the data stream below. Clear it again or the terminal wait would
	// observe a stale set from the acknowledgement.
	w.Engine.WriteMemoryResponse.Clear()

	opts.Progress.report(0.0)
	sent := 0
	for offset := 0; offset < len(padded); offset += uploadChunkSize {
		end := offset + uploadChunkSize
		if end > len(padded) {
			end = len(padded)
		}
		chunk := padded[offset:end]

		w.Engine.Ack.Clear()
		if err := w.Engine.SendData(chunk); err != nil {
			logrus.Warnf("workflow: failed to send data chunk: %v", err)
			return false
		}
		if !w.Engine.Ack.Wait(opts.Timeout) {
			logrus.Warn("workflow: timed out waiting for ACK response")
			return false
		}

		sent += len(chunk)
		opts.Progress.report(float64(sent) / float64(total) * 100.0)
	}

	if w.Engine.WriteMemoryResponse.Wait(opts.Timeout) {
		return true
	}
	if opts.AssumeSuccess {
		logrus.Warn("workflow: timed out waiting for terminal write memory status, assuming success per --assume-success")
		return true
	}
	return false
}
