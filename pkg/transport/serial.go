package transport

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
)

// Serial is a Transport binding over an 8-N-1 serial port. A background
// goroutine reads whatever bytes are available and forwards them to the
// delivered callback; the foreground Engine only ever calls SendBytes.
type Serial struct {
	port     serial.Port
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSerial opens portName at baudRate (8-N-1) and starts the background
// read loop, forwarding every non-empty read into delivered.
func NewSerial(portName string, baudRate int, delivered func([]byte)) (*Serial, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	if err := port.SetReadTimeout(250 * time.Millisecond); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set serial read timeout: %w", err)
	}

	s := &Serial{
		port:   port,
		stopCh: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.readLoop(delivered)

	return s, nil
}

func (s *Serial) readLoop(delivered func([]byte)) {
	defer s.wg.Done()

	buf := make([]byte, 256)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		n, err := s.port.Read(buf)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			logrus.Warnf("transport: serial read error: %v", err)
			continue
		}
		if n == 0 {
			continue
		}

		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		delivered(chunk)
	}
}

// SendBytes writes data to the port in one call; serial ports need no fragmentation.
func (s *Serial) SendBytes(data []byte) error {
	_, err := s.port.Write(data)
	return err
}

// Shutdown stops the read loop and closes the port.
func (s *Serial) Shutdown(timeout time.Duration) error {
	s.stopOnce.Do(func() { close(s.stopCh) })

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		logrus.Warn("transport: timed out waiting for serial read loop to stop")
	}

	return s.port.Close()
}
