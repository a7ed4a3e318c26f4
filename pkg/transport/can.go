package transport

import (
	"fmt"
	"time"

	"github.com/brutella/can"
	"github.com/sirupsen/logrus"
)

// CAN is a Transport binding over a SocketCAN interface. The target
// emits frames with arbitration id txID; the host sends with rxID. Each
// outbound frame carries up to 8 payload bytes, so SendBytes fragments
// longer payloads into multiple CAN frames.
type CAN struct {
	bus  *can.Bus
	rxID uint32
}

// NewCAN opens interfaceName (e.g. "can0") and starts listening for
// frames with arbitration id txID, forwarding their data into delivered.
// extendedID selects an 11-bit (0x7FF) or 29-bit (0x1FFFFFFF) filter mask.
func NewCAN(interfaceName string, txID, rxID uint32, extendedID bool, delivered func([]byte)) (*CAN, error) {
	bus, err := can.NewBusForInterfaceWithName(interfaceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open CAN interface %q: %w", interfaceName, err)
	}

	mask := uint32(0x7FF)
	if extendedID {
		mask = 0x1FFFFFFF
	}

	bus.Subscribe(can.HandlerFunc(func(frame can.Frame) {
		if frame.ID&mask != txID&mask {
			return
		}
		data := make([]byte, frame.Length)
		copy(data, frame.Data[:frame.Length])
		delivered(data)
	}))

	c := &CAN{bus: bus, rxID: rxID}

	go func() {
		if err := bus.ConnectAndPublish(); err != nil {
			logrus.Errorf("transport: CAN bus closed: %v", err)
		}
	}()

	return c, nil
}

// chunkSize is the maximum CAN frame payload.
const chunkSize = 8

// SendBytes fragments data into chunkSize-byte CAN frames and publishes
// each one with arbitration id rxID; the chunking is a transport
// concern, not something the protocol engine needs to know about.
func (c *CAN) SendBytes(data []byte) error {
	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		if end > len(data) {
			end = len(data)
		}
		chunk := data[offset:end]

		var frame can.Frame
		frame.ID = c.rxID
		frame.Length = uint8(len(chunk))
		copy(frame.Data[:], chunk)

		if err := c.bus.Publish(frame); err != nil {
			return fmt.Errorf("failed to publish CAN frame: %w", err)
		}
	}
	return nil
}

// Shutdown disconnects the CAN bus. CAN has no separate read-loop
// goroutine to join; ConnectAndPublish returns once Disconnect is called.
func (c *CAN) Shutdown(_ time.Duration) error {
	return c.bus.Disconnect()
}
