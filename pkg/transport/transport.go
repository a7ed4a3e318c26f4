// Package transport provides the byte-sink/byte-source abstraction the
// protocol engine is parameterized over (spec §4.6, §9 "Dynamic
// polymorphism over transport"), plus concrete serial and CAN bindings.
package transport

import "time"

// Transport is the capability set the engine depends on: send bytes to
// the wire and release the underlying device. The engine never reads
// from a Transport directly — inbound bytes are pushed to it via the
// callback passed to the constructor of a concrete binding, so the
// engine is parameterized over the transport rather than inheriting
// from it.
type Transport interface {
	// SendBytes delivers data to the wire. Implementations may
	// fragment it (CAN: 8 bytes per frame) and pace fragments.
	SendBytes(data []byte) error

	// Shutdown stops the inbound pump and releases the device. It must
	// not block longer than timeout.
	Shutdown(timeout time.Duration) error
}
