package protocol

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

// Parser incrementally reassembles framing packets from an arbitrary
// byte stream. It owns no transport; Feed is called with whatever bytes
// a transport happened to deliver and returns zero or more complete,
// CRC-validated packets. One Parser belongs to exactly one connection.
type Parser struct {
	buffer      []byte
	expectedLen int // -1 until known
	expectedCrc int // -1 until known

	crcErrors int
}

// NewParser returns a Parser ready to Feed.
func NewParser() *Parser {
	return &Parser{expectedLen: -1, expectedCrc: -1}
}

// CrcErrors returns the running count of frames dropped for a CRC
// mismatch, for callers that want to export it as a metric.
func (p *Parser) CrcErrors() int {
	return p.crcErrors
}

// Packet is a single validated framing packet: its type and the full
// wire bytes (header + payload for long frames, just the start byte and
// type byte for short frames), CRC already verified.
type Packet struct {
	Type PacketType
	Raw  []byte
}

type stepResult int

const (
	stepNeedMore stepResult = iota
	stepDropped
	stepEmitted
)

// Feed appends data to the parser's internal buffer and extracts every
// complete packet that can now be formed. Invalid start bytes and
// frames with a bad CRC are dropped (logged) without stopping the scan
// of the rest of the buffer — a corrupted frame never hides a valid one
// that follows it in the same Feed call.
func (p *Parser) Feed(data []byte) []Packet {
	p.buffer = append(p.buffer, data...)

	var packets []Packet
	for {
		pkt, status := p.step()
		switch status {
		case stepEmitted:
			packets = append(packets, pkt)
		case stepDropped:
			// fall through to re-scan the remaining buffer
		case stepNeedMore:
			return packets
		}
	}
}

// step attempts to make one unit of progress against the buffer: discard
// leading garbage, recognize the frame type, and emit a packet once it is
// fully present and CRC-valid. stepNeedMore means the caller should wait
// for more bytes; stepDropped means bytes were consumed but no packet
// resulted, and the caller should immediately try again.
func (p *Parser) step() (Packet, stepResult) {
	for len(p.buffer) > 0 && p.buffer[0] != StartByte {
		p.buffer = p.buffer[1:]
	}
	if len(p.buffer) < 2 {
		return Packet{}, stepNeedMore
	}

	switch t := PacketType(p.buffer[1]); t {
	case TypeAck, TypeNak, TypeAckAbort:
		pkt := Packet{Type: t, Raw: append([]byte(nil), p.buffer[:2]...)}
		p.buffer = p.buffer[2:]
		return pkt, stepEmitted

	case TypePing:
		logrus.Warn("protocol: received ping command; host does not receive pings")
		p.buffer = p.buffer[2:]
		return Packet{}, stepDropped

	case TypePingResponse:
		p.expectedLen = 10
		if len(p.buffer) >= 10 && p.expectedCrc < 0 {
			p.expectedCrc = int(binary.LittleEndian.Uint16(p.buffer[8:10]))
		}
		return p.tryComplete(t)

	case TypeCommand, TypeData:
		if len(p.buffer) >= 4 && p.expectedLen < 0 {
			p.expectedLen = 6 + int(binary.LittleEndian.Uint16(p.buffer[2:4]))
		}
		if len(p.buffer) >= 6 && p.expectedCrc < 0 {
			p.expectedCrc = int(binary.LittleEndian.Uint16(p.buffer[4:6]))
		}
		return p.tryComplete(t)

	default:
		logrus.Errorf("protocol: unknown frame type: 0x%02x", t)
		p.buffer = p.buffer[2:]
		return Packet{}, stepDropped
	}
}

// tryComplete checks whether the expected length has arrived and, if so,
// validates the CRC and pops the packet off the buffer.
func (p *Parser) tryComplete(t PacketType) (Packet, stepResult) {
	if p.expectedLen < 0 || len(p.buffer) < p.expectedLen || p.expectedCrc < 0 {
		return Packet{}, stepNeedMore
	}

	var crc uint16
	if t == TypePingResponse {
		crc = CRC16Xmodem(p.buffer[:8], 0)
	} else {
		crc = CRC16Xmodem(p.buffer[0:4], 0)
		crc = CRC16Xmodem(p.buffer[6:p.expectedLen], crc)
	}

	match := crc == uint16(p.expectedCrc)
	if !match {
		p.crcErrors++
		logrus.Warnf("protocol: CRC mismatch: calculated=%04X != received=%04X", crc, p.expectedCrc)
	}

	raw := p.buffer[:p.expectedLen]
	p.buffer = p.buffer[p.expectedLen:]
	p.expectedLen = -1
	p.expectedCrc = -1

	if !match {
		return Packet{}, stepDropped
	}
	return Packet{Type: t, Raw: append([]byte(nil), raw...)}, stepEmitted
}
