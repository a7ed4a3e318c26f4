package protocol

import (
	"encoding/binary"
	"strconv"
)

// headerLen is the size of a long frame's header, up to but excluding
// the payload: start byte, type, 16-bit length, 16-bit CRC.
const headerLen = 6

// EncodeShortFrame builds a two-byte control frame: ACK, NAK, AckAbort or Ping.
// Short frames carry no length or CRC.
func EncodeShortFrame(t PacketType) []byte {
	return []byte{StartByte, byte(t)}
}

// EncodeLongFrame builds a Command or Data frame: start byte, type,
// little-endian length, little-endian CRC, then payload. The CRC is
// computed over the header (minus the CRC field itself) followed by the
// payload, per spec §4.2.
func EncodeLongFrame(t PacketType, payload []byte) []byte {
	frame := make([]byte, headerLen+len(payload))
	frame[0] = StartByte
	frame[1] = byte(t)
	binary.LittleEndian.PutUint16(frame[2:4], uint16(len(payload)))

	crc := CRC16Xmodem(frame[0:4], 0)
	crc = CRC16Xmodem(payload, crc)
	binary.LittleEndian.PutUint16(frame[4:6], crc)

	copy(frame[headerLen:], payload)
	return frame
}

// EncodeCommandFrame builds the payload for a Command frame: tag, flags,
// a reserved zero byte, the parameter count, then each parameter as a
// little-endian u32, wrapped in the long-frame envelope.
func EncodeCommandFrame(tag CommandTag, flags uint8, params ...uint32) []byte {
	payload := make([]byte, 4+4*len(params))
	payload[0] = byte(tag)
	payload[1] = flags
	payload[2] = 0
	payload[3] = uint8(len(params))
	for i, p := range params {
		binary.LittleEndian.PutUint32(payload[4+4*i:], p)
	}
	return EncodeLongFrame(TypeCommand, payload)
}

// EncodeDataFrame wraps a chunk of raw payload bytes in a Data frame.
func EncodeDataFrame(payload []byte) []byte {
	return EncodeLongFrame(TypeData, payload)
}

// DecodedCommand is the parsed payload of a Command response frame.
type DecodedCommand struct {
	Tag            ResponseTag
	Flags          uint8
	ParameterCount uint8
	Status         StatusCode
	// Parameters holds every u32 parameter after the status word, i.e.
	// parameters[1:] of the wire layout.
	Parameters []uint32
}

// DecodeCommandPayload parses a Command frame's payload (the bytes
// following the 6-byte header) into tag/flags/status/parameters.
func DecodeCommandPayload(payload []byte) DecodedCommand {
	parameterCount := payload[3]
	d := DecodedCommand{
		Tag:            ResponseTag(payload[0]),
		Flags:          payload[1],
		ParameterCount: parameterCount,
		Status:         StatusCode(binary.LittleEndian.Uint32(payload[4:8])),
	}
	if parameterCount > 1 {
		d.Parameters = make([]uint32, parameterCount-1)
		for i := range d.Parameters {
			d.Parameters[i] = binary.LittleEndian.Uint32(payload[8+4*i:])
		}
	}
	return d
}

// DecodedPingResponse is the parsed 10-byte ping-response frame.
type DecodedPingResponse struct {
	Bugfix  uint8
	Minor   uint8
	Major   uint8
	Name    byte
	Options uint16
}

// Version renders the protocol version string, e.g. "P1.2.0".
func (p DecodedPingResponse) Version() string {
	return string(p.Name) + strconv.Itoa(int(p.Major)) + "." + strconv.Itoa(int(p.Minor)) + "." + strconv.Itoa(int(p.Bugfix))
}

// DecodePingResponse parses a 10-byte ping-response frame's version fields
// (bytes [2:8], i.e. bugfix, minor, major, name, options).
func DecodePingResponse(frame []byte) DecodedPingResponse {
	return DecodedPingResponse{
		Bugfix:  frame[2],
		Minor:   frame[3],
		Major:   frame[4],
		Name:    frame[5],
		Options: binary.LittleEndian.Uint16(frame[6:8]),
	}
}
