package engine

import (
	"github.com/sirupsen/logrus"

	"github.com/Lauszus/pyblhost/pkg/protocol"
)

// dispatch routes one validated packet from the parser. It runs on the
// reader goroutine; every branch that sets a completion signal happens
// only after the packet has been fully parsed (spec §5 ordering
// guarantee: "signal sets happen-after the packet bytes... are fully parsed").
func (e *Engine) dispatch(pkt protocol.Packet) {
	if e.metrics != nil {
		e.metrics.FramesReceived.WithLabelValues(frameTypeLabel(pkt.Type)).Inc()
	}

	switch pkt.Type {
	case protocol.TypeAck:
		logrus.Debug("engine: received ACK")
		e.Ack.Set()

	case protocol.TypeNak:
		logrus.Warn("engine: received NAK")
		if e.metrics != nil {
			e.metrics.NaksReceived.Inc()
		}
		e.retransmitLastPacket()

	case protocol.TypeAckAbort:
		logrus.Error("engine: received ACK abort")

	case protocol.TypePingResponse:
		e.dispatchPingResponse(pkt)

	case protocol.TypeCommand:
		// Per spec §5, the ACK must be dispatched before the next
		// inbound byte is processed; dispatch is synchronous so this holds.
		e.ackTarget()
		e.dispatchCommandResponse(pkt)

	case protocol.TypeData:
		e.ackTarget()
		e.appendMemoryBuffer(pkt.Raw[6:])
		e.DataChunk.Set()

	default:
		logrus.Infof("engine: unhandled packet type: 0x%02x", pkt.Type)
	}
}

func (e *Engine) retransmitLastPacket() {
	e.sendMu.Lock()
	last := e.lastSentPacket
	e.sendMu.Unlock()

	if last == nil {
		logrus.Warn("engine: received NAK with no previously sent packet to resend")
		return
	}
	logrus.Info("engine: resending last packet")
	if err := e.send(last); err != nil {
		logrus.Warnf("engine: failed to resend packet after NAK: %v", err)
	}
	if e.metrics != nil {
		e.metrics.Retransmits.Inc()
	}
}

func (e *Engine) dispatchPingResponse(pkt protocol.Packet) {
	resp := protocol.DecodePingResponse(pkt.Raw)
	version := resp.Version()
	e.LastPingVersion = version
	if version != protocol.ExpectedProtocolVersion {
		logrus.Errorf("engine: unsupported protocol version: %s", version)
	} else {
		logrus.Infof("engine: ping response: version=%s options=%d", version, resp.Options)
	}
	e.PingResponse.Set()
}

func (e *Engine) dispatchCommandResponse(pkt protocol.Packet) {
	cmd := protocol.DecodeCommandPayload(pkt.Raw[6:])

	switch cmd.Tag {
	case protocol.ResponseGeneric:
		if len(cmd.Parameters) == 0 {
			logrus.Error("engine: GenericResponse with no command tag parameter")
			return
		}
		commandTag := protocol.CommandTag(cmd.Parameters[0])
		e.dispatchGenericResponse(commandTag, cmd.Status)

	case protocol.ResponseReadMemory:
		logLevel(cmd.Status, "ReadMemoryResponse")
		if cmd.Status == protocol.StatusSuccess {
			e.ReadMemoryResponse.Set()
			e.GetCommandResponse.Set()
		}

	case protocol.ResponseGetProperty:
		e.dispatchGetPropertyResponse(cmd)

	default:
		logrus.Errorf("engine: unhandled response tag: 0x%02x", cmd.Tag)
	}
}

func (e *Engine) dispatchGenericResponse(commandTag protocol.CommandTag, status protocol.StatusCode) {
	logLevel(status, commandTag.String())

	switch commandTag {
	case protocol.CommandReset:
		if status == protocol.StatusSuccess {
			e.ResetResponse.Set()
			e.GetCommandResponse.Set()
		}
	case protocol.CommandFlashEraseRegion:
		if status == protocol.StatusSuccess {
			e.FlashEraseRegion.Set()
			e.GetCommandResponse.Set()
		}
	case protocol.CommandReadMemory:
		if status == protocol.StatusSuccess {
			e.ReadMemoryResponseTag.Set()
			e.GetCommandResponse.Set()
		}
	case protocol.CommandWriteMemory:
		if status == protocol.StatusSuccess {
			e.WriteMemoryResponse.Set()
			e.GetCommandResponse.Set()
		}
	case protocol.CommandReliableUpdate:
		if status == protocol.StatusSuccess || status == protocol.StatusReliableUpdateSuccess {
			e.GetCommandResponse.Set()
		}
	default:
		logrus.Warnf("engine: GenericResponse for unhandled command tag 0x%02x, status %s", commandTag, status)
	}
}

func (e *Engine) dispatchGetPropertyResponse(cmd protocol.DecodedCommand) {
	logLevel(cmd.Status, "GetPropertyResponse")
	if cmd.Status != protocol.StatusSuccess {
		return
	}
	e.LastPropertyValues = cmd.Parameters
	e.GetCommandResponse.Set()
}

// logLevel logs a command response at info (success) or warning
// (anything else), per spec §4.4's failure semantics.
func logLevel(status protocol.StatusCode, what string) {
	if status == protocol.StatusSuccess {
		logrus.Infof("engine: %s status: %s", what, status)
	} else {
		logrus.Warnf("engine: %s status: %s", what, status)
	}
}

func frameTypeLabel(t protocol.PacketType) string {
	switch t {
	case protocol.TypeAck:
		return "ack"
	case protocol.TypeNak:
		return "nak"
	case protocol.TypeAckAbort:
		return "ack_abort"
	case protocol.TypeCommand:
		return "command"
	case protocol.TypeData:
		return "data"
	case protocol.TypePingResponse:
		return "ping_response"
	default:
		return "unknown"
	}
}
