// Package eip implements the EtherNet/IP encapsulation layer: the
// 24-byte header, RegisterSession / UnregisterSession, and routing
// SendRRData / SendUnitData into the Common Packet Format layer (spec.md
// §4.F).
package eip

import (
	"warsim/bufview"
	"warsim/cipsvc"
	"warsim/cpf"
	"warsim/plcsession"
	"warsim/protoerr"
)

// EIP commands this simulator recognizes.
const (
	CommandRegisterSession   = uint16(0x0065)
	CommandUnregisterSession = uint16(0x0066)
	CommandSendRRData        = uint16(0x006F)
	CommandSendUnitData      = uint16(0x0070)
)

// HeaderSize is the fixed length of an EIP encapsulation header.
const HeaderSize = 24

// header mirrors the wire layout of an EIP encapsulation header
// (command, length, session_handle, status, sender_context, options),
// all little-endian.
type header struct {
	command       uint16
	length        uint16
	sessionHandle uint32
	status        uint32
	context       uint64
	options       uint32
}

func parseHeader(in bufview.View) header {
	return header{
		command:       in.Uint16LE(0),
		length:        in.Uint16LE(2),
		sessionHandle: in.Uint32LE(4),
		status:        in.Uint32LE(8),
		context:       in.Uint64LE(12),
		options:       in.Uint32LE(20),
	}
}

// Dispatch parses one EIP request out of in, routes it, and writes a
// reply into out. It returns the view of out holding the full reply
// (header plus payload), or a protoerr.Error — including
// protoerr.Of(protoerr.Done) when the caller should close the connection
// after writing the reply.
//
// in must already satisfy the packet-completeness check (spec.md §4.G);
// Dispatch itself only validates the header fields relevant to the
// command being handled.
func Dispatch(in, out bufview.View, sess *plcsession.Session) (bufview.View, error) {
	if in.Len() < HeaderSize {
		return bufview.View{}, protoerr.New(protoerr.BadRequest, "eip: packet shorter than header: %d bytes", in.Len())
	}

	h := parseHeader(in)
	payload := in.Sub(HeaderSize, in.Len()-HeaderSize)

	if h.command != CommandRegisterSession {
		if h.sessionHandle == 0 || h.sessionHandle != sess.SessionHandle {
			return writeErrorReply(out, h, badRequestStatus), protoerr.Of(protoerr.BadRequest)
		}
	}

	switch h.command {
	case CommandRegisterSession:
		return handleRegisterSession(payload, out, h, sess)
	case CommandUnregisterSession:
		return handleUnregisterSession(out, h, sess)
	case CommandSendRRData:
		return handleSendRRData(payload, out, h, sess)
	case CommandSendUnitData:
		return handleSendUnitData(payload, out, h, sess)
	default:
		return writeErrorReply(out, h, unsupportedStatus), protoerr.Of(protoerr.Unsupported)
	}
}

// EIP status codes used in error replies (ODVA vol. 2, table 2-3.3).
const (
	badRequestStatus  = uint32(0x0001)
	unsupportedStatus = uint32(0x0069)
)

func writeErrorReply(out bufview.View, h header, status uint32) bufview.View {
	out.PutUint16LE(0, h.command)
	out.PutUint16LE(2, 0)
	out.PutUint32LE(4, h.sessionHandle)
	out.PutUint32LE(8, status)
	out.PutUint64LE(12, h.context)
	out.PutUint32LE(20, h.options)
	return out.Sub(0, HeaderSize)
}

func writeReply(out bufview.View, h header, sessionHandle uint32, payloadLen int) bufview.View {
	out.PutUint16LE(0, h.command)
	out.PutUint16LE(2, uint16(payloadLen))
	out.PutUint32LE(4, sessionHandle)
	out.PutUint32LE(8, 0)
	out.PutUint64LE(12, h.context)
	out.PutUint32LE(20, h.options)
	return out.Sub(0, HeaderSize+payloadLen)
}

func handleRegisterSession(payload, out bufview.View, h header, sess *plcsession.Session) (bufview.View, error) {
	if h.sessionHandle != 0 || h.status != 0 || h.context != 0 || h.options != 0 {
		return writeErrorReply(out, h, badRequestStatus), protoerr.Of(protoerr.BadRequest)
	}
	if payload.Len() < 4 {
		return writeErrorReply(out, h, badRequestStatus), protoerr.Of(protoerr.BadRequest)
	}
	eipVersion := payload.Uint16LE(0)
	optionFlags := payload.Uint16LE(2)
	if eipVersion != 1 || optionFlags != 0 {
		return writeErrorReply(out, h, badRequestStatus), protoerr.Of(protoerr.BadRequest)
	}

	handle := sess.RegisterSession()
	sess.SenderContext = h.context

	body := out.Sub(HeaderSize, 4)
	body.PutUint16LE(0, eipVersion)
	body.PutUint16LE(2, optionFlags)

	return writeReply(out, h, handle, 4), nil
}

func handleUnregisterSession(out bufview.View, h header, sess *plcsession.Session) (bufview.View, error) {
	if h.sessionHandle != sess.SessionHandle {
		return writeErrorReply(out, h, badRequestStatus), protoerr.Of(protoerr.BadRequest)
	}
	sess.Unregister()
	return writeReply(out, h, 0, 0), protoerr.Of(protoerr.Done)
}

func handleSendRRData(payload, out bufview.View, h header, sess *plcsession.Session) (bufview.View, error) {
	result, err := cpf.HandleUnconnected(payload, out.Sub(HeaderSize, out.Len()-HeaderSize),
		func(req, rep bufview.View) (bufview.View, error) {
			return cipsvc.Dispatch(req, rep, sess), nil
		})
	if err != nil {
		return writeErrorReply(out, h, badRequestStatus), err
	}
	return writeReply(out, h, sess.SessionHandle, result.Len()), nil
}

func handleSendUnitData(payload, out bufview.View, h header, sess *plcsession.Session) (bufview.View, error) {
	result, err := cpf.HandleConnected(payload, out.Sub(HeaderSize, out.Len()-HeaderSize), sess,
		func(req, rep bufview.View) (bufview.View, error) {
			return cipsvc.Dispatch(req, rep, sess), nil
		})
	if err != nil {
		return writeErrorReply(out, h, badRequestStatus), err
	}
	return writeReply(out, h, sess.SessionHandle, result.Len()), nil
}
