// Package cpf implements the Common Packet Format envelope that wraps
// every CIP request/reply inside SendRRData (unconnected) and
// SendUnitData (connected) EIP messages (spec.md §4.E).
package cpf

import (
	"warsim/bufview"
	"warsim/plcsession"
	"warsim/protoerr"
)

// CPF item type IDs (ODVA vol. 2, table 2-6.1).
const (
	itemNullAddress = uint16(0x0000)
	itemConnAddress = uint16(0x00A1)
	itemConnData    = uint16(0x00B1)
	itemUnconnData  = uint16(0x00B2)
)

// UnconnectedHeaderSize is the byte length of a two-item unconnected CPF
// envelope: item count, null address item (type+length), unconnected
// data item (type+length).
const UnconnectedHeaderSize = 10

// ConnectedHeaderSize is the byte length of a two-item connected CPF
// envelope: item count, connected address item (type+length+conn id),
// connected data item (type+length+sequence).
const ConnectedHeaderSize = 16

// Handler dispatches the CIP request carried inside a CPF envelope and
// returns the view of out holding the reply, or an error.
type Handler func(in, out bufview.View) (bufview.View, error)

// HandleUnconnected unwraps a SendRRData payload, invokes handle on the
// embedded CIP request, and re-wraps the reply in a matching CPF
// envelope (spec.md §4.E.1).
func HandleUnconnected(in, out bufview.View, handle Handler) (bufview.View, error) {
	if in.Len() < UnconnectedHeaderSize {
		return bufview.View{}, protoerr.New(protoerr.BadRequest, "unconnected CPF packet too short: %d bytes", in.Len())
	}

	itemCount := in.Uint16LE(0)
	if itemCount != 2 {
		return bufview.View{}, protoerr.New(protoerr.BadRequest, "unconnected CPF packet: expected 2 items, got %d", itemCount)
	}

	addrType := in.Uint16LE(2)
	addrLen := in.Uint16LE(4)
	dataType := in.Uint16LE(6)

	if addrType != itemNullAddress {
		return bufview.View{}, protoerr.New(protoerr.BadRequest, "unconnected CPF packet: expected null address item, got %#x", addrType)
	}
	if addrLen != 0 {
		return bufview.View{}, protoerr.New(protoerr.BadRequest, "unconnected CPF packet: expected zero-length address item, got %d", addrLen)
	}
	if dataType != itemUnconnData {
		return bufview.View{}, protoerr.New(protoerr.BadRequest, "unconnected CPF packet: expected unconnected data item, got %#x", dataType)
	}

	result, err := handle(
		in.Sub(UnconnectedHeaderSize, in.Len()-UnconnectedHeaderSize),
		out.Sub(UnconnectedHeaderSize, out.Len()-UnconnectedHeaderSize),
	)
	if err != nil {
		return bufview.View{}, err
	}

	out.PutUint16LE(0, 2)
	out.PutUint16LE(2, itemNullAddress)
	out.PutUint16LE(4, 0)
	out.PutUint16LE(6, itemUnconnData)
	out.PutUint16LE(8, uint16(result.Len()))

	return out.Sub(0, result.Len()+UnconnectedHeaderSize), nil
}

// HandleConnected unwraps a SendUnitData payload against sess's recorded
// connection identity, invokes handle on the embedded CIP request, and
// re-wraps the reply in a matching CPF envelope, echoing the client
// connection ID and the sequence number the peer just sent (spec.md
// §4.E.2). The sequence number is recorded, not required to be
// monotonic.
func HandleConnected(in, out bufview.View, sess *plcsession.Session, handle Handler) (bufview.View, error) {
	if in.Len() < ConnectedHeaderSize {
		return bufview.View{}, protoerr.New(protoerr.BadRequest, "connected CPF packet too short: %d bytes", in.Len())
	}

	itemCount := in.Uint16LE(0)
	if itemCount != 2 {
		return bufview.View{}, protoerr.New(protoerr.BadRequest, "connected CPF packet: expected 2 items, got %d", itemCount)
	}

	addrType := in.Uint16LE(2)
	addrLen := in.Uint16LE(4)
	connID := in.Uint32LE(6)
	dataType := in.Uint16LE(10)
	connSeq := in.Uint16LE(14)

	if addrType != itemConnAddress {
		return bufview.View{}, protoerr.New(protoerr.BadRequest, "connected CPF packet: expected connected address item, got %#x", addrType)
	}
	if addrLen != 4 {
		return bufview.View{}, protoerr.New(protoerr.BadRequest, "connected CPF packet: expected 4-byte address item, got %d", addrLen)
	}
	if connID != sess.ServerConnID {
		return bufview.View{}, protoerr.New(protoerr.BadRequest, "connected CPF packet: connection id %#x does not match open connection %#x", connID, sess.ServerConnID)
	}
	if dataType != itemConnData {
		return bufview.View{}, protoerr.New(protoerr.BadRequest, "connected CPF packet: expected connected data item, got %#x", dataType)
	}

	sess.ClientConnSeq = connSeq

	result, err := handle(
		in.Sub(ConnectedHeaderSize, in.Len()-ConnectedHeaderSize),
		out.Sub(ConnectedHeaderSize, out.Len()-ConnectedHeaderSize),
	)
	if err != nil {
		return bufview.View{}, err
	}

	out.PutUint16LE(0, 2)
	out.PutUint16LE(2, itemConnAddress)
	out.PutUint16LE(4, 4)
	out.PutUint32LE(6, sess.ClientConnID)
	out.PutUint16LE(10, itemConnData)
	out.PutUint16LE(12, uint16(result.Len()+2))
	out.PutUint16LE(14, sess.ClientConnSeq)

	return out.Sub(0, result.Len()+ConnectedHeaderSize), nil
}
