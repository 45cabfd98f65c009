package cipsvc

import (
	"warsim/bufview"
	"warsim/plcsession"
)

// Byte layout of the Forward Open request body, counted from the first
// byte after the six-byte connection-manager path prefix (spec.md
// §4.D.2). conParamSize and fixedLen differ between the legacy (0x54,
// 16-bit connection parameters) and extended (0x5B, 32-bit connection
// parameters) variants.
const (
	foOffsetClientConnID = 6
	foOffsetConnSerial   = 10
	foOffsetVendor       = 12
	foOffsetClientSerial = 14
	foOffsetOTRPI        = 22
	foOffsetParams       = 26
)

func forwardOpenShape(extended bool) (paramSize, fixedLen int, paramMask uint32) {
	if extended {
		return 4, 39, 0xFFF
	}
	return 2, 35, 0x1FF
}

// handleForwardOpen implements the Forward Open connection-manager
// service: it parses the fixed-size connection request, matches the
// trailing connection path against the PLC's configured path, and on
// success negotiates a server connection id and records the peer's
// identity on sess (spec.md §4.D.2).
func handleForwardOpen(body, out bufview.View, sess *plcsession.Session, service byte, extended bool) bufview.View {
	paramSize, fixedLen, paramMask := forwardOpenShape(extended)

	if body.Len() < fixedLen+1 {
		return writeHeader(out, service, statusServiceNotSupp, nil)
	}

	clientConnID := body.Uint32LE(foOffsetClientConnID)
	connSerial := body.Uint16LE(foOffsetConnSerial)
	vendorID := body.Uint16LE(foOffsetVendor)
	clientSerial := body.Uint32LE(foOffsetClientSerial)
	otRPI := body.Uint32LE(foOffsetOTRPI)

	pos := foOffsetParams
	otParams := readConnParams(body, pos, extended)
	pos += paramSize
	toRPI := body.Uint32LE(pos)
	pos += 4
	toParams := readConnParams(body, pos, extended)
	pos += paramSize
	pos++ // transport_class, unused

	// The connection manager path prefix (six bytes, already matched by
	// Dispatch) always lands this path-length byte at an odd offset into
	// the CIP request for both variants, so Forward Open never pads
	// (spec.md §4.D.2, §4.D.3).
	globalPathLenOffset := len(prefixForwardOpen) + fixedLen
	padRequired := globalPathLenOffset%2 == 0

	if !pathMatch(body.Sub(fixedLen, body.Len()-fixedLen), padRequired, sess.Path) {
		return writeHeader(out, service, statusServiceNotSupp, nil)
	}

	serverConnID, _ := sess.ForwardOpen(plcsession.ForwardOpenParams{
		ClientConnID: clientConnID,
		ConnSerial:   connSerial,
		VendorID:     vendorID,
		ClientSerial: clientSerial,
		OTRPI:        otRPI,
		TORPI:        toRPI,
		MaxPacketOT:  otParams & paramMask,
		MaxPacketTO:  toParams & paramMask,
	})

	writeHeader(out, service, statusSuccess, nil)
	out.PutUint32LE(4, serverConnID)
	out.PutUint32LE(8, clientConnID)
	out.PutUint16LE(12, connSerial)
	out.PutUint16LE(14, vendorID)
	out.PutUint32LE(16, clientSerial)
	out.PutUint32LE(20, otRPI)
	out.PutUint32LE(24, toRPI)
	out.PutUint16LE(28, 0)
	return out.Sub(0, 30)
}

func readConnParams(body bufview.View, offset int, extended bool) uint32 {
	if extended {
		return body.Uint32LE(offset)
	}
	return uint32(body.Uint16LE(offset))
}

// Byte layout of the Forward Close request body, counted from the first
// byte after the six-byte connection-manager path prefix (spec.md
// §4.D.4).
const (
	fcOffsetConnSerial   = 2
	fcOffsetVendor       = 4
	fcOffsetClientSerial = 6
	fcFixedLen           = 10
)

// handleForwardClose implements the Forward Close connection-manager
// service: it checks the peer's identity against what Forward Open
// recorded, matches the trailing connection path, and on success clears
// the connection (spec.md §4.D.4).
func handleForwardClose(body, out bufview.View, sess *plcsession.Session, service byte) bufview.View {
	if body.Len() < fcFixedLen+1 {
		return writeHeader(out, service, statusServiceNotSupp, nil)
	}

	connSerial := body.Uint16LE(fcOffsetConnSerial)
	vendorID := body.Uint16LE(fcOffsetVendor)
	clientSerial := body.Uint32LE(fcOffsetClientSerial)

	if !sess.IdentityMatches(connSerial, vendorID, clientSerial) {
		return writeHeader(out, service, statusServiceNotSupp, nil)
	}

	// Forward Close's fixed region always lands the path-length byte on
	// an even offset, and the padding rule applies unconditionally there
	// (spec.md §4.D.3, §4.D.4).
	if !pathMatch(body.Sub(fcFixedLen, body.Len()-fcFixedLen), true, sess.Path) {
		return writeHeader(out, service, statusServiceNotSupp, nil)
	}

	sess.ForwardClose()

	writeHeader(out, service, statusSuccess, nil)
	out.PutUint16LE(4, connSerial)
	out.PutUint16LE(6, vendorID)
	out.PutUint32LE(8, clientSerial)
	out.PutUint16LE(12, 0)
	return out.Sub(0, 14)
}
