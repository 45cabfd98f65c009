// Package cipsvc implements the CIP service layer: Read Tag, Read Tag
// Fragmented, Forward Open, and Forward Close, dispatched by service code
// and (for the connection-manager services) by connection path prefix
// (spec.md §4.D).
package cipsvc

import (
	"warsim/bufview"
	"warsim/plcsession"
)

// CIP service codes this simulator recognizes.
const (
	svcReadTag        = 0x4C
	svcReadTagFrag    = 0x52
	svcForwardOpen    = 0x54
	svcForwardOpenExt = 0x5B
	svcForwardClose   = 0x4E
)

// Leading bytes that must match exactly for the connection-manager
// services: the service code followed by the five-byte path to the
// connection manager class/instance (spec.md §4.D.1). Read Tag and Read
// Tag Fragmented match on the service code alone (REDESIGN FLAG c).
var (
	prefixForwardOpen    = []byte{svcForwardOpen, 0x02, 0x20, 0x06, 0x24, 0x01}
	prefixForwardOpenExt = []byte{svcForwardOpenExt, 0x02, 0x20, 0x06, 0x24, 0x01}
	prefixForwardClose   = []byte{svcForwardClose, 0x02, 0x20, 0x06, 0x24, 0x01}
)

// Dispatch routes a CIP request (service byte first) to the matching
// service handler and returns the view of out holding the reply. Unlike
// the layers above it, cipsvc never fails upward: every outcome,
// including an unrecognized service or a malformed request, is encoded
// as a CIP reply in out (spec.md §4.D.1, §4.D.6).
func Dispatch(request, out bufview.View, sess *plcsession.Session) bufview.View {
	service, ok := request.At(0)
	if !ok {
		return writeHeader(out, 0, statusServiceNotSupp, nil)
	}

	switch {
	case service == svcReadTag:
		return handleReadTag(request.Sub(1, request.Len()-1), out, sess, service, false)
	case service == svcReadTagFrag:
		return handleReadTag(request.Sub(1, request.Len()-1), out, sess, service, true)
	case request.MatchBytes(prefixForwardOpen):
		return handleForwardOpen(request.Sub(len(prefixForwardOpen), request.Len()-len(prefixForwardOpen)), out, sess, service, false)
	case request.MatchBytes(prefixForwardOpenExt):
		return handleForwardOpen(request.Sub(len(prefixForwardOpenExt), request.Len()-len(prefixForwardOpenExt)), out, sess, service, true)
	case request.MatchBytes(prefixForwardClose):
		return handleForwardClose(request.Sub(len(prefixForwardClose), request.Len()-len(prefixForwardClose)), out, sess, service)
	default:
		return writeHeader(out, service, statusServiceNotSupp, nil)
	}
}
