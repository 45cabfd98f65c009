package cipsvc

import "warsim/bufview"

// Extended CIP general statuses this simulator emits (spec.md §4.D.6).
const (
	statusSuccess        = 0x00
	statusNeedsFragment  = 0x06
	statusServiceNotSupp = 0x08
	statusPathUnknown    = 0x05
	statusFailure        = 0xFF
	extendedOutOfRange   = uint16(0x2105)
)

// writeHeader lays down the 4 (or 6, with an extended status) byte CIP
// reply header and returns the view covering exactly those bytes: the
// echoed service with the Done bit set, a reserved byte, the general
// status, and the additional-status-size byte (spec.md §4.D.6). Callers
// building a successful reply append their own payload starting at
// offset 4 and re-slice the final view themselves; callers reporting a
// bare error return writeHeader's result directly.
func writeHeader(out bufview.View, service, status byte, ext *uint16) bufview.View {
	out.Put(0, service|0x80)
	out.Put(1, 0)
	out.Put(2, status)
	if ext != nil {
		out.Put(3, 1)
		out.PutUint16LE(4, *ext)
		return out.Sub(0, 6)
	}
	out.Put(3, 0)
	return out.Sub(0, 4)
}
