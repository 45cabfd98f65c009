// Package dispatch is the entry point a TCP server calls per connection:
// it checks a buffer for a complete EIP frame, routes complete frames into
// the eip layer, and tracks the per-connection state machine (spec.md
// §4.G) derived from the resulting plcsession.Session.
package dispatch

import (
	"warsim/bufview"
	"warsim/eip"
	"warsim/logging"
	"warsim/plcsession"
	"warsim/protoerr"
)

// State is one node of the per-connection state machine.
type State int

const (
	StateOpenNoSession State = iota
	StateSessioned
	StateConnected
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateOpenNoSession:
		return "OPEN_NOSESSION"
	case StateSessioned:
		return "SESSIONED"
	case StateConnected:
		return "CONNECTED"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// Outcome tells the caller what to do with the connection after
// HandleFrame returns.
type Outcome int

const (
	// OutcomeNeedMoreData means no complete frame was available; read
	// more bytes and call HandleFrame again with the same buffer.
	OutcomeNeedMoreData Outcome = iota
	// OutcomeReply means reply holds a complete response to write back;
	// keep the connection open afterward.
	OutcomeReply
	// OutcomeClose means reply holds a final response to write (if
	// non-empty); close the connection once it is written.
	OutcomeClose
)

// Conn is the dispatch-level state for one accepted TCP connection. A new
// Conn is created per connection (spec.md §5: session state is not
// shared between connections).
type Conn struct {
	Session *plcsession.Session
	State   State

	// Debug, if non-nil, receives a hex dump of every accepted frame and
	// its reply.
	Debug *logging.DebugLogger
}

// NewConn wraps sess, starting in OPEN_NOSESSION (the NEW state is
// equivalent to OPEN_NOSESSION before any bytes have arrived; there is no
// observable transition between them).
func NewConn(sess *plcsession.Session) *Conn {
	return &Conn{Session: sess, State: StateOpenNoSession}
}

// CheckComplete reports whether buf holds at least one complete EIP
// frame, returning its length. Below the threshold the caller must read
// more bytes before calling HandleFrame (spec.md §4.G).
func CheckComplete(buf []byte) (frameLen int, ok bool) {
	if len(buf) < eip.HeaderSize {
		return 0, false
	}
	length := bufview.Of(buf).Uint16LE(2)
	total := eip.HeaderSize + int(length)
	if len(buf) < total {
		return 0, false
	}
	return total, true
}

// HandleFrame consumes exactly one complete frame from the front of buf
// and writes a reply into out. It returns the number of bytes consumed
// from buf (0 if more data is needed), the reply bytes to write back (nil
// if none), and what the caller should do next.
func (c *Conn) HandleFrame(buf, out []byte) (consumed int, reply []byte, outcome Outcome) {
	frameLen, ok := CheckComplete(buf)
	if !ok {
		return 0, nil, OutcomeNeedMoreData
	}

	frame := buf[:frameLen]
	c.Debug.LogRX("dispatch", frame)

	result, err := eip.Dispatch(bufview.Of(frame), bufview.Of(out), c.Session)

	kind, isProtoErr := protoerr.KindOf(err)
	switch {
	case isProtoErr && kind == protoerr.Done:
		c.State = StateClosing
		c.Debug.LogTX("dispatch", result.Bytes())
		return frameLen, result.Bytes(), OutcomeClose
	case err != nil:
		// A layer below already encoded a CIP/EIP error reply into
		// result; the connection stays open and the state does not
		// change (spec.md §4.G: "any: framing error or unsupported ->
		// reply error, stay").
		c.Debug.LogTX("dispatch", result.Bytes())
		return frameLen, result.Bytes(), OutcomeReply
	default:
		c.syncState()
		c.Debug.LogTX("dispatch", result.Bytes())
		return frameLen, result.Bytes(), OutcomeReply
	}
}

// syncState recomputes State from the session fields a successful
// dispatch just updated, rather than hard-coding a transition per EIP
// command.
func (c *Conn) syncState() {
	switch {
	case c.Session.Connected():
		c.State = StateConnected
	case c.Session.HasSession():
		c.State = StateSessioned
	default:
		c.State = StateOpenNoSession
	}
}
