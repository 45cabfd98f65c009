// Package plcsession holds per-connection session state: the PLC path
// and kind configured at startup, the EIP session handle, the Forward
// Open connection identity, and a pointer to the tag store (spec.md §4.C).
//
// One Session exists per accepted TCP connection. Shared session state is
// not guarded by a mutex: the protocol core is synchronous per connection
// by design (spec.md §5); a concurrent server gives every connection its
// own Session and its own buffer.
package plcsession

import (
	"fmt"
	"math/rand"

	"warsim/tagstore"
)

// Kind is the PLC family the simulator impersonates (spec.md §6).
type Kind int

const (
	ControlLogix Kind = iota
	Micro800
)

func (k Kind) String() string {
	switch k {
	case ControlLogix:
		return "ControlLogix"
	case Micro800:
		return "Micro800"
	default:
		return "unknown"
	}
}

// ParseKind parses the --plc flag value.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "ControlLogix":
		return ControlLogix, nil
	case "Micro800":
		return Micro800, nil
	default:
		return 0, fmt.Errorf("plcsession: unknown PLC type %q (want ControlLogix or Micro800)", s)
	}
}

// Session is per-connection state, lifetime accept-through-close
// (spec.md §3).
type Session struct {
	Kind  Kind
	Path  []byte // configured routing path, read-only after construction
	Store *tagstore.Store

	SessionHandle uint32
	SenderContext uint64

	// Set only after a successful Forward Open; cleared by Forward Close.
	ServerConnID  uint32
	ServerConnSeq uint16
	ClientConnID  uint32
	ConnSerial    uint16
	VendorID      uint16
	ClientSerial  uint32
	OTRPI         uint32
	TORPI         uint32
	MaxPacketOT   uint32
	MaxPacketTO   uint32

	// ClientConnSeq is the most recent sequence number the peer
	// presented in a SendUnitData connected envelope. It is recorded,
	// not enforced to be monotonic (spec.md §5), and echoed back in the
	// corresponding reply.
	ClientConnSeq uint16

	rng *rand.Rand
}

// New creates a Session for a freshly accepted connection. rng should be
// owned by the caller (one per connection, or one per server if
// connections are handled sequentially) rather than a process-global
// generator (spec.md §9).
func New(kind Kind, path []byte, store *tagstore.Store, rng *rand.Rand) *Session {
	return &Session{Kind: kind, Path: path, Store: store, rng: rng}
}

// HasSession reports whether RegisterSession has completed.
func (s *Session) HasSession() bool {
	return s.SessionHandle != 0
}

// Connected reports whether a Forward Open has succeeded and not yet
// been closed.
func (s *Session) Connected() bool {
	return s.ServerConnID != 0
}

// RegisterSession generates a non-zero session handle and records it.
func (s *Session) RegisterSession() uint32 {
	var h uint32
	for h == 0 {
		h = s.rng.Uint32()
	}
	s.SessionHandle = h
	return h
}

// Unregister clears the session handle, matching the EIP layer's
// UnregisterSession handling (spec.md §4.F).
func (s *Session) Unregister() {
	s.SessionHandle = 0
}

// ForwardOpenParams are the fields Forward Open recorded from the peer's
// request (spec.md §4.D.2).
type ForwardOpenParams struct {
	ClientConnID uint32
	ConnSerial   uint16
	VendorID     uint16
	ClientSerial uint32
	OTRPI        uint32
	TORPI        uint32
	MaxPacketOT  uint32
	MaxPacketTO  uint32
}

// ForwardOpen records the peer's connection identity and generates a
// fresh server-side connection id and sequence number.
func (s *Session) ForwardOpen(p ForwardOpenParams) (serverConnID uint32, serverConnSeq uint16) {
	s.ClientConnID = p.ClientConnID
	s.ConnSerial = p.ConnSerial
	s.VendorID = p.VendorID
	s.ClientSerial = p.ClientSerial
	s.OTRPI = p.OTRPI
	s.TORPI = p.TORPI
	s.MaxPacketOT = p.MaxPacketOT
	s.MaxPacketTO = p.MaxPacketTO

	s.ServerConnID = s.rng.Uint32()
	s.ServerConnSeq = uint16(s.rng.Uint32())
	return s.ServerConnID, s.ServerConnSeq
}

// ForwardClose clears the negotiated connection identity, returning the
// session to the SESSIONED state (spec.md §4.C, §4.G).
func (s *Session) ForwardClose() {
	s.ServerConnID = 0
	s.ServerConnSeq = 0
	s.ClientConnID = 0
	s.ConnSerial = 0
	s.VendorID = 0
	s.ClientSerial = 0
	s.OTRPI = 0
	s.TORPI = 0
	s.MaxPacketOT = 0
	s.MaxPacketTO = 0
}

// IdentityMatches reports whether serial/vendor/clientSerial match what
// Forward Open recorded, the gate Forward Close must pass (spec.md §4.D.4).
func (s *Session) IdentityMatches(connSerial, vendorID uint16, clientSerial uint32) bool {
	return s.ConnSerial == connSerial && s.VendorID == vendorID && s.ClientSerial == clientSerial
}
