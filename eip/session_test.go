package eip

import (
	"math/rand"
	"testing"

	"warsim/bufview"
	"warsim/plcsession"
	"warsim/protoerr"
	"warsim/tagstore"
)

func newSession() *plcsession.Session {
	store := tagstore.NewStore()
	return plcsession.New(plcsession.ControlLogix, []byte{0x01, 0x00}, store, rand.New(rand.NewSource(11)))
}

// spec.md §8 scenario 1: RegisterSession.
func TestDispatchRegisterSession(t *testing.T) {
	sess := newSession()

	req := []byte{
		0x65, 0x00, 0x04, 0x00,
		0, 0, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0,
		0x01, 0x00, 0x00, 0x00,
	}
	out := bufview.Of(make([]byte, 64))

	result, err := Dispatch(bufview.Of(req), out, sess)
	if err != nil {
		t.Fatal(err)
	}
	if result.Uint16LE(0) != CommandRegisterSession {
		t.Fatalf("echoed command = %#x", result.Uint16LE(0))
	}
	handle := result.Uint32LE(4)
	if handle == 0 {
		t.Fatalf("session handle should be non-zero")
	}
	if sess.SessionHandle != handle {
		t.Fatalf("session not updated with new handle")
	}
	if result.Uint32LE(8) != 0 {
		t.Fatalf("status should be 0 on success")
	}
	if result.Len() != HeaderSize+4 || result.Uint16LE(24) != 1 {
		t.Fatalf("unexpected echoed payload: %v", result.Bytes())
	}
}

func TestDispatchSessionGating(t *testing.T) {
	sess := newSession()
	sess.RegisterSession()

	req := make([]byte, HeaderSize)
	in := bufview.Of(req)
	in.PutUint16LE(0, CommandSendRRData)
	in.PutUint32LE(4, sess.SessionHandle+1) // wrong handle

	_, err := Dispatch(in, bufview.Of(make([]byte, 64)), sess)
	if k, ok := protoerr.KindOf(err); !ok || k != protoerr.BadRequest {
		t.Fatalf("expected BadRequest for a mismatched session handle, got %v", err)
	}
}

func TestDispatchUnregisterSession(t *testing.T) {
	sess := newSession()
	sess.RegisterSession()

	req := make([]byte, HeaderSize)
	in := bufview.Of(req)
	in.PutUint16LE(0, CommandUnregisterSession)
	in.PutUint32LE(4, sess.SessionHandle)

	result, err := Dispatch(in, bufview.Of(make([]byte, 64)), sess)
	if k, ok := protoerr.KindOf(err); !ok || k != protoerr.Done {
		t.Fatalf("expected Done, got %v", err)
	}
	if result.Len() != HeaderSize {
		t.Fatalf("unregister reply should carry no payload, got %d bytes", result.Len())
	}
	if sess.HasSession() {
		t.Fatalf("session handle should be cleared")
	}
}
