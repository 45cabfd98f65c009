package tcpsrv

import (
	"context"
	"net"
	"testing"
	"time"

	"warsim/plcsession"
	"warsim/tagstore"
)

func registerSessionFrame() []byte {
	return []byte{
		0x65, 0x00, 0x04, 0x00,
		0, 0, 0, 0,
		0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0,
		0x01, 0x00, 0x00, 0x00,
	}
}

func TestServeRegisterSessionRoundTrip(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	store := tagstore.NewStore()
	srv := &Server{Kind: plcsession.Micro800, Store: store}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	if _, err := conn.Write(registerSessionFrame()); err != nil {
		t.Fatal(err)
	}

	reply := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(reply)
	if err != nil {
		t.Fatal(err)
	}
	if n < 8 {
		t.Fatalf("reply too short: %d bytes", n)
	}
	if reply[0] != 0x65 {
		t.Fatalf("echoed command = %#x; want RegisterSession", reply[0])
	}

	cancel()
	<-done
}

func TestServeClosesOnUnregister(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	store := tagstore.NewStore()
	srv := &Server{Kind: plcsession.Micro800, Store: store}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go srv.Serve(ctx, ln)

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	conn.Write(registerSessionFrame())
	reply := make([]byte, 64)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err := conn.Read(reply)
	if err != nil {
		t.Fatal(err)
	}
	handle := reply[4:8]

	unreg := make([]byte, 24)
	unreg[0] = 0x66
	copy(unreg[4:8], handle)
	conn.Write(unreg)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err = conn.Read(reply)
	if err != nil {
		t.Fatal(err)
	}
	if reply[0] != 0x66 {
		t.Fatalf("echoed command = %#x; want UnregisterSession", reply[0])
	}

	// The server should close the TCP connection after the no-payload
	// UnregisterSession reply.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err = conn.Read(buf)
	if err == nil {
		t.Fatalf("expected the connection to be closed after Unregister")
	}
}
