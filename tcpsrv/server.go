// Package tcpsrv runs the TCP accept loop: it listens on the configured
// address, and for every accepted connection feeds bytes through a
// dispatch.Conn, writing back whatever reply it produces (spec.md §4.G,
// §5). One session per connection; the tag store is the only state
// shared across connections.
package tcpsrv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"time"

	"golang.org/x/sync/errgroup"

	"warsim/dispatch"
	"warsim/logging"
	"warsim/plcsession"
	"warsim/tagstore"
)

// BufferSize is the per-connection read/write buffer size. CIP itself
// caps a request at 4,002 bytes; the extra room absorbs encapsulation
// and CPF framing overhead (spec.md §4.G).
const BufferSize = 4200

// Server accepts connections on Listen and serves each with its own
// plcsession.Session built from Kind/Path/Store.
type Server struct {
	Listen string
	Kind   plcsession.Kind
	Path   []byte
	Store  *tagstore.Store

	Logger *logging.FileLogger
	Debug  *logging.DebugLogger
}

// Run listens and serves connections until ctx is cancelled or Accept
// fails. It returns nil on a clean shutdown triggered by ctx.
func (s *Server) Run(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.Listen)
	if err != nil {
		return fmt.Errorf("tcpsrv: listen on %s: %w", s.Listen, err)
	}
	s.logf("listening on %s", s.Listen)
	return s.Serve(ctx, ln)
}

// Serve accepts connections on an already-bound ln until ctx is
// cancelled or Accept fails. Split out from Run so tests can bind an
// ephemeral port (":0") and learn the real address before connecting.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return ln.Close()
	})

	for {
		conn, err := ln.Accept()
		if err != nil {
			if gctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("tcpsrv: accept: %w", err)
		}
		s.logf("accepted connection from %s", conn.RemoteAddr())

		g.Go(func() error {
			s.serve(conn)
			return nil
		})
	}
}

// serve drives one accepted connection to completion. Errors are logged,
// not propagated: one misbehaving client must not bring down the
// listener (spec.md §5: one connection's state is independent of every
// other's).
func (s *Server) serve(nc net.Conn) {
	defer nc.Close()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	sess := plcsession.New(s.Kind, s.Path, s.Store, rng)
	conn := dispatch.NewConn(sess)
	conn.Debug = s.Debug

	in := make([]byte, BufferSize)
	out := make([]byte, BufferSize)
	filled := 0

	for {
		n, err := nc.Read(in[filled:])
		filled += n
		if filled > 0 {
			filled = s.drain(nc, conn, in, out, filled)
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logf("read error from %s: %v", nc.RemoteAddr(), err)
			}
			return
		}
		if filled == len(in) {
			s.logf("oversized request from %s, closing", nc.RemoteAddr())
			return
		}
		if conn.State == dispatch.StateClosing {
			return
		}
	}
}

// drain feeds every complete frame currently sitting in in[:filled]
// through conn, writing replies to nc and compacting in. It returns the
// number of bytes remaining in in after draining.
func (s *Server) drain(nc net.Conn, conn *dispatch.Conn, in, out []byte, filled int) int {
	for {
		consumed, reply, outcome := conn.HandleFrame(in[:filled], out)
		if outcome == dispatch.OutcomeNeedMoreData {
			return filled
		}

		if len(reply) > 0 {
			if _, err := nc.Write(reply); err != nil {
				s.logf("write error to %s: %v", nc.RemoteAddr(), err)
				return 0
			}
		}

		copy(in, in[consumed:filled])
		filled -= consumed

		if outcome == dispatch.OutcomeClose {
			return filled
		}
	}
}

func (s *Server) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Log(format, args...)
	}
}
