package lrucached

import (
	"net"
	"sync"
	"time"

	"github.com/skipor/lrucached/log"
	"github.com/skipor/lrucached/protocol"
)

// DefaultWorkers bounds concurrent connections when Server.Workers is left
// at zero.
const DefaultWorkers = 128

// DefaultReadTimeout is the fixed read timeout applied to a connection
// when Server.ReadTimeout is left at zero. It is not meant to be tuned
// per deployment.
const DefaultReadTimeout = 5 * time.Second

// overflowMessage is sent to a client that connects once every worker slot
// is occupied, immediately before the socket is closed.
const overflowMessage = protocol.ServerErrorResponse + " too many connections" + protocol.Separator

// Server accepts client connections and dispatches each to its own
// worker goroutine, up to Workers concurrently. A connection arriving
// past that limit gets overflowMessage and an immediate close instead of
// waiting in an accept backlog.
type Server struct {
	Addr    string
	Storage protocol.Storage
	Log     log.Logger
	Workers int
	// ReadTimeout bounds how long a worker will block waiting for more
	// bytes on an otherwise idle connection. Zero means DefaultReadTimeout.
	ReadTimeout time.Duration

	mu       sync.Mutex
	ln       net.Listener
	reg      *registry
	wg       sync.WaitGroup
	stopped  bool
	stopOnce sync.Once
}

// ListenAndServe listens on Addr (":11211" if empty) and blocks in Serve.
func (s *Server) ListenAndServe() error {
	addr := s.Addr
	if addr == "" {
		addr = ":11211"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve runs the accept loop on ln until Stop is called or Accept fails
// for a reason that isn't transient.
func (s *Server) Serve(ln net.Listener) error {
	s.init(ln)

	var tempDelay time.Duration
	for {
		c, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return nil
			}
			if ne, ok := err.(net.Error); !(ok && ne.Temporary()) {
				return err
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if max := 1 * time.Second; tempDelay > max {
				tempDelay = max
			}
			s.Log.Errorf("accept error: %v; retrying in %v", err, tempDelay)
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0
		s.dispatch(c)
	}
}

func (s *Server) dispatch(c net.Conn) {
	if !s.reg.admit(c) {
		s.Log.Warnf("rejecting connection from %s: at capacity", c.RemoteAddr())
		c.Write([]byte(overflowMessage))
		c.Close()
		return
	}
	id := s.reg.connID()
	worker := newConn(id, s.Log, s.Storage, c, s.ReadTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.reg.release(c)
		worker.serve()
	}()
}

func (s *Server) init(ln net.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Log == nil {
		s.Log = log.NewNopLogger()
	}
	if s.Workers <= 0 {
		s.Workers = DefaultWorkers
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = DefaultReadTimeout
	}
	s.ln = ln
	s.reg = newRegistry(s.Workers)
}

// Stop closes the listener, refuses to accept further connections, and
// unblocks every worker parked reading its socket. It returns
// immediately; call Join to wait for workers to actually finish.
func (s *Server) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		ln := s.ln
		reg := s.reg
		s.mu.Unlock()

		if ln != nil {
			err = ln.Close()
		}
		if reg != nil {
			reg.shutdown()
		}
	})
	return err
}

// Join blocks until every worker goroutine dispatched before Stop was
// called has returned.
func (s *Server) Join() {
	s.mu.Lock()
	reg := s.reg
	s.mu.Unlock()
	if reg != nil {
		reg.join()
	}
	s.wg.Wait()
}
