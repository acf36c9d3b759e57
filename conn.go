package lrucached

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"time"

	"github.com/facebookgo/stackerr"

	"github.com/skipor/lrucached/internal/bufpool"
	"github.com/skipor/lrucached/log"
	"github.com/skipor/lrucached/protocol"
)

var crlf = []byte(protocol.Separator)

// OutBufferSize sizes the buffered writer each connection uses to send
// responses.
const OutBufferSize = 1 << 12

// conn owns one client socket for its entire lifetime: it reads commands,
// runs them against storage, and writes responses, entirely on its own
// goroutine. It never touches another connection's state.
type conn struct {
	id      int64
	log     log.Logger
	nc      net.Conn
	storage protocol.Storage
	timeout time.Duration

	w      *bufio.Writer
	parser protocol.Parser

	// arr is a fixed-capacity buffer borrowed from bufpool. Unconsumed
	// bytes live at arr[start:end]; fill compacts them to the front
	// before reading more, so a header line never has to be split across
	// a resize.
	arr        []byte
	start, end int
}

func newConn(id int64, l log.Logger, storage protocol.Storage, nc net.Conn, timeout time.Duration) *conn {
	buf := bufpool.Get()
	return &conn{
		id:      id,
		log:     l.WithFields(log.Fields{"conn": id}),
		nc:      nc,
		storage: storage,
		timeout: timeout,
		w:       bufio.NewWriterSize(nc, OutBufferSize),
		arr:     buf[:cap(buf)],
	}
}

// serve runs the connection's read/execute/write loop until the client
// disconnects, a protocol-fatal error occurs, or the socket is half-closed
// by Server.Stop. It always closes nc before returning.
func (c *conn) serve() {
	c.log.Debug("serve connection")
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("panic serving connection: %v", r)
		}
		c.close()
		c.log.Debug("connection closed")
	}()

	for {
		cmd, clientErr, err := c.readCommand()
		if err != nil {
			if err != io.EOF {
				c.log.Debugf("read error: %v", stackerr.Wrap(err))
			}
			return
		}
		if clientErr != nil {
			// The protocol defines no resynchronization within a session:
			// a malformed command leaves the parser's position in the byte
			// stream meaningless, so the only safe move is to log and
			// close rather than guess where the next command starts.
			c.log.Debugf("parser error: %v", clientErr)
			return
		}

		var body []byte
		if n := cmd.BodyLen(); n > 0 {
			body, err = c.readBody(n)
			if err != nil {
				c.log.Debugf("body read error: %v", stackerr.Wrap(err))
				return
			}
		}

		resp := cmd.Execute(c.storage, body)
		if resp == nil {
			continue
		}
		if !c.respond(resp) {
			return
		}
	}
}

func (c *conn) respond(line []byte) bool {
	if _, err := c.w.Write(line); err != nil {
		c.log.Debugf("write error: %v", err)
		return false
	}
	if err := c.w.Flush(); err != nil {
		c.log.Debugf("flush error: %v", err)
		return false
	}
	return true
}

// readCommand assembles the next header line and builds a Command from
// it. err is non-nil only for connection-fatal read conditions (I/O
// error, timeout, EOF). clientErr reports that the header line itself
// did not parse into a command (unknown command, bad key, wrong field
// count, line longer than protocol.MaxCommandSize); the protocol defines no resynchronization after that, so the
// caller must close the connection rather than try to continue reading.
func (c *conn) readCommand() (cmd protocol.Command, clientErr, err error) {
	c.parser.Reset()
	for {
		if c.end > c.start {
			var consumed int
			var ok bool
			consumed, ok = c.parser.Feed(c.arr[c.start:c.end])
			c.start += consumed
			if ok {
				cmd, clientErr = c.parser.Build()
				return
			}
			continue
		}
		if ferr := c.fill(); ferr != nil {
			err = ferr
			return
		}
	}
}

// readBody reads exactly n body bytes plus their trailing separator,
// returning a copy that outlives the connection's read buffer. Items
// larger than the read buffer bypass it and are read directly off the
// socket instead of forcing every connection to carry an oversized
// buffer for the rare large item.
func (c *conn) readBody(n int) ([]byte, error) {
	need := n + len(crlf)
	if need <= len(c.arr) {
		for c.end-c.start < need {
			if err := c.fill(); err != nil {
				return nil, err
			}
		}
		body := append([]byte(nil), c.arr[c.start:c.start+n]...)
		trailer := c.arr[c.start+n : c.start+need]
		c.start += need
		if !bytes.Equal(trailer, crlf) {
			return nil, protocol.ErrInvalidLineSeparator
		}
		return body, nil
	}

	body := make([]byte, need)
	avail := c.end - c.start
	copy(body, c.arr[c.start:c.end])
	c.start = c.end
	if avail < need {
		if c.timeout > 0 {
			c.nc.SetReadDeadline(time.Now().Add(c.timeout))
		}
		if _, err := io.ReadFull(c.nc, body[avail:]); err != nil {
			return nil, err
		}
	}
	if !bytes.Equal(body[n:], crlf) {
		return nil, protocol.ErrInvalidLineSeparator
	}
	return body[:n], nil
}

// fill compacts unconsumed bytes to the front of arr and reads more from
// the socket. It reports protocol.ErrTooLargeCommand instead of blocking
// forever if the buffer is already full and still holds no full header
// line.
func (c *conn) fill() error {
	if c.start > 0 {
		copy(c.arr, c.arr[c.start:c.end])
		c.end -= c.start
		c.start = 0
	}
	if c.end == len(c.arr) {
		return protocol.ErrTooLargeCommand
	}
	if c.timeout > 0 {
		c.nc.SetReadDeadline(time.Now().Add(c.timeout))
	}
	n, err := c.nc.Read(c.arr[c.end:])
	if err != nil {
		return err
	}
	c.end += n
	return nil
}

func (c *conn) close() error {
	c.w.Flush()
	bufpool.Put(c.arr[:0])
	return c.nc.Close()
}
