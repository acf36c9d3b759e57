package protocol

import "bytes"

// Parser accumulates bytes fed to it by a connection worker until a full
// command header line is available, then builds the corresponding Command.
// It holds no reference to the caller's read buffer past a Feed call: any
// bytes it needs to keep (the header line) are copied into its own storage.
//
// A Parser is reused across commands on the same connection; call Reset
// after Build to prepare it for the next header.
type Parser struct {
	line []byte // accumulated header bytes, without the trailing separator
	err  error  // sticky: set once the line has grown past MaxCommandSize
}

// Feed appends buf to the accumulated header line and reports how many
// bytes it consumed. ok is true once a full line (terminated by "\r\n")
// has been assembled and Build can be called. Feed never consumes more
// than the bytes up to and including the separator: leftover bytes in buf
// belong to the body or to the next command and must be handled by the
// caller.
func (p *Parser) Feed(buf []byte) (consumed int, ok bool) {
	// The separator may straddle two Feed calls: "\r" ended the previous
	// buffer and "\n" starts this one.
	if n := len(p.line); n > 0 && p.line[n-1] == '\r' && len(buf) > 0 && buf[0] == '\n' {
		p.line = p.line[:n-1]
		return 1, true
	}
	if idx := bytes.Index(buf, separatorBytes); idx >= 0 {
		p.line = append(p.line, buf[:idx]...)
		if p.err == nil && len(p.line) > MaxCommandSize {
			p.err = ErrTooLargeCommand
		}
		return idx + len(separatorBytes), true
	}

	p.line = append(p.line, buf...)
	if p.err == nil && len(p.line) > MaxCommandSize {
		p.err = ErrTooLargeCommand
	}
	return len(buf), false
}

// Reset prepares the Parser for the next header line.
func (p *Parser) Reset() {
	p.line = p.line[:0]
	p.err = nil
}

// Build parses the accumulated header line into a Command. It must only
// be called after Feed has returned ok == true.
func (p *Parser) Build() (Command, error) {
	if p.err != nil {
		return nil, p.err
	}

	fields := bytes.Fields(p.line)
	if len(fields) == 0 {
		return nil, ErrEmptyCommand
	}

	name := string(fields[0])
	args := fields[1:]
	switch name {
	case GetCommand:
		return newGetCommand(args)
	case SetCommand:
		return newSetCommand(args)
	case DeleteCommand:
		return newDeleteCommand(args)
	default:
		return nil, ErrUnknownCommand
	}
}

func cloneField(f []byte) []byte {
	c := make([]byte, len(f))
	copy(c, f)
	return c
}
