package protocol

import (
	"strconv"

	"github.com/pkg/errors"
)

// Storage is the subset of cache.Cache's surface commands execute against.
// It is satisfied directly by *cache.Cache; command.go depends only on this
// interface so the protocol package never imports cache.
type Storage interface {
	Get(key []byte) (value []byte, ok bool)
	Put(key, value []byte) bool
	PutIfAbsent(key, value []byte) bool
	Set(key, value []byte) bool
	Delete(key []byte) bool
}

// Command is a fully parsed request, ready to run against a Storage once
// its body (if any) has been read.
type Command interface {
	// BodyLen is the number of body bytes, excluding the trailing
	// separator, this command still needs read off the connection before
	// Execute can run. It is 0 for commands with no body.
	BodyLen() int
	// NoReply reports whether the client asked to suppress the response.
	NoReply() bool
	// Execute runs the command against s and returns the wire response,
	// or nil if NoReply is true. body excludes the trailing separator.
	Execute(s Storage, body []byte) []byte
}

// getCommand implements the multi-key get. The gets variant is not
// recognized: Parser.Build rejects it as an unknown command.
type getCommand struct {
	keys [][]byte
}

func newGetCommand(args [][]byte) (Command, error) {
	if len(args) == 0 {
		return nil, ErrMoreFieldsRequired
	}
	keys := make([][]byte, len(args))
	for i, a := range args {
		if err := checkKey(a); err != nil {
			return nil, err
		}
		keys[i] = cloneField(a)
	}
	return &getCommand{keys: keys}, nil
}

func (c *getCommand) BodyLen() int  { return 0 }
func (c *getCommand) NoReply() bool { return false }

func (c *getCommand) Execute(s Storage, _ []byte) []byte {
	var resp []byte
	for _, key := range c.keys {
		value, ok := s.Get(key)
		if !ok {
			continue
		}
		resp = append(resp, ValueResponse...)
		resp = append(resp, ' ')
		resp = append(resp, key...)
		resp = append(resp, " 0 "...) // flags always report as 0
		resp = strconv.AppendInt(resp, int64(len(value)), 10)
		resp = append(resp, separatorBytes...)
		resp = append(resp, value...)
		resp = append(resp, separatorBytes...)
	}
	resp = append(resp, EndResponse...)
	resp = append(resp, separatorBytes...)
	return resp
}

// setCommand implements set; add and replace are not recognized.
// flags and exptime are parsed for wire compatibility with real memcached
// clients but never retained: this cache tracks neither.
type setCommand struct {
	key      []byte
	bytes    int
	noReply  bool
	tooLarge bool
}

// newSetCommand parses a set command's header. An oversized declared body
// still produces a valid Command instead of a Build error: the caller
// needs BodyLen to know how many bytes to read and discard off the wire
// before the connection can resync on the next command, exactly as if the
// item had been accepted.
func newSetCommand(args [][]byte) (Command, error) {
	if len(args) < 4 {
		return nil, ErrMoreFieldsRequired
	}
	if len(args) > 5 {
		return nil, ErrTooManyFields
	}
	key := args[0]
	if err := checkKey(key); err != nil {
		return nil, err
	}
	// args[1] is flags, args[2] is exptime: parsed by the client's
	// contract but not by ours, since we don't retain either.
	if _, err := strconv.ParseUint(string(args[1]), 10, 32); err != nil {
		return nil, errors.Wrap(ErrFieldsParseError, "flags")
	}
	if _, err := strconv.ParseInt(string(args[2]), 10, 64); err != nil {
		return nil, errors.Wrap(ErrFieldsParseError, "exptime")
	}
	bytes, err := strconv.Atoi(string(args[3]))
	if err != nil || bytes < 0 {
		return nil, errors.Wrap(ErrFieldsParseError, "bytes")
	}
	noReply := false
	if len(args) == 5 {
		if string(args[4]) != NoReplyOption {
			return nil, ErrInvalidOption
		}
		noReply = true
	}
	return &setCommand{
		key:      cloneField(key),
		bytes:    bytes,
		noReply:  noReply,
		tooLarge: bytes > MaxItemSize,
	}, nil
}

func (c *setCommand) BodyLen() int  { return c.bytes }
func (c *setCommand) NoReply() bool { return c.noReply }

func (c *setCommand) Execute(s Storage, body []byte) []byte {
	if c.tooLarge {
		if c.noReply {
			return nil
		}
		return append([]byte(ClientErrorResponse+" "+ErrTooLargeItem.Error()), separatorBytes...)
	}
	ok := s.Put(c.key, body)
	if c.noReply {
		return nil
	}
	if !ok {
		return append([]byte(ServerErrorResponse), separatorBytes...)
	}
	return append([]byte(StoredResponse), separatorBytes...)
}

type deleteCommand struct {
	key     []byte
	noReply bool
}

func newDeleteCommand(args [][]byte) (Command, error) {
	if len(args) == 0 {
		return nil, ErrMoreFieldsRequired
	}
	if len(args) > 2 {
		return nil, ErrTooManyFields
	}
	key := args[0]
	if err := checkKey(key); err != nil {
		return nil, err
	}
	noReply := false
	if len(args) == 2 {
		if string(args[1]) != NoReplyOption {
			return nil, ErrInvalidOption
		}
		noReply = true
	}
	return &deleteCommand{key: cloneField(key), noReply: noReply}, nil
}

func (c *deleteCommand) BodyLen() int  { return 0 }
func (c *deleteCommand) NoReply() bool { return c.noReply }

func (c *deleteCommand) Execute(s Storage, _ []byte) []byte {
	ok := s.Delete(c.key)
	if c.noReply {
		return nil
	}
	if !ok {
		return append([]byte(NotFoundResponse), separatorBytes...)
	}
	return append([]byte(DeletedResponse), separatorBytes...)
}
