package protocol

import "github.com/pkg/errors"

const (
	// MaxKeySize matches classic memcached's key length ceiling.
	MaxKeySize = 250
	// MaxItemSize bounds a set command's declared body length.
	MaxItemSize = 8 * (1 << 20) // 8 MiB.
	// MaxCommandSize bounds a header line, excluding its trailing
	// separator. It must not exceed the worker's read buffer size.
	MaxCommandSize = 1 << 12

	Separator = "\r\n"

	GetCommand    = "get"
	SetCommand    = "set"
	DeleteCommand = "delete"

	NoReplyOption = "noreply"

	StoredResponse      = "STORED"
	ValueResponse       = "VALUE"
	EndResponse         = "END"
	DeletedResponse     = "DELETED"
	NotFoundResponse    = "NOT_FOUND"
	ErrorResponse       = "ERROR"
	ClientErrorResponse = "CLIENT_ERROR"
	ServerErrorResponse = "SERVER_ERROR"
)

var separatorBytes = []byte(Separator)

var (
	ErrTooLargeKey          = errors.New("too large key")
	ErrTooLargeItem         = errors.New("too large item")
	ErrInvalidOption        = errors.New("invalid option")
	ErrTooManyFields        = errors.New("too many fields")
	ErrMoreFieldsRequired   = errors.New("more fields required")
	ErrTooLargeCommand      = errors.New("command line is too long")
	ErrEmptyCommand         = errors.New("empty command")
	ErrFieldsParseError     = errors.New("fields parse error")
	ErrInvalidLineSeparator = errors.New("invalid line separator")
	ErrInvalidCharInKey     = errors.New("key contains invalid characters")
	ErrUnknownCommand       = errors.New("unknown command")
)

func isInvalidFieldChar(b byte) bool {
	return b <= ' ' || b == 127
}

func checkKey(k []byte) error {
	if len(k) == 0 {
		return ErrEmptyCommand
	}
	if len(k) > MaxKeySize {
		return ErrTooLargeKey
	}
	for _, b := range k {
		if isInvalidFieldChar(b) {
			return ErrInvalidCharInKey
		}
	}
	return nil
}
