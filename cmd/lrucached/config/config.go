// Package config turns the JSON/flag-friendly Config into the values
// lrucached.Server and cache.Cache actually take, merging a config file
// over built-in defaults and command-line flags over both.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/facebookgo/stackerr"

	"github.com/skipor/lrucached/internal/util"
	"github.com/skipor/lrucached/log"
)

// MaxItemSize is the hard ceiling accepted for the max-item-size config
// value, matching protocol.MaxItemSize.
const MaxItemSize = 8 * (1 << 20)

// Parsed is the config in the form main wires directly into a
// lrucached.Server and cache.Cache.
type Parsed struct {
	Addr           string
	LogDestination io.Writer
	LogLevel       log.Level
	CacheSize      int64
	MaxItemSize    int64
	Workers        int
	AcceptThreads  int
}

// Parse validates and converts conf's string/human fields into Parsed's
// concrete ones.
func Parse(conf Config) (parsed Parsed, err error) {
	parsed.LogDestination, err = logDestination(conf.LogDestination)
	if err != nil {
		err = stackerr.Newf("log destination open error: %v", err)
		return
	}
	parsed.CacheSize, err = parseSize(conf.CacheSize)
	if err != nil {
		err = stackerr.Newf("cache size parse error: %v", err)
		return
	}
	parsed.MaxItemSize, err = parseSize(conf.MaxItemSize)
	if err != nil {
		err = stackerr.Newf("max item size parse error: %v", err)
		return
	}
	if parsed.MaxItemSize > MaxItemSize {
		err = stackerr.Newf("too large max item size")
		return
	}
	parsed.LogLevel, err = log.LevelFromString(conf.LogLevel)
	if err != nil {
		err = stackerr.Newf("log level parse error: %v", err)
		return
	}
	parsed.Workers = conf.Workers
	parsed.AcceptThreads = conf.AcceptThreads
	parsed.Addr = net.JoinHostPort(conf.Host, strconv.Itoa(conf.Port))
	return
}

// Default returns the config used when neither a config file nor a flag
// overrides a field.
func Default() *Config {
	return &Config{
		Port:           11211,
		Host:           "",
		LogDestination: "stderr",
		LogLevel:       "info",
		CacheSize:      "64m",
		MaxItemSize:    "1m",
		Workers:        128,
		AcceptThreads:  1,
	}
}

// Config is the JSON- and flag-facing configuration shape.
type Config struct {
	Port           int    `json:"port,omitempty"`
	Host           string `json:"host,omitempty"`
	LogDestination string `json:"log-destination,omitempty"` // stdout, stderr, or filepath.
	LogLevel       string `json:"log-level,omitempty"`
	// Size values 10g, 128m, 1024k, 1000000b.
	CacheSize   string `json:"cache-size,omitempty"`
	MaxItemSize string `json:"max-item-size,omitempty"`
	Workers     int    `json:"workers,omitempty"`
	// AcceptThreads is reserved for a future multi-acceptor listener; the
	// server only ever runs one acceptor goroutine regardless of its value.
	AcceptThreads int `json:"accept-threads,omitempty"`
}

// Merge overwrites def's fields with override's non-zero ones, in place
// on def.
func Merge(def, override *Config) {
	defVal := reflect.ValueOf(def).Elem()
	overrideVal := reflect.ValueOf(override).Elem()
	for i, end := 0, defVal.NumField(); i < end; i++ {
		field := overrideVal.Field(i)
		if !util.IsZeroVal(field) {
			defVal.Field(i).Set(field)
		}
	}
}

func Marshal(conf *Config) []byte {
	data, err := json.Marshal(conf)
	if err != nil {
		panic(err)
	}
	return data
}

func parseSize(s string) (size int64, err error) {
	if len(s) < 2 {
		err = errors.New("invalid size format")
		return
	}
	sep := len(s) - 1
	sizeStr := s[:sep]
	exponentStr := s[sep:]
	var exponent uint32
	switch strings.ToLower(exponentStr) {
	case "b":
		exponent = 0
	case "k":
		exponent = 10
	case "m":
		exponent = 20
	case "g":
		exponent = 30
	default:
		err = errors.New("invalid exponent, only 'b', 'k', 'm', 'g' allowed")
		return
	}
	size, err = strconv.ParseInt(sizeStr, 10, 31)
	if err != nil {
		err = fmt.Errorf("size parse error: %s", err)
		return
	}
	size <<= exponent
	return
}

func logDestination(dest string) (w io.Writer, err error) {
	switch strings.ToLower(dest) {
	case "stderr":
		w = os.Stderr
	case "stdout":
		w = os.Stdout
	default:
		w, err = os.OpenFile(dest, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	}
	return
}
