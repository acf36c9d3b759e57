// Package bufpool recycles the fixed-size read buffers connection workers
// use to accumulate command headers and bodies. Unlike recycle.Pool in the
// memcached project this was adapted from, which serves variable-size,
// read-only chunks handed off across goroutines, every buffer here is
// owned by exactly one worker for its entire lifetime, so a single
// sync.Pool of one fixed size is enough: no chunking, no leak detection,
// no ownership handoff.
package bufpool

import "sync"

// Size is the capacity of every buffer this package hands out. It matches
// the connection worker's read buffer, which must be large enough to hold
// one full command header line.
const Size = 1 << 12

var pool = sync.Pool{
	New: func() interface{} {
		return make([]byte, 0, Size)
	},
}

// Get returns a zero-length buffer with capacity Size.
func Get() []byte {
	return pool.Get().([]byte)[:0]
}

// Put returns buf to the pool. buf must have been obtained from Get and
// must not be used afterward.
func Put(buf []byte) {
	if cap(buf) != Size {
		return
	}
	pool.Put(buf[:0]) //nolint:staticcheck // reused as []byte, not held past Put.
}
