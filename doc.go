// Package lrucached wires cache.Cache and the protocol package into a TCP
// server: an acceptor goroutine bounded by a fixed pool of connection
// workers, each of which owns one client socket end to end.
//
// Concurrency is bounded, not per-connection-unbounded: at most Workers
// sockets are served at once. A connection arriving once that limit is
// reached is told so and closed immediately rather than queued, since an
// unbounded accept queue defeats the point of bounding worker count.
package lrucached
