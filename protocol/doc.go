// Package protocol implements the wire grammar consumed by the connection
// worker: an incremental line parser and a small family of Command
// objects (get/set/delete) that execute against a Storage.
//
// The grammar is the classic memcached text-protocol subset. That choice
// lets integration tests drive a running server with an unmodified
// memcached client instead of a hand-rolled one. Per-item metadata that
// real memcached tracks (flags, expiration) is parsed for wire
// compatibility but not retained: this cache has no notion of expiration
// or opaque flags, only keys and values.
package protocol
