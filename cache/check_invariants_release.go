//go:build !debug
// +build !debug

package cache

// checkInvariants is a no-op outside debug builds; see
// check_invariants_debug.go for the gomega-based version exercised by
// tests built with -tags debug.
func (c *Cache) checkInvariants() {}
