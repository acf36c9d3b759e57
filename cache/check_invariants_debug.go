//go:build debug
// +build debug

// Gomega should not be a dependency in non-debug builds.

package cache

import (
	"errors"
	"log"

	"github.com/facebookgo/stackerr"
	. "github.com/onsi/gomega"
)

var _ = func() (_ struct{}) {
	RegisterFailHandler(gomegaFailHandler)
	return
}()

func gomegaFailHandler(message string, callerSkip ...int) {
	skip := 0
	if len(callerSkip) > 0 {
		skip = callerSkip[0] + 1
	}
	log.Fatal("FATAL: invariants are broken: ", stackerr.WrapSkip(errors.New(message), skip))
}

// checkInvariants walks the recency list and re-derives curr_size and the
// index/list membership relation, asserting spec invariants 1-4.
func (c *Cache) checkInvariants() {
	Expect(c.head.prev).To(BeNil())
	Expect(c.tail.next).To(BeNil())

	var size int64
	var items int
	for n := c.head.next; n != c.tail; n = n.next {
		items++
		size += cost(n.key, n.value)
		Expect(n.prev.next).To(BeIdenticalTo(n))

		tn, ok := c.table[n.key]
		Expect(ok).To(BeTrue(), "list entry %q missing from index", n.key)
		Expect(tn).To(BeIdenticalTo(n), "index entry for %q points to a different node", n.key)
	}
	Expect(c.tail.prev).NotTo(BeNil())
	if items == 0 {
		Expect(c.tail.prev).To(BeIdenticalTo(c.head))
	}

	Expect(items).To(Equal(len(c.table)), "index has entries not reachable from head")
	Expect(size).To(Equal(c.currSize), "curr_size out of sync with entries")
	Expect(c.currSize).To(BeNumerically("<=", c.maxSize), "over budget")
}
