package cache_test

import (
	"fmt"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/skipor/lrucached/cache"
	"github.com/skipor/lrucached/testutil"
)

func newCache(maxSize int64) *cache.Cache {
	return cache.New(nil, cache.Config{MaxSize: maxSize})
}

var _ = Describe("Cache", func() {
	Context("concrete eviction and update scenarios", func() {
		It("scenario 1: sequential insert then evict", func() {
			c := newCache(12)
			Expect(c.Put([]byte("a"), []byte("1"))).To(BeTrue())
			Expect(c.Put([]byte("bb"), []byte("22"))).To(BeTrue())
			Expect(c.Put([]byte("ccc"), []byte("333"))).To(BeTrue())
			Expect(c.Keys()).To(Equal([]string{"a", "bb", "ccc"}))
			Expect(c.Size()).To(BeEquivalentTo(12))

			Expect(c.Put([]byte("d"), []byte("4"))).To(BeTrue())
			Expect(c.Keys()).To(Equal([]string{"bb", "ccc", "d"}))
			Expect(c.Size()).To(BeEquivalentTo(10))
		})

		It("scenario 2: update in place keeps tail position and re-sizes", func() {
			c := newCache(6)
			Expect(c.Put([]byte("k"), []byte("vv"))).To(BeTrue())
			v, ok := c.Get([]byte("k"))
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal([]byte("vv")))
			Expect(c.Keys()).To(Equal([]string{"k"}))

			Expect(c.Put([]byte("k"), []byte("vvvv"))).To(BeTrue())
			v, ok = c.Get([]byte("k"))
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal([]byte("vvvv")))
			Expect(c.Size()).To(BeEquivalentTo(5))
		})

		It("scenario 3: oversize insert fails without mutation", func() {
			c := newCache(4)
			Expect(c.Put([]byte("ab"), []byte("cd"))).To(BeTrue())
			Expect(c.Put([]byte("abc"), []byte("de"))).To(BeFalse())
			Expect(c.Keys()).To(Equal([]string{"ab"}))
			Expect(c.Size()).To(BeEquivalentTo(4))
		})

		It("scenario 4: touching a evicts b, not a", func() {
			c := newCache(5)
			Expect(c.Put([]byte("a"), []byte("1"))).To(BeTrue())
			Expect(c.Put([]byte("b"), []byte("2"))).To(BeTrue())
			_, ok := c.Get([]byte("a"))
			Expect(ok).To(BeTrue())
			Expect(c.Put([]byte("c"), []byte("3"))).To(BeTrue())
			Expect(c.Keys()).To(Equal([]string{"a", "c"}))
		})
	})

	Context("round-trip and idempotence", func() {
		It("put then get returns the value", func() {
			c := newCache(1024)
			Expect(c.Put([]byte("k"), []byte("v"))).To(BeTrue())
			v, ok := c.Get([]byte("k"))
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal([]byte("v")))
		})

		It("second put overwrites the first", func() {
			c := newCache(1024)
			Expect(c.Put([]byte("k"), []byte("v1"))).To(BeTrue())
			Expect(c.Put([]byte("k"), []byte("v2"))).To(BeTrue())
			v, ok := c.Get([]byte("k"))
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal([]byte("v2")))
		})

		It("delete then delete returns true then false", func() {
			c := newCache(1024)
			Expect(c.Put([]byte("k"), []byte("v"))).To(BeTrue())
			Expect(c.Delete([]byte("k"))).To(BeTrue())
			Expect(c.Delete([]byte("k"))).To(BeFalse())
		})

		It("delete of an absent key returns false", func() {
			c := newCache(1024)
			Expect(c.Delete([]byte("nope"))).To(BeFalse())
		})

		It("PutIfAbsent keeps the first value", func() {
			c := newCache(1024)
			Expect(c.PutIfAbsent([]byte("k"), []byte("v1"))).To(BeTrue())
			Expect(c.PutIfAbsent([]byte("k"), []byte("v2"))).To(BeFalse())
			v, ok := c.Get([]byte("k"))
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal([]byte("v1")))
		})

		It("Set fails on an absent key", func() {
			c := newCache(1024)
			Expect(c.Set([]byte("k"), []byte("v"))).To(BeFalse())
			_, ok := c.Get([]byte("k"))
			Expect(ok).To(BeFalse())
		})
	})

	Context("property: random operation sequences preserve invariants", func() {
		It("holds curr_size, index/list agreement, and the size bound after every op", func() {
			const maxSize = 200
			c := newCache(maxSize)
			resident := map[string][]byte{}

			for i := 0; i < 2000; i++ {
				key := testutil.RandKey()
				value := testutil.RandValue()

				op := testutil.Rand.Intn(5)
				switch op {
				case 0:
					if c.Put(key, value) {
						resident[string(key)] = value
					}
				case 1:
					if c.PutIfAbsent(key, value) {
						resident[string(key)] = value
					}
				case 2:
					if c.Set(key, value) {
						resident[string(key)] = value
					}
				case 3:
					if v, ok := c.Get(key); ok {
						Expect(v).To(Equal(resident[string(key)]), "iteration %d", i)
					} else {
						_, shouldHave := resident[string(key)]
						Expect(shouldHave).To(BeFalse(), "iteration %d: cache lost key %q", i, key)
					}
				case 4:
					if c.Delete(key) {
						delete(resident, string(key))
					}
				}
				if op <= 2 {
					// Writes may evict LRU entries; the model drops them too.
					pruneEvicted(c, resident)
				}

				assertInvariants(c, resident, maxSize)
			}
		})

		It("never admits an entry larger than max_size", func() {
			c := newCache(10)
			big := []byte(fmt.Sprintf("%030d", 0)) // cost 1+30 = 31 > 10
			before := c.Keys()
			Expect(c.Put([]byte("k"), big)).To(BeFalse())
			Expect(c.PutIfAbsent([]byte("k"), big)).To(BeFalse())
			Expect(c.Set([]byte("k"), big)).To(BeFalse())
			Expect(c.Keys()).To(Equal(before))
		})

		It("an update that fits must succeed even if it evicts every other entry", func() {
			c := newCache(10)
			Expect(c.Put([]byte("a"), []byte("1"))).To(BeTrue())
			Expect(c.Put([]byte("b"), []byte("2"))).To(BeTrue())
			Expect(c.Put([]byte("k"), []byte("x"))).To(BeTrue())
			Expect(c.Set([]byte("k"), []byte("xxxxxxxx"))).To(BeTrue()) // cost 9: only 1 byte left for others
			Expect(c.Keys()).To(Equal([]string{"k"}))
			v, ok := c.Get([]byte("k"))
			Expect(ok).To(BeTrue())
			Expect(v).To(Equal([]byte("xxxxxxxx")))
		})
	})
})

// assertInvariants checks spec invariants 1-4 against the model built by
// the test alongside the exported surface of Cache (Keys/Size).
func assertInvariants(c *cache.Cache, resident map[string][]byte, maxSize int64) {
	keys := c.Keys()
	Expect(len(keys)).To(Equal(len(resident)), "index/list size mismatch")

	var total int64
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		Expect(seen[k]).To(BeFalse(), "duplicate key %q in recency order", k)
		seen[k] = true
		v, ok := resident[k]
		Expect(ok).To(BeTrue(), "list has key %q the model doesn't", k)
		total += int64(len(k) + len(v))
	}
	Expect(total).To(Equal(c.Size()))
	Expect(c.Size()).To(BeNumerically("<=", maxSize))
}

// pruneEvicted removes from the model every key the cache no longer holds.
func pruneEvicted(c *cache.Cache, resident map[string][]byte) {
	held := make(map[string]bool)
	for _, k := range c.Keys() {
		held[k] = true
	}
	for k := range resident {
		if !held[k] {
			delete(resident, k)
		}
	}
}
