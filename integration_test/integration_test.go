package integration

import (
	"io/ioutil"
	"net"
	"os/exec"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gexec"

	"github.com/skipor/lrucached/cmd/lrucached/config"
	"github.com/skipor/lrucached/internal/util"
	"github.com/skipor/lrucached/testutil"
)

var _ = Describe("Integration", func() {
	const SessionWaitTime = 3 * time.Second
	var (
		confFile   string
		inConf     config.Config // App config to run.
		serverConf config.Parsed // Parsed config. Read only.

		session *Session
	)
	BeforeEach(func() {
		ResetTestKeys()
		confFile = testutil.TmpFileName()
		inConf = *config.Default() // Sometimes we want to know defaults.
		inConf.LogLevel = "debug"
		serverConf = config.Parsed{} // Will be filled in JBE.
	})

	run := func() {
		var err error
		command := exec.Command(CLI, "-config", confFile)
		session, err = Start(command, GinkgoWriter, GinkgoWriter)
		Expect(err).ToNot(HaveOccurred(), "%v", err)
		time.Sleep(50 * time.Millisecond) // Wait for output.
	}
	JustBeforeEach(func() {
		if !util.IsZero(serverConf) {
			Fail("Test should configure inConf, not serverConf.")
		}
		var err error
		serverConf, err = config.Parse(inConf)
		Expect(err).NotTo(HaveOccurred())
		err = ioutil.WriteFile(confFile, config.Marshal(&inConf), 0600)
		Expect(err).NotTo(HaveOccurred())
		run()
	})
	AfterEach(func() {
		session.Terminate().Wait(SessionWaitTime)
	})

	Context("simple requests", func() {
		var (
			c   *memcache.Client
			err error
		)
		JustBeforeEach(func() {
			c = memcache.New(serverConf.Addr)
		})
		It("get what set", func() {
			set := RandSizeItem()
			err = c.Set(set)
			Expect(err).To(BeNil())
			get, err := c.Get(set.Key)
			Expect(err).To(BeNil())
			ExpectItemsEqual(get, set)
		})

		It("overwrite", func() {
			set := RandSizeItem()
			overwrite := RandSizeItem()
			overwrite.Key = set.Key
			err = c.Set(set)
			Expect(err).To(BeNil())
			err = c.Set(overwrite)
			Expect(err).To(BeNil())

			get, err := c.Get(set.Key)
			Expect(err).To(BeNil())
			ExpectItemsEqual(get, overwrite)
		})

		It("delete", func() {
			set := RandSizeItem()
			err = c.Set(set)
			Expect(err).To(BeNil())

			err = c.Delete(set.Key)
			_, err = c.Get(set.Key)
			Expect(err).To(Equal(memcache.ErrCacheMiss))
		})

		It("multi get", func() {
			var keys []string
			items := map[string]*memcache.Item{}
			for i := 0; i < 10; i++ {
				i := RandSizeItem()
				keys = append(keys, i.Key)
				items[i.Key] = i
				err = c.Set(i)
				Expect(err).To(BeNil())
			}
			gotItems, err := c.GetMulti(keys)
			Expect(err).To(BeNil())
			Expect(len(gotItems)).To(Equal(len(items)))
			for k, v := range gotItems {
				ExpectItemsEqual(v, items[k])
			}
		})
	})

	Context("cache is bounded", func() {
		BeforeEach(func() {
			inConf.CacheSize = "4k"
		})
		It("evicts old items to admit new ones instead of growing past cache-size", func() {
			c := memcache.New(serverConf.Addr)
			var its []*memcache.Item
			var totalSize int
			for totalSize < 3*4<<10 {
				it := NewItem(256)
				Expect(c.Set(it)).To(Succeed())
				its = append(its, it)
				totalSize += len(it.Key) + len(it.Value)
			}
			// The earliest items must have been evicted; the latest ones
			// must still be resident.
			_, err := c.Get(its[0].Key)
			Expect(err).To(Equal(memcache.ErrCacheMiss))
			last := its[len(its)-1]
			got, err := c.Get(last.Key)
			Expect(err).NotTo(HaveOccurred())
			ExpectItemsEqual(got, last)
		})
	})

	Context("admission control", func() {
		BeforeEach(func() {
			inConf.Workers = 2
			inConf.LogLevel = "info"
		})
		It("closes a connection past the worker limit with a server error", func() {
			held := make([]net.Conn, 2)
			var err error
			for i := range held {
				held[i], err = net.Dial("tcp", serverConf.Addr)
				Expect(err).NotTo(HaveOccurred())
			}
			defer func() {
				for _, c := range held {
					c.Close()
				}
			}()

			overflow, err := net.Dial("tcp", serverConf.Addr)
			Expect(err).NotTo(HaveOccurred())
			defer overflow.Close()

			buf := make([]byte, 256)
			overflow.SetReadDeadline(time.Now().Add(SessionWaitTime))
			n, err := overflow.Read(buf)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(buf[:n])).To(ContainSubstring("SERVER_ERROR"))
		})
	})

	Context("load", func() {
		BeforeEach(func() {
			inConf.LogLevel = "info" // Too large debug output.
		})

		It("serves a mixed read/write workload from many concurrent clients", func() {
			LoadTest(serverConf.Addr, serverConf.Workers)
		})
	})

	It("loses all data across a restart, since persistence is out of scope", func() {
		c := memcache.New(serverConf.Addr)
		set := RandSizeItem()
		Expect(c.Set(set)).To(Succeed())

		session.Terminate().Wait(SessionWaitTime)
		run()

		c = memcache.New(serverConf.Addr)
		_, err := c.Get(set.Key)
		Expect(err).To(Equal(memcache.ErrCacheMiss))
	})
})
