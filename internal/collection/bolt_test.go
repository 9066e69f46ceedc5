package collection

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("BoltKV", func() {
	var (
		dbPath string
		kv     *BoltKV
	)

	BeforeEach(func() {
		dbPath = filepath.Join(GinkgoT().TempDir(), "test.db")
		var err error
		kv, err = NewBoltKV(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if kv != nil {
			kv.Close()
		}
	})

	Describe("Get", func() {
		When("the key does not exist", func() {
			It("returns ErrNotFound", func() {
				_, err := kv.Get("missing")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})

		When("the key exists", func() {
			BeforeEach(func() {
				Expect(kv.Put("k", []byte(`[]`))).To(Succeed())
			})

			It("returns the value", func() {
				v, err := kv.Get("k")
				Expect(err).NotTo(HaveOccurred())
				Expect(string(v)).To(Equal(`[]`))
			})
		})
	})

	Describe("Put", func() {
		It("replaces the previous value", func() {
			Expect(kv.Put("k", []byte("one"))).To(Succeed())
			Expect(kv.Put("k", []byte("two"))).To(Succeed())
			v, err := kv.Get("k")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(v)).To(Equal("two"))
		})
	})

	Describe("Delete", func() {
		It("removes the key", func() {
			Expect(kv.Put("k", []byte("one"))).To(Succeed())
			Expect(kv.Delete("k")).To(Succeed())
			_, err := kv.Get("k")
			Expect(err).To(MatchError(ErrNotFound))
		})

		It("ignores missing keys", func() {
			Expect(kv.Delete("missing")).To(Succeed())
		})
	})

	Describe("Keys", func() {
		It("lists stored keys", func() {
			Expect(kv.Put("a", []byte("1"))).To(Succeed())
			Expect(kv.Put("b", []byte("2"))).To(Succeed())
			Expect(kv.Keys()).To(ConsistOf("a", "b"))
		})
	})

	When("a second handle opens the same file", func() {
		It("fails while the first holds the lock", func() {
			_, err := NewBoltKV(dbPath)
			Expect(err).To(HaveOccurred())
		})
	})
})
