package collection

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("FileKV", func() {
	var (
		basePath string
		kv       *FileKV
	)

	BeforeEach(func() {
		basePath = filepath.Join(GinkgoT().TempDir(), "data")
		var err error
		kv, err = NewFileKV(basePath)
		Expect(err).NotTo(HaveOccurred())
	})

	It("creates the directory", func() {
		info, err := os.Stat(basePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.IsDir()).To(BeTrue())
	})

	It("round-trips a value", func() {
		Expect(kv.Put("invoicescanner_invoice_v2", []byte(`[]`))).To(Succeed())
		v, err := kv.Get("invoicescanner_invoice_v2")
		Expect(err).NotTo(HaveOccurred())
		Expect(string(v)).To(Equal(`[]`))
	})

	It("leaves no temporary files behind", func() {
		Expect(kv.Put("k", []byte("one"))).To(Succeed())
		Expect(kv.Put("k", []byte("two"))).To(Succeed())
		entries, err := os.ReadDir(basePath)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})

	It("returns ErrNotFound for a missing key", func() {
		_, err := kv.Get("missing")
		Expect(err).To(MatchError(ErrNotFound))
	})

	It("rejects keys that would escape the directory", func() {
		_, err := kv.Get("../etc/passwd")
		Expect(err).To(MatchError(ContainSubstring("invalid storage key")))
	})

	It("deletes idempotently", func() {
		Expect(kv.Put("k", []byte("one"))).To(Succeed())
		Expect(kv.Delete("k")).To(Succeed())
		Expect(kv.Delete("k")).To(Succeed())
	})

	It("lists keys", func() {
		Expect(kv.Put("a", []byte("1"))).To(Succeed())
		Expect(kv.Put("b", []byte("2"))).To(Succeed())
		Expect(kv.Keys()).To(ConsistOf("a", "b"))
	})
})
