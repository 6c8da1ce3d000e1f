package index

import (
	"crypto/md5"
	"encoding/hex"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("StorageID", func() {
	It("hashes the files and the model token", func() {
		sum := md5.Sum([]byte("a.txt:b.txt:!nomic-embed-text!"))
		Expect(StorageID([]string{"a.txt", "b.txt"}, "nomic-embed-text")).To(Equal(hex.EncodeToString(sum[:])))
	})

	It("uses a placeholder token without a model", func() {
		sum := md5.Sum([]byte("a.txt:!notset!"))
		Expect(StorageID([]string{"a.txt"}, "")).To(Equal(hex.EncodeToString(sum[:])))
	})

	It("changes with the embedding model", func() {
		files := []string{"a.txt"}
		Expect(StorageID(files, "m1")).NotTo(Equal(StorageID(files, "m2")))
	})

	It("is deterministic", func() {
		files := []string{"x", "y"}
		Expect(StorageID(files, "m")).To(Equal(StorageID(files, "m")))
	})

	It("does not modify the caller's slice", func() {
		files := make([]string, 1, 4)
		files[0] = "a"
		StorageID(files, "m")
		Expect(files[:cap(files)][1]).To(BeEmpty())
	})

	It("places the sqlite database inside the storage directory", func() {
		Expect(SQLitePath("/data", "abc")).To(Equal(filepath.Join("/data", "storage.abc", "index.db")))
	})
})
