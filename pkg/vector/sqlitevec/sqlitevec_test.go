package sqlitevec_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/vector"
	"github.com/localcompute/g4l/pkg/vector/sqlitevec"
)

func chunk(id, source, page string, v float32) vector.Document {
	return vector.Document{
		ID:        id,
		Text:      "text of " + id,
		Source:    source,
		PageLabel: page,
		Embedding: []float32{v, v, v, v},
	}
}

var _ = Describe("Driver", func() {
	var (
		ctx    context.Context
		logger *zap.Logger
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger = zap.NewNop()
	})

	Describe("NewDriver", func() {
		It("requires a database path", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{Dimensions: 4}, logger)
			Expect(err).To(MatchError(ContainSubstring("database path is required")))
		})

		It("requires dimensions", func() {
			_, err := sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:"}, logger)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("with stored chunks", func() {
		var driver *sqlitevec.Driver

		BeforeEach(func() {
			var err error
			driver, err = sqlitevec.NewDriver(sqlitevec.Config{DBPath: ":memory:", Dimensions: 4}, logger)
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.Add(ctx, []vector.Document{
				chunk("a-1", "a.txt", "1", 0.1),
				chunk("a-2", "a.txt", "2", 0.2),
				chunk("b-1", "b.txt", "1", 0.3),
				chunk("b-2", "b.txt", "1", 0.4),
				chunk("c-1", "c.txt", "1", 0.5),
			})).To(Succeed())
		})

		AfterEach(func() {
			Expect(driver.Close()).To(Succeed())
		})

		It("counts chunks", func() {
			Expect(driver.Count(ctx)).To(Equal(5))
		})

		It("returns the nearest chunks best first with their metadata", func() {
			results, err := driver.Query(ctx, []float32{0.3, 0.3, 0.3, 0.3}, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))

			Expect(results[0].ID).To(Equal("b-1"))
			Expect(results[0].Text).To(Equal("text of b-1"))
			Expect(results[0].Source).To(Equal("b.txt"))
			Expect(results[0].PageLabel).To(Equal("1"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 0.0001))

			for i := 1; i < len(results); i++ {
				Expect(results[i-1].Score).To(BeNumerically(">=", results[i].Score))
			}
		})

		It("replaces a chunk with the same id", func() {
			updated := chunk("a-1", "a.txt", "9", 0.9)
			updated.Text = "new text"
			Expect(driver.Add(ctx, []vector.Document{updated})).To(Succeed())

			docs, err := driver.Get(ctx, []string{"a-1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
			Expect(docs[0].Text).To(Equal("new text"))
			Expect(docs[0].PageLabel).To(Equal("9"))
			Expect(docs[0].Embedding[0]).To(BeNumerically("~", 0.9, 0.001))
			Expect(driver.Count(ctx)).To(Equal(5))
		})

		It("skips unknown ids on Get", func() {
			docs, err := driver.Get(ctx, []string{"a-1", "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(HaveLen(1))
		})

		It("deletes by id", func() {
			Expect(driver.Delete(ctx, []string{"b-1"})).To(Succeed())

			results, err := driver.Query(ctx, []float32{0.3, 0.3, 0.3, 0.3}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(4))
			for _, r := range results {
				Expect(r.ID).NotTo(Equal("b-1"))
			}
		})

		It("deletes every chunk of a source", func() {
			Expect(driver.DeleteSource(ctx, "a.txt")).To(Succeed())
			Expect(driver.Count(ctx)).To(Equal(3))

			docs, err := driver.Get(ctx, []string{"a-1", "a-2"})
			Expect(err).NotTo(HaveOccurred())
			Expect(docs).To(BeEmpty())
		})
	})
})
