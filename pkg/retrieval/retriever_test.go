package retrieval_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/localcompute/g4l/pkg/llm"
	"github.com/localcompute/g4l/pkg/retrieval"
	testutils "github.com/localcompute/g4l/pkg/utils/test"
	"github.com/localcompute/g4l/pkg/vector"
)

var _ = Describe("Retriever", func() {
	var (
		ctx      context.Context
		embedder *testutils.MockEmbedder
		driver   *testutils.MockVectorDriver
	)

	BeforeEach(func() {
		ctx = context.Background()
		embedder = testutils.NewMockEmbedder()
		driver = testutils.NewMockVectorDriver()
		for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
			driver.Results = append(driver.Results, vector.QueryResult{
				Document: vector.Document{ID: id, Text: "text " + id, Source: id + ".txt", PageLabel: "1"},
				Score:    0.5,
			})
		}
	})

	It("requires an embedder and a driver", func() {
		_, err := retrieval.New(retrieval.Config{Driver: driver})
		Expect(err).To(HaveOccurred())
		_, err = retrieval.New(retrieval.Config{Embedder: embedder})
		Expect(err).To(HaveOccurred())
	})

	It("asks the driver for the mode's result count", func() {
		r, err := retrieval.New(retrieval.Config{Embedder: embedder, Driver: driver, Mode: retrieval.ModeAggressive})
		Expect(err).NotTo(HaveOccurred())

		passages, err := r.Retrieve(ctx, "question")
		Expect(err).NotTo(HaveOccurred())
		Expect(driver.LastTopK).To(Equal(5))
		Expect(passages).To(HaveLen(5))
		Expect(passages[0]).To(Equal(retrieval.Passage{
			Text: "text a", Score: 0.5, SourceFile: "a.txt", PageLabel: "1",
		}))
		Expect(embedder.Calls()).To(Equal([]string{"question"}))
	})

	It("wraps embedding failures in ErrRetrieval", func() {
		embedder.FailOn = "bad"
		r, _ := retrieval.New(retrieval.Config{Embedder: embedder, Driver: driver})

		_, err := r.Retrieve(ctx, "bad")
		Expect(err).To(MatchError(llm.ErrRetrieval))
	})

	It("wraps query failures in ErrRetrieval", func() {
		driver.QueryErr = errors.New("index corrupt")
		r, _ := retrieval.New(retrieval.Config{Embedder: embedder, Driver: driver})

		_, err := r.PromptFor(ctx, "q")
		Expect(err).To(MatchError(llm.ErrRetrieval))
		Expect(err.Error()).To(ContainSubstring("index corrupt"))
	})

	It("assembles a prompt from the default mode's passages", func() {
		r, _ := retrieval.New(retrieval.Config{Embedder: embedder, Driver: driver})

		prompt, err := r.PromptFor(ctx, "q")
		Expect(err).NotTo(HaveOccurred())
		Expect(prompt).To(ContainSubstring("text a"))
		Expect(prompt).To(ContainSubstring("text b"))
		Expect(prompt).NotTo(ContainSubstring("text c"))
	})
})
