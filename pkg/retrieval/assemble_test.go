package retrieval_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/localcompute/g4l/pkg/retrieval"
)

var _ = Describe("Assemble", func() {
	einstein := retrieval.Passage{
		Text:       "Einstein invented the photoelectric effect explanation",
		Score:      0.91,
		SourceFile: "einstein-albert.txt",
		PageLabel:  "3",
	}

	It("renders a passage block inside the template", func() {
		prompt := retrieval.Assemble("what inventions did he do", []retrieval.Passage{einstein})

		Expect(prompt).To(ContainSubstring("Context information is below."))
		Expect(prompt).To(ContainSubstring("page_label: 3"))
		Expect(prompt).To(ContainSubstring("file name: einstein-albert.txt"))
		Expect(prompt).To(ContainSubstring("similarity score: 0.91"))
		Expect(prompt).To(HaveSuffix("Query: what inventions did he do\nAnswer: "))
	})

	It("produces the exact layout", func() {
		prompt := retrieval.Assemble("q", []retrieval.Passage{einstein})
		Expect(prompt).To(Equal("Context information is below.\n" +
			"---------------------\n" +
			"content: \nEinstein invented the photoelectric effect explanation\n" +
			"----\npage_label: 3\n" +
			"file name: einstein-albert.txt\n" +
			"similarity score: 0.91\n---\n" +
			"---------------------\n" +
			"Given the context information and not prior knowledge, answer the query.\n" +
			"Query: q\n" +
			"Answer: "))
	})

	It("keeps passages in the given order", func() {
		second := retrieval.Passage{Text: "second", Score: 0.5, SourceFile: "b.txt", PageLabel: "1"}
		prompt := retrieval.Assemble("q", []retrieval.Passage{second, einstein})

		Expect(strings.Index(prompt, "second")).To(BeNumerically("<", strings.Index(prompt, "Einstein")))
		Expect(prompt).To(ContainSubstring("similarity score: 0.5\n---content: \nEinstein"))
	})

	It("is well-formed with no passages", func() {
		prompt := retrieval.Assemble("anything", nil)
		Expect(prompt).To(Equal("Context information is below.\n" +
			"---------------------\n" +
			"\n" +
			"---------------------\n" +
			"Given the context information and not prior knowledge, answer the query.\n" +
			"Query: anything\n" +
			"Answer: "))
	})
})

var _ = Describe("FormatScore", func() {
	It("uses the shortest representation", func() {
		Expect(retrieval.FormatScore(0.91)).To(Equal("0.91"))
		Expect(retrieval.FormatScore(1)).To(Equal("1"))
		Expect(retrieval.FormatScore(0.123456)).To(Equal("0.123456"))
	})
})
