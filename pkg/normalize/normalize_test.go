package normalize

import (
	"iter"
	"slices"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/localcompute/g4l/pkg/llm"
)

// countingSeq yields tokens and records how many were pulled.
func countingSeq(tokens []string, pulled *int) iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, t := range tokens {
			*pulled++
			if !yield(t) {
				return
			}
		}
	}
}

func deltas(chunks []llm.ChunkRecord) []string {
	out := []string{}
	for _, c := range chunks {
		if c.Delta != nil {
			out = append(out, *c.Delta)
		}
	}
	return out
}

func intPtr(i int) *int { return &i }

var _ = Describe("Stream", func() {
	It("yields one chunk per token plus a terminal stop chunk", func() {
		tokens := []string{"Hello", ",", " world", "!"}
		chunks := slices.Collect(Stream(slices.Values(tokens), Options{}))

		Expect(chunks).To(HaveLen(len(tokens) + 1))
		Expect(deltas(chunks)).To(Equal(tokens))

		last := chunks[len(chunks)-1]
		Expect(last.Delta).To(BeNil())
		Expect(last.FinishReason).NotTo(BeNil())
		Expect(*last.FinishReason).To(Equal(llm.FinishStop))
	})

	It("sets the finish reason only on the terminal chunk", func() {
		chunks := slices.Collect(Stream(slices.Values([]string{"a", "b"}), Options{}))
		for _, c := range chunks[:len(chunks)-1] {
			Expect(c.FinishReason).To(BeNil())
			Expect(c.Terminal()).To(BeFalse())
		}
		Expect(chunks[len(chunks)-1].Terminal()).To(BeTrue())
	})

	It("uses a single id for every chunk", func() {
		chunks := slices.Collect(Stream(slices.Values([]string{"a", "b", "c"}), Options{}))
		id := chunks[0].ID
		Expect(id).To(HavePrefix("chatcmpl-"))
		for _, c := range chunks {
			Expect(c.ID).To(Equal(id))
		}
	})

	It("uses a fresh id per call", func() {
		seq := Stream(slices.Values([]string{"a"}), Options{})
		first := slices.Collect(seq)
		second := slices.Collect(seq)
		Expect(first[0].ID).NotTo(Equal(second[0].ID))
	})

	It("emits an empty terminal-only stream for an empty source", func() {
		chunks := slices.Collect(Stream(slices.Values([]string{}), Options{}))
		Expect(chunks).To(HaveLen(1))
		Expect(*chunks[0].FinishReason).To(Equal(llm.FinishStop))
	})

	Context("with max tokens", func() {
		It("stops after the k-th token with reason length", func() {
			pulled := 0
			tokens := []string{"one", " two", " three", " four", " five"}
			chunks := slices.Collect(Stream(countingSeq(tokens, &pulled), Options{MaxTokens: intPtr(3)}))

			Expect(deltas(chunks)).To(Equal([]string{"one", " two", " three"}))
			Expect(*chunks[len(chunks)-1].FinishReason).To(Equal(llm.FinishLength))
			Expect(pulled).To(Equal(3))
		})

		It("keeps the whole token that hit the budget", func() {
			chunks := slices.Collect(Stream(slices.Values([]string{"abc", "def"}), Options{MaxTokens: intPtr(1)}))
			Expect(deltas(chunks)).To(Equal([]string{"abc"}))
		})

		It("treats a budget larger than the stream as no budget", func() {
			chunks := slices.Collect(Stream(slices.Values([]string{"a", "b"}), Options{MaxTokens: intPtr(10)}))
			Expect(chunks).To(HaveLen(3))
			Expect(*chunks[2].FinishReason).To(Equal(llm.FinishStop))
		})
	})

	Context("with stop words", func() {
		It("cuts the token at the stop word", func() {
			pulled := 0
			tokens := []string{"The answer", " is 42.", " More", " text"}
			chunks := slices.Collect(Stream(countingSeq(tokens, &pulled), Options{Stop: []string{"."}}))

			Expect(deltas(chunks)).To(Equal([]string{"The answer", " is 42"}))
			Expect(*chunks[len(chunks)-1].FinishReason).To(Equal(llm.FinishStop))
			Expect(pulled).To(Equal(2))
		})

		It("reproduces the truncated text when deltas are joined", func() {
			tokens := []string{"alpha ", "beta", " gammaXdelta", " epsilon"}
			chunks := slices.Collect(Stream(slices.Values(tokens), Options{Stop: []string{"X"}}))

			full := strings.Join(tokens, "")
			Expect(strings.Join(deltas(chunks), "")).To(Equal(full[:strings.Index(full, "X")]))
		})

		It("holds back a partial stop word until the next token settles it", func() {
			tokens := []string{"foo EN", "D bar"}
			chunks := slices.Collect(Stream(slices.Values(tokens), Options{Stop: []string{"END"}}))

			Expect(deltas(chunks)).To(Equal([]string{"foo ", ""}))
			Expect(*chunks[len(chunks)-1].FinishReason).To(Equal(llm.FinishStop))
		})

		It("releases held text when the stop word does not complete", func() {
			tokens := []string{"foo EN", "Dless", " day"}
			chunks := slices.Collect(Stream(slices.Values(tokens), Options{Stop: []string{"ENDS"}}))

			Expect(deltas(chunks)).To(Equal([]string{"foo ", "ENDless", " day"}))
			Expect(*chunks[len(chunks)-1].FinishReason).To(Equal(llm.FinishStop))
		})

		It("flushes held text into the last chunk when the source ends", func() {
			chunks := slices.Collect(Stream(slices.Values([]string{"one", " E"}), Options{Stop: []string{"END"}}))

			Expect(chunks).To(HaveLen(3))
			Expect(deltas(chunks)).To(Equal([]string{"one", " E"}))
		})

		It("never emits text past the buffer cut when the word reappears in the token", func() {
			tokens := []string{"ab", "cdbcx"}
			chunks := slices.Collect(Stream(slices.Values(tokens), Options{Stop: []string{"bc"}}))
			Expect(deltas(chunks)).To(Equal([]string{"a", ""}))
		})

		It("cuts inside the token when the word starts there", func() {
			tokens := []string{"xa", "bab"}
			chunks := slices.Collect(Stream(slices.Values(tokens), Options{Stop: []string{"ab"}}))
			Expect(deltas(chunks)).To(Equal([]string{"x", ""}))
			Expect(strings.Join(deltas(chunks), "")).To(Equal("x"))
		})

		DescribeTable("joins to the same text Complete returns",
			func(tokens []string, stop []string) {
				chunks := slices.Collect(Stream(slices.Values(tokens), Options{Stop: stop}))
				rec := Complete(slices.Values(tokens), Options{Stop: stop})

				Expect(chunks).To(HaveLen(len(deltas(chunks)) + 1))
				Expect(strings.Join(deltas(chunks), "")).To(Equal(rec.Content))
			},
			Entry("word spanning two tokens", []string{"foo EN", "D bar"}, []string{"END"}),
			Entry("word spanning three tokens", []string{"a<", "|e", "nd|>b"}, []string{"<|end|>"}),
			Entry("word inside one token", []string{"alpha ", "beXta"}, []string{"X"}),
			Entry("prefix that never completes", []string{"x <", "|y"}, []string{"<|end|>"}),
			Entry("overlapping candidates", []string{"xa", "bab"}, []string{"ab"}),
			Entry("second word matches first", []string{"one; tw", "o. three"}, []string{"o.", ";"}),
		)
		It("checks stop words in the given order", func() {
			tokens := []string{"one; two. three"}
			chunks := slices.Collect(Stream(slices.Values(tokens), Options{Stop: []string{".", ";"}}))
			Expect(deltas(chunks)).To(Equal([]string{"one; two"}))
		})

		It("ignores empty stop words", func() {
			chunks := slices.Collect(Stream(slices.Values([]string{"a", "b"}), Options{Stop: []string{""}}))
			Expect(deltas(chunks)).To(Equal([]string{"a", "b"}))
		})

		It("prefers stop over length on the same token", func() {
			tokens := []string{"a", "b.", "c"}
			chunks := slices.Collect(Stream(slices.Values(tokens), Options{
				MaxTokens: intPtr(2),
				Stop:      []string{"."},
			}))

			Expect(deltas(chunks)).To(Equal([]string{"a", "b"}))
			Expect(*chunks[len(chunks)-1].FinishReason).To(Equal(llm.FinishStop))
		})

		It("keeps length when the stop word only appears after the budget", func() {
			tokens := []string{"a", "b", "c."}
			chunks := slices.Collect(Stream(slices.Values(tokens), Options{
				MaxTokens: intPtr(2),
				Stop:      []string{"."},
			}))

			Expect(deltas(chunks)).To(Equal([]string{"a", "b"}))
			Expect(*chunks[len(chunks)-1].FinishReason).To(Equal(llm.FinishLength))
		})
	})

	It("yields a held chunk before stopping when the consumer stops", func() {
		pulled := 0
		got := []string{}
		for c := range Stream(countingSeq([]string{"a E", "x", "y"}, &pulled), Options{Stop: []string{"END"}}) {
			got = append(got, *c.Delta)
			break
		}
		Expect(got).To(Equal([]string{"a "}))
		Expect(pulled).To(Equal(2))
	})

	It("stops pulling when the consumer stops", func() {
		pulled := 0
		for range Stream(countingSeq([]string{"a", "b", "c", "d"}, &pulled), Options{}) {
			break
		}
		Expect(pulled).To(Equal(1))
	})
})

var _ = Describe("Complete", func() {
	It("returns the concatenated tokens when nothing truncates", func() {
		tokens := []string{"The ", "quick ", "brown ", "fox"}
		rec := Complete(slices.Values(tokens), Options{})

		Expect(rec.Content).To(Equal("The quick brown fox"))
		Expect(rec.FinishReason).To(Equal(llm.FinishStop))
		Expect(rec.ID).To(HavePrefix("chatcmpl-"))
	})

	It("truncates the buffer at the stop word", func() {
		rec := Complete(slices.Values([]string{"foo EN", "D bar"}), Options{Stop: []string{"END"}})
		Expect(rec.Content).To(Equal("foo "))
		Expect(rec.FinishReason).To(Equal(llm.FinishStop))
	})

	It("reports length when the budget runs out", func() {
		pulled := 0
		rec := Complete(countingSeq([]string{"a", "b", "c"}, &pulled), Options{MaxTokens: intPtr(2)})
		Expect(rec.Content).To(Equal("ab"))
		Expect(rec.FinishReason).To(Equal(llm.FinishLength))
		Expect(pulled).To(Equal(2))
	})

	It("extracts fenced json when requested", func() {
		tokens := []string{"Here you go:\n```json\n", `{"a": 1}`, "\n```\nthanks"}
		rec := Complete(slices.Values(tokens), Options{
			ResponseFormat: &llm.ResponseFormat{Type: llm.ResponseFormatJSONObject},
		})
		Expect(rec.Content).To(Equal(`{"a": 1}`))
	})

	It("leaves content untouched for other formats", func() {
		text := "```json\n{}\n```"
		rec := Complete(slices.Values([]string{text}), Options{
			ResponseFormat: &llm.ResponseFormat{Type: "text"},
		})
		Expect(rec.Content).To(Equal(text))
	})
})

var _ = Describe("Normalize", func() {
	It("yields a single completion record when not streaming", func() {
		records := slices.Collect(Normalize(slices.Values([]string{"a", "b"}), Options{}))
		Expect(records).To(HaveLen(1))

		rec, ok := records[0].(llm.CompletionRecord)
		Expect(ok).To(BeTrue())
		Expect(rec.Content).To(Equal("ab"))
		Expect(*rec.Finish()).To(Equal(llm.FinishStop))
	})

	It("yields chunk records when streaming", func() {
		records := slices.Collect(Normalize(slices.Values([]string{"a", "b"}), Options{Stream: true}))
		Expect(records).To(HaveLen(3))
		for _, r := range records {
			_, ok := r.(llm.ChunkRecord)
			Expect(ok).To(BeTrue())
			Expect(r.RecordID()).To(Equal(records[0].RecordID()))
		}
	})
})

var _ = Describe("ExtractJSON", func() {
	It("extracts an untagged fence", func() {
		Expect(ExtractJSON("x\n```\n[1, 2]\n```")).To(Equal("[1, 2]"))
	})

	It("takes the first block", func() {
		Expect(ExtractJSON("```json\n1\n```\n```json\n2\n```")).To(Equal("1"))
	})

	It("spans multiple lines", func() {
		Expect(ExtractJSON("```json\n{\n  \"a\": 1\n}\n```")).To(Equal("{\n  \"a\": 1\n}"))
	})

	It("returns the text when no fence exists", func() {
		Expect(ExtractJSON(`{"raw": true}`)).To(Equal(`{"raw": true}`))
	})

	It("ignores fences tagged with another language", func() {
		Expect(ExtractJSON("```go\nfmt.Println()\n```")).To(Equal("```go\nfmt.Println()\n```"))
	})
})
