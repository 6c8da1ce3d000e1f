package bench_test

import (
	"bytes"
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/localcompute/g4l/pkg/bench"
	"github.com/localcompute/g4l/pkg/engine"
	"github.com/localcompute/g4l/pkg/llm"
	testutils "github.com/localcompute/g4l/pkg/utils/test"
)

var _ = Describe("Run", func() {
	It("averages token counts over iterations", func() {
		be := testutils.NewMockBackend("hey", " there", "!")
		res, err := bench.Run(context.Background(), engine.New(be), "mistral-7b-instruct", "hey how are you today", 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Iterations).To(Equal(3))
		Expect(res.Tokens).To(Equal(3.0))
		Expect(res.LoadingTime).To(BeNumerically(">=", 0))
		Expect(be.Calls()).To(Equal(3))
		Expect(be.LastMessages()).To(Equal([]llm.ChatMessage{llm.NewTextMessage(llm.RoleUser, "hey how are you today")}))
	})

	It("rejects a non-positive iteration count", func() {
		_, err := bench.Run(context.Background(), engine.New(testutils.NewMockBackend()), "m", "hi", 0)
		Expect(err).To(HaveOccurred())
	})

	It("fails when the model is missing", func() {
		be := testutils.NewMockBackend("a")
		be.Models = []string{"other"}
		_, err := bench.Run(context.Background(), engine.New(be), "m", "hi", 1)
		Expect(errors.Is(err, llm.ErrModelNotFound)).To(BeTrue())
	})
})

var _ = Describe("Result", func() {
	It("prints the key/value layout", func() {
		r := bench.Result{
			Model:       "mistral-7b-instruct",
			Iterations:  5,
			LoadingTime: 1500 * time.Millisecond,
			Tokens:      40,
			Time:        4 * time.Second,
		}
		Expect(r.Speed()).To(Equal(10.0))

		var buf bytes.Buffer
		Expect(r.Write(&buf)).To(Succeed())
		Expect(buf.String()).To(Equal(
			"Model                = mistral-7b-instruct\n" +
				"Number of iterations = 5\n" +
				"Average loading time = 1.50s\n" +
				"Average total tokens = 40.00\n" +
				"Average total time   = 4.00s\n" +
				"Average speed        = 10.00 t/s\n"))
	})

	It("reports zero speed for an empty run", func() {
		Expect(bench.Result{}.Speed()).To(BeZero())
	})
})
