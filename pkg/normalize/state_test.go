package normalize

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/localcompute/g4l/pkg/llm"
)

var _ = Describe("machine", func() {
	It("finishes with stop when the source is exhausted", func() {
		m := newMachine()
		m.fire(evEmit)
		Expect(m.state).To(Equal(stateRunning))
		m.fire(evExhausted)
		Expect(m.done()).To(BeTrue())
		Expect(m.reason).To(Equal(llm.FinishStop))
	})

	It("lets stop overwrite length", func() {
		m := newMachine()
		m.fire(evLength)
		m.fire(evStop)
		Expect(m.state).To(Equal(stateStopHit))
		Expect(m.reason).To(Equal(llm.FinishStop))
	})

	It("never lets length overwrite stop", func() {
		m := newMachine()
		m.fire(evStop)
		m.fire(evLength)
		Expect(m.state).To(Equal(stateStopHit))
		Expect(m.reason).To(Equal(llm.FinishStop))
	})

	It("is done after emitting a token that hit a limit", func() {
		m := newMachine()
		m.fire(evLength)
		Expect(m.done()).To(BeFalse())
		m.fire(evEmit)
		Expect(m.done()).To(BeTrue())
		Expect(m.reason).To(Equal(llm.FinishLength))
	})

	It("ignores events once done", func() {
		m := newMachine()
		m.fire(evLength)
		m.fire(evEmit)
		m.fire(evStop)
		Expect(m.state).To(Equal(stateDone))
		Expect(m.reason).To(Equal(llm.FinishLength))
	})
})
