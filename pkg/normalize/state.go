package normalize

import "github.com/localcompute/g4l/pkg/llm"

// state is the position of a call in the truncation state machine.
type state int

const (
	stateRunning state = iota
	stateLengthHit
	stateStopHit
	stateDone
)

func (s state) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateLengthHit:
		return "length_hit"
	case stateStopHit:
		return "stop_hit"
	case stateDone:
		return "done"
	}
	return "unknown"
}

// event is something observed while handling one token.
type event int

const (
	// evLength fires when the token budget is exhausted on the current token.
	evLength event = iota

	// evStop fires when a stop word matched in the accumulated buffer.
	evStop

	// evEmit fires once the current token has been handed to the consumer.
	evEmit

	// evExhausted fires when the source ran out of tokens.
	evExhausted
)

// transitions is the complete table. A pair missing from it leaves the
// state unchanged. evStop out-ranks evLength because StopHit never leaves
// for LengthHit.
var transitions = map[state]map[event]state{
	stateRunning: {
		evLength:    stateLengthHit,
		evStop:      stateStopHit,
		evExhausted: stateDone,
	},
	stateLengthHit: {
		evStop:      stateStopHit,
		evEmit:      stateDone,
		evExhausted: stateDone,
	},
	stateStopHit: {
		evEmit:      stateDone,
		evExhausted: stateDone,
	},
}

// machine tracks state plus the finish reason the last hit state implied.
type machine struct {
	state  state
	reason llm.FinishReason
}

func newMachine() *machine {
	return &machine{state: stateRunning, reason: llm.FinishStop}
}

func (m *machine) fire(ev event) {
	next, ok := transitions[m.state][ev]
	if !ok {
		return
	}

	switch next {
	case stateLengthHit:
		m.reason = llm.FinishLength
	case stateStopHit:
		m.reason = llm.FinishStop
	}
	m.state = next
}

func (m *machine) done() bool {
	return m.state == stateDone
}
