// Package normalize turns a raw token stream from an inference backend into
// uniform completion records, applying stop-word and max-token truncation
// the same way for streaming and non-streaming calls.
package normalize

import (
	"iter"
	"strings"
	"time"

	"github.com/localcompute/g4l/pkg/llm"
)

// Options controls a single normalization call.
type Options struct {
	// Stream selects chunk records instead of a single completion record.
	Stream bool

	// ResponseFormat, when it asks for "json_object", reduces non-streaming
	// content to its first fenced code block.
	ResponseFormat *llm.ResponseFormat

	// MaxTokens is the token budget. Nil means unlimited.
	MaxTokens *int

	// Stop words, checked in order. Empty strings are ignored.
	Stop []string

	// Model is copied onto every record.
	Model string

	// Clock returns the emission time. Defaults to time.Now.
	Clock func() time.Time
}

func (o Options) now() int64 {
	if o.Clock != nil {
		return o.Clock().Unix()
	}
	return time.Now().Unix()
}

// Normalize wraps tokens in the record shape selected by opts.Stream:
// a ChunkRecord per token followed by a terminal chunk, or exactly one
// CompletionRecord. Tokens are pulled lazily, and pulling stops as soon as
// a finish condition is reached.
func Normalize(tokens iter.Seq[string], opts Options) iter.Seq[llm.Record] {
	return func(yield func(llm.Record) bool) {
		if !opts.Stream {
			yield(Complete(tokens, opts))
			return
		}
		for chunk := range Stream(tokens, opts) {
			if !yield(chunk) {
				return
			}
		}
	}
}

// Stream yields one chunk per consumed token and then a terminal chunk with
// a nil delta and the resolved finish reason.
//
// Text that could be the start of a stop word is held back until the next
// token settles it, so the joined deltas always equal the content Complete
// returns for the same tokens. A chunk whose delta still holds text back is
// yielded only once the next token arrives or the source ends.
func Stream(tokens iter.Seq[string], opts Options) iter.Seq[llm.ChunkRecord] {
	return func(yield func(llm.ChunkRecord) bool) {
		t := newTruncator(opts, true)
		id := llm.NewCompletionID()

		emit := func(delta string) bool {
			return yield(llm.ChunkRecord{
				ID:      id,
				Model:   opts.Model,
				Created: opts.now(),
				Delta:   &delta,
			})
		}

		var pending *string
		for tok := range tokens {
			if pending != nil {
				if !emit(*pending) {
					return
				}
				pending = nil
			}

			delta := t.feed(tok)
			if t.m.done() {
				if !emit(delta) {
					return
				}
				break
			}
			if t.held() > 0 {
				pending = &delta
				continue
			}
			if !emit(delta) {
				return
			}
		}

		if pending != nil {
			if !emit(*pending + t.flush()) {
				return
			}
		}

		t.m.fire(evExhausted)
		reason := t.m.reason
		yield(llm.ChunkRecord{
			ID:           id,
			Model:        opts.Model,
			Created:      opts.now(),
			FinishReason: &reason,
		})
	}
}

// Complete drains tokens until exhaustion or a finish condition and returns
// the aggregated completion.
func Complete(tokens iter.Seq[string], opts Options) llm.CompletionRecord {
	t := newTruncator(opts, false)
	id := llm.NewCompletionID()

	for tok := range tokens {
		t.feed(tok)
		if t.m.done() {
			break
		}
	}
	t.m.fire(evExhausted)

	content := t.buf
	if opts.ResponseFormat.IsJSON() {
		content = ExtractJSON(content)
	}

	return llm.CompletionRecord{
		ID:           id,
		Model:        opts.Model,
		Created:      opts.now(),
		Content:      content,
		FinishReason: t.m.reason,
	}
}

// truncator holds the call-local accumulation buffer. In streaming mode
// emitted counts the bytes of buf already handed out as deltas.
type truncator struct {
	m         *machine
	buf       string
	emitted   int
	idx       int
	maxTokens *int
	stop      []string
	stream    bool
}

func newTruncator(opts Options, stream bool) *truncator {
	stop := make([]string, 0, len(opts.Stop))
	for _, w := range opts.Stop {
		if w != "" {
			stop = append(stop, w)
		}
	}
	return &truncator{
		m:         newMachine(),
		maxTokens: opts.MaxTokens,
		stop:      stop,
		stream:    stream,
	}
}

// feed appends tok to the buffer, runs the length and stop checks in that
// order, and returns the delta to emit for tok.
func (t *truncator) feed(tok string) string {
	t.buf += tok
	idx := t.idx
	t.idx++

	if t.maxTokens != nil && idx+1 >= *t.maxTokens {
		t.m.fire(evLength)
	}

	for _, w := range t.stop {
		p := strings.Index(t.buf, w)
		if p < 0 {
			continue
		}
		t.buf = t.buf[:p]
		t.m.fire(evStop)
		break
	}

	var delta string
	if t.stream {
		if t.m.state == stateRunning {
			delta = t.advance(len(t.buf) - t.partialStop())
		} else {
			delta = t.flush()
		}
	}

	t.m.fire(evEmit)
	return delta
}

// advance hands out buf up to end and returns the newly emitted text.
func (t *truncator) advance(end int) string {
	end = min(max(end, t.emitted), len(t.buf))
	if t.emitted > end {
		return ""
	}
	delta := t.buf[t.emitted:end]
	t.emitted = end
	return delta
}

// flush hands out everything not yet emitted.
func (t *truncator) flush() string {
	return t.advance(len(t.buf))
}

// held is the length of buffered text not yet emitted.
func (t *truncator) held() int {
	return max(len(t.buf)-t.emitted, 0)
}

// partialStop returns the length of the longest suffix of buf that is a
// proper prefix of some stop word.
func (t *truncator) partialStop() int {
	longest := 0
	for _, w := range t.stop {
		for k := min(len(w)-1, len(t.buf)); k > longest; k-- {
			if strings.HasSuffix(t.buf, w[:k]) {
				longest = k
				break
			}
		}
	}
	return longest
}
