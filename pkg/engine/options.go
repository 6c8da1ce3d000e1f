package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/localcompute/g4l/pkg/events"
)

// Option configures an Engine.
type Option func(*config)

type config struct {
	gpuLayers        int
	cores            *int
	useMMap          bool
	useMLock         bool
	offloadKQV       bool
	contextWindow    int
	temperature      *float64
	augmenter        Augmenter
	requireRetrieval bool
	publisher        events.Publisher
	logger           *zap.Logger
	clock            func() time.Time
}

func defaultConfig() config {
	return config{
		gpuLayers:     0,
		useMMap:       true,
		useMLock:      false,
		offloadKQV:    true,
		contextWindow: 4900,
		clock:         time.Now,
	}
}

// WithGPULayers sets how many model layers are offloaded to the GPU.
func WithGPULayers(n int) Option {
	return func(c *config) {
		c.gpuLayers = n
	}
}

// WithCores sets the number of CPU threads used for generation. Unset
// leaves the choice to the backend.
func WithCores(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.cores = &n
		}
	}
}

func WithUseMMap(v bool) Option {
	return func(c *config) {
		c.useMMap = v
	}
}

func WithUseMLock(v bool) Option {
	return func(c *config) {
		c.useMLock = v
	}
}

func WithOffloadKQV(v bool) Option {
	return func(c *config) {
		c.offloadKQV = v
	}
}

// WithContextWindow sets n_ctx.
func WithContextWindow(n int) Option {
	return func(c *config) {
		c.contextWindow = n
	}
}

// WithTemperature sets the sampling temperature used when a request does
// not carry one.
func WithTemperature(t float64) Option {
	return func(c *config) {
		c.temperature = &t
	}
}

// WithRetriever attaches a document index. The last user message of every
// request is replaced by the augmented prompt.
func WithRetriever(a Augmenter) Option {
	return func(c *config) {
		c.augmenter = a
	}
}

// WithRequireRetrieval makes a retrieval failure abort the call instead of
// proceeding without augmentation.
func WithRequireRetrieval(v bool) Option {
	return func(c *config) {
		c.requireRetrieval = v
	}
}

// WithPublisher sets where completion events are sent.
func WithPublisher(p events.Publisher) Option {
	return func(c *config) {
		c.publisher = p
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithClock overrides time.Now for record timestamps and timings.
func WithClock(clock func() time.Time) Option {
	return func(c *config) {
		c.clock = clock
	}
}
