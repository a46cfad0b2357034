package graphsearch

import (
	"cmp"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/randalmurphal/graphsearch/pkg/graphsearch/config"
	"github.com/randalmurphal/graphsearch/pkg/graphsearch/event"
	"github.com/randalmurphal/graphsearch/pkg/graphsearch/observability"
)

// Options are the tunables of a search run. They can be loaded from a
// config file with LoadOptions.
//
// The driver reads RNGSeed, PerNodeTimeout, Timeout, Parallelism,
// CancellationSlack and MaxExpansions. SampleCount, PathCaching,
// MaxAttemptsMultiplier and MaxCompletionDepth configure a
// RandomCompletionEvaluator and only take effect when its config is
// built with CompletionFromOptions.
type Options struct {
	// SampleCount is the number of completions sampled per node.
	SampleCount int `yaml:"sample_count" json:"sample_count" validate:"gte=1"`

	// RNGSeed seeds every randomized evaluator of the run.
	RNGSeed uint64 `yaml:"rng_seed" json:"rng_seed"`

	// PathCaching enables the prefix completion cache.
	PathCaching bool `yaml:"path_caching" json:"path_caching"`

	// PerNodeTimeout bounds each node evaluation. Zero disables it.
	PerNodeTimeout time.Duration `yaml:"per_node_timeout" json:"per_node_timeout" validate:"gte=0"`

	// MaxAttemptsMultiplier caps completion attempts per node at
	// SampleCount*MaxAttemptsMultiplier.
	MaxAttemptsMultiplier int `yaml:"max_attempts_multiplier" json:"max_attempts_multiplier" validate:"gte=1"`

	// Timeout bounds the whole run. Zero disables it.
	Timeout time.Duration `yaml:"timeout" json:"timeout" validate:"gte=0"`

	// Parallelism is the number of successors labeled concurrently.
	Parallelism int `yaml:"parallelism" json:"parallelism" validate:"gte=1,lte=1024"`

	// CancellationSlack is how long a cancelled call may take to return
	// before it is abandoned.
	CancellationSlack time.Duration `yaml:"cancellation_slack" json:"cancellation_slack" validate:"gte=0"`

	// MaxCompletionDepth bounds the steps a random completion may add.
	// Zero means unbounded.
	MaxCompletionDepth int `yaml:"max_completion_depth" json:"max_completion_depth" validate:"gte=0"`

	// MaxExpansions ends the run after that many expansions. Zero means
	// unbounded.
	MaxExpansions int `yaml:"max_expansions" json:"max_expansions" validate:"gte=0"`
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		SampleCount:           DefaultSampleCount,
		PathCaching:           true,
		MaxAttemptsMultiplier: DefaultMaxAttemptsMultiplier,
		Parallelism:           1,
		CancellationSlack:     50 * time.Millisecond,
	}
}

var validate = validator.New()

// Validate checks the options against their constraints.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("invalid search options: %w", err)
	}
	return nil
}

// CompletionFromOptions returns a CompletionConfig carrying the sampling
// options.
func CompletionFromOptions[S any, V cmp.Ordered](o Options) CompletionConfig[S, V] {
	return CompletionConfig[S, V]{
		SampleCount:           o.SampleCount,
		MaxAttemptsMultiplier: o.MaxAttemptsMultiplier,
		PathCaching:           o.PathCaching,
		MaxCompletionDepth:    o.MaxCompletionDepth,
	}
}

// OptionsFromConfig reads options from cfg, starting from DefaultOptions.
// Keys are looked up under "search" when that section exists, otherwise
// at the top level. Durations accept Go duration strings or seconds.
func OptionsFromConfig(cfg config.Config) (Options, error) {
	if cfg.Has("search") {
		cfg = cfg.Sub("search")
	}
	d := DefaultOptions()
	o := Options{
		SampleCount:           cfg.Int("sample_count", d.SampleCount),
		RNGSeed:               cfg.Uint64("rng_seed", d.RNGSeed),
		PathCaching:           cfg.Bool("path_caching", d.PathCaching),
		PerNodeTimeout:        cfg.Duration("per_node_timeout", d.PerNodeTimeout),
		MaxAttemptsMultiplier: cfg.Int("max_attempts_multiplier", d.MaxAttemptsMultiplier),
		Timeout:               cfg.Duration("timeout", d.Timeout),
		Parallelism:           cfg.Int("parallelism", d.Parallelism),
		CancellationSlack:     cfg.Duration("cancellation_slack", d.CancellationSlack),
		MaxCompletionDepth:    cfg.Int("max_completion_depth", d.MaxCompletionDepth),
		MaxExpansions:         cfg.Int("max_expansions", d.MaxExpansions),
	}
	if err := o.Validate(); err != nil {
		return Options{}, err
	}
	return o, nil
}

// LoadOptions reads options from a YAML or JSON file. ${NAME} references
// in string values are resolved from the environment; an undefined
// variable is an error.
func LoadOptions(path string) (Options, error) {
	cfg, err := config.FromFile(path)
	if err != nil {
		return Options{}, err
	}
	if cfg, err = cfg.Expand(config.Env, config.MissingError); err != nil {
		return Options{}, fmt.Errorf("expand %s: %w", path, err)
	}
	return OptionsFromConfig(cfg)
}

// Option configures a Search.
type Option func(*settings)

type settings struct {
	opts    Options
	logger  *slog.Logger
	bus     event.Bus
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
	runID   string
	keyFn   any
}

func defaultSettings() settings {
	return settings{
		opts:    DefaultOptions(),
		logger:  slog.Default(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
	}
}

// WithOptions replaces the run options.
func WithOptions(o Options) Option {
	return func(s *settings) {
		s.opts = o
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBus sets the bus events are published to. Default: a private
// synchronous bus, available through Search.Bus.
func WithBus(bus event.Bus) Option {
	return func(s *settings) {
		s.bus = bus
	}
}

// WithMetrics enables OpenTelemetry metrics through the global meter
// provider. Default: disabled.
func WithMetrics(enabled bool) Option {
	return func(s *settings) {
		if enabled {
			s.metrics = observability.NewMetricsRecorder()
		} else {
			s.metrics = observability.NoopMetrics{}
		}
	}
}

// WithMetricsRecorder sets a custom metrics recorder.
func WithMetricsRecorder(m observability.MetricsRecorder) Option {
	return func(s *settings) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracing enables OpenTelemetry spans for the run, each expansion
// and each evaluation. Default: disabled.
func WithTracing(enabled bool) Option {
	return func(s *settings) {
		if enabled {
			s.spans = observability.NewSpanManager()
		} else {
			s.spans = observability.NoopSpanManager{}
		}
	}
}

// WithRunID sets the run identifier. Default: a random UUID.
func WithRunID(id string) Option {
	return func(s *settings) {
		s.runID = id
	}
}

// WithSeed overrides Options.RNGSeed.
func WithSeed(seed uint64) Option {
	return func(s *settings) {
		s.opts.RNGSeed = seed
	}
}

// WithTimeout overrides Options.Timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.opts.Timeout = d
	}
}

// WithParallelism overrides Options.Parallelism.
func WithParallelism(n int) Option {
	return func(s *settings) {
		s.opts.Parallelism = n
	}
}

// WithMaxExpansions overrides Options.MaxExpansions.
func WithMaxExpansions(n int) Option {
	return func(s *settings) {
		s.opts.MaxExpansions = n
	}
}

// WithCancellationSlack overrides Options.CancellationSlack.
func WithCancellationSlack(d time.Duration) Option {
	return func(s *settings) {
		s.opts.CancellationSlack = d
	}
}

// WithStateKey sets the state identity function. It must match the
// search's state type, otherwise New returns ErrStateKeyType.
func WithStateKey[S any](fn StateKeyFunc[S]) Option {
	return func(s *settings) {
		s.keyFn = fn
	}
}
