// Package sim bundles the address decomposer, cache sets, victim
// buffer, classifier, and fetch driver into the single Simulator value
// design notes call for: init -> process_fetch* -> report -> drop,
// replacing the teacher's (and the source's) process-wide globals so
// that a program can run more than one simulation at a time.
package sim

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/shyammurthy12/icachesim/cache"
	"github.com/shyammurthy12/icachesim/classify"
	"github.com/shyammurthy12/icachesim/config"
	"github.com/shyammurthy12/icachesim/driver"
	"github.com/shyammurthy12/icachesim/report"
	"github.com/shyammurthy12/icachesim/trace"
)

// Simulator is one complete run: a baseline LRU cache, a use-aware
// modified cache sharing a victim buffer, the classifier and fetch
// driver that drive both, and the reporter that renders the result.
type Simulator struct {
	cfg config.Config

	baseline *cache.Cache
	modified *cache.Cache
	drv      *driver.Driver
	reporter *report.Reporter

	tracerProvider *sdktrace.TracerProvider
	rootCtx        context.Context
	rootSpan       oteltrace.Span

	instructionCount uint64
	frozen           bool
	frozenStats      report.Stats

	log zerolog.Logger
}

// New validates cfg, builds both cache hierarchies and the classifier,
// and installs the OpenTelemetry tracer provider (a no-op sampler when
// config.Tracing.Enabled is false).
func New(cfg config.Config, log zerolog.Logger) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "sim: invalid configuration")
	}

	tp, err := newTracerProvider(cfg.Tracing)
	if err != nil {
		return nil, errors.Wrap(err, "sim: tracer provider")
	}
	otel.SetTracerProvider(tp)
	tracer := tp.Tracer("icachesim")

	baselineSets := make([]cache.Set, cfg.ICache.NumSets())
	for i := range baselineSets {
		baselineSets[i] = cache.NewLRUSet(cfg.ICache.Associativity)
	}
	baseline, err := cache.NewCache(baselineSets, cfg.ICache.LineBytes, true)
	if err != nil {
		return nil, errors.Wrap(err, "sim: icache geometry")
	}

	var victim *cache.VictimBuffer
	if cfg.Victim.Enabled {
		victim = cache.NewVictimBuffer(cfg.Victim.Entries)
	}
	modifiedSets := make([]cache.Set, cfg.ITLB.NumSets())
	for i := range modifiedSets {
		modifiedSets[i] = cache.NewUseAwareSet(cfg.ITLB.Associativity, victim)
	}
	modified, err := cache.NewCache(modifiedSets, cfg.ITLB.LineBytes, true)
	if err != nil {
		return nil, errors.Wrap(err, "sim: itlb geometry")
	}

	classifier := classify.New(cfg.Thresholds.DegreeHigh, cfg.Thresholds.DegreeMedium, cfg.Thresholds.MissThreshold)
	drv := driver.New(baseline, modified, victim, classifier, cfg.ThreadID, cfg.Thresholds.InvocationThreshold, cfg.ITLB.LineBytes, log)
	reporter := report.New(baseline, modified, drv, tracer)

	rootCtx, rootSpan := tracer.Start(context.Background(), "icachesim.run")

	log.Info().
		Uint32("icache_size_kb", cfg.ICache.SizeKB).
		Uint32("itlb_size_kb", cfg.ITLB.SizeKB).
		Uint64("instruction_threshold", cfg.InstructionThreshold).
		Uint32("thread_id", cfg.ThreadID).
		Msg("simulator configured")

	return &Simulator{
		cfg:            cfg,
		baseline:       baseline,
		modified:       modified,
		drv:            drv,
		reporter:       reporter,
		tracerProvider: tp,
		rootCtx:        rootCtx,
		rootSpan:       rootSpan,
		log:            log,
	}, nil
}

// newTracerProvider builds the span exporter pipeline. Tracing exists
// to make one run's lifecycle inspectable, not to trace every fetch, so
// it is cheap to leave disabled: a never-sample provider with no exporter.
func newTracerProvider(t config.Tracing) (*sdktrace.TracerProvider, error) {
	if !t.Enabled {
		return sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample())), nil
	}
	exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(t.JaegerEndpoint)))
	if err != nil {
		return nil, errors.Wrap(err, "jaeger exporter")
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}

// Process advances the simulation by one fetch event. Per spec.md §4.7,
// the instruction counter only advances for events the driver actually
// attributes to the configured thread; once it reaches
// InstructionThreshold the current snapshot freezes and later events are
// still processed (matching the source's behavior of not halting
// instrumentation) but can no longer perturb the reported output.
func (s *Simulator) Process(ev trace.FetchEvent) error {
	processed, err := s.drv.Process(ev)
	if err != nil {
		return err
	}
	if !processed {
		return nil
	}

	s.instructionCount++
	if !s.frozen && s.instructionCount >= s.cfg.InstructionThreshold {
		s.frozen = true
		s.frozenStats = s.reporter.Snapshot()
		s.log.Info().Uint64("instruction_count", s.instructionCount).Msg("instruction threshold reached")
	}
	return nil
}

// Report writes the final text report to w: the frozen snapshot if the
// threshold has already been crossed, otherwise a fresh one.
func (s *Simulator) Report(w io.Writer) error {
	stats := s.frozenStats
	if !s.frozen {
		stats = s.reporter.Snapshot()
	}
	s.reporter.EmitSpan(s.rootCtx, stats)
	return report.WriteText(w, stats)
}

// Close ends the run span and flushes/shuts down the tracer provider.
// Safe to call even when tracing is disabled (the no-op provider still
// implements Shutdown cleanly).
func (s *Simulator) Close(ctx context.Context) error {
	s.rootSpan.End()
	return s.tracerProvider.Shutdown(ctx)
}
