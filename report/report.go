// Package report renders the final differential statistics: the text
// layout spec.md §6 specifies, plus an OpenTelemetry span recording the
// same numbers as attributes for the domain-stack wiring (SPEC_FULL §4).
package report

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/shyammurthy12/icachesim/cache"
	"github.com/shyammurthy12/icachesim/driver"
	"github.com/shyammurthy12/icachesim/trace"
)

// CacheStats is one cache's hit/miss counters per access kind.
type CacheStats struct {
	LoadHits    uint64
	LoadMisses  uint64
	StoreHits   uint64
	StoreMisses uint64
}

func snapshotCache(c *cache.Cache) CacheStats {
	return CacheStats{
		LoadHits:    c.Hits(trace.Load),
		LoadMisses:  c.Misses(trace.Load),
		StoreHits:   c.Hits(trace.Store),
		StoreMisses: c.Misses(trace.Store),
	}
}

// FunctionStats is one callee's per-function row in the report, the
// function record's counters plus the supplemented working-set size
// (SPEC_FULL §7).
type FunctionStats struct {
	Callee           uint64
	Invocations      uint64
	Misses           uint64
	TotalMisses      uint64
	ClassifiedLow    bool
	WorkingSetBlocks int
}

// Stats is the complete snapshot a Reporter produces: both caches'
// counters, the driver's categorized counters, and the per-function table.
type Stats struct {
	ICache                CacheStats
	ITLB                  CacheStats
	Counters              driver.Counters
	Functions             []FunctionStats
	TotalFunctions        int
	TotalLowUseFunctions  int
}

// Reporter gathers a Stats snapshot from a live driver.Driver and the
// two caches it drives, and renders it in both report forms.
type Reporter struct {
	baseline *cache.Cache
	modified *cache.Cache
	drv      *driver.Driver
	tracer   oteltrace.Tracer
}

// New builds a Reporter. tracer may be the otel no-op tracer when
// config.Tracing.Enabled is false; EmitSpan is then a harmless no-op.
func New(baseline, modified *cache.Cache, drv *driver.Driver, tracer oteltrace.Tracer) *Reporter {
	return &Reporter{baseline: baseline, modified: modified, drv: drv, tracer: tracer}
}

// Snapshot gathers the current state of both caches, the driver's
// categorized counters, and the function table into one value.
func (r *Reporter) Snapshot() Stats {
	cl := r.drv.Classifier()
	records := cl.Records()

	functions := make([]FunctionStats, 0, len(records))
	lowUse := 0
	for callee, rec := range records {
		if rec.ClassifiedLow {
			lowUse++
		}
		functions = append(functions, FunctionStats{
			Callee:           callee,
			Invocations:      rec.Invocations,
			Misses:           rec.Misses,
			TotalMisses:      rec.TotalMisses,
			ClassifiedLow:    rec.ClassifiedLow,
			WorkingSetBlocks: len(rec.UniqueBlocks),
		})
	}
	sort.Slice(functions, func(i, j int) bool { return functions[i].Callee < functions[j].Callee })

	return Stats{
		ICache:               snapshotCache(r.baseline),
		ITLB:                 snapshotCache(r.modified),
		Counters:             r.drv.Counters(),
		Functions:            functions,
		TotalFunctions:       len(records),
		TotalLowUseFunctions: lowUse,
	}
}

// WriteText renders s in the section layout spec.md §6 specifies, with
// the SPEC_FULL §7 supplemented counters appended to the differential
// block and a working_set_blocks column added to the per-function rows.
func WriteText(w io.Writer, s Stats) error {
	if _, err := fmt.Fprintf(w, "ICACHE stats\nHits (load): %d\nMisses (load): %d\nHits (store): %d\nMisses (store): %d\n\n",
		s.ICache.LoadHits, s.ICache.LoadMisses, s.ICache.StoreHits, s.ICache.StoreMisses); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "ITLB stats\nHits (load): %d\nMisses (load): %d\nHits (store): %d\nMisses (store): %d\n\n",
		s.ITLB.LoadHits, s.ITLB.LoadMisses, s.ITLB.StoreHits, s.ITLB.StoreMisses); err != nil {
		return err
	}

	c := s.Counters
	if _, err := fmt.Fprintf(w,
		"Total misses: %d\n"+
			"Misses from low degree of use functions (modified cache): %d\n"+
			"Misses from low degree of use functions (normal cache): %d\n"+
			"Misses from medium degree of use functions (modified cache): %d\n"+
			"Misses from medium degree of use functions (normal cache): %d\n"+
			"Misses from high degree of use functions (modified cache): %d\n"+
			"Misses from high degree of use functions (normal cache): %d\n"+
			"Cache blocks replaced from high use functions by high use functions: %d\n"+
			"Cache blocks replaced from high use functions by low use (<=1) functions: %d\n"+
			"Cache blocks replaced from high use functions by low use (<=1) functions in cascade: %d\n"+
			"Cache blocks replaced from low use functions by low use functions: %d\n"+
			"Low use lines allocated into way 0: %d\n"+
			"Misses attributed to already-low-use functions: %d\n"+
			"Total number of low degree of use functions: %d\n"+
			"Total number of functions: %d\n\n",
		c.TotalMisses,
		c.LowUseMissesModified, c.LowUseMissesBaseline,
		c.MediumUseMissesModified, c.MediumUseMissesBaseline,
		c.HighUseMissesModified, c.HighUseMissesBaseline,
		c.DisplacedByHighUseFromHighUse,
		c.DisplacedByLowUseFromHighUse,
		c.DisplacedByLowUseFromHighUseCascade,
		c.LowUseDisplacingLowUse,
		c.LowUseAllocatedWayZero,
		c.MissesOnLowUseFunctions,
		s.TotalLowUseFunctions,
		s.TotalFunctions,
	); err != nil {
		return err
	}

	for _, fn := range s.Functions {
		if _, err := fmt.Fprintf(w, "%#x: miss_count: %d total_miss_count: %d invocation_count: %d working_set_blocks: %d\n",
			fn.Callee, fn.Misses, fn.TotalMisses, fn.Invocations, fn.WorkingSetBlocks); err != nil {
			return err
		}
	}
	return nil
}

// EmitSpan opens a child span recording s's headline counters as
// attributes (SPEC_FULL §4's domain-stack addition — one span per
// report, never per-fetch).
func (r *Reporter) EmitSpan(ctx context.Context, s Stats) {
	_, span := r.tracer.Start(ctx, "icachesim.report")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("icache.hits", int64(s.ICache.LoadHits)),
		attribute.Int64("icache.misses", int64(s.ICache.LoadMisses)),
		attribute.Int64("itlb.hits", int64(s.ITLB.LoadHits)),
		attribute.Int64("itlb.misses", int64(s.ITLB.LoadMisses)),
		attribute.Int64("total_misses", int64(s.Counters.TotalMisses)),
		attribute.Int64("total_functions", int64(s.TotalFunctions)),
		attribute.Int64("total_low_use_functions", int64(s.TotalLowUseFunctions)),
	)
}
