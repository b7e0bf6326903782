// Package driver consumes one fetch event at a time, reconstructs the
// guest program's call stack from control-flow hints, dispatches each
// fetch to both the baseline and the use-aware cache, and attributes
// the outcome to the current function's record.
package driver

import (
	"github.com/rs/zerolog"

	"github.com/shyammurthy12/icachesim/cache"
	"github.com/shyammurthy12/icachesim/classify"
	"github.com/shyammurthy12/icachesim/trace"
)

// Driver bundles everything spec.md §4.6 lists as the fetch driver's
// state: the logical clock, both cache hierarchies, the shared victim
// buffer, the classifier, the shadow call stack, and the categorized
// counters. It is a single value, not process-wide globals, so a
// program can run multiple independent simulations (see sim.Simulator).
type Driver struct {
	baseline   *cache.Cache
	modified   *cache.Cache
	victim     *cache.VictimBuffer
	classifier *classify.Classifier

	threadID            uint32
	invocationThreshold uint64
	modifiedLineBytes   uint32

	clock         uint64
	stack         callStack
	currentCallee uint64
	prevWasCall   bool
	prevWasReturn bool

	// cascadeTracked holds block addresses evicted from a high-use slot
	// by a low-use insertion, until either they are re-evicted (the
	// cascade case) or the run ends. See spec.md §8 scenario 4 and
	// original_source/icache.cpp's list_of_evicted_high_use_blocks.
	cascadeTracked map[uint64]struct{}

	counters Counters
	log      zerolog.Logger
}

// New builds a Driver over already-constructed caches and a shared
// victim buffer (nil when config.Victim.Enabled is false — the driver
// itself never constructs these, it only orchestrates them).
func New(baseline, modified *cache.Cache, victim *cache.VictimBuffer, classifier *classify.Classifier, threadID uint32, invocationThreshold uint64, modifiedLineBytes uint32, log zerolog.Logger) *Driver {
	return &Driver{
		baseline:            baseline,
		modified:            modified,
		victim:              victim,
		classifier:          classifier,
		threadID:            threadID,
		invocationThreshold: invocationThreshold,
		modifiedLineBytes:   modifiedLineBytes,
		cascadeTracked:      make(map[uint64]struct{}),
		log:                 log,
	}
}

// Clock reports the driver's current logical clock value.
func (d *Driver) Clock() uint64 { return d.clock }

// Counters exposes the categorized counters for the reporter.
func (d *Driver) Counters() Counters { return d.counters }

// Classifier exposes the function-record table for the reporter.
func (d *Driver) Classifier() *classify.Classifier { return d.classifier }

// Process implements the eight numbered steps of spec.md §4.6. Events
// for any thread other than the configured one are discarded before
// touching any state, per spec.md §5. The returned bool reports whether
// the event was attributed to this thread and processed — sim.Simulator
// uses it to drive the §4.7 instruction counter, which only advances on
// events the driver actually processes.
func (d *Driver) Process(ev trace.FetchEvent) (bool, error) {
	if ev.ThreadID != d.threadID {
		return false, nil
	}

	d.clock++
	now := d.clock

	// Steps 1-2: apply the previous event's call/return flag, updating
	// the current callee before any of this fetch's attribution happens.
	switch {
	case d.prevWasCall:
		d.stack.push(d.currentCallee)
		d.currentCallee = ev.Addr
	case d.prevWasReturn:
		if callee, ok := d.stack.pop(); ok {
			d.currentCallee = callee
		}
	}
	callee := d.currentCallee

	// Step 3: record the fetched block in the current callee's working set.
	blockAddr := ev.Addr &^ uint64(d.modifiedLineBytes-1)
	d.classifier.TouchBlock(callee, blockAddr)

	// Step 4: classify this fetch.
	degreeHigh, degreeMedium := d.classifier.Classify(callee)

	// Step 5: dispatch to both caches. Baseline always receives
	// degree_high=true and ignores it; the modified cache gets the
	// classifier's output.
	baselineHit := d.baseline.Access(ev.Addr, ev.Size, trace.Load, now)
	modResult := d.modified.AccessWithUse(ev.Addr, ev.Size, trace.Load, degreeHigh, degreeMedium, now)

	// Step 6: update the function record's invocation/miss counters.
	firstLineOfCall := d.prevWasCall
	d.classifier.Observe(callee, !modResult.OverallHit, firstLineOfCall)

	// Step 7: categorized counters.
	d.updateCounters(callee, blockAddr, degreeHigh, degreeMedium, baselineHit, modResult)

	// Step 8: clear and re-set the control-flow flags for the next fetch.
	d.prevWasCall = ev.ControlFlow.IsCall()
	d.prevWasReturn = ev.ControlFlow == trace.Return

	return true, nil
}

func (d *Driver) updateCounters(callee, blockAddr uint64, degreeHigh, degreeMedium, baselineHit bool, mod cache.AccessResult) {
	modMiss := !mod.OverallHit
	rec := d.classifier.Record(callee)

	if modMiss {
		d.counters.TotalMisses++
		if rec.ClassifiedLow {
			d.counters.MissesOnLowUseFunctions++
		}
		switch {
		case degreeMedium:
			d.counters.MediumUseMissesModified++
		case !degreeHigh:
			d.counters.LowUseMissesModified++
		default:
			if rec.Invocations >= d.invocationThreshold {
				d.counters.HighUseMissesModified++
			}
		}
	}

	if !baselineHit {
		switch {
		case degreeMedium:
			d.counters.MediumUseMissesBaseline++
		case !degreeHigh:
			d.counters.LowUseMissesBaseline++
		default:
			if rec.Invocations >= d.invocationThreshold {
				d.counters.HighUseMissesBaseline++
			}
		}
	}

	if !modMiss {
		return
	}

	// Cascade: this access's own evictions (regardless of the evicted
	// occupant's use-category now) may re-evict a block this driver is
	// still tracking from an earlier high-use displacement. Checked before
	// this access's own displacements are tracked, so a block only counts
	// as a cascade when a later access evicts it again.
	for _, addr := range mod.EvictedBlockAddrs {
		if _, tracked := d.cascadeTracked[addr]; tracked {
			d.counters.DisplacedByLowUseFromHighUseCascade++
			delete(d.cascadeTracked, addr)
		}
	}

	// Eviction attribution, modified cache only (spec.md §6 report block
	// + SPEC_FULL §7's low/low addition).
	switch {
	case mod.AnyEvictedWasHighUse && degreeHigh:
		d.counters.DisplacedByHighUseFromHighUse += uint64(len(mod.EvictedHighUseBlockAddrs))
	case mod.AnyEvictedWasHighUse:
		d.counters.DisplacedByLowUseFromHighUse += uint64(len(mod.EvictedHighUseBlockAddrs))
		for _, addr := range mod.EvictedHighUseBlockAddrs {
			d.cascadeTracked[addr] = struct{}{}
		}
	case !degreeHigh:
		d.counters.LowUseDisplacingLowUse++
	}

	if !degreeHigh && mod.ChosenWay == 0 {
		d.counters.LowUseAllocatedWayZero++
	}
}
