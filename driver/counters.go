package driver

// Counters are the fetch driver's categorized, run-long tallies: the
// differential breakdown spec.md §6 renders into the report, plus the
// supplemented counters pulled from original_source/icache.cpp (see
// SPEC_FULL.md §7, "Supplemented features").
type Counters struct {
	TotalMisses uint64

	LowUseMissesModified  uint64
	LowUseMissesBaseline  uint64
	HighUseMissesModified uint64
	HighUseMissesBaseline uint64

	// MediumUseMisses{Modified,Baseline} parallel the low/high pairs
	// above; not in spec.md's literal report block but present in the
	// source's counters and additive to the existing triad (SPEC_FULL §7).
	MediumUseMissesModified uint64
	MediumUseMissesBaseline uint64

	// Eviction attribution: which use-category did the evicting, against
	// a high-use occupant.
	DisplacedByHighUseFromHighUse       uint64
	DisplacedByLowUseFromHighUse        uint64
	DisplacedByLowUseFromHighUseCascade uint64

	// LowUseDisplacingLowUse rounds out the attribution triad with the
	// low/low case (SPEC_FULL §7); not tracked by spec.md's literal
	// report block.
	LowUseDisplacingLowUse uint64

	// LowUseAllocatedWayZero counts low-use insertions into the modified
	// cache that land in way 0 specifically (SPEC_FULL §7).
	LowUseAllocatedWayZero uint64

	// MissesOnLowUseFunctions counts misses attributed to a function
	// already classified_low, independent of which line was evicted
	// (SPEC_FULL §7).
	MissesOnLowUseFunctions uint64
}
