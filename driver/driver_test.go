package driver

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shyammurthy12/icachesim/cache"
	"github.com/shyammurthy12/icachesim/classify"
	"github.com/shyammurthy12/icachesim/trace"
)

func newTestDriver(t *testing.T, associativity uint32, victimEntries uint32) *Driver {
	t.Helper()
	const numSets = 4
	const lineBytes = 64

	baseSets := make([]cache.Set, numSets)
	for i := range baseSets {
		baseSets[i] = cache.NewLRUSet(associativity)
	}
	baseline, err := cache.NewCache(baseSets, lineBytes, true)
	require.NoError(t, err)

	var victim *cache.VictimBuffer
	if victimEntries > 0 {
		victim = cache.NewVictimBuffer(victimEntries)
	}
	modSets := make([]cache.Set, numSets)
	for i := range modSets {
		modSets[i] = cache.NewUseAwareSet(associativity, victim)
	}
	modified, err := cache.NewCache(modSets, lineBytes, true)
	require.NoError(t, err)

	classifier := classify.New(1.5, 1.0, 2)
	return New(baseline, modified, victim, classifier, 0, 2, lineBytes, zerolog.Nop())
}

func TestProcessIgnoresEventsFromOtherThreads(t *testing.T) {
	d := newTestDriver(t, 2, 4)
	processed, err := d.Process(trace.FetchEvent{Addr: 0x1000, Size: 4, ThreadID: 99})
	require.NoError(t, err)
	assert.False(t, processed)
	assert.Equal(t, uint64(0), d.Clock(), "clock must not advance for a filtered-out event")
}

func TestProcessAdvancesClockOncePerProcessedEvent(t *testing.T) {
	d := newTestDriver(t, 2, 4)
	for i := 0; i < 5; i++ {
		processed, err := d.Process(trace.FetchEvent{Addr: uint64(0x1000 + i*4), Size: 4, ThreadID: 0})
		require.NoError(t, err)
		require.True(t, processed)
	}
	assert.Equal(t, uint64(5), d.Clock())
}

func TestProcessTracksCalleeAcrossCallAndReturn(t *testing.T) {
	d := newTestDriver(t, 2, 4)
	d.currentCallee = 0x1000 // already executing inside this function

	// The call flag from this event only takes effect on the *next* fetch.
	_, err := d.Process(trace.FetchEvent{Addr: 0x1500, Size: 4, ThreadID: 0, ControlFlow: trace.DirectCall})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000), d.currentCallee, "the call flag hasn't been applied yet")

	_, err = d.Process(trace.FetchEvent{Addr: 0x2000, Size: 4, ThreadID: 0, ControlFlow: trace.Return})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x2000), d.currentCallee, "callee updates to the call target on entry")

	// The return flag from the previous event pops back to the caller.
	_, err = d.Process(trace.FetchEvent{Addr: 0x2004, Size: 4, ThreadID: 0})
	require.NoError(t, err)
	assert.Equal(t, uint64(0x1000), d.currentCallee, "return restores the pushed caller")
}

func TestProcessReturnOnEmptyStackLeavesCalleeUnchanged(t *testing.T) {
	d := newTestDriver(t, 2, 4)
	_, err := d.Process(trace.FetchEvent{Addr: 0x1000, Size: 4, ThreadID: 0, ControlFlow: trace.Return})
	require.NoError(t, err)
	_, err = d.Process(trace.FetchEvent{Addr: 0x1004, Size: 4, ThreadID: 0})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), d.currentCallee, "popping an empty stack must be a no-op")
}

func TestUpdateCountersTalliesTotalMissesFromModifiedCache(t *testing.T) {
	d := newTestDriver(t, 1, 0)
	for i := 0; i < 3; i++ {
		_, err := d.Process(trace.FetchEvent{Addr: uint64(i) * 128, Size: 4, ThreadID: 0})
		require.NoError(t, err)
	}
	c := d.Counters()
	assert.Equal(t, uint64(3), c.TotalMisses, "three distinct lines into cold 1-way sets each miss")
}

func TestUpdateCountersTalliesMediumUseMissesBeforeLowUse(t *testing.T) {
	// ClassifiedMedium can only ever be latched alongside ClassifiedLow
	// (see classify.Classify), so a medium-use fetch must be categorized
	// as medium, not folded into the low-use tally.
	d := newTestDriver(t, 2, 0)

	rec := d.classifier.Record(0xCCCC)
	rec.Invocations, rec.Misses = 3, 2 // ratio 1.5: <= degreeHigh(1.5), > degreeMedium(1.0)
	d.currentCallee = 0xCCCC

	_, err := d.Process(trace.FetchEvent{Addr: 0x4000, Size: 4, ThreadID: 0})
	require.NoError(t, err)

	require.True(t, rec.ClassifiedLow)
	require.True(t, rec.ClassifiedMedium)

	c := d.Counters()
	assert.Equal(t, uint64(1), c.MediumUseMissesModified)
	assert.Equal(t, uint64(1), c.MediumUseMissesBaseline)
	assert.Equal(t, uint64(0), c.LowUseMissesModified, "a medium-use miss must not also be tallied as low-use")
	assert.Equal(t, uint64(0), c.LowUseMissesBaseline)
}

func TestUpdateCountersCascadeIncrementsOnSecondEviction(t *testing.T) {
	// Every address here maps to the same 1-way set, so each insertion
	// evicts the previous one. Drive a high-use entry, then a low-use
	// entry that displaces it (tracked as a cascade candidate); the
	// high-use function then fetches its block back in, and the low-use
	// function's next fetch evicts the tracked block a second time.
	d := newTestDriver(t, 1, 0)

	rec := d.classifier.Record(0xAAAA)
	rec.Invocations, rec.Misses = 10, 1 // stays high-use (ratio 10 > degreeHigh)
	d.currentCallee = 0xAAAA

	_, err := d.Process(trace.FetchEvent{Addr: 0x1000, Size: 4, ThreadID: 0})
	require.NoError(t, err)

	lowRec := d.classifier.Record(0xBBBB)
	lowRec.Invocations, lowRec.Misses = 1, 2 // ratio 0.5, latches low-use once miss_threshold(2) clears
	d.currentCallee = 0xBBBB

	_, err = d.Process(trace.FetchEvent{Addr: 0x2000, Size: 4, ThreadID: 0})
	require.NoError(t, err)

	c := d.Counters()
	assert.Equal(t, uint64(1), c.DisplacedByLowUseFromHighUse)
	assert.Len(t, d.cascadeTracked, 1)

	d.currentCallee = 0xAAAA
	_, err = d.Process(trace.FetchEvent{Addr: 0x1000, Size: 4, ThreadID: 0})
	require.NoError(t, err)
	d.currentCallee = 0xBBBB
	_, err = d.Process(trace.FetchEvent{Addr: 0x2000, Size: 4, ThreadID: 0})
	require.NoError(t, err)

	assert.Equal(t, uint64(1), d.Counters().DisplacedByLowUseFromHighUseCascade)
}
