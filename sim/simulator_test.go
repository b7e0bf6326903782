package sim

import (
	"bytes"
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shyammurthy12/icachesim/config"
	"github.com/shyammurthy12/icachesim/trace"
)

func newTestSimulator(t *testing.T, instructionThreshold uint64) *Simulator {
	t.Helper()
	cfg := config.Default()
	cfg.ICache = config.CacheGeometry{SizeKB: 1, LineBytes: 64, Associativity: 2}
	cfg.ITLB = config.CacheGeometry{SizeKB: 1, LineBytes: 64, Associativity: 2}
	cfg.InstructionThreshold = instructionThreshold
	cfg.Victim.Entries = 4

	s, err := New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.ICache.LineBytes = 100 // not a power of two
	_, err := New(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestProcessIgnoresNonConfiguredThread(t *testing.T) {
	s := newTestSimulator(t, 100)
	err := s.Process(trace.FetchEvent{Addr: 0x1000, Size: 4, ThreadID: s.cfg.ThreadID + 1})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), s.instructionCount)
}

func TestProcessAdvancesInstructionCountOnMatchingThread(t *testing.T) {
	s := newTestSimulator(t, 100)
	for i := 0; i < 5; i++ {
		err := s.Process(trace.FetchEvent{Addr: uint64(0x1000 + i*64), Size: 4, ThreadID: s.cfg.ThreadID})
		require.NoError(t, err)
	}
	assert.Equal(t, uint64(5), s.instructionCount)
	assert.False(t, s.frozen)
}

func TestProcessFreezesSnapshotAtThreshold(t *testing.T) {
	s := newTestSimulator(t, 2)
	for i := 0; i < 2; i++ {
		err := s.Process(trace.FetchEvent{Addr: uint64(0x1000 + i*64), Size: 4, ThreadID: s.cfg.ThreadID})
		require.NoError(t, err)
	}
	require.True(t, s.frozen)
	frozenMisses := s.frozenStats.Counters.TotalMisses

	// Further events beyond the threshold must not perturb the frozen
	// snapshot the eventual report reads from.
	for i := 2; i < 10; i++ {
		err := s.Process(trace.FetchEvent{Addr: uint64(0x1000 + i*64), Size: 4, ThreadID: s.cfg.ThreadID})
		require.NoError(t, err)
	}
	assert.Equal(t, frozenMisses, s.frozenStats.Counters.TotalMisses)
}

func TestReportWritesBeforeThresholdUsesLiveSnapshot(t *testing.T) {
	s := newTestSimulator(t, 1000)
	err := s.Process(trace.FetchEvent{Addr: 0x1000, Size: 4, ThreadID: s.cfg.ThreadID})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, s.Report(&buf))
	assert.Contains(t, buf.String(), "ICACHE stats")
}

func TestCloseShutsDownTracerProviderCleanly(t *testing.T) {
	s := newTestSimulator(t, 100)
	assert.NoError(t, s.Close(context.Background()))
}
