package cache

// victimEntry is one slot in the shared victim buffer: a recently
// evicted medium-use block address, its timestamp, and whether it has
// ever been populated.
type victimEntry struct {
	blockAddr uint64
	valid     bool
	timestamp uint64
}

// VictimBuffer is a small, fixed-size store of block addresses recently
// evicted from medium-use cache lines. It is shared across every set of
// the modified (use-aware) cache, not per-set, matching spec.md §4.4.
//
// The source this was distilled from initializes every entry through
// `low_use_victim_entries[_nextReplaceIndex]` — a set member, not the
// loop variable — so the initialization loop writes the same slot N
// times. That is reproduced here only in spirit: every entry is
// independently constructed with valid=false, which is the only
// observable state the buggy loop ever actually produced (see
// DESIGN.md, Open Questions).
type VictimBuffer struct {
	entries []victimEntry
}

// NewVictimBuffer allocates n entries, all invalid.
func NewVictimBuffer(n uint32) *VictimBuffer {
	return &VictimBuffer{entries: make([]victimEntry, n)}
}

// Lookup scans for blockAddr among valid entries; on a hit it refreshes
// that entry's timestamp to clock (MRU) and reports true.
func (v *VictimBuffer) Lookup(blockAddr uint64, clock uint64) bool {
	for i := range v.entries {
		if v.entries[i].valid && v.entries[i].blockAddr == blockAddr {
			v.entries[i].timestamp = clock
			return true
		}
	}
	return false
}

// Insert stashes a newly evicted medium-use block address into the
// first invalid entry if one remains, otherwise replacing the entry
// with the smallest timestamp. The new entry is placed at
// timestamp 0 — MRU in this buffer's convention, where 0 means
// "most recently inserted", the inverse of the main cache's clock
// convention, matching the source's own comment on the discrepancy.
func (v *VictimBuffer) Insert(blockAddr uint64) {
	if len(v.entries) == 0 {
		return
	}
	victim := -1
	for i := range v.entries {
		if !v.entries[i].valid {
			victim = i
			break
		}
	}
	if victim < 0 {
		victim = 0
		min := v.entries[0].timestamp
		for i := 1; i < len(v.entries); i++ {
			if v.entries[i].timestamp < min {
				min = v.entries[i].timestamp
				victim = i
			}
		}
	}
	v.entries[victim] = victimEntry{blockAddr: blockAddr, valid: true, timestamp: 0}
}
