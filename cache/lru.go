package cache

// LRUSet is the baseline replacement policy: classic least-recently-used
// way selection, blind to function-use degree. It is what the "normal"
// (baseline) hierarchy in spec.md §1 is built from — the reference
// every use-aware comparison is measured against.
type LRUSet struct {
	ways []line
}

// NewLRUSet allocates an associativity-way set with all ways starting
// empty: tag=0, time=0, flags=false, matching the lifecycle rule in
// spec.md §3.
func NewLRUSet(associativity uint32) *LRUSet {
	return &LRUSet{ways: make([]line, associativity)}
}

func (s *LRUSet) Find(tag uint64, clock uint64) bool {
	for i := range s.ways {
		if s.ways[i].valid && s.ways[i].tag == tag {
			s.ways[i].lastReferenceTime = clock
			return true
		}
	}
	return false
}

// FindAndUpdateDegree ignores the degree arguments entirely: the
// baseline cache participates in the same driver plumbing as the
// use-aware cache (so the fetch driver can call both through the same
// Set contract) but never segregates by function use.
func (s *LRUSet) FindAndUpdateDegree(_, tag uint64, _, _ bool, clock uint64) bool {
	return s.Find(tag, clock)
}

// victimWay returns the index of the way with the smallest
// lastReferenceTime, ties broken toward the highest index whether or not
// the tied ways are occupied — an empty (never-written) way has
// lastReferenceTime 0, satisfying the "first fetch allocates into
// the way with the smallest initial timestamp, highest index on ties"
// boundary case from spec.md §8.
func victimWay(ways []line) uint32 {
	victim := uint32(len(ways) - 1)
	min := ways[victim].lastReferenceTime
	for i := len(ways) - 2; i >= 0; i-- {
		if ways[i].lastReferenceTime < min {
			min = ways[i].lastReferenceTime
			victim = uint32(i)
		}
	}
	return victim
}

func (s *LRUSet) Replace(tag uint64, degreeHigh, degreeMedium bool, blockAddr uint64, clock uint64) EvictionInfo {
	way := victimWay(s.ways)
	old := s.ways[way]
	s.ways[way] = line{
		tag:               tag,
		lastReferenceTime: clock,
		degreeHigh:        degreeHigh,
		degreeMedium:      degreeMedium,
		blockAddr:         blockAddr,
		valid:             true,
	}
	return EvictionInfo{
		EvictedDegreeHigh: old.degreeHigh,
		EvictedBlockAddr:  old.blockAddr,
		EvictedValid:      old.valid,
		ChosenWay:         way,
	}
}
