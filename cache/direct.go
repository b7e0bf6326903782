package cache

// DirectMappedSet is the one-way degenerate case: Find/Replace collapse
// to a single tag compare, and the use-aware FindAndUpdateDegree simply
// ignores degree — a direct-mapped line has nowhere else to go.
type DirectMappedSet struct {
	slot line
}

// NewDirectMappedSet constructs a single-way set. Associativity is
// fixed at 1 by definition, so the constructor takes no parameter.
func NewDirectMappedSet() *DirectMappedSet {
	return &DirectMappedSet{}
}

func (s *DirectMappedSet) Find(tag uint64, clock uint64) bool {
	if s.slot.valid && s.slot.tag == tag {
		s.slot.lastReferenceTime = clock
		return true
	}
	return false
}

func (s *DirectMappedSet) FindAndUpdateDegree(_, tag uint64, _, _ bool, clock uint64) bool {
	return s.Find(tag, clock)
}

func (s *DirectMappedSet) Replace(tag uint64, degreeHigh, degreeMedium bool, blockAddr uint64, clock uint64) EvictionInfo {
	info := EvictionInfo{
		EvictedDegreeHigh: s.slot.degreeHigh,
		EvictedBlockAddr:  s.slot.blockAddr,
		EvictedValid:      s.slot.valid,
		ChosenWay:         0,
	}
	s.slot = line{
		tag:               tag,
		lastReferenceTime:  clock,
		degreeHigh:        degreeHigh,
		degreeMedium:      degreeMedium,
		blockAddr:         blockAddr,
		valid:             true,
	}
	return info
}
