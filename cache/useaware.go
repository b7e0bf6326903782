package cache

// UseAwareSet is the modified cache's replacement policy: LRU way
// selection with two additions driven by the function-use classifier
// (classify.Classifier, consumed upstream by the fetch driver) —
//
//  1. a line fetched from a low-use function is retained (or inserted)
//     at the LRU position, biasing it toward early eviction instead of
//     letting it squat among high-use lines;
//  2. a miss on a reference from a medium-use function is given a
//     second chance against the cache's shared victim buffer before it
//     is counted as a true miss.
type UseAwareSet struct {
	ways   []line
	victim *VictimBuffer // nil when the victim buffer is disabled
}

// NewUseAwareSet builds an associativity-way set that consults victim
// for its second-chance lookup. Pass nil to disable the victim buffer
// entirely (config.Victim.Enabled == false); FindAndUpdateDegree then
// degrades to plain LRU-with-degree-bias.
func NewUseAwareSet(associativity uint32, victim *VictimBuffer) *UseAwareSet {
	return &UseAwareSet{ways: make([]line, associativity), victim: victim}
}

func (s *UseAwareSet) Find(tag uint64, clock uint64) bool {
	for i := range s.ways {
		if s.ways[i].valid && s.ways[i].tag == tag {
			s.ways[i].lastReferenceTime = clock
			return true
		}
	}
	return false
}

// FindAndUpdateDegree implements spec.md §4.2's two numbered additions
// over plain Find.
func (s *UseAwareSet) FindAndUpdateDegree(blockAddr, tag uint64, degreeHigh, degreeMedium bool, clock uint64) bool {
	for i := range s.ways {
		if s.ways[i].valid && s.ways[i].tag == tag {
			s.ways[i].degreeHigh = degreeHigh
			if !degreeHigh {
				// Retain at the LRU position: low-use references
				// don't earn recency even on a hit.
				s.ways[i].lastReferenceTime = 0
			} else {
				s.ways[i].lastReferenceTime = clock
			}
			return true
		}
	}
	if degreeMedium && s.victim != nil {
		return s.victim.Lookup(blockAddr, clock)
	}
	return false
}

func (s *UseAwareSet) Replace(tag uint64, degreeHigh, degreeMedium bool, blockAddr uint64, clock uint64) EvictionInfo {
	way := victimWay(s.ways)
	old := s.ways[way]

	insertTime := clock
	if !degreeHigh {
		insertTime = 0
	}
	s.ways[way] = line{
		tag:               tag,
		lastReferenceTime: insertTime,
		degreeHigh:        degreeHigh,
		degreeMedium:      degreeMedium,
		blockAddr:         blockAddr,
		valid:             true,
	}

	if old.valid && old.degreeMedium && s.victim != nil {
		s.victim.Insert(old.blockAddr)
	}

	return EvictionInfo{
		EvictedDegreeHigh: old.degreeHigh,
		EvictedBlockAddr:  old.blockAddr,
		EvictedValid:      old.valid,
		ChosenWay:         way,
	}
}
