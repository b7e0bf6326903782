// Package classify implements the per-callee function-use classifier:
// an online estimator that, from the running ratio of invocations to
// misses, decides whether a fetched line is low, medium, or high use at
// the moment it is inserted into the modified cache.
package classify

// Record is one function's running counters. Keyed externally by the
// classifier on the callee entry address; see spec.md §3's "function
// record" entity.
type Record struct {
	Invocations      uint64
	Misses           uint64
	TotalMisses      uint64
	ClassifiedLow    bool
	ClassifiedMedium bool
	UniqueBlocks     map[uint64]struct{}
}

func newRecord() *Record {
	return &Record{UniqueBlocks: make(map[uint64]struct{})}
}

// degreeOfUse is invocations/misses, with the §7 division-by-zero guard
// (misses treated as 1 when actually 0).
func (r *Record) degreeOfUse() float64 {
	misses := r.Misses
	if misses == 0 {
		misses = 1
	}
	return float64(r.Invocations) / float64(misses)
}

// Classifier holds one Record per observed callee address. It is owned
// by a single driver.Driver (or test) and is not safe for concurrent
// use, matching the single-threaded synchronous model in spec.md §5.
type Classifier struct {
	degreeHigh    float64
	degreeMedium  float64
	missThreshold uint64
	records       map[uint64]*Record
}

// New builds a classifier with the given thresholds. degreeHigh and
// degreeMedium are ratios (e.g. 1.5 and 1.0); missThreshold defers
// classification until a function has accumulated at least that many
// misses, avoiding premature low-use labeling on cold functions.
func New(degreeHigh, degreeMedium float64, missThreshold uint64) *Classifier {
	return &Classifier{
		degreeHigh:    degreeHigh,
		degreeMedium:  degreeMedium,
		missThreshold: missThreshold,
		records:       make(map[uint64]*Record),
	}
}

// Record returns the (lazily created) record for callee, never nil.
// Unknown-function fetches are not an error (spec.md §7): the record
// is created on demand with every counter at zero.
func (c *Classifier) Record(callee uint64) *Record {
	r, ok := c.records[callee]
	if !ok {
		r = newRecord()
		c.records[callee] = r
	}
	return r
}

// Len reports the number of distinct functions observed.
func (c *Classifier) Len() int { return len(c.records) }

// Records exposes the full table for the reporter; callers must treat
// it as read-only.
func (c *Classifier) Records() map[uint64]*Record { return c.records }

// Classify computes the ratio of invocations to misses accumulated as
// of the *previous* fetch, applies the sticky-latch rule over it, and
// returns the classification to use for inserting the line this fetch
// is about to touch. Latching and classifying happen together, in this
// one step, before the cache is consulted — spec.md §4.5 describes them
// as a single rule, and the counter-update half (invocations/misses
// advancing for *this* fetch) only happens afterward, in Observe.
//
// degreeHigh is true unless the function is already classified low-use
// and has cleared the miss-threshold grace window; degreeMedium mirrors
// the sticky medium flag directly.
func (c *Classifier) Classify(callee uint64) (degreeHigh, degreeMedium bool) {
	r := c.Record(callee)
	if !r.ClassifiedLow {
		ratio := r.degreeOfUse()
		if ratio <= c.degreeHigh && r.Misses >= c.missThreshold {
			if ratio > c.degreeMedium {
				r.ClassifiedMedium = true
			}
			r.ClassifiedLow = true
		}
	}
	degreeHigh = !r.ClassifiedLow || r.Misses < c.missThreshold
	degreeMedium = r.ClassifiedMedium
	return degreeHigh, degreeMedium
}

// Observe applies the §4.5 counter-update rule after both caches have
// already been consulted for this fetch:
//
//   - on a miss that is the first instruction of a called function,
//     Invocations, Misses, and TotalMisses all advance;
//   - on any other miss, only TotalMisses advances;
//   - on a hit that is the first instruction of a called function,
//     Invocations advances (a hit never touches Misses/TotalMisses).
//
// firstLineOfCall means "the previous event was a call" — attribution
// couples invocations to observed call edges, not to every instruction.
// Observe never latches classification itself; that already happened
// in Classify, reading the state Observe is about to advance.
func (c *Classifier) Observe(callee uint64, missed, firstLineOfCall bool) {
	r := c.Record(callee)
	switch {
	case missed && firstLineOfCall:
		r.Invocations++
		r.Misses++
		r.TotalMisses++
	case missed:
		r.TotalMisses++
	case firstLineOfCall:
		r.Invocations++
	}
}

// TouchBlock records that callee fetched the cache block containing
// addr, maintaining the function record's unique-block working set.
func (c *Classifier) TouchBlock(callee uint64, blockAddr uint64) {
	r := c.Record(callee)
	r.UniqueBlocks[blockAddr] = struct{}{}
}
