package distribution

import (
	"github.com/fedscan/fedscan/pkg/fragment"
)

// RandomStrategy assigns each fragment to a pseudo-random segment. The
// generator is seeded with shiftedIndex, so all segments of a scan agree on
// the assignment while repeated commands shuffle it.
type RandomStrategy struct{}

// NewRandomStrategy makes a new RandomStrategy.
func NewRandomStrategy() *RandomStrategy {
	return &RandomStrategy{}
}

// FilterFragments implements Strategy.
func (s *RandomStrategy) FilterFragments(fragments []fragment.Fragment, req *fragment.RequestContext) ([]fragment.Fragment, error) {
	rnd := newLCG(int64(req.ShiftedIndex()))
	total := int32(req.TotalSegments)
	owners := make([]int, len(fragments))
	for i := range owners {
		owners[i] = int(rnd.intn(total))
	}
	return filter(fragments, req.SegmentID, expectedShare(len(fragments), req.TotalSegments), func(i int) int {
		return owners[i]
	}), nil
}

// Policy implements Strategy.
func (s *RandomStrategy) Policy() Policy {
	return Random
}
