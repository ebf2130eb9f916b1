package distribution

import (
	"github.com/fedscan/fedscan/pkg/fragment"
)

// RoundRobinStrategy hands fragment i to segment (i + shiftedIndex) mod T.
type RoundRobinStrategy struct{}

// NewRoundRobinStrategy returns the default distribution strategy.
func NewRoundRobinStrategy() *RoundRobinStrategy {
	return &RoundRobinStrategy{}
}

// FilterFragments implements Strategy.
func (s *RoundRobinStrategy) FilterFragments(fragments []fragment.Fragment, req *fragment.RequestContext) ([]fragment.Fragment, error) {
	total := req.TotalSegments
	shift := req.ShiftedIndex()
	return filter(fragments, req.SegmentID, expectedShare(len(fragments), total), func(i int) int {
		return (shift + i) % total
	}), nil
}

// Policy implements Strategy.
func (s *RoundRobinStrategy) Policy() Policy {
	return RoundRobin
}
