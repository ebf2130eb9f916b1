package distribution

import (
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/fedscan/fedscan/pkg/fragment"
)

// ImprovedRoundRobinStrategy gives every segment floor(N/T) or ceil(N/T)
// fragments. Unlike plain round-robin, fragments that do not fill a complete
// round are spread over the whole segment range instead of going to the
// segments right after shiftedIndex, which tend to live on the same host.
type ImprovedRoundRobinStrategy struct {
	logger log.Logger
}

// NewImprovedRoundRobinStrategy makes a new ImprovedRoundRobinStrategy.
func NewImprovedRoundRobinStrategy(logger log.Logger) *ImprovedRoundRobinStrategy {
	return &ImprovedRoundRobinStrategy{logger: logger}
}

// FilterFragments implements Strategy.
func (s *ImprovedRoundRobinStrategy) FilterFragments(fragments []fragment.Fragment, req *fragment.RequestContext) ([]fragment.Fragment, error) {
	total := req.TotalSegments
	spread := newEvenSpread(len(fragments), total, req.ShiftedIndex())

	if len(spread.rest) > 0 {
		level.Debug(s.logger).Log("msg", "spreading remainder fragments evenly", "fragments", len(fragments),
			"full_rounds", len(fragments)/total, "remainder", len(spread.rest), "segments", spread.rest)
		if spread.full == 0 && !contains(spread.rest, req.SegmentID) {
			return []fragment.Fragment{}, nil
		}
	} else {
		level.Debug(s.logger).Log("msg", "distributing fragments evenly between all segments", "fragments", len(fragments), "segments", total)
	}

	return filter(fragments, req.SegmentID, expectedShare(len(fragments), total), spread.owner), nil
}

// Policy implements Strategy.
func (s *ImprovedRoundRobinStrategy) Policy() Policy {
	return ImprovedRoundRobin
}
