package distribution

import (
	"strconv"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/fedscan/fedscan/pkg/fragment"
)

// ActiveSegmentStrategy restricts a scan to ACTIVE_SEGMENT_COUNT segments,
// chosen with ActiveSegmentList so they are spread over the whole cluster.
// The other segments get no fragments. This lets a table deliberately limit
// the number of concurrent readers hitting its backing store.
type ActiveSegmentStrategy struct {
	logger log.Logger
}

// NewActiveSegmentStrategy makes a new ActiveSegmentStrategy.
func NewActiveSegmentStrategy(logger log.Logger) *ActiveSegmentStrategy {
	return &ActiveSegmentStrategy{logger: logger}
}

// FilterFragments implements Strategy.
func (s *ActiveSegmentStrategy) FilterFragments(fragments []fragment.Fragment, req *fragment.RequestContext) ([]fragment.Fragment, error) {
	count, err := activeSegmentCount(req)
	if err != nil {
		return nil, err
	}
	// There is no point in activating more segments than there are fragments.
	if len(fragments) < count {
		count = len(fragments)
	}
	if count == 0 {
		return []fragment.Fragment{}, nil
	}

	active := ActiveSegmentList(req.ShiftedIndex(), count, req.TotalSegments)
	level.Debug(s.logger).Log("msg", "fragments will be distributed between active segments", "segments", active)
	if !contains(active, req.SegmentID) {
		return []fragment.Fragment{}, nil
	}

	spread := newEvenSpread(len(fragments), len(active), 0)
	return filter(fragments, req.SegmentID, expectedShare(len(fragments), len(active)), func(i int) int {
		return active[spread.owner(i)]
	}), nil
}

// Policy implements Strategy.
func (s *ActiveSegmentStrategy) Policy() Policy {
	return ActiveSegment
}

func activeSegmentCount(req *fragment.RequestContext) (int, error) {
	value, ok := req.Option(fragment.ActiveSegmentCountOption)
	if !ok {
		return 0, fragment.ConfigErrorf("failed to get active segment count: the parameter %s is not defined while the fragment distribution policy is %s, add %s to the external table definition",
			fragment.ActiveSegmentCountOption, ActiveSegment, fragment.ActiveSegmentCountOption)
	}
	count, err := strconv.Atoi(value)
	if err != nil {
		return 0, fragment.ConfigErrorf("failed to get active segment count: %q is not a number, check the value of the parameter '%s'",
			value, fragment.ActiveSegmentCountOption)
	}
	if count < 1 || count > req.TotalSegments {
		return 0, fragment.ConfigErrorf("failed to get active segment count: the parameter '%s' has the value %d, it cannot be less than 1 or greater than the total amount of segments [%d segment(s)]",
			fragment.ActiveSegmentCountOption, count, req.TotalSegments)
	}
	return count, nil
}

func contains(segments []int, id int) bool {
	for _, s := range segments {
		if s == id {
			return true
		}
	}
	return false
}
