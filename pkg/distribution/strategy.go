// Package distribution decides which fragments of a scan each segment reads.
//
// Every strategy is a pure function of the full fragment list and the
// requesting segment's context: all segments of a scan compute the same
// global assignment independently and keep only their own share, so no
// coordination between segments is needed.
package distribution

import (
	"strings"

	"github.com/fedscan/fedscan/pkg/fragment"
)

// Policy names a fragment distribution strategy.
type Policy string

const (
	RoundRobin         Policy = "round-robin"
	ImprovedRoundRobin Policy = "improved-round-robin"
	ActiveSegment      Policy = "active-segment"
	Random             Policy = "random"
)

// Policies lists every supported policy, default first.
var Policies = []Policy{RoundRobin, ImprovedRoundRobin, ActiveSegment, Random}

func (p Policy) String() string {
	return string(p)
}

// ParsePolicy resolves a policy name, ignoring case.
func ParsePolicy(name string) (Policy, error) {
	for _, p := range Policies {
		if strings.EqualFold(name, string(p)) {
			return p, nil
		}
	}
	return "", fragment.ConfigErrorf("cannot find corresponding fragment distribution policy with name %s (valid policies: %s)",
		name, validPolicies())
}

func validPolicies() string {
	names := make([]string, 0, len(Policies))
	for _, p := range Policies {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}

// Strategy filters the full fragment list of a scan down to the fragments
// owned by the requesting segment. Implementations are stateless and safe for
// concurrent use.
type Strategy interface {
	FilterFragments(fragments []fragment.Fragment, req *fragment.RequestContext) ([]fragment.Fragment, error)
	Policy() Policy
}

// filter keeps the fragments whose owner is segmentID, in their original order.
func filter(fragments []fragment.Fragment, segmentID, expected int, owner func(i int) int) []fragment.Fragment {
	filtered := make([]fragment.Fragment, 0, expected)
	for i, f := range fragments {
		if owner(i) == segmentID {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// expectedShare is the capacity hint for a segment's result.
func expectedShare(fragments, segments int) int {
	if segments <= 0 {
		return 0
	}
	return (fragments + segments - 1) / segments
}
