package distribution

import (
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"

	"github.com/fedscan/fedscan/pkg/fragment"
)

// Provider picks the Strategy for a request.
//
// An explicit FRAGMENT_DISTRIBUTION_POLICY option always wins. Without it, a
// request that only sets ACTIVE_SEGMENT_COUNT gets the active-segment policy,
// which is how tables declared that before the policy option existed.
// Otherwise round-robin is used.
type Provider struct {
	logger     log.Logger
	strategies map[Policy]Strategy
}

// NewProvider returns a Provider serving the given strategies. Registering two
// strategies for the same policy panics.
func NewProvider(logger log.Logger, strategies ...Strategy) *Provider {
	p := &Provider{
		logger:     logger,
		strategies: make(map[Policy]Strategy, len(strategies)),
	}
	for _, s := range strategies {
		if _, ok := p.strategies[s.Policy()]; ok {
			panic(fmt.Sprintf("duplicate strategy registered for policy %s", s.Policy()))
		}
		p.strategies[s.Policy()] = s
	}
	return p
}

// NewDefaultProvider returns a Provider serving every built-in policy.
func NewDefaultProvider(logger log.Logger) *Provider {
	return NewProvider(logger,
		NewRoundRobinStrategy(),
		NewImprovedRoundRobinStrategy(logger),
		NewActiveSegmentStrategy(logger),
		NewRandomStrategy(),
	)
}

// GetStrategy returns the strategy selected by the request options.
func (p *Provider) GetStrategy(req *fragment.RequestContext) (Strategy, error) {
	policy, err := p.policyFor(req)
	if err != nil {
		return nil, err
	}
	s, ok := p.strategies[policy]
	if !ok {
		return nil, fragment.ConfigErrorf("fragment distribution policy %s is not available", policy)
	}
	level.Debug(p.logger).Log("msg", "selected fragment distribution policy", "policy", policy, "segment", req.SegmentID)
	return s, nil
}

func (p *Provider) policyFor(req *fragment.RequestContext) (Policy, error) {
	if name, ok := req.Option(fragment.DistributionPolicyOption); ok {
		return ParsePolicy(name)
	}
	if _, ok := req.Option(fragment.ActiveSegmentCountOption); ok {
		return ActiveSegment, nil
	}
	return RoundRobin, nil
}
