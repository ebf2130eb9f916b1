// Package fragment defines the units of work handed to segments and the
// request context describing which segment is asking for them.
package fragment

// Fragment is an independently readable unit of an external data source.
// Metadata is owned by the enumerator that produced the fragment and is never
// inspected by the distribution code. Fragments are treated as immutable once
// they leave the enumerator.
type Fragment struct {
	SourceName string `json:"sourceName"`
	Index      int    `json:"index"`
	Metadata   any    `json:"metadata,omitempty"`
	Profile    string `json:"profile,omitempty"`
}

// New returns a fragment for the given source with opaque metadata.
func New(sourceName string, metadata any) Fragment {
	return Fragment{SourceName: sourceName, Metadata: metadata}
}

// Reindex returns a copy of fragments where Index counts up from zero within
// each run of fragments sharing the same SourceName, e.g.
// {"a",0},{"a",1},{"b",0}. The input slice is left untouched.
func Reindex(fragments []Fragment) []Fragment {
	out := make([]Fragment, len(fragments))
	index := 0
	sourceName := ""
	for i, f := range fragments {
		if i == 0 || f.SourceName != sourceName {
			index = 0
			sourceName = f.SourceName
		}
		f.Index = index
		index++
		out[i] = f
	}
	return out
}

// Sample reduces fragments to at most max entries picked at evenly spaced
// positions, keeping their relative order. A non-positive max disables
// sampling.
func Sample(fragments []Fragment, max int) []Fragment {
	n := len(fragments)
	if max <= 0 || n <= max {
		return fragments
	}
	out := make([]Fragment, 0, max)
	for i := 0; i < max; i++ {
		out = append(out, fragments[i*n/max])
	}
	return out
}
