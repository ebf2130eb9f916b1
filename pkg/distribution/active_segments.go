package distribution

// ActiveSegmentList picks activeSegmentCount distinct segment ids out of
// totalSegments, spread as evenly as possible over the cyclic order that starts
// at shiftedIndex.
//
// Segments on the same host usually have adjacent ids, so picking every
// stride-th segment rather than the first few spreads load across hosts. The
// pool of candidates is walked with stride ceil(size/needed); once the stride
// starts revisiting candidates the picked ones are removed from the pool and
// the walk restarts on what is left, until enough segments are picked.
//
// A count above totalSegments is capped to totalSegments; a non-positive count
// yields no segments.
func ActiveSegmentList(shiftedIndex, activeSegmentCount, totalSegments int) []int {
	if totalSegments <= 0 || activeSegmentCount <= 0 {
		return nil
	}
	if activeSegmentCount > totalSegments {
		activeSegmentCount = totalSegments
	}

	start := shiftedIndex % totalSegments
	if start < 0 {
		start += totalSegments
	}
	pool := make([]int, totalSegments)
	for i := range pool {
		pool[i] = (start + i) % totalSegments
	}

	active := make([]int, 0, activeSegmentCount)
	taken := make([]bool, totalSegments)
	for needed := activeSegmentCount; needed > 0; {
		size := len(pool)
		stride := (size + needed - 1) / needed
		// Stepping by stride visits size/gcd distinct positions before repeating.
		take := size / gcd(stride, size)
		if take > needed {
			take = needed
		}

		for i := 0; i < size; i++ {
			taken[i] = false
		}
		for j := 0; j < take; j++ {
			idx := (j * stride) % size
			taken[idx] = true
			active = append(active, pool[idx])
		}

		rest := pool[:0]
		for i, id := range pool {
			if !taken[i] {
				rest = append(rest, id)
			}
		}
		pool = rest
		needed -= take
	}
	return active
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// evenSpread assigns positions [0, n) to owners [0, total) so that every owner
// gets either floor(n/total) or ceil(n/total) positions. Complete rounds go
// round-robin starting at shift; the remaining n%total positions go to owners
// picked by ActiveSegmentList, so the remainder does not pile up on the owners
// that come first.
type evenSpread struct {
	total int
	shift int
	full  int
	rest  []int
}

func newEvenSpread(n, total, shift int) evenSpread {
	s := evenSpread{
		total: total,
		shift: shift,
		full:  (n / total) * total,
	}
	if remainder := n % total; remainder != 0 {
		s.rest = ActiveSegmentList(shift, remainder, total)
	}
	return s
}

func (s evenSpread) owner(i int) int {
	if i < s.full {
		return (s.shift + i) % s.total
	}
	return s.rest[i-s.full]
}
