package distribution

const (
	lcgMultiplier = 0x5DEECE66D
	lcgAddend     = 0xB
	lcgMask       = (1 << 48) - 1
)

// lcg is the 48-bit linear congruential generator also used by
// java.util.Random. The random strategy depends on reproducing its exact
// output so that every segment, and any other reader of the same table,
// derives the same assignment from the same seed.
type lcg struct {
	seed int64
}

func newLCG(seed int64) *lcg {
	return &lcg{seed: (seed ^ lcgMultiplier) & lcgMask}
}

func (r *lcg) next(bits uint) int32 {
	r.seed = (r.seed*lcgMultiplier + lcgAddend) & lcgMask
	return int32(r.seed >> (48 - bits))
}

// intn returns a uniformly distributed value in [0, bound). bound must be
// positive.
func (r *lcg) intn(bound int32) int32 {
	if bound&(-bound) == bound {
		return int32((int64(bound) * int64(r.next(31))) >> 31)
	}
	for {
		bits := r.next(31)
		val := bits % bound
		// Reject values from the last incomplete block; relies on int32 overflow.
		if bits-val+(bound-1) >= 0 {
			return val
		}
	}
}
