package seedcrack

// java.util.Random 48-bit LCG constants.
const (
	lcgMultiplier = 0x5DEECE66D
	lcgIncrement  = 0xB
	lcgMask       = (1 << 48) - 1
)

// javaRandom reproduces java.util.Random bit for bit. The pillar layout of
// a world is derived from this generator, so exactness is load-bearing.
type javaRandom struct {
	seed int64
}

func newJavaRandom(seed int64) *javaRandom {
	return &javaRandom{seed: (seed ^ lcgMultiplier) & lcgMask}
}

func (r *javaRandom) next(bits uint) int32 {
	r.seed = (r.seed*lcgMultiplier + lcgIncrement) & lcgMask
	return int32(r.seed >> (48 - bits))
}

func (r *javaRandom) nextInt() int32 {
	return r.next(32)
}

// nextBoundedInt mirrors Random.nextInt(bound), including the power-of-two
// fast path and the modulo-bias rejection loop.
func (r *javaRandom) nextBoundedInt(bound int32) int32 {
	if bound <= 0 {
		return 0
	}
	if bound&(bound-1) == 0 {
		return int32(int64(bound) * int64(r.next(31)) >> 31)
	}
	maxTry := int32(int64(1)<<31 - (int64(1)<<31)%int64(bound))
	for {
		v := r.next(31)
		if v < maxTry {
			return v % bound
		}
	}
}

func (r *javaRandom) nextLong() int64 {
	hi := int64(r.nextInt())
	lo := int64(r.nextInt())
	return hi<<32 + lo
}

// shuffleInts applies Collections.shuffle's Fisher-Yates order.
func shuffleInts(a []int, r *javaRandom) {
	for i := len(a); i > 1; i-- {
		j := r.nextBoundedInt(int32(i))
		a[i-1], a[j] = a[j], a[i-1]
	}
}
