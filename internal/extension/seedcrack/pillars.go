package seedcrack

import "math"

// The ten end pillars have unique heights 76,79,...,103. Which height lands
// at which angular position is a permutation drawn from a 16-bit seed, so
// partial observations of the ring cut the candidate space hard.
const (
	pillarCount     = 10
	pillarSeedSpace = 1 << 16
)

type pillar struct {
	height int32
	caged  bool
}

// pillarSeedOf reduces a full world seed to its 16-bit pillar seed.
func pillarSeedOf(worldSeed int64) int64 {
	return newJavaRandom(worldSeed).nextLong() & 0xFFFF
}

// pillarsFromSeed regenerates the ring layout for one pillar seed. Position
// i in the result is the i-th pillar walking the ring; heights follow the
// shuffled index, cages sit on the two shortest-but-one pillars.
func pillarsFromSeed(seed int64) [pillarCount]pillar {
	rng := newJavaRandom(seed)
	indices := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	shuffleInts(indices, rng)

	var out [pillarCount]pillar
	for i, idx := range indices {
		out[i] = pillar{
			height: int32(76 + 3*idx),
			caged:  idx == 1 || idx == 2,
		}
	}
	return out
}

type hintKind uint8

const (
	hintUnknown hintKind = iota
	hintExact
	hintRange
	hintBig
	hintMedium
	hintSmall
	hintMediumBig
	hintMediumSmall
)

// heightHint is one observed constraint on a pillar's height. Exact uses
// min; Range uses min and max inclusive.
type heightHint struct {
	kind hintKind
	min  int32
	max  int32
}

type cageHint uint8

const (
	cageUnknown cageHint = iota
	cageCaged
	cageUncaged
)

// pillarHint is the partial observation of one ring position.
type pillarHint struct {
	cage   cageHint
	height heightHint
}

// matchPillar scores one observation against one generated pillar. A zero
// weight means the seed is impossible; exact reports whether every
// constraint matched without fuzz.
func matchPillar(h pillarHint, p pillar) (weight float64, exact bool) {
	cageWeight, cageExact := 1.0, false
	switch h.cage {
	case cageCaged:
		if !p.caged {
			return 0, false
		}
		cageExact = true
	case cageUncaged:
		if p.caged {
			return 0, false
		}
		cageExact = true
	}

	heightWeight, heightExact := matchHeight(h.height, p.height)
	if heightWeight == 0 {
		return 0, false
	}
	return cageWeight * heightWeight, cageExact && heightExact
}

func matchHeight(h heightHint, height int32) (float64, bool) {
	switch h.kind {
	case hintUnknown:
		return 1, false
	case hintExact:
		if height != h.min {
			return 0, false
		}
		return 1, true
	case hintRange:
		if height < h.min || height > h.max {
			return 0, false
		}
		return 1, true
	case hintBig:
		// the three tallest pillars, weighted toward 103
		if height < 97 {
			return 0, false
		}
		prob := float64(height-97) / (103.0 - 97.0)
		return (prob + 1) / 2, false
	case hintMedium:
		// the four middle pillars, weighted toward 89.5
		if height < 85 || height > 94 {
			return 0, false
		}
		prob := 1 - math.Abs(float64(height)-89.5)/(94.0-85.0)
		return (prob + 1) / 2, false
	case hintSmall:
		// the three shortest pillars, weighted toward 76
		if height > 82 {
			return 0, false
		}
		prob := (82.0 - float64(height)) / (82.0 - 76.0)
		return (prob + 1) / 2, false
	case hintMediumBig:
		if height < 88 {
			return 0, false
		}
		return 1 - math.Abs(float64(height)-95.5)/(103.0-88.0), false
	case hintMediumSmall:
		if height > 97 {
			return 0, false
		}
		return 1 - math.Abs(float64(height)-83.5)/(91.0-76.0), false
	default:
		return 0, false
	}
}

// matchRing scores a full set of observations against one layout.
func matchRing(hints [pillarCount]pillarHint, ring [pillarCount]pillar) (float64, bool) {
	weight, exact := 1.0, true
	for i := range hints {
		w, e := matchPillar(hints[i], ring[i])
		if w == 0 {
			return 0, false
		}
		weight *= w
		exact = exact && e
	}
	return weight, exact
}

type candidate struct {
	seed   int64
	weight float64
	exact  bool
}

// searchSeeds scans the whole 16-bit pillar seed space and returns every
// seed the observations do not rule out. visit is called per seed so a
// caller can cancel or report progress; a false return stops the scan.
func searchSeeds(hints [pillarCount]pillarHint, visit func(done int) bool) []candidate {
	var out []candidate
	for seed := int64(0); seed < pillarSeedSpace; seed++ {
		if visit != nil && !visit(int(seed)) {
			return out
		}
		weight, exact := matchRing(hints, pillarsFromSeed(seed))
		if weight == 0 {
			continue
		}
		out = append(out, candidate{seed: seed, weight: weight, exact: exact})
	}
	return out
}
