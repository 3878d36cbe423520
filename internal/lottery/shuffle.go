package lottery

import (
	"math"
	"math/bits"
	"strconv"
)

// Salt builds the seed material for a lottery. It only depends on public dataset fields.
func Salt(participantCount int, totalReward float64, policyTag string) string {
	return "SaltFrom" + strconv.Itoa(participantCount) + strconv.FormatFloat(totalReward, 'f', -1, 64) + policyTag
}

// Seed folds salt into 64 bits with seed = seed*31 + b, wrapping on overflow.
func Seed(salt string) uint64 {
	var h uint64
	for i := 0; i < len(salt); i++ {
		h = h*31 + uint64(salt[i])
	}
	return h
}

// Intn returns a uniform value in [0, n) using widening multiplication with rejection.
// n must be in [1, math.MaxUint32].
func (r *RNG) Intn(n int) int {
	if n <= 0 || uint64(n) > math.MaxUint32 {
		panic("lottery: Intn bound out of range")
	}
	rng := uint32(n)
	zone := (rng << bits.LeadingZeros32(rng)) - 1
	for {
		hi, lo := bits.Mul32(r.Uint32(), rng)
		if lo <= zone {
			return int(hi)
		}
	}
}

// Shuffle permutes n elements in place through swap, walking from the last index down.
// It consumes the generator sequentially and must not be parallelised.
func (r *RNG) Shuffle(n int, swap func(i, j int)) {
	for i := n - 1; i >= 1; i-- {
		swap(i, r.Intn(i+1))
	}
}
