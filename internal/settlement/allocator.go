package settlement

import (
	"errors"
	"fmt"
	"sort"

	"openquest-settlement/internal/domain"
	"openquest-settlement/internal/lottery"
)

// MaxWinners caps how many participants can be paid from one pool.
const MaxWinners = 5

// ErrMissingRNG is returned when the lottery policy is allocated without a generator.
var ErrMissingRNG = errors.New("lottery allocation requires a seeded generator")

// Allocation is the outcome of splitting a reward pool.
type Allocation struct {
	// Participants is the input in its original order with Reward populated.
	Participants []domain.Participant
	// Winners holds indices into Participants in selection order.
	Winners []int
}

// Allocate splits totalReward among at most MaxWinners participants under policy.
// rng is only consumed by the lottery policy and may be nil otherwise.
func Allocate(participants []domain.Participant, totalReward float64, policy domain.Policy, rng *lottery.RNG) (Allocation, error) {
	out := Allocation{Participants: make([]domain.Participant, len(participants))}
	for i, p := range participants {
		p.Reward = 0
		out.Participants[i] = p
	}

	var shares []float64
	switch policy {
	case domain.PolicyRankWeighted:
		out.Winners = topByScore(participants)
		shares = rankWeightedShares(participants, out.Winners, totalReward)
	case domain.PolicyEqualTopFive:
		out.Winners = topByScore(participants)
		shares = equalShares(len(out.Winners), totalReward)
	case domain.PolicyLottery:
		if rng == nil {
			return Allocation{}, ErrMissingRNG
		}
		out.Winners = drawLottery(len(participants), rng)
		shares = equalShares(len(out.Winners), totalReward)
	default:
		return Allocation{}, fmt.Errorf("%w: %s", domain.ErrUnknownPolicy, policy)
	}

	for i, idx := range out.Winners {
		out.Participants[idx].Reward = shares[i]
	}
	return out, nil
}

// topByScore returns up to MaxWinners indices ordered by descending score; ties keep input order.
func topByScore(participants []domain.Participant) []int {
	order := indices(len(participants))
	sort.SliceStable(order, func(a, b int) bool {
		return participants[order[a]].Score > participants[order[b]].Score
	})
	if len(order) > MaxWinners {
		order = order[:MaxWinners]
	}
	return order
}

// rankWeightedShares groups the selected (already sorted) winners by identical score.
// With g distinct groups the best group weighs g and the last weighs 1; a group's share of
// the pool is proportional to weight*size and is split evenly inside the group.
func rankWeightedShares(participants []domain.Participant, winners []int, totalReward float64) []float64 {
	type group struct{ start, size int }
	var groups []group
	for i, idx := range winners {
		if i > 0 && participants[winners[i-1]].Score == participants[idx].Score {
			groups[len(groups)-1].size++
			continue
		}
		groups = append(groups, group{start: i, size: 1})
	}

	totalWeight := 0.0
	for k, g := range groups {
		totalWeight += float64(len(groups)-k) * float64(g.size)
	}

	shares := make([]float64, len(winners))
	for k, g := range groups {
		weight := float64(len(groups) - k)
		groupReward := totalReward * (weight * float64(g.size)) / totalWeight
		each := groupReward / float64(g.size)
		for i := g.start; i < g.start+g.size; i++ {
			shares[i] = each
		}
	}
	return shares
}

func equalShares(n int, totalReward float64) []float64 {
	shares := make([]float64, n)
	for i := range shares {
		shares[i] = totalReward / float64(n)
	}
	return shares
}

// drawLottery shuffles the participant positions once and takes the first MaxWinners.
func drawLottery(n int, rng *lottery.RNG) []int {
	order := indices(n)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	if len(order) > MaxWinners {
		order = order[:MaxWinners]
	}
	return order
}

// NewLotteryRNG derives the generator for a dataset from its public fields.
func NewLotteryRNG(participantCount int, totalReward float64, policy domain.Policy) *lottery.RNG {
	return lottery.New(lottery.Seed(lottery.Salt(participantCount, totalReward, policy.String())))
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
