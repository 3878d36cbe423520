package settlement

import (
	"openquest-settlement/internal/domain"
	"openquest-settlement/internal/lottery"
)

// Settle validates quiz and runs grading, allocation and assembly in a single pass.
func Settle(quiz domain.QuizDataset) (domain.SettlementRecord, error) {
	if err := quiz.Validate(); err != nil {
		return domain.SettlementRecord{}, err
	}

	graded := Grade(quiz.Questions, quiz.Participants)

	var rng *lottery.RNG
	if quiz.Policy == domain.PolicyLottery {
		rng = NewLotteryRNG(len(graded), quiz.TotalReward, quiz.Policy)
	}
	alloc, err := Allocate(graded, quiz.TotalReward, quiz.Policy, rng)
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	return Assemble(quiz, alloc), nil
}
