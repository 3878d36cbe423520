package settlement

import "openquest-settlement/internal/domain"

// Assemble builds the ledger record. Entries follow the allocation pass order, which
// consumers must not rely on; they key by address.
func Assemble(quiz domain.QuizDataset, alloc Allocation) domain.SettlementRecord {
	record := domain.SettlementRecord{
		QuizID:     quiz.ID,
		ProtocolID: quiz.ProtocolID,
		Results:    make([]domain.SettlementEntry, 0, len(alloc.Participants)),
	}
	for _, p := range alloc.Participants {
		record.Results = append(record.Results, domain.SettlementEntry{
			Address:           p.WalletAddress,
			Reward:            p.Reward,
			LeaderboardPoints: Points(quiz, p.Score),
			Score:             p.Score,
		})
	}
	return record
}
