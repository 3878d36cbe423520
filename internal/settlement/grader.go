// Package settlement turns a finalized quiz dataset into the record handed to the ledger.
// Everything here is pure: no clocks, no I/O, no shared state, and ordering never depends
// on map iteration.
package settlement

import "openquest-settlement/internal/domain"

// Grade returns a copy of participants with Score set to the number of correct answers.
// Answers to question ids that are not in the bank are skipped without error.
func Grade(questions []domain.Question, participants []domain.Participant) []domain.Participant {
	key := make(map[int]domain.OptionLabel, len(questions))
	for _, q := range questions {
		key[q.ID] = q.Correct
	}

	graded := make([]domain.Participant, len(participants))
	for i, p := range participants {
		score := 0
		for _, a := range p.Answers {
			correct, ok := key[a.QuestionID]
			if !ok {
				continue
			}
			if a.Choice == correct {
				score++
			}
		}
		p.Score = score
		graded[i] = p
	}
	return graded
}
