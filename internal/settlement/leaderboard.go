package settlement

import "openquest-settlement/internal/domain"

// basePoints is awarded for finishing a quiz regardless of score.
const basePoints = 10.0

// Points converts a raw score into leaderboard points for quiz.
// The quiz must have at least one question; Validate enforces that.
func Points(quiz domain.QuizDataset, score int) float64 {
	percentage := float64(score) / float64(len(quiz.Questions)) * 100
	return basePoints + percentage*quiz.Difficulty.Multiplier()
}
