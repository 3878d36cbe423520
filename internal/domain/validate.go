package domain

import (
	"fmt"
	"math"
)

// Validate checks the structural rules a dataset must satisfy before it is settled.
// It never corrects anything; the first violation is returned wrapped in ErrValidation.
func (q QuizDataset) Validate() error {
	if len(q.Questions) == 0 || q.NumQuestions == 0 {
		return fmt.Errorf("%w: quiz must have at least one question", ErrValidation)
	}
	if q.NumQuestions != len(q.Questions) {
		return fmt.Errorf("%w: num_questions is %d but %d questions supplied", ErrValidation, q.NumQuestions, len(q.Questions))
	}
	if !q.Policy.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownPolicy, q.Policy)
	}
	if !q.Difficulty.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownDifficulty, q.Difficulty)
	}
	if !finite(q.TotalReward) || q.TotalReward < 0 {
		return fmt.Errorf("%w: total reward must be a non-negative number", ErrValidation)
	}
	if !finite(q.MaxRewardPerUser) || q.MaxRewardPerUser < 0 {
		return fmt.Errorf("%w: max reward per user must be a non-negative number", ErrValidation)
	}
	if q.MaxRewardPerUser > q.TotalReward {
		return fmt.Errorf("%w: max reward per user %v exceeds total reward %v", ErrValidation, q.MaxRewardPerUser, q.TotalReward)
	}

	seenQuestions := make(map[int]struct{}, len(q.Questions))
	for i, question := range q.Questions {
		if question.ID < 0 {
			return fmt.Errorf("%w: question %d has negative id", ErrValidation, i+1)
		}
		if _, dup := seenQuestions[question.ID]; dup {
			return fmt.Errorf("%w: duplicate question id %d", ErrValidation, question.ID)
		}
		seenQuestions[question.ID] = struct{}{}
		if err := question.validateOptions(); err != nil {
			return fmt.Errorf("%w: question %d %s", ErrValidation, question.ID, err)
		}
		if !question.Correct.Valid() {
			return fmt.Errorf("%w: question %d: %s", ErrUnknownOption, question.ID, question.Correct)
		}
	}

	seenUsers := make(map[string]struct{}, len(q.Participants))
	for _, p := range q.Participants {
		if p.UserID == "" {
			return fmt.Errorf("%w: participant without identity", ErrValidation)
		}
		if _, dup := seenUsers[p.UserID]; dup {
			return fmt.Errorf("%w: duplicate participant %s", ErrValidation, p.UserID)
		}
		seenUsers[p.UserID] = struct{}{}

		answered := make(map[int]struct{}, len(p.Answers))
		for _, a := range p.Answers {
			if _, dup := answered[a.QuestionID]; dup {
				return fmt.Errorf("%w: participant %s answered question %d twice", ErrValidation, p.UserID, a.QuestionID)
			}
			answered[a.QuestionID] = struct{}{}
			if !a.Choice.Valid() {
				return fmt.Errorf("%w: participant %s: %s", ErrUnknownOption, p.UserID, a.Choice)
			}
		}
	}
	return nil
}

// validateOptions requires exactly the labels A, B, C and D, each once.
func (q Question) validateOptions() error {
	if len(q.Options) != len(OptionLabels) {
		return fmt.Errorf("must have exactly 4 options, got %d", len(q.Options))
	}
	var seen [len(OptionLabels) + 1]bool
	for _, opt := range q.Options {
		if !opt.Label.Valid() {
			return fmt.Errorf("has an unlabeled option")
		}
		if seen[opt.Label] {
			return fmt.Errorf("repeats option %s", opt.Label)
		}
		seen[opt.Label] = true
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
