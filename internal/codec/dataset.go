package codec

import (
	"encoding/json"
	"fmt"

	"openquest-settlement/internal/domain"
)

// Wire shapes mirror the domain types with pointers so absent fields can be told apart
// from zero values. A nil slice means the key was absent or null.
type datasetWire struct {
	ID               *string            `json:"uuid"`
	ProtocolID       *string            `json:"protocol"`
	NumQuestions     *int               `json:"num_questions"`
	Questions        []questionWire     `json:"questions"`
	TotalReward      *float64           `json:"total_reward"`
	MaxRewardPerUser *float64           `json:"max_reward_per_user"`
	Participants     []participantWire  `json:"participants"`
	Policy           *domain.Policy     `json:"reward_type"`
	Difficulty       *domain.Difficulty `json:"difficulty"`
}

type questionWire struct {
	ID      *int                `json:"id"`
	Text    *string             `json:"question_text"`
	Options []optionWire        `json:"options"`
	Correct *domain.OptionLabel `json:"correct_answer"`
}

type optionWire struct {
	Text  *string             `json:"text"`
	Label *domain.OptionLabel `json:"option_index"`
}

type participantWire struct {
	UserID         *string      `json:"user_uuid"`
	WalletAddress  *string      `json:"wallet_address"`
	Score          *int         `json:"score"`
	Answers        []answerWire `json:"answered_questions"`
	SubmissionTime *int64       `json:"submission_time"`
	StartTime      *int64       `json:"start_time"`
	Reward         *float64     `json:"reward"`
}

type answerWire struct {
	QuestionID *int                `json:"question_id"`
	Choice     *domain.OptionLabel `json:"answer"`
}

// DecodeDataset opens an envelope and decodes the quiz dataset inside it.
// Every failure wraps domain.ErrDecode; no partial dataset is returned.
func DecodeDataset(envelope []byte) (domain.QuizDataset, error) {
	doc, err := open(envelope)
	if err != nil {
		return domain.QuizDataset{}, err
	}
	return ParseDataset(doc)
}

// ParseDataset decodes a bare JSON dataset document with the same strictness as DecodeDataset.
func ParseDataset(doc []byte) (domain.QuizDataset, error) {
	var w datasetWire
	if err := decodeStrict(doc, &w); err != nil {
		return domain.QuizDataset{}, err
	}
	return w.toDomain()
}

// EncodeDataset produces the canonical envelope for quiz.
func EncodeDataset(quiz domain.QuizDataset) ([]byte, error) {
	doc, err := MarshalDataset(quiz)
	if err != nil {
		return nil, err
	}
	return seal(doc), nil
}

// MarshalDataset returns the canonical JSON document for quiz.
func MarshalDataset(quiz domain.QuizDataset) ([]byte, error) {
	quiz.Questions = nonNil(quiz.Questions)
	quiz.Participants = nonNil(quiz.Participants)
	participants := make([]domain.Participant, len(quiz.Participants))
	for i, p := range quiz.Participants {
		p.Answers = nonNil(p.Answers)
		participants[i] = p
	}
	quiz.Participants = participants

	doc, err := json.Marshal(quiz)
	if err != nil {
		return nil, fmt.Errorf("encode dataset: %w", err)
	}
	return doc, nil
}

func (w datasetWire) toDomain() (domain.QuizDataset, error) {
	var f fields
	f.need("uuid", w.ID != nil)
	f.need("protocol", w.ProtocolID != nil)
	f.need("num_questions", w.NumQuestions != nil)
	f.need("questions", w.Questions != nil)
	f.need("total_reward", w.TotalReward != nil)
	f.need("max_reward_per_user", w.MaxRewardPerUser != nil)
	f.need("participants", w.Participants != nil)
	f.need("reward_type", w.Policy != nil)
	f.need("difficulty", w.Difficulty != nil)
	if err := f.err(); err != nil {
		return domain.QuizDataset{}, err
	}

	quiz := domain.QuizDataset{
		ID:               *w.ID,
		ProtocolID:       *w.ProtocolID,
		NumQuestions:     *w.NumQuestions,
		Questions:        make([]domain.Question, len(w.Questions)),
		TotalReward:      *w.TotalReward,
		MaxRewardPerUser: *w.MaxRewardPerUser,
		Participants:     make([]domain.Participant, len(w.Participants)),
		Policy:           *w.Policy,
		Difficulty:       *w.Difficulty,
	}
	for i, q := range w.Questions {
		question, err := q.toDomain(fmt.Sprintf("questions[%d]", i))
		if err != nil {
			return domain.QuizDataset{}, err
		}
		quiz.Questions[i] = question
	}
	for i, p := range w.Participants {
		participant, err := p.toDomain(fmt.Sprintf("participants[%d]", i))
		if err != nil {
			return domain.QuizDataset{}, err
		}
		quiz.Participants[i] = participant
	}
	return quiz, nil
}

func (w questionWire) toDomain(path string) (domain.Question, error) {
	var f fields
	f.need(path+".id", w.ID != nil)
	f.need(path+".question_text", w.Text != nil)
	f.need(path+".options", w.Options != nil)
	f.need(path+".correct_answer", w.Correct != nil)
	for i, o := range w.Options {
		f.need(fmt.Sprintf("%s.options[%d].text", path, i), o.Text != nil)
		f.need(fmt.Sprintf("%s.options[%d].option_index", path, i), o.Label != nil)
	}
	if err := f.err(); err != nil {
		return domain.Question{}, err
	}

	q := domain.Question{
		ID:      *w.ID,
		Text:    *w.Text,
		Options: make([]domain.Option, len(w.Options)),
		Correct: *w.Correct,
	}
	for i, o := range w.Options {
		q.Options[i] = domain.Option{Text: *o.Text, Label: *o.Label}
	}
	return q, nil
}

func (w participantWire) toDomain(path string) (domain.Participant, error) {
	var f fields
	f.need(path+".user_uuid", w.UserID != nil)
	f.need(path+".wallet_address", w.WalletAddress != nil)
	f.need(path+".score", w.Score != nil)
	f.need(path+".answered_questions", w.Answers != nil)
	f.need(path+".submission_time", w.SubmissionTime != nil)
	f.need(path+".start_time", w.StartTime != nil)
	f.need(path+".reward", w.Reward != nil)
	for i, a := range w.Answers {
		f.need(fmt.Sprintf("%s.answered_questions[%d].question_id", path, i), a.QuestionID != nil)
		f.need(fmt.Sprintf("%s.answered_questions[%d].answer", path, i), a.Choice != nil)
	}
	if err := f.err(); err != nil {
		return domain.Participant{}, err
	}

	p := domain.Participant{
		UserID:         *w.UserID,
		WalletAddress:  *w.WalletAddress,
		Score:          *w.Score,
		Answers:        make([]domain.Answer, len(w.Answers)),
		SubmissionTime: *w.SubmissionTime,
		StartTime:      *w.StartTime,
		Reward:         *w.Reward,
	}
	for i, a := range w.Answers {
		p.Answers[i] = domain.Answer{QuestionID: *a.QuestionID, Choice: *a.Choice}
	}
	return p, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
