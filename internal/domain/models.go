package domain

// Option is one labeled answer choice of a question.
type Option struct {
	Text  string      `json:"text"`
	Label OptionLabel `json:"option_index"`
}

// Question models an MCQ question with exactly four options and one correct label.
type Question struct {
	ID      int         `json:"id"`
	Text    string      `json:"question_text"`
	Options []Option    `json:"options"`
	Correct OptionLabel `json:"correct_answer"`
}

// Answer is a participant's choice for one question.
type Answer struct {
	QuestionID int         `json:"question_id"`
	Choice     OptionLabel `json:"answer"`
}

// Participant is one quiz taker. Score and Reward are derived by the settlement pass.
type Participant struct {
	UserID         string   `json:"user_uuid"`
	WalletAddress  string   `json:"wallet_address"`
	Score          int      `json:"score"`
	Answers        []Answer `json:"answered_questions"`
	SubmissionTime int64    `json:"submission_time"`
	StartTime      int64    `json:"start_time"`
	Reward         float64  `json:"reward"`
}

// QuizDataset is the finalized quiz handed to the settlement pass.
type QuizDataset struct {
	ID               string        `json:"uuid"`
	ProtocolID       string        `json:"protocol"`
	NumQuestions     int           `json:"num_questions"`
	Questions        []Question    `json:"questions"`
	TotalReward      float64       `json:"total_reward"`
	MaxRewardPerUser float64       `json:"max_reward_per_user"`
	Participants     []Participant `json:"participants"`
	Policy           Policy        `json:"reward_type"`
	Difficulty       Difficulty    `json:"difficulty"`
}

// SettlementEntry is the ledger line for a single participant.
type SettlementEntry struct {
	Address           string  `json:"user_address"`
	Reward            float64 `json:"reward_amount"`
	LeaderboardPoints float64 `json:"leader_boar_addition"`
	Score             int     `json:"quiz_score"`
}

// SettlementRecord is the result payload consumed by the external ledger.
type SettlementRecord struct {
	QuizID     string            `json:"uuid"`
	ProtocolID string            `json:"protocol"`
	Results    []SettlementEntry `json:"results"`
}
