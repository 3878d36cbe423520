package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Policy selects how a reward pool is split among ranked participants.
type Policy uint8

const (
	PolicyRankWeighted Policy = iota + 1
	PolicyEqualTopFive
	PolicyLottery
)

// Wire tags are part of the ledger contract; the misspelling in the equal policy is load-bearing.
var policyTags = map[Policy]string{
	PolicyRankWeighted: "DistributedByRankToTopFive",
	PolicyEqualTopFive: "DistributedEqullyToTopFive",
	PolicyLottery:      "DistributedByLottery",
}

var policyByTag = map[string]Policy{
	"DistributedByRankToTopFive": PolicyRankWeighted,
	"DistributedEqullyToTopFive": PolicyEqualTopFive,
	"DistributedByLottery":       PolicyLottery,
}

// policyAliases are the lower-case names quiz creators type in forms and flags.
var policyAliases = map[string]Policy{
	"distributed_by_rank":    PolicyRankWeighted,
	"distributed_equally":    PolicyEqualTopFive,
	"distributed_by_lottery": PolicyLottery,
}

func (p Policy) String() string {
	if tag, ok := policyTags[p]; ok {
		return tag
	}
	return fmt.Sprintf("Policy(%d)", uint8(p))
}

// Valid reports whether p is one of the three known policies.
func (p Policy) Valid() bool {
	_, ok := policyTags[p]
	return ok
}

// PolicyFromTag resolves a canonical wire tag. Anything else is an error.
func PolicyFromTag(tag string) (Policy, error) {
	if p, ok := policyByTag[tag]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, tag)
}

// ParsePolicy accepts either a canonical wire tag or one of the snake_case aliases,
// case-insensitively. Used for human input; the wire decoder uses PolicyFromTag.
func ParsePolicy(raw string) (Policy, error) {
	if p, ok := policyByTag[raw]; ok {
		return p, nil
	}
	lower := strings.ToLower(strings.TrimSpace(raw))
	if p, ok := policyAliases[lower]; ok {
		return p, nil
	}
	for _, p := range []Policy{PolicyRankWeighted, PolicyEqualTopFive, PolicyLottery} {
		if strings.EqualFold(policyTags[p], lower) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, raw)
}

func (p Policy) MarshalJSON() ([]byte, error) {
	tag, ok := policyTags[p]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPolicy, uint8(p))
	}
	return json.Marshal(tag)
}

func (p *Policy) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownPolicy, data)
	}
	v, err := PolicyFromTag(tag)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Difficulty is the quiz difficulty tier.
type Difficulty uint8

const (
	DifficultyEasy Difficulty = iota + 1
	DifficultyMedium
	DifficultyHard
)

var difficultyTags = map[Difficulty]string{
	DifficultyEasy:   "Easy",
	DifficultyMedium: "Medium",
	DifficultyHard:   "Hard",
}

var difficultyByTag = map[string]Difficulty{
	"Easy":   DifficultyEasy,
	"Medium": DifficultyMedium,
	"Hard":   DifficultyHard,
}

func (d Difficulty) String() string {
	if tag, ok := difficultyTags[d]; ok {
		return tag
	}
	return fmt.Sprintf("Difficulty(%d)", uint8(d))
}

// Multiplier scales the percentage part of leaderboard points.
func (d Difficulty) Multiplier() float64 {
	switch d {
	case DifficultyMedium:
		return 1.5
	case DifficultyHard:
		return 2.0
	default:
		return 1.0
	}
}

func (d Difficulty) Valid() bool {
	_, ok := difficultyTags[d]
	return ok
}

func DifficultyFromTag(tag string) (Difficulty, error) {
	if d, ok := difficultyByTag[tag]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownDifficulty, tag)
}

func (d Difficulty) MarshalJSON() ([]byte, error) {
	tag, ok := difficultyTags[d]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDifficulty, uint8(d))
	}
	return json.Marshal(tag)
}

func (d *Difficulty) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownDifficulty, data)
	}
	v, err := DifficultyFromTag(tag)
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// OptionLabel identifies one of the four answer options.
type OptionLabel uint8

const (
	OptionA OptionLabel = iota + 1
	OptionB
	OptionC
	OptionD
)

// OptionLabels lists the labels in canonical order.
var OptionLabels = [4]OptionLabel{OptionA, OptionB, OptionC, OptionD}

var optionTags = map[OptionLabel]string{
	OptionA: "A",
	OptionB: "B",
	OptionC: "C",
	OptionD: "D",
}

var optionByTag = map[string]OptionLabel{
	"A": OptionA,
	"B": OptionB,
	"C": OptionC,
	"D": OptionD,
}

func (o OptionLabel) String() string {
	if tag, ok := optionTags[o]; ok {
		return tag
	}
	return fmt.Sprintf("OptionLabel(%d)", uint8(o))
}

func (o OptionLabel) Valid() bool {
	_, ok := optionTags[o]
	return ok
}

func OptionFromTag(tag string) (OptionLabel, error) {
	if o, ok := optionByTag[tag]; ok {
		return o, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownOption, tag)
}

func (o OptionLabel) MarshalJSON() ([]byte, error) {
	tag, ok := optionTags[o]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOption, uint8(o))
	}
	return json.Marshal(tag)
}

func (o *OptionLabel) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownOption, data)
	}
	v, err := OptionFromTag(tag)
	if err != nil {
		return err
	}
	*o = v
	return nil
}
