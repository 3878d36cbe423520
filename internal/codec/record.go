package codec

import (
	"encoding/json"
	"fmt"

	"openquest-settlement/internal/domain"
)

type recordWire struct {
	QuizID     *string     `json:"uuid"`
	ProtocolID *string     `json:"protocol"`
	Results    []entryWire `json:"results"`
}

type entryWire struct {
	Address           *string  `json:"user_address"`
	Reward            *float64 `json:"reward_amount"`
	LeaderboardPoints *float64 `json:"leader_boar_addition"`
	Score             *int     `json:"quiz_score"`
}

// EncodeRecord produces the canonical envelope for a settlement record.
func EncodeRecord(record domain.SettlementRecord) ([]byte, error) {
	record.Results = nonNil(record.Results)
	doc, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return seal(doc), nil
}

// DecodeRecord opens an envelope holding a settlement record.
func DecodeRecord(envelope []byte) (domain.SettlementRecord, error) {
	doc, err := open(envelope)
	if err != nil {
		return domain.SettlementRecord{}, err
	}
	var w recordWire
	if err := decodeStrict(doc, &w); err != nil {
		return domain.SettlementRecord{}, err
	}

	var f fields
	f.need("uuid", w.QuizID != nil)
	f.need("protocol", w.ProtocolID != nil)
	f.need("results", w.Results != nil)
	for i, e := range w.Results {
		f.need(fmt.Sprintf("results[%d].user_address", i), e.Address != nil)
		f.need(fmt.Sprintf("results[%d].reward_amount", i), e.Reward != nil)
		f.need(fmt.Sprintf("results[%d].leader_boar_addition", i), e.LeaderboardPoints != nil)
		f.need(fmt.Sprintf("results[%d].quiz_score", i), e.Score != nil)
	}
	if err := f.err(); err != nil {
		return domain.SettlementRecord{}, err
	}

	record := domain.SettlementRecord{
		QuizID:     *w.QuizID,
		ProtocolID: *w.ProtocolID,
		Results:    make([]domain.SettlementEntry, len(w.Results)),
	}
	for i, e := range w.Results {
		record.Results[i] = domain.SettlementEntry{
			Address:           *e.Address,
			Reward:            *e.Reward,
			LeaderboardPoints: *e.LeaderboardPoints,
			Score:             *e.Score,
		}
	}
	return record, nil
}
