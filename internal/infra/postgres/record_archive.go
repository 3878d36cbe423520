package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"openquest-settlement/internal/app"
	"openquest-settlement/internal/domain"
)

// RecordArchive stores every settlement in the settlements table.
type RecordArchive struct {
	pool *pgxpool.Pool
}

func NewRecordArchive(pool *pgxpool.Pool) *RecordArchive {
	return &RecordArchive{pool: pool}
}

// Save inserts the settlement; replays of the same dataset share an id and are ignored.
func (a *RecordArchive) Save(ctx context.Context, s app.Settlement) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO settlements (id, quiz_id, protocol_id, digest, envelope)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		s.ID, s.Record.QuizID, s.Record.ProtocolID, s.Digest, s.Envelope,
	)
	if err != nil {
		return fmt.Errorf("save settlement: %w", err)
	}
	return nil
}

func (a *RecordArchive) Latest(ctx context.Context, quizID string) ([]byte, error) {
	var envelope []byte
	err := a.pool.QueryRow(ctx,
		`SELECT envelope FROM settlements WHERE quiz_id=$1 ORDER BY created_at DESC, seq DESC LIMIT 1`,
		quizID,
	).Scan(&envelope)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load settlement: %w", err)
	}
	return envelope, nil
}
