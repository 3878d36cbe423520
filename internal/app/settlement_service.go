package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"openquest-settlement/internal/codec"
	"openquest-settlement/internal/domain"
	"openquest-settlement/internal/settlement"
)

// ErrFeedDisabled is returned by Subscribe when the service runs without feeds.
var ErrFeedDisabled = errors.New("settlement feed not configured")

// settlementNamespace scopes the name-based ids derived from payload digests.
var settlementNamespace = uuid.MustParse("6f1c3c52-5b0e-4a43-9a3e-5d7b0f2b9e61")

// RecordCache keeps encoded settlements keyed by the digest of the dataset envelope.
type RecordCache interface {
	Get(ctx context.Context, digest string) ([]byte, bool, error)
	Put(ctx context.Context, digest string, envelope []byte) error
}

// RecordArchive durably stores every settlement produced.
type RecordArchive interface {
	Save(ctx context.Context, s Settlement) error
	Latest(ctx context.Context, quizID string) ([]byte, error)
}

// FeedRepository abstracts where per-quiz settlement feeds live.
type FeedRepository interface {
	GetOrCreate(quizID string) *Feed
	Get(quizID string) (*Feed, bool)
	DeleteIfEmpty(quizID string)
}

// Settlement is one settled dataset.
type Settlement struct {
	ID       string
	Digest   string
	Record   domain.SettlementRecord
	Envelope []byte
	Cached   bool
}

// SettlementService runs the settlement pipeline behind a cache, an archive and a live feed.
type SettlementService struct {
	cache   RecordCache
	archive RecordArchive
	feeds   FeedRepository
	log     *zap.Logger
	sf      singleflight.Group
}

func NewSettlementService(cache RecordCache, archive RecordArchive, feeds FeedRepository, log *zap.Logger) *SettlementService {
	if log == nil {
		log = zap.NewNop()
	}
	return &SettlementService{cache: cache, archive: archive, feeds: feeds, log: log}
}

// Settle decodes a dataset envelope, settles it and returns the record envelope.
// Identical envelopes produce identical records; repeats are served from the cache.
func (s *SettlementService) Settle(ctx context.Context, envelope []byte) (Settlement, error) {
	digest := Digest(envelope)
	if cached, ok := s.fromCache(ctx, digest); ok {
		return cached, nil
	}

	// the flight is shared by every caller with this digest, so it must outlive any one of them
	flightCtx := context.WithoutCancel(ctx)
	result, err, _ := s.sf.Do(digest, func() (interface{}, error) {
		ctx := flightCtx
		if cached, ok := s.fromCache(ctx, digest); ok {
			return cached, nil
		}

		quiz, err := codec.DecodeDataset(envelope)
		if err != nil {
			return Settlement{}, err
		}
		record, err := settlement.Settle(quiz)
		if err != nil {
			return Settlement{}, err
		}
		encoded, err := codec.EncodeRecord(record)
		if err != nil {
			return Settlement{}, err
		}

		out := Settlement{
			ID:       SettlementID(digest),
			Digest:   digest,
			Record:   record,
			Envelope: encoded,
		}
		if s.archive != nil {
			if err := s.archive.Save(ctx, out); err != nil {
				return Settlement{}, err
			}
		}
		if s.cache != nil {
			if err := s.cache.Put(ctx, digest, encoded); err != nil {
				s.log.Warn("cache settlement", zap.String("digest", digest), zap.Error(err))
			}
		}
		s.publish(record)

		s.log.Info("quiz settled",
			zap.String("settlement_id", out.ID),
			zap.String("quiz_id", record.QuizID),
			zap.String("protocol_id", record.ProtocolID),
			zap.Stringer("policy", quiz.Policy),
			zap.Int("participants", len(record.Results)),
		)
		return out, nil
	})
	if err != nil {
		s.log.Warn("settlement rejected", zap.String("digest", digest), zap.Error(err))
		return Settlement{}, err
	}
	return result.(Settlement), nil
}

// Latest returns the most recently archived record envelope for a quiz.
func (s *SettlementService) Latest(ctx context.Context, quizID string) ([]byte, error) {
	if s.archive == nil {
		return nil, domain.ErrRecordNotFound
	}
	return s.archive.Latest(ctx, quizID)
}

// Subscribe returns a channel that receives settlement records for a quiz.
// The caller must invoke the returned cancel function to avoid leaks.
// The latest archived record, if any, is delivered first.
func (s *SettlementService) Subscribe(ctx context.Context, quizID string) (<-chan domain.SettlementRecord, func(), error) {
	if s.feeds == nil {
		return nil, nil, ErrFeedDisabled
	}
	feed, ch, unsubscribe := s.attach(quizID)
	if envelope, err := s.Latest(ctx, quizID); err == nil {
		if record, err := codec.DecodeRecord(envelope); err == nil {
			feed.prime(ch, record)
		}
	} else if !errors.Is(err, domain.ErrRecordNotFound) {
		s.log.Warn("load latest settlement", zap.String("quiz_id", quizID), zap.Error(err))
	}
	return ch, func() {
		unsubscribe()
		if feed.IsEmpty() {
			s.feeds.DeleteIfEmpty(quizID)
		}
	}, nil
}

// attach registers a subscriber on the feed currently held by the store. A feed removed by a
// concurrent DeleteIfEmpty between lookup and registration is abandoned and the lookup retried;
// once registered the feed is non-empty and stays in the store until the subscriber leaves.
func (s *SettlementService) attach(quizID string) (*Feed, chan domain.SettlementRecord, func()) {
	for {
		feed := s.feeds.GetOrCreate(quizID)
		ch, unsubscribe := feed.subscribe()
		if current, ok := s.feeds.Get(quizID); ok && current == feed {
			return feed, ch, unsubscribe
		}
		unsubscribe()
	}
}

func (s *SettlementService) fromCache(ctx context.Context, digest string) (Settlement, bool) {
	if s.cache == nil {
		return Settlement{}, false
	}
	encoded, ok, err := s.cache.Get(ctx, digest)
	if err != nil {
		s.log.Warn("read settlement cache", zap.String("digest", digest), zap.Error(err))
		return Settlement{}, false
	}
	if !ok {
		return Settlement{}, false
	}
	record, err := codec.DecodeRecord(encoded)
	if err != nil {
		s.log.Warn("discarding corrupt cache entry", zap.String("digest", digest), zap.Error(err))
		return Settlement{}, false
	}
	return Settlement{
		ID:       SettlementID(digest),
		Digest:   digest,
		Record:   record,
		Envelope: encoded,
		Cached:   true,
	}, true
}

func (s *SettlementService) publish(record domain.SettlementRecord) {
	if s.feeds == nil {
		return
	}
	if feed, ok := s.feeds.Get(record.QuizID); ok {
		feed.publish(record)
	}
}

// Digest identifies a dataset envelope.
func Digest(envelope []byte) string {
	sum := sha256.Sum256(envelope)
	return hex.EncodeToString(sum[:])
}

// SettlementID derives a stable id from a digest, so replays map to the same settlement.
func SettlementID(digest string) string {
	return uuid.NewSHA1(settlementNamespace, []byte(digest)).String()
}
