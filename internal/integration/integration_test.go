package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"openquest-settlement/internal/app"
	"openquest-settlement/internal/codec"
	"openquest-settlement/internal/domain"
	pgarchive "openquest-settlement/internal/infra/postgres"
	pgmigrations "openquest-settlement/internal/infra/postgres/migrations"
	infraredis "openquest-settlement/internal/infra/redis"
)

func TestSettleEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	archive := pgarchive.NewRecordArchive(pool)
	cache := infraredis.NewRecordCache(redisClient, 5*time.Minute)
	feeds := infraredis.NewFeedStore(redisClient, 5*time.Minute)
	service := app.NewSettlementService(cache, archive, feeds, nil)

	envelope, err := codec.EncodeDataset(sampleQuiz())
	if err != nil {
		t.Fatalf("encode dataset: %v", err)
	}

	first, err := service.Settle(ctx, envelope)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if first.Cached {
		t.Fatalf("first settlement should not be cached")
	}

	second, err := service.Settle(ctx, envelope)
	if err != nil {
		t.Fatalf("settle again: %v", err)
	}
	if !second.Cached || string(second.Envelope) != string(first.Envelope) {
		t.Fatalf("expected redis cache hit with identical envelope")
	}

	// a fresh cache forces a second archive write with the same id
	uncached := app.NewSettlementService(nil, archive, nil, nil)
	if _, err := uncached.Settle(ctx, envelope); err != nil {
		t.Fatalf("settle without cache: %v", err)
	}
	var rows int
	if err := pool.QueryRow(ctx, `SELECT count(*) FROM settlements WHERE quiz_id=$1`, "quiz-1").Scan(&rows); err != nil {
		t.Fatalf("count settlements: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected one archived settlement, got %d", rows)
	}

	latest, err := service.Latest(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	record, err := codec.DecodeRecord(latest)
	if err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if len(record.Results) != 3 {
		t.Fatalf("expected three results, got %+v", record.Results)
	}
	if record.Results[0].Reward <= record.Results[2].Reward {
		t.Fatalf("expected the top scorer to earn more, got %+v", record.Results)
	}

	// a resettled quiz with a different pool becomes the latest record
	resettled := sampleQuiz()
	resettled.TotalReward = 600
	resettledEnvelope, err := codec.EncodeDataset(resettled)
	if err != nil {
		t.Fatalf("encode dataset: %v", err)
	}
	newer, err := service.Settle(ctx, resettledEnvelope)
	if err != nil {
		t.Fatalf("settle resettled quiz: %v", err)
	}
	latest, err = archive.Latest(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("latest after resettle: %v", err)
	}
	if string(latest) != string(newer.Envelope) {
		t.Fatalf("expected the newest settlement to be latest")
	}
	if _, err := archive.Latest(ctx, "quiz-unknown"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected not found for unknown quiz, got %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "settle", "POSTGRES_PASSWORD": "settlepass", "POSTGRES_DB": "settlements"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://settle:settlepass@%s:%s/settlements?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func sampleQuiz() domain.QuizDataset {
	options := []domain.Option{
		{Text: "3", Label: domain.OptionA},
		{Text: "4", Label: domain.OptionB},
		{Text: "5", Label: domain.OptionC},
		{Text: "6", Label: domain.OptionD},
	}
	return domain.QuizDataset{
		ID:           "quiz-1",
		ProtocolID:   "protocol-1",
		NumQuestions: 2,
		Questions: []domain.Question{
			{ID: 1, Text: "What is 2 + 2?", Options: options, Correct: domain.OptionB},
			{ID: 2, Text: "What is 2 + 3?", Options: options, Correct: domain.OptionC},
		},
		TotalReward:      300,
		MaxRewardPerUser: 200,
		Policy:           domain.PolicyRankWeighted,
		Difficulty:       domain.DifficultyMedium,
		Participants: []domain.Participant{
			{UserID: "u1", WalletAddress: "0xaaa", Answers: []domain.Answer{{QuestionID: 1, Choice: domain.OptionB}, {QuestionID: 2, Choice: domain.OptionC}}},
			{UserID: "u2", WalletAddress: "0xbbb", Answers: []domain.Answer{{QuestionID: 1, Choice: domain.OptionB}}},
			{UserID: "u3", WalletAddress: "0xccc", Answers: []domain.Answer{{QuestionID: 2, Choice: domain.OptionA}}},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
