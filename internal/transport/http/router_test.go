package http

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"openquest-settlement/internal/app"
	"openquest-settlement/internal/codec"
	"openquest-settlement/internal/domain"
	"openquest-settlement/internal/infra/memory"
)

func TestPostSettlementThenFetchLatest(t *testing.T) {
	server := httptest.NewServer(NewRouter(newService(), zaptest.NewLogger(t)))
	defer server.Close()

	envelope := encodeQuiz(t, sampleQuiz())

	resp := post(t, server.URL+"/settlements", string(envelope)+"\n")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	if resp.Header.Get(headerSettlementID) == "" {
		t.Fatalf("expected settlement id header")
	}
	if resp.Header.Get(headerSettlementCached) != "false" {
		t.Fatalf("expected first settlement uncached")
	}
	record, err := codec.DecodeRecord([]byte(body))
	if err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if record.QuizID != "quiz-1" || len(record.Results) != 2 {
		t.Fatalf("unexpected record %+v", record)
	}

	again := post(t, server.URL+"/settlements", string(envelope))
	againBody := readBody(t, again)
	if again.Header.Get(headerSettlementCached) != "true" || againBody != body {
		t.Fatalf("expected cached replay with identical body")
	}

	latest, err := http.Get(server.URL + "/settlements/quiz-1")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if got := readBody(t, latest); latest.StatusCode != http.StatusOK || got != body {
		t.Fatalf("expected archived envelope, got %d %q", latest.StatusCode, got)
	}

	asJSON, err := http.Get(server.URL + "/settlements/quiz-1?format=json")
	if err != nil {
		t.Fatalf("get latest json: %v", err)
	}
	if got := readBody(t, asJSON); !strings.Contains(got, `"leader_boar_addition"`) {
		t.Fatalf("expected ledger json, got %s", got)
	}
}

func TestSettlementErrorsMapToStatus(t *testing.T) {
	server := httptest.NewServer(NewRouter(newService(), nil))
	defer server.Close()

	invalid := sampleQuiz()
	invalid.NumQuestions = 3

	cases := []struct {
		name string
		body string
		want int
	}{
		{name: "garbage", body: "%%%", want: http.StatusBadRequest},
		{name: "empty", body: "", want: http.StatusBadRequest},
		{name: "invalid dataset", body: string(encodeQuiz(t, invalid)), want: http.StatusUnprocessableEntity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := post(t, server.URL+"/settlements", tc.body)
			body := readBody(t, resp)
			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, resp.StatusCode, body)
			}
			if !strings.Contains(body, `"error"`) {
				t.Fatalf("expected json error body, got %s", body)
			}
		})
	}

	resp, err := http.Get(server.URL + "/settlements/unknown")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	server := httptest.NewServer(NewRouter(newService(), nil))
	defer server.Close()

	resp, err := http.Get(server.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if body := readBody(t, resp); body != "ok" {
		t.Fatalf("unexpected health body %q", body)
	}
}

func newService() *app.SettlementService {
	return app.NewSettlementService(
		memory.NewRecordCache(0),
		memory.NewRecordArchive(),
		memory.NewFeedStore(),
		nil,
	)
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "text/plain", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}

func encodeQuiz(t *testing.T, quiz domain.QuizDataset) []byte {
	t.Helper()
	envelope, err := codec.EncodeDataset(quiz)
	if err != nil {
		t.Fatalf("encode dataset: %v", err)
	}
	return envelope
}

func sampleQuiz() domain.QuizDataset {
	options := []domain.Option{
		{Text: "3", Label: domain.OptionA},
		{Text: "4", Label: domain.OptionB},
		{Text: "5", Label: domain.OptionC},
		{Text: "6", Label: domain.OptionD},
	}
	return domain.QuizDataset{
		ID:               "quiz-1",
		ProtocolID:       "protocol-1",
		NumQuestions:     1,
		Questions:        []domain.Question{{ID: 1, Text: "What is 2 + 2?", Options: options, Correct: domain.OptionB}},
		TotalReward:      100,
		MaxRewardPerUser: 100,
		Policy:           domain.PolicyEqualTopFive,
		Difficulty:       domain.DifficultyHard,
		Participants: []domain.Participant{
			{UserID: "u1", WalletAddress: "0xaaa", Answers: []domain.Answer{{QuestionID: 1, Choice: domain.OptionB}}},
			{UserID: "u2", WalletAddress: "0xbbb", Answers: []domain.Answer{{QuestionID: 1, Choice: domain.OptionA}}},
		},
	}
}
