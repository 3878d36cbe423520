package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketSettlementFeed(t *testing.T) {
	service := newService()
	server := httptest.NewServer(NewRouter(service, nil))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws?quizId=quiz-1"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// the subscription is registered before the upgrade completes
	resp, err := http.Post(server.URL+"/settlements", "text/plain", bytes.NewReader(encodeQuiz(t, sampleQuiz())))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	typ, payload := readNext(conn, t)
	if typ != "settlement" {
		t.Fatalf("expected settlement, got %s", typ)
	}
	if payload["uuid"] != "quiz-1" {
		t.Fatalf("unexpected payload %v", payload)
	}
	results, ok := payload["results"].([]any)
	if !ok || len(results) != 2 {
		t.Fatalf("expected two results, got %v", payload["results"])
	}

	if err := conn.WriteJSON(map[string]string{"type": "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if typ, _ := readNext(conn, t); typ != "error" {
		t.Fatalf("expected error for inbound message, got %s", typ)
	}
}

func TestWebSocketRequiresQuizID(t *testing.T) {
	server := httptest.NewServer(NewRouter(newService(), nil))
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expected dial failure")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %+v", resp)
	}
}

func readNext(conn *websocket.Conn, t *testing.T) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	return msg.Type, msg.Payload
}
