// Package rollup drives settlement from a rollup HTTP server: it long-polls /finish for the
// next request, settles advance inputs and emits the record as a notice.
package rollup

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"openquest-settlement/internal/app"
)

const (
	statusAccept = "accept"
	statusReject = "reject"

	requestAdvance = "advance_state"
	requestInspect = "inspect_state"
)

// Settler is the part of the settlement service the runner drives.
type Settler interface {
	Settle(ctx context.Context, envelope []byte) (app.Settlement, error)
	Latest(ctx context.Context, quizID string) ([]byte, error)
}

// Runner exchanges requests with the rollup HTTP server until its context ends.
type Runner struct {
	baseURL      string
	client       *http.Client
	settler      Settler
	pollInterval time.Duration
	log          *zap.Logger
}

func NewRunner(baseURL string, settler Settler, pollInterval time.Duration, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Runner{
		baseURL:      strings.TrimRight(baseURL, "/"),
		client:       &http.Client{Timeout: 60 * time.Second},
		settler:      settler,
		pollInterval: pollInterval,
		log:          log,
	}
}

type finishRequest struct {
	Status string `json:"status"`
}

type rollupRequest struct {
	RequestType string `json:"request_type"`
	Data        struct {
		Metadata json.RawMessage `json:"metadata"`
		Payload  string          `json:"payload"`
	} `json:"data"`
}

type payloadMessage struct {
	Payload string `json:"payload"`
}

// Run loops until ctx is cancelled. Transport failures are logged and retried after the
// poll interval; the status reported with the next finish reflects the last handled request.
func (r *Runner) Run(ctx context.Context) error {
	status := statusAccept
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		req, pending, err := r.finish(ctx, status)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.log.Warn("rollup finish failed", zap.Error(err))
			if !r.sleep(ctx) {
				return nil
			}
			continue
		}
		if !pending {
			r.log.Debug("no pending rollup request")
			if !r.sleep(ctx) {
				return nil
			}
			continue
		}
		status = r.handle(ctx, req)
	}
}

// handle processes one rollup request and returns the status for the next finish call.
func (r *Runner) handle(ctx context.Context, req rollupRequest) string {
	switch req.RequestType {
	case requestAdvance:
		return r.advance(ctx, req)
	case requestInspect:
		return r.inspect(ctx, req)
	default:
		r.log.Warn("unknown rollup request type", zap.String("request_type", req.RequestType))
		return statusReject
	}
}

func (r *Runner) advance(ctx context.Context, req rollupRequest) string {
	envelope, err := decodeHex(req.Data.Payload)
	if err != nil {
		r.log.Warn("advance payload", zap.Error(err))
		r.report(ctx, []byte(err.Error()))
		return statusReject
	}

	result, err := r.settler.Settle(ctx, envelope)
	if err != nil {
		r.report(ctx, []byte(err.Error()))
		return statusReject
	}
	if err := r.post(ctx, "/notice", result.Envelope); err != nil {
		r.log.Error("emit notice", zap.String("settlement_id", result.ID), zap.Error(err))
		return statusReject
	}
	r.log.Info("settlement notice emitted",
		zap.String("settlement_id", result.ID),
		zap.String("quiz_id", result.Record.QuizID),
	)
	return statusAccept
}

func (r *Runner) inspect(ctx context.Context, req rollupRequest) string {
	raw, err := decodeHex(req.Data.Payload)
	if err != nil {
		r.report(ctx, []byte(err.Error()))
		return statusReject
	}
	quizID := string(raw)

	envelope, err := r.settler.Latest(ctx, quizID)
	if err != nil {
		r.report(ctx, []byte(err.Error()))
		return statusAccept
	}
	r.report(ctx, envelope)
	return statusAccept
}

func (r *Runner) report(ctx context.Context, payload []byte) {
	if err := r.post(ctx, "/report", payload); err != nil {
		r.log.Warn("emit report", zap.Error(err))
	}
}

// finish reports status and returns the next request; pending is false on 202.
func (r *Runner) finish(ctx context.Context, status string) (rollupRequest, bool, error) {
	body, err := json.Marshal(finishRequest{Status: status})
	if err != nil {
		return rollupRequest{}, false, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/finish", bytes.NewReader(body))
	if err != nil {
		return rollupRequest{}, false, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return rollupRequest{}, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		_, _ = io.Copy(io.Discard, resp.Body)
		return rollupRequest{}, false, nil
	case http.StatusOK:
	default:
		return rollupRequest{}, false, fmt.Errorf("finish: unexpected status %d", resp.StatusCode)
	}

	var req rollupRequest
	if err := json.NewDecoder(resp.Body).Decode(&req); err != nil {
		return rollupRequest{}, false, fmt.Errorf("finish: decode request: %w", err)
	}
	return req, true, nil
}

func (r *Runner) post(ctx context.Context, path string, payload []byte) error {
	body, err := json.Marshal(payloadMessage{Payload: encodeHex(payload)})
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}

func (r *Runner) sleep(ctx context.Context) bool {
	timer := time.NewTimer(r.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

var errMissingPrefix = errors.New("payload is not 0x-prefixed hex")

func decodeHex(s string) ([]byte, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, errMissingPrefix
	}
	out, err := hex.DecodeString(s[2:])
	if err != nil {
		return nil, fmt.Errorf("payload hex: %w", err)
	}
	return out, nil
}

func encodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
