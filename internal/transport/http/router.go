package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"openquest-settlement/internal/app"
	"openquest-settlement/internal/codec"
	"openquest-settlement/internal/domain"
)

const (
	headerSettlementID     = "X-Settlement-Id"
	headerSettlementCached = "X-Settlement-Cached"

	// maxEnvelopeBytes bounds request bodies; base64 inflates the compressed frame by a third.
	maxEnvelopeBytes = 16 << 20
)

// NewRouter mounts the settlement REST endpoints and the websocket feed.
func NewRouter(service *app.SettlementService, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &settlementHandler{service: service, log: log}
	ws := NewWSHandler(service, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/settlements", h.settle)
	r.Get("/settlements/{quizID}", h.latest)
	r.Get("/ws", ws.ServeWS)
	return r
}

type settlementHandler struct {
	service *app.SettlementService
	log     *zap.Logger
}

func (h *settlementHandler) settle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEnvelopeBytes))
	if err != nil {
		writeError(w, r, http.StatusRequestEntityTooLarge, err)
		return
	}

	result, err := h.service.Settle(r.Context(), bytes.TrimSpace(body))
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set(headerSettlementID, result.ID)
	w.Header().Set(headerSettlementCached, strconv.FormatBool(result.Cached))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Envelope)
}

func (h *settlementHandler) latest(w http.ResponseWriter, r *http.Request) {
	quizID := chi.URLParam(r, "quizID")
	envelope, err := h.service.Latest(r.Context(), quizID)
	if err != nil {
		writeError(w, r, statusFor(err), err)
		return
	}

	if r.URL.Query().Get("format") == "json" {
		record, err := codec.DecodeRecord(envelope)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(record)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(envelope)
}

// statusFor maps pipeline errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrDecode),
		errors.Is(err, domain.ErrUnknownPolicy),
		errors.Is(err, domain.ErrUnknownDifficulty),
		errors.Is(err, domain.ErrUnknownOption):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error:     err.Error(),
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
