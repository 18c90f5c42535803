package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/IrishDec/heiyuquiz-server/internal/app"
	"github.com/IrishDec/heiyuquiz-server/internal/domain"
)

// Handler exposes the session lifecycle over polling JSON endpoints.
type Handler struct {
	service *app.SessionLifecycle
	clock   func() time.Time
	log     *slog.Logger
}

func NewHandler(service *app.SessionLifecycle, log *slog.Logger) *Handler {
	return &Handler{service: service, clock: time.Now, log: log}
}

// Register mounts all routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.banner)
	mux.HandleFunc("GET /api/health", h.health)
	mux.HandleFunc("POST /api/createQuiz", h.createQuiz)
	mux.HandleFunc("POST /api/createQuiz/ai", h.createQuizAI)
	mux.HandleFunc("GET /api/quiz/{id}", h.getQuiz)
	mux.HandleFunc("POST /api/quiz/{id}/submit", h.submit)
	mux.HandleFunc("GET /api/quiz/{id}/results", h.results)
	mux.HandleFunc("GET /api/quiz/{id}/answers", h.answers)
}

type createPayload struct {
	Category    string `json:"category"`
	Topic       string `json:"topic"`
	Country     string `json:"country"`
	Amount      int    `json:"amount"`
	DurationSec int    `json:"durationSec"`
	Difficulty  string `json:"difficulty"`
}

func (p *createPayload) applyDefaults() {
	if p.Category == "" {
		p.Category = "General"
	}
	if p.Amount == 0 {
		p.Amount = 5
	}
	if p.DurationSec == 0 {
		p.DurationSec = 600
	}
}

func (h *Handler) banner(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("HeiyuQuiz server running"))
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "now": h.clock().UnixMilli()})
}

func (h *Handler) createQuiz(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	decodeBody(r, &payload)
	payload.applyDefaults()
	// The plain endpoint never routes to the AI path, whatever the body says.
	payload.Topic = ""

	result, err := h.service.Create(r.Context(), app.CreateRequest{
		Category: payload.Category,
		Country:  payload.Country,
		Amount:   payload.Amount,
		Duration: time.Duration(payload.DurationSec) * time.Second,
	})
	if err != nil {
		h.writeError(w, err, "Failed to create quiz")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"quizId":       result.SessionID,
		"closesAt":     result.ClosesAt.UnixMilli(),
		"shareUrlHint": "/play#" + result.SessionID,
	})
}

func (h *Handler) createQuizAI(w http.ResponseWriter, r *http.Request) {
	var payload createPayload
	decodeBody(r, &payload)
	payload.applyDefaults()

	result, err := h.service.Create(r.Context(), app.CreateRequest{
		Category:   payload.Category,
		Topic:      payload.Topic,
		Country:    payload.Country,
		Amount:     payload.Amount,
		Duration:   time.Duration(payload.DurationSec) * time.Second,
		Difficulty: payload.Difficulty,
	})
	if err != nil {
		h.writeError(w, err, "AI quiz failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"quizId":   result.SessionID,
		"closesAt": result.ClosesAt.UnixMilli(),
		"provider": string(result.Provider),
	})
}

func (h *Handler) getQuiz(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Fetch(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "Quiz not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"id":        result.ID,
		"category":  result.Category,
		"closesAt":  result.ClosesAt.UnixMilli(),
		"open":      result.Open,
		"questions": result.Questions,
	})
}

type submitPayload struct {
	Name  string `json:"name"`
	Picks []any  `json:"picks"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var payload submitPayload
	decodeBody(r, &payload)
	if payload.Name == "" {
		payload.Name = "Player"
	}

	fingerprint := app.Fingerprint(clientOrigin(r), payload.Name)
	score, err := h.service.Submit(r.Context(), r.PathValue("id"), fingerprint, payload.Name, payload.Picks)
	if err != nil {
		h.writeError(w, err, "Submit failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "score": score})
}

func (h *Handler) results(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Results(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err, "Quiz not found")
		return
	}
	rows := make([]map[string]any, 0, len(result.Rows))
	for _, sub := range result.Rows {
		rows = append(rows, map[string]any{
			"name":        sub.DisplayName,
			"score":       sub.Score,
			"submittedAt": sub.SubmittedAt.UnixMilli(),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":             true,
		"id":             result.ID,
		"category":       result.Category,
		"totalQuestions": result.TotalQuestions,
		"results":        rows,
	})
}

func (h *Handler) answers(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	questions, err := h.service.Answers(r.Context(), id)
	if err != nil {
		h.writeError(w, err, "Quiz not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": id, "questions": questions})
}

// writeError maps the domain error taxonomy onto HTTP statuses. Internal
// detail never reaches the client; fallback is the caller's short message.
func (h *Handler) writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "Quiz not found"})
	case errors.Is(err, domain.ErrAtCapacity):
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": "Quiz is at capacity, please try another round."})
	case errors.Is(err, domain.ErrDuplicateSubmission):
		writeJSON(w, http.StatusConflict, map[string]any{"ok": false, "error": "You have already submitted for this quiz."})
	case errors.Is(err, domain.ErrSessionClosed):
		writeJSON(w, http.StatusGone, map[string]any{"ok": false, "error": "Quiz has closed."})
	default:
		h.log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": fallback})
	}
}

// decodeBody tolerates absent or malformed bodies; fields keep their zero
// values and the handler's defaults take over.
func decodeBody(r *http.Request, v any) {
	if r.Body == nil {
		return
	}
	_ = json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// clientOrigin picks the first forwarded address, falling back to the socket
// peer's host. The ephemeral port must not leak into the origin: fingerprints
// and rate-limit keys have to be stable across connections.
func clientOrigin(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if r.RemoteAddr != "" {
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return host
		}
		return r.RemoteAddr
	}
	return "ip"
}
