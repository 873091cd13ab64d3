package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/zappabad/tradinghall/internal/hall/core"
	"github.com/zappabad/tradinghall/internal/hall/service"
)

const (
	defaultDecisionLimit = 50
	maxDecisionLimit     = 500
)

type handlers struct {
	hall    Hall
	timeout time.Duration
	log     *slog.Logger
}

type symbolRequest struct {
	Symbol string `json:"symbol"`
}

type runningRequest struct {
	Running bool `json:"running"`
}

// GET /api/hall/snapshot
func (h *handlers) snapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.hall.Snapshot())
}

// GET /api/hall/decisions?limit=
func (h *handlers) decisions(w http.ResponseWriter, r *http.Request) {
	limit := defaultDecisionLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxDecisionLimit)
	}
	writeJSON(w, http.StatusOK, map[string]any{"decisions": h.hall.Decisions(limit)})
}

// POST /api/hall/symbol {"symbol":"eth"}
func (h *handlers) setSymbol(w http.ResponseWriter, r *http.Request) {
	var req symbolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if err := h.hall.SetSymbol(ctx, req.Symbol); err != nil {
		h.writeHallError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.hall.Snapshot())
}

// POST /api/hall/running {"running":false}
func (h *handlers) setRunning(w http.ResponseWriter, r *http.Request) {
	var req runningRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	if err := h.hall.SetRunning(ctx, req.Running); err != nil {
		h.writeHallError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"running": req.Running})
}

// POST /api/hall/refresh
func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	started, err := h.hall.TriggerFetch(ctx)
	if err != nil {
		h.writeHallError(w, err)
		return
	}
	status := http.StatusAccepted
	if !started {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]bool{"started": started})
}

func (h *handlers) writeHallError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrEmptySymbol):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "hall did not respond in time")
	default:
		h.log.Error("feed: hall request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeJSON marshals v and writes it with the given status. Marshal failures
// become a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
