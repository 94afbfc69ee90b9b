// Package server exposes the orchestrator over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rentora-labs/atlas/internal/httputil"
	"github.com/rentora-labs/atlas/internal/orchestrator"
	"github.com/rentora-labs/atlas/internal/router"
	"github.com/rentora-labs/atlas/internal/types"
)

// Handler holds dependencies for the Atlas HTTP handlers.
type Handler struct {
	svc    *orchestrator.Service
	logger *slog.Logger
}

func NewHandler(svc *orchestrator.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// Query handles POST /v1/query
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	receivedAt := time.Now()

	var req types.QueryRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.Query == "" {
		httputil.WriteBadRequestError(w, reqID, "query is required")
		return
	}
	req.RequestID = reqID
	req.ReceivedAt = receivedAt

	resp, err := h.svc.Query(r.Context(), req)
	if err != nil {
		if errors.Is(err, router.ErrServiceDegraded) {
			h.logger.Error("query degraded, all tiers exhausted", "request_id", reqID, "error", err)
			httputil.WriteServiceDegradedError(w, reqID, "All model tiers are currently unavailable; retry shortly")
			return
		}
		h.logger.Error("query failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to process query")
		return
	}

	h.logger.Info("query completed",
		"request_id", reqID,
		"model", resp.Model,
		"tier", string(resp.Classification.RecommendedTier),
		"from_cache", resp.FromCache,
		"was_duplicate", resp.WasDuplicate,
		"cost_saved_usd", resp.CostSavedUSD,
		"duration_ms", resp.DurationMs,
	)
	writeJSON(w, resp)
}

// Intelligence handles POST /v1/intelligence
func (h *Handler) Intelligence(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	receivedAt := time.Now()

	var req types.IntelligenceRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.Query == "" {
		httputil.WriteBadRequestError(w, reqID, "query is required")
		return
	}
	req.RequestID = reqID
	req.ReceivedAt = receivedAt

	resp, err := h.svc.GetComprehensiveIntelligence(r.Context(), req)
	if err != nil {
		h.logger.Error("intelligence request failed", "request_id", reqID, "error", err)
		httputil.WriteInternalError(w, reqID, "Failed to assemble intelligence")
		return
	}

	h.logger.Info("intelligence completed",
		"request_id", reqID,
		"validation_status", string(resp.Insight.ValidationStatus),
		"sources_failed", resp.Insight.SourcesFailed,
		"degraded", resp.Insight.Degraded,
		"response_time_ms", resp.Insight.ResponseTimeMs,
	)
	writeJSON(w, resp)
}

// Classify handles POST /v1/classify
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req types.QueryRequest
	if !decodeBody(w, r, reqID, &req) {
		return
	}
	if req.Query == "" {
		httputil.WriteBadRequestError(w, reqID, "query is required")
		return
	}

	writeJSON(w, h.svc.Classify(req.Query, req.Context))
}

// Analytics handles GET /v1/analytics
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.svc.Analytics())
}

// Preload handles POST /v1/preload. Always 202: warming is advisory.
func (h *Handler) Preload(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req struct {
		Location string `json:"location"`
		UserID   string `json:"user_id"`
	}
	if !decodeBody(w, r, reqID, &req) {
		return
	}

	// Fire-and-forget; the request context dies with the response.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		h.svc.Preload(ctx, req.Location, req.UserID)
	}()
	w.WriteHeader(http.StatusAccepted)
}

func decodeBody(w http.ResponseWriter, r *http.Request, reqID string, dest any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		return false
	}
	defer r.Body.Close()

	if err := json.Unmarshal(body, dest); err != nil {
		httputil.WriteBadRequestError(w, reqID, "Invalid JSON: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
