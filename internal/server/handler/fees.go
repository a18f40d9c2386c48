package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/apexpool/feetier/internal/domain"
	"github.com/apexpool/feetier/internal/service"
)

// decisionResponse is the wire shape of a fee decision.
type decisionResponse struct {
	ID          string    `json:"id"`
	PoolID      string    `json:"pool_id"`
	Seq         uint64    `json:"seq"`
	Volatility  uint64    `json:"volatility"`
	Tier        string    `json:"tier"`
	Fee         uint64    `json:"fee"`
	Bootstrap   bool      `json:"bootstrap"`
	Persistent  bool      `json:"persistent"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

func toDecisionResponse(d domain.FeeDecision) decisionResponse {
	return decisionResponse{
		ID:          d.ID,
		PoolID:      d.PoolID,
		Seq:         d.Seq,
		Volatility:  d.Volatility,
		Tier:        d.Tier.String(),
		Fee:         d.Fee,
		Bootstrap:   d.Bootstrap,
		Persistent:  d.Persistent,
		EvaluatedAt: d.EvaluatedAt,
	}
}

// poolResponse is the wire shape of a registered pool.
type poolResponse struct {
	ID          string   `json:"id"`
	Address     string   `json:"address,omitempty"`
	Windows     []string `json:"windows"`
	Weights     []uint64 `json:"weights"`
	LowTrigger  uint64   `json:"low_trigger"`
	HighTrigger uint64   `json:"high_trigger"`
	LowFee      uint64   `json:"low_fee"`
	RegularFee  uint64   `json:"regular_fee"`
	HighFee     uint64   `json:"high_fee"`
}

func toPoolResponse(p domain.Pool) poolResponse {
	return poolResponse{
		ID:          p.ID,
		Address:     p.Address,
		Windows:     p.Windows,
		Weights:     p.Weights,
		LowTrigger:  p.Tiers.LowTrigger,
		HighTrigger: p.Tiers.HighTrigger,
		LowFee:      p.Tiers.LowFee,
		RegularFee:  p.Tiers.RegularFee,
		HighFee:     p.Tiers.HighFee,
	}
}

// FeeHandler serves pool and fee-decision endpoints backed by the fee
// service.
type FeeHandler struct {
	svc    *service.FeeService
	logger *slog.Logger
}

// NewFeeHandler creates a FeeHandler with the provided service and logger.
func NewFeeHandler(svc *service.FeeService, logger *slog.Logger) *FeeHandler {
	return &FeeHandler{svc: svc, logger: logger}
}

// ListPools returns the pools registered with the fee engine.
// GET /api/pools
func (h *FeeHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	pools := h.svc.Pools()
	out := make([]poolResponse, 0, len(pools))
	for _, p := range pools {
		out = append(out, toPoolResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pools": out,
	})
}

// GetFee returns the last applied fee marker for a pool.
// GET /api/pools/{id}/fee
func (h *FeeHandler) GetFee(w http.ResponseWriter, r *http.Request) {
	poolID := r.PathValue("id")

	applied, err := h.svc.LastFee(r.Context(), poolID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown pool: "+poolID)
		return
	case errors.Is(err, domain.ErrNotInitialized):
		writeError(w, http.StatusConflict, "pool not yet evaluated: "+poolID)
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "get fee failed",
			slog.String("pool_id", poolID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, appliedFeeResponse(applied))
}

// GetHistory returns recent fee decisions for a pool, newest first.
// GET /api/pools/{id}/history?limit=N
func (h *FeeHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	poolID := r.PathValue("id")

	decisions, err := h.svc.History(r.Context(), poolID, parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "history query failed",
			slog.String("pool_id", poolID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	out := make([]decisionResponse, 0, len(decisions))
	for _, d := range decisions {
		out = append(out, toDecisionResponse(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"pool_id":   poolID,
		"decisions": out,
	})
}

// Evaluate triggers a fee evaluation for a single pool and returns the
// resulting decision.
// POST /api/pools/{id}/evaluate
func (h *FeeHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	poolID := r.PathValue("id")

	decision, err := h.svc.EvaluatePool(r.Context(), poolID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "unknown pool: "+poolID)
		return
	case errors.Is(err, domain.ErrLockHeld):
		writeError(w, http.StatusConflict, "evaluation already in progress: "+poolID)
		return
	case errors.Is(err, domain.ErrLengthMismatch),
		errors.Is(err, domain.ErrNegativeReading),
		errors.Is(err, domain.ErrOverflow):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.logger.ErrorContext(r.Context(), "evaluation failed",
			slog.String("pool_id", poolID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toDecisionResponse(decision))
}

// EvaluateAll triggers a fee evaluation across every registered pool.
// Per-pool failures are logged by the service and do not fail the request.
// POST /api/evaluate
func (h *FeeHandler) EvaluateAll(w http.ResponseWriter, r *http.Request) {
	h.svc.EvaluateAll(r.Context())
	writeJSON(w, http.StatusAccepted, map[string]any{
		"pools": h.svc.PoolIDs(),
	})
}

// appliedFeeResponse shapes an AppliedFee for the API, rendering the tier by
// name.
func appliedFeeResponse(a domain.AppliedFee) map[string]any {
	return map[string]any{
		"pool_id":    a.PoolID,
		"fee":        a.Fee,
		"tier":       a.Tier.String(),
		"seq":        a.Seq,
		"updated_at": a.UpdatedAt,
	}
}
