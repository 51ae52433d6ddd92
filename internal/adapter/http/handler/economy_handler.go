package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// EconomyHandler serves economy-wide reports.
type EconomyHandler struct {
	svc EconomyService
}

// NewEconomyHandler creates a new EconomyHandler.
func NewEconomyHandler(svc EconomyService) *EconomyHandler {
	return &EconomyHandler{svc: svc}
}

// Indicators returns supply, circulation and activity per currency.
func (h *EconomyHandler) Indicators(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Indicators(r.Context()))
}

// Leaderboard ranks owners by total balance.
func (h *EconomyHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.Leaderboard(r.Context(), chi.URLParam(r, "currency"), parseIntQuery(r, "limit", 10))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rows)
}

// Reconcile checks balances against open escrow. An inconsistent report is
// still a 200; callers look at the consistent flag.
func (h *EconomyHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Reconcile(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
