package handler

import (
	"net/http"

	"github.com/iho/goeconomy/internal/adapter/http/dto"
	"github.com/iho/goeconomy/internal/usecase"
)

// AdminHandler triggers maintenance outside the schedule.
type AdminHandler struct {
	svc     AdminService
	store   usecase.SnapshotStore
	backend string
}

// NewAdminHandler creates a new AdminHandler. store may be nil when
// snapshots are disabled.
func NewAdminHandler(svc AdminService, store usecase.SnapshotStore, backend string) *AdminHandler {
	return &AdminHandler{svc: svc, store: store, backend: backend}
}

// Snapshot writes the current state to the configured store.
func (h *AdminHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusConflict, "snapshots are disabled", "")
		return
	}

	if err := h.svc.SaveSnapshot(r.Context(), h.store); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SnapshotResponse{Status: "saved", Backend: h.backend})
}

// Sweep expires every order past its expiry and refunds its escrow.
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	expired, err := h.svc.SweepExpired(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.SweepResponse{Expired: dto.OrdersFromDomain(expired)})
}
