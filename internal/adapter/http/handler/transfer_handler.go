package handler

import (
	"net/http"

	"github.com/iho/goeconomy/internal/adapter/http/dto"
)

// TransferHandler handles transfer-related HTTP requests.
type TransferHandler struct {
	svc TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(svc TransferService) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// Create moves currency from one owner to another, less the transfer fee.
func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTransferRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	entry, err := h.svc.Transfer(r.Context(), req.ToUseCaseInput())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}
