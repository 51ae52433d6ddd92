package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iho/goeconomy/internal/adapter/http/dto"
	"github.com/iho/goeconomy/internal/domain"
	"github.com/iho/goeconomy/internal/usecase"
)

// AccountHandler handles per-owner HTTP requests.
type AccountHandler struct {
	svc AccountService
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(svc AccountService) *AccountHandler {
	return &AccountHandler{svc: svc}
}

// Get returns every balance of an owner.
func (h *AccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	acc, err := h.svc.Account(r.Context(), chi.URLParam(r, "owner"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.AccountFromDomain(acc))
}

// History lists journal entries of an owner, newest first.
func (h *AccountHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, _ := domain.ValidatePagination(parseIntQuery(r, "limit", domain.DefaultHistorySize), 0)

	entries, err := h.svc.History(r.Context(), chi.URLParam(r, "owner"), limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.EntriesFromDomain(entries))
}

// Inventory lists usable holdings of an owner.
func (h *AccountHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	holdings, err := h.svc.Inventory(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.InventoryFromDomain(owner, holdings))
}

// Orders lists an owner's active orders, or all of them with ?all=true.
func (h *AccountHandler) Orders(w http.ResponseWriter, r *http.Request) {
	all, _ := strconv.ParseBool(r.URL.Query().Get("all"))
	orders, err := h.svc.ListOrders(r.Context(), chi.URLParam(r, "owner"), all)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OrdersFromDomain(orders))
}

// Credit adds currency to an owner from outside the economy.
func (h *AccountHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req dto.BalanceChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	entry, err := h.svc.Credit(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "owner")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// Debit removes currency from an owner.
func (h *AccountHandler) Debit(w http.ResponseWriter, r *http.Request) {
	var req dto.BalanceChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	entry, err := h.svc.Debit(r.Context(), req.ToUseCaseInput(chi.URLParam(r, "owner")))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.EntryFromDomain(entry))
}

// GrantItems adds items to an owner's inventory.
func (h *AccountHandler) GrantItems(w http.ResponseWriter, r *http.Request) {
	h.changeItems(w, r, h.svc.GrantItems)
}

// ConsumeItems removes items from an owner's inventory, oldest first.
func (h *AccountHandler) ConsumeItems(w http.ResponseWriter, r *http.Request) {
	h.changeItems(w, r, h.svc.ConsumeItems)
}

func (h *AccountHandler) changeItems(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, in usecase.ItemChangeInput) error) {
	owner := chi.URLParam(r, "owner")

	var req dto.ItemChangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	if err := apply(r.Context(), req.ToUseCaseInput(owner)); err != nil {
		writeDomainError(w, err)
		return
	}

	holdings, err := h.svc.Inventory(r.Context(), owner)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.InventoryFromDomain(owner, holdings))
}
