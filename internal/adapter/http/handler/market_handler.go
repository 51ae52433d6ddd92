package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iho/goeconomy/internal/adapter/http/dto"
	"github.com/iho/goeconomy/internal/domain"
)

// MarketHandler handles order and order book requests.
type MarketHandler struct {
	svc    MarketService
	logger zerolog.Logger
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(svc MarketService, logger zerolog.Logger) *MarketHandler {
	return &MarketHandler{svc: svc, logger: logger}
}

// Place escrows a new order and matches it against the book.
func (h *MarketHandler) Place(w http.ResponseWriter, r *http.Request) {
	var req dto.PlaceOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	res, err := h.svc.PlaceOrder(r.Context(), req.ToUseCaseInput())
	if err != nil {
		if res != nil {
			h.logger.Error().Err(err).
				Str("order_id", res.Order.ID).
				Int("trades", len(res.Trades)).
				Msg("order matching stopped after partial execution")
		}
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.PlaceOrderFromDomain(res))
}

// Get returns one order.
func (h *MarketHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OrderFromDomain(order))
}

// Cancel cancels an active order on behalf of ?owner= and releases its escrow.
func (h *MarketHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		writeDomainError(w, domain.ErrInvalidOwner)
		return
	}

	order, err := h.svc.CancelOrder(r.Context(), owner, chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.OrderFromDomain(order))
}

// Book returns the aggregated depth of one market.
func (h *MarketHandler) Book(w http.ResponseWriter, r *http.Request) {
	depth := parseIntQuery(r, "depth", 10)
	view, err := h.svc.OrderBook(r.Context(), chi.URLParam(r, "item"), chi.URLParam(r, "currency"), depth)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

// Stats summarises every market.
func (h *MarketHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.MarketStats(r.Context()))
}
