package api

import (
	"net/http"

	"github.com/example/inventory-control/internal/domain/inventory"
	"go.uber.org/zap"
)

type Handlers struct {
	service *inventory.Service
	logger  *zap.Logger
}

func NewHandlers(service *inventory.Service, logger *zap.Logger) *Handlers {
	return &Handlers{
		service: service,
		logger:  logger,
	}
}

type ReservationResponse struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	ReservedQty int    `json:"reserved_qty"`
}

type ItemResponse struct {
	ID           string                `json:"id"`
	SKU          string                `json:"sku"`
	OnHand       int                   `json:"on_hand"`
	Reserved     int                   `json:"reserved"`
	Available    int                   `json:"available"`
	UOM          string                `json:"uom"`
	MinQty       int                   `json:"min_qty"`
	LowStock     bool                  `json:"low_stock"`
	Version      int                   `json:"version"`
	Reservations []ReservationResponse `json:"reservations"`
}

type ReserveResponse struct {
	ItemResponse
	ReservationID string `json:"reservation_id"`
}

func toReservationResponses(reservations []inventory.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(reservations))
	for _, r := range reservations {
		out = append(out, ReservationResponse{
			ID:          r.ID,
			OrderID:     r.OrderID,
			ReservedQty: r.Qty.Amount(),
		})
	}
	return out
}

func toItemResponse(item *inventory.Item) ItemResponse {
	return ItemResponse{
		ID:           item.ID(),
		SKU:          item.SKU().String(),
		OnHand:       item.OnHand().Amount(),
		Reserved:     item.Reserved().Amount(),
		Available:    item.Available().Amount(),
		UOM:          item.OnHand().UOM(),
		MinQty:       item.Threshold().MinQty(),
		LowStock:     item.IsLowStock(),
		Version:      item.Version(),
		Reservations: toReservationResponses(item.Reservations()),
	}
}

func toItemResponses(items []*inventory.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toItemResponse(item))
	}
	return out
}

func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if inventory.KindOf(err) == inventory.KindIOFailure || inventory.KindOf(err) == inventory.KindUnknown {
		h.logger.Error("inventory request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	respondDomainError(w, err)
}

// Admin Handlers

type CreateItemRequest struct {
	SKU        string `json:"sku"`
	InitialQty int    `json:"initial_qty"`
	UOM        string `json:"uom"`
	MinQty     int    `json:"min_qty"`
}

func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.service.CreateItem(r.Context(), req.SKU, req.InitialQty, req.UOM, req.MinQty)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handlers) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponses(items))
}

func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.GetItem(r.Context(), r.PathValue("sku"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponse(item))
}

type SetThresholdRequest struct {
	MinQty int `json:"min_qty"`
}

func (h *Handlers) SetThreshold(w http.ResponseWriter, r *http.Request) {
	var req SetThresholdRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.service.SetThreshold(r.Context(), r.PathValue("sku"), req.MinQty)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponse(item))
}

type AdjustStockRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

func (h *Handlers) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var req AdjustStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.service.AdjustStock(r.Context(), r.PathValue("sku"), req.Delta, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponse(item))
}

// Client Handlers

func (h *Handlers) GetAvailability(w http.ResponseWriter, r *http.Request) {
	availability, err := h.service.GetAvailability(r.Context(), r.PathValue("sku"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, availability)
}

type StockChangeRequest struct {
	Qty    int    `json:"qty"`
	Reason string `json:"reason"`
}

func (h *Handlers) IncreaseStock(w http.ResponseWriter, r *http.Request) {
	var req StockChangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.service.IncreaseStock(r.Context(), r.PathValue("sku"), req.Qty, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handlers) DecreaseStock(w http.ResponseWriter, r *http.Request) {
	var req StockChangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.service.DecreaseStock(r.Context(), r.PathValue("sku"), req.Qty, req.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponse(item))
}

type ReserveStockRequest struct {
	OrderID string `json:"order_id"`
	Qty     int    `json:"qty"`
}

func (h *Handlers) ReserveStock(w http.ResponseWriter, r *http.Request) {
	var req ReserveStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, reservation, err := h.service.ReserveStock(r.Context(), r.PathValue("sku"), req.OrderID, req.Qty)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ReserveResponse{
		ItemResponse:  toItemResponse(item),
		ReservationID: reservation.ID,
	})
}

type ReleaseReservationRequest struct {
	ReservationID string `json:"reservation_id"`
}

func (h *Handlers) ReleaseReservation(w http.ResponseWriter, r *http.Request) {
	var req ReleaseReservationRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	item, err := h.service.ReleaseReservation(r.Context(), r.PathValue("sku"), req.ReservationID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handlers) ListReservations(w http.ResponseWriter, r *http.Request) {
	reservations, err := h.service.ListReservations(r.Context(), r.PathValue("sku"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toReservationResponses(reservations))
}

// Manager Handlers

func (h *Handlers) LowStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.GetLowStockItems(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toItemResponses(items))
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
