package http

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dastanm/restops/internal/adapter/logger"
	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
)

type OrderHandler struct {
	service interfaces.OrderLifecycle
	logger  logger.Logger
}

func NewOrderHandler(service interfaces.OrderLifecycle, logger logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: service,
		logger:  logger,
	}
}

type CreateOrderRequest struct {
	OrderType           string             `json:"order_type"`
	TableNumber         *string            `json:"table_number,omitempty"`
	DeliveryAddress     *string            `json:"delivery_address,omitempty"`
	SpecialInstructions string             `json:"special_instructions,omitempty"`
	Discount            string             `json:"discount,omitempty"`
	Items               []OrderLineRequest `json:"items"`
}

type OrderLineRequest struct {
	ItemID      int64   `json:"item_id"`
	Quantity    int     `json:"quantity"`
	ModifierIDs []int64 `json:"modifier_ids,omitempty"`
}

type SetStatusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

// HandleOrders routes /orders and /orders/{id}[/status|/cancel|/history].
func (h *OrderHandler) HandleOrders(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r)

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodPost:
			h.createOrder(w, r)
		case http.MethodGet:
			h.listOrders(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	orderID, err := parseID(parts[1])
	if err != nil {
		respondError(w, err)
		return
	}

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		h.getOrder(w, r, orderID)
	case len(parts) == 3 && parts[2] == "status" && r.Method == http.MethodPost:
		h.setStatus(w, r, orderID)
	case len(parts) == 3 && parts[2] == "cancel" && r.Method == http.MethodPost:
		h.cancelOrder(w, r, orderID)
	case len(parts) == 3 && parts[2] == "history" && r.Method == http.MethodGet:
		h.getHistory(w, r, orderID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.BadRequestf("invalid request body"))
		return
	}

	discount := decimal.Zero
	if req.Discount != "" {
		discount, err = decimal.NewFromString(req.Discount)
		if err != nil || discount.IsNegative() {
			respondError(w, domain.BadRequestf("invalid discount %q", req.Discount))
			return
		}
	}

	cmd := interfaces.CreateOrderCommand{
		OrderType:           req.OrderType,
		TableNumber:         req.TableNumber,
		DeliveryAddress:     req.DeliveryAddress,
		SpecialInstructions: req.SpecialInstructions,
		Discount:            discount,
	}
	for _, item := range req.Items {
		cmd.Lines = append(cmd.Lines, interfaces.CreateOrderLineCommand{
			ItemID:      item.ItemID,
			Quantity:    item.Quantity,
			ModifierIDs: item.ModifierIDs,
		})
	}

	order, err := h.service.Create(r.Context(), cmd, actor)
	if err != nil {
		h.logger.Error("order_creation_failed", "Failed to create order", "", nil, err)
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, orderJSON(order))
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request, orderID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	order, err := h.service.Get(r.Context(), orderID, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderJSON(order))
}

func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var status *domain.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.Status(s)
		status = &st
	}
	var orderType *domain.OrderType
	if t := r.URL.Query().Get("type"); t != "" {
		ot := domain.OrderType(t)
		orderType = &ot
	}

	orders, err := h.service.List(r.Context(), status, orderType, actor)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(orders))
	for i, o := range orders {
		resp[i] = orderJSON(o)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) setStatus(w http.ResponseWriter, r *http.Request, orderID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.BadRequestf("invalid request body"))
		return
	}

	order, err := h.service.Transition(r.Context(), orderID, domain.Status(req.Status), req.Notes, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderJSON(order))
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request, orderID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req CancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.BadRequestf("invalid request body"))
		return
	}

	order, err := h.service.Cancel(r.Context(), orderID, req.Reason, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderJSON(order))
}

func (h *OrderHandler) getHistory(w http.ResponseWriter, r *http.Request, orderID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	history, err := h.service.History(r.Context(), orderID, actor)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(history))
	for i, rec := range history {
		entry := map[string]interface{}{
			"to_status":  rec.To,
			"actor_id":   rec.ActorID,
			"notes":      rec.Notes,
			"changed_at": rec.At,
		}
		if rec.From != nil {
			entry["from_status"] = *rec.From
		}
		resp[i] = entry
	}
	respondJSON(w, http.StatusOK, resp)
}

func orderJSON(o *domain.Order) map[string]interface{} {
	items := make([]map[string]interface{}, len(o.Lines))
	for i, line := range o.Lines {
		mods := make([]map[string]interface{}, len(line.Modifiers))
		for j, m := range line.Modifiers {
			mods[j] = map[string]interface{}{
				"modifier_id": m.ModifierID,
				"name":        m.Name,
				"price":       m.Price.String(),
			}
		}
		items[i] = map[string]interface{}{
			"id":         line.ID,
			"item_id":    line.ItemID,
			"item_name":  line.ItemName,
			"quantity":   line.Quantity,
			"unit_price": line.UnitPrice.String(),
			"subtotal":   line.Subtotal.String(),
			"modifiers":  mods,
		}
	}

	resp := map[string]interface{}{
		"id":                 o.ID,
		"order_number":       o.Number,
		"order_type":         o.Type,
		"status":             o.Status,
		"subtotal":           o.Subtotal.String(),
		"tax_amount":         o.TaxAmount.String(),
		"delivery_fee":       o.DeliveryFee.String(),
		"discount_amount":    o.DiscountAmount.String(),
		"total_amount":       o.TotalAmount.String(),
		"estimated_ready_at": o.EstimatedReadyAt,
		"actual_ready_at":    o.ActualReadyAt,
		"delivered_at":       o.DeliveredAt,
		"items":              items,
		"created_at":         o.CreatedAt,
	}
	if o.TableNumber != nil {
		resp["table_number"] = *o.TableNumber
	}
	if o.DeliveryAddress != nil {
		resp["delivery_address"] = *o.DeliveryAddress
	}
	if o.Status == domain.StatusCancelled {
		resp["cancelled_at"] = o.CancelledAt
		resp["cancellation_reason"] = o.CancellationReason
	}
	return resp
}
