package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dastanm/restops/internal/adapter/logger"
	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
)

type KitchenHandler struct {
	service interfaces.KitchenCoordinator
	logger  logger.Logger
}

func NewKitchenHandler(service interfaces.KitchenCoordinator, logger logger.Logger) *KitchenHandler {
	return &KitchenHandler{
		service: service,
		logger:  logger,
	}
}

type StartPreparationRequest struct {
	EstimatedMinutes *int                    `json:"estimated_minutes,omitempty"`
	Notes            string                  `json:"notes,omitempty"`
	Assignments      []UnitAssignmentRequest `json:"assignments,omitempty"`
}

type UnitAssignmentRequest struct {
	OrderLineID int64   `json:"order_line_id"`
	StaffID     *int64  `json:"staff_id,omitempty"`
	Station     *string `json:"station,omitempty"`
}

type UpdateUnitRequest struct {
	State string `json:"state"`
	Notes string `json:"notes,omitempty"`
}

type MarkReadyRequest struct {
	Notes string `json:"notes,omitempty"`
}

// HandleKitchen routes /kitchen/orders[...] and /kitchen/metrics.
func (h *KitchenHandler) HandleKitchen(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r)
	if len(parts) < 2 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch {
	case parts[1] == "metrics" && len(parts) == 2 && r.Method == http.MethodGet:
		h.getMetrics(w, r)
	case parts[1] == "orders" && len(parts) == 2 && r.Method == http.MethodGet:
		h.getActiveOrders(w, r)
	case parts[1] == "orders" && len(parts) >= 4:
		h.handleOrder(w, r, parts)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *KitchenHandler) handleOrder(w http.ResponseWriter, r *http.Request, parts []string) {
	orderID, err := parseID(parts[2])
	if err != nil {
		respondError(w, err)
		return
	}

	switch {
	case len(parts) == 4 && parts[3] == "start" && r.Method == http.MethodPost:
		h.startPreparation(w, r, orderID)
	case len(parts) == 4 && parts[3] == "ready" && r.Method == http.MethodPost:
		h.markReady(w, r, orderID)
	case len(parts) == 5 && parts[3] == "units" && r.Method == http.MethodPost:
		unitID, err := parseID(parts[4])
		if err != nil {
			respondError(w, err)
			return
		}
		h.updateUnit(w, r, orderID, unitID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *KitchenHandler) startPreparation(w http.ResponseWriter, r *http.Request, orderID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req StartPreparationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.BadRequestf("invalid request body"))
		return
	}

	cmd := interfaces.StartPreparationCommand{
		EstimatedMinutes: req.EstimatedMinutes,
		Notes:            req.Notes,
	}
	for _, a := range req.Assignments {
		cmd.Assignments = append(cmd.Assignments, interfaces.UnitAssignment{
			OrderLineID: a.OrderLineID,
			StaffID:     a.StaffID,
			Station:     a.Station,
		})
	}

	view, err := h.service.StartPreparation(r.Context(), orderID, cmd, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, kitchenViewJSON(view))
}

func (h *KitchenHandler) updateUnit(w http.ResponseWriter, r *http.Request, orderID, unitID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req UpdateUnitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.BadRequestf("invalid request body"))
		return
	}

	cmd := interfaces.UpdateUnitCommand{
		State: domain.UnitState(req.State),
		Notes: req.Notes,
	}
	unit, err := h.service.UpdateUnit(r.Context(), orderID, unitID, cmd, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, unitJSON(unit))
}

func (h *KitchenHandler) markReady(w http.ResponseWriter, r *http.Request, orderID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req MarkReadyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.BadRequestf("invalid request body"))
		return
	}

	order, err := h.service.MarkReady(r.Context(), orderID, req.Notes, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderJSON(order))
}

func (h *KitchenHandler) getActiveOrders(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	views, err := h.service.ActiveOrders(r.Context(), actor)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(views))
	for i, v := range views {
		resp[i] = kitchenViewJSON(v)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *KitchenHandler) getMetrics(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	day := time.Now()
	if d := r.URL.Query().Get("date"); d != "" {
		day, err = time.Parse("2006-01-02", d)
		if err != nil {
			respondError(w, domain.BadRequestf("invalid date %q, expected YYYY-MM-DD", d))
			return
		}
	}

	summary, err := h.service.DailyMetrics(r.Context(), day, actor)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"date":               summary.Date.Format("2006-01-02"),
		"total_orders":       summary.TotalOrders,
		"completed_orders":   summary.CompletedOrders,
		"in_progress_orders": summary.InProgressOrders,
		"avg_prep_minutes":   summary.AvgPrepMinutes,
		"orders_on_time":     summary.OrdersOnTime,
		"orders_delayed":     summary.OrdersDelayed,
		"on_time_percent":    summary.OnTimePercent,
	})
}

func kitchenViewJSON(v *interfaces.KitchenOrderView) map[string]interface{} {
	units := make([]map[string]interface{}, len(v.Units))
	for i, u := range v.Units {
		units[i] = unitJSON(u)
	}
	return map[string]interface{}{
		"order":           orderJSON(v.Order),
		"units":           units,
		"units_done":      v.UnitsDone,
		"elapsed_minutes": v.ElapsedMinutes,
	}
}

func unitJSON(u *domain.PreparationUnit) map[string]interface{} {
	resp := map[string]interface{}{
		"id":            u.ID,
		"order_id":      u.OrderID,
		"order_line_id": u.OrderLineID,
		"state":         u.State,
		"notes":         u.Notes,
		"started_at":    u.StartedAt,
		"completed_at":  u.CompletedAt,
	}
	if u.AssignedStaffID != nil {
		resp["assigned_staff_id"] = *u.AssignedStaffID
	}
	if u.Station != nil {
		resp["station"] = *u.Station
	}
	return resp
}
