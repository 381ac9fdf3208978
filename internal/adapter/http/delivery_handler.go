package http

import (
	"encoding/json"
	"net/http"

	"github.com/dastanm/restops/internal/adapter/logger"
	"github.com/dastanm/restops/internal/domain"
	"github.com/dastanm/restops/internal/interfaces"
)

type DeliveryHandler struct {
	service interfaces.DeliveryDispatcher
	logger  logger.Logger
}

func NewDeliveryHandler(service interfaces.DeliveryDispatcher, logger logger.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		service: service,
		logger:  logger,
	}
}

type AssignRequest struct {
	OrderID   int64 `json:"order_id"`
	PartnerID int64 `json:"partner_id"`
}

type LocationRequest struct {
	Latitude            float64  `json:"latitude"`
	Longitude           float64  `json:"longitude"`
	DistanceRemainingKm *float64 `json:"distance_remaining_km,omitempty"`
}

type DeliveredRequest struct {
	Notes string `json:"notes,omitempty"`
}

// HandleDeliveries routes /deliveries/... to the dispatcher.
func (h *DeliveryHandler) HandleDeliveries(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r)
	if len(parts) < 2 {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	switch {
	case parts[1] == "assign" && len(parts) == 2 && r.Method == http.MethodPost:
		h.assign(w, r)
	case parts[1] == "available" && len(parts) == 2 && r.Method == http.MethodGet:
		h.available(w, r)
	case parts[1] == "active" && len(parts) == 2 && r.Method == http.MethodGet:
		h.active(w, r)
	case len(parts) == 3:
		h.handleAssignment(w, r, parts)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *DeliveryHandler) handleAssignment(w http.ResponseWriter, r *http.Request, parts []string) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	assignmentID, err := parseID(parts[1])
	if err != nil {
		respondError(w, err)
		return
	}

	switch parts[2] {
	case "accept":
		h.accept(w, r, assignmentID)
	case "pickup":
		h.pickup(w, r, assignmentID)
	case "transit":
		h.transit(w, r, assignmentID)
	case "delivered":
		h.delivered(w, r, assignmentID)
	case "location":
		h.location(w, r, assignmentID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *DeliveryHandler) assign(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.BadRequestf("invalid request body"))
		return
	}

	a, err := h.service.Assign(r.Context(), req.OrderID, req.PartnerID, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, assignmentJSON(a))
}

func (h *DeliveryHandler) accept(w http.ResponseWriter, r *http.Request, assignmentID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	a, err := h.service.Accept(r.Context(), assignmentID, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assignmentJSON(a))
}

func (h *DeliveryHandler) pickup(w http.ResponseWriter, r *http.Request, assignmentID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var loc *interfaces.LocationUpdate
	var req LocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err == nil && (req.Latitude != 0 || req.Longitude != 0) {
		loc = &interfaces.LocationUpdate{
			Latitude:            req.Latitude,
			Longitude:           req.Longitude,
			DistanceRemainingKm: req.DistanceRemainingKm,
		}
	}

	a, err := h.service.MarkPickedUp(r.Context(), assignmentID, loc, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assignmentJSON(a))
}

func (h *DeliveryHandler) transit(w http.ResponseWriter, r *http.Request, assignmentID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	a, err := h.service.MarkInTransit(r.Context(), assignmentID, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assignmentJSON(a))
}

func (h *DeliveryHandler) delivered(w http.ResponseWriter, r *http.Request, assignmentID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req DeliveredRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.BadRequestf("invalid request body"))
		return
	}

	a, err := h.service.MarkDelivered(r.Context(), assignmentID, req.Notes, actor)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, assignmentJSON(a))
}

func (h *DeliveryHandler) location(w http.ResponseWriter, r *http.Request, assignmentID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req LocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, domain.BadRequestf("invalid request body"))
		return
	}

	loc := interfaces.LocationUpdate{
		Latitude:            req.Latitude,
		Longitude:           req.Longitude,
		DistanceRemainingKm: req.DistanceRemainingKm,
	}
	if err := h.service.UpdateLocation(r.Context(), assignmentID, loc, actor); err != nil {
		respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DeliveryHandler) available(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	orders, err := h.service.AvailableOrders(r.Context(), actor)
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

func (h *DeliveryHandler) active(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	views, err := h.service.ActiveForPartner(r.Context(), actor)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(views))
	for i, v := range views {
		entry := assignmentJSON(v.Assignment)
		entry["order_number"] = v.OrderNumber
		entry["delivery_address"] = v.Address
		resp[i] = entry
	}
	respondJSON(w, http.StatusOK, resp)
}

func assignmentJSON(a *domain.DeliveryAssignment) map[string]interface{} {
	resp := map[string]interface{}{
		"id":                    a.ID,
		"order_id":              a.OrderID,
		"partner_id":            a.PartnerID,
		"status":                a.Status,
		"assigned_at":           a.AssignedAt,
		"accepted_at":           a.AcceptedAt,
		"picked_up_at":          a.PickedUpAt,
		"delivered_at":          a.DeliveredAt,
		"estimated_pickup_at":   a.EstimatedPickupAt,
		"estimated_delivery_at": a.EstimatedDeliveryAt,
		"notes":                 a.Notes,
	}
	if a.CurrentLatitude != nil && a.CurrentLongitude != nil {
		resp["current_latitude"] = *a.CurrentLatitude
		resp["current_longitude"] = *a.CurrentLongitude
		resp["last_location_at"] = a.LastLocationAt
	}
	if a.DistanceRemainingKm != nil {
		resp["distance_remaining_km"] = *a.DistanceRemainingKm
	}
	if m := a.TotalMinutes(); m != nil {
		resp["total_minutes"] = *m
	}
	return resp
}
