package http

import (
	"net/http"

	"github.com/dastanm/restops/internal/adapter/logger"
	"github.com/dastanm/restops/internal/interfaces"
)

type TrackingHandler struct {
	service interfaces.TrackingAggregator
	logger  logger.Logger
}

func NewTrackingHandler(service interfaces.TrackingAggregator, logger logger.Logger) *TrackingHandler {
	return &TrackingHandler{
		service: service,
		logger:  logger,
	}
}

// HandleTracking routes /tracking/orders/{id}/{status|timeline|delivery|eta}.
func (h *TrackingHandler) HandleTracking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := pathParts(r)
	if len(parts) != 4 || parts[1] != "orders" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	orderID, err := parseID(parts[2])
	if err != nil {
		respondError(w, err)
		return
	}

	switch parts[3] {
	case "status":
		h.getStatus(w, r, orderID)
	case "timeline":
		h.getTimeline(w, r, orderID)
	case "delivery":
		h.getDelivery(w, r, orderID)
	case "eta":
		h.getEta(w, r, orderID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

func (h *TrackingHandler) getStatus(w http.ResponseWriter, r *http.Request, orderID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	live, err := h.service.LiveStatus(r.Context(), orderID, actor)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := map[string]interface{}{
		"order_id":              live.OrderID,
		"order_number":          live.OrderNumber,
		"status":                live.Status,
		"status_display":        live.StatusDisplay,
		"status_message":        live.StatusMessage,
		"progress_percent":      live.ProgressPercent,
		"ordered_at":            live.OrderedAt,
		"estimated_ready_at":    live.EstimatedReadyAt,
		"actual_ready_at":       live.ActualReadyAt,
		"estimated_delivery_at": live.EstimatedDeliveryAt,
		"remaining_minutes":     live.RemainingMinutes,
		"total_items":           live.TotalUnits,
		"items_prepared":        live.UnitsPrepared,
		"items_remaining":       live.UnitsRemaining,
		"can_cancel":            live.CanCancel,
		"can_track_delivery":    live.CanTrackDelivery,
	}
	if live.NextStatus != nil {
		resp["next_status"] = *live.NextStatus
	}
	if live.Delivery != nil {
		resp["delivery"] = snapshotJSON(*live.Delivery)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *TrackingHandler) getTimeline(w http.ResponseWriter, r *http.Request, orderID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	events, err := h.service.Timeline(r.Context(), orderID, actor)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := make([]map[string]interface{}, len(events))
	for i, ev := range events {
		resp[i] = map[string]interface{}{
			"kind":        ev.Kind,
			"title":       ev.Title,
			"description": ev.Description,
			"at":          ev.At,
			"milestone":   ev.Milestone,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *TrackingHandler) getDelivery(w http.ResponseWriter, r *http.Request, orderID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	tracking, err := h.service.DeliveryTracking(r.Context(), orderID, actor)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := map[string]interface{}{
		"order_id":          tracking.OrderID,
		"order_number":      tracking.OrderNumber,
		"remaining_minutes": tracking.RemainingMinutes,
	}
	for k, v := range snapshotJSON(tracking.Snapshot) {
		resp[k] = v
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *TrackingHandler) getEta(w http.ResponseWriter, r *http.Request, orderID int64) {
	actor, err := actorFromRequest(r)
	if err != nil {
		respondError(w, err)
		return
	}

	est, err := h.service.EstimatedTime(r.Context(), orderID, actor)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"order_id":              est.OrderID,
		"estimated_ready_at":    est.EstimatedReadyAt,
		"estimated_delivery_at": est.EstimatedDeliveryAt,
		"remaining_minutes":     est.RemainingMinutes,
		"message":               est.Message,
	})
}

func snapshotJSON(s interfaces.DeliverySnapshot) map[string]interface{} {
	resp := map[string]interface{}{
		"partner_name":    s.PartnerName,
		"partner_phone":   s.PartnerPhone,
		"delivery_status": s.Status,
	}
	if s.Latitude != nil && s.Longitude != nil {
		resp["latitude"] = *s.Latitude
		resp["longitude"] = *s.Longitude
		resp["last_location_at"] = s.LastLocationAt
	}
	if s.DistanceRemainingKm != nil {
		resp["distance_remaining_km"] = *s.DistanceRemainingKm
	}
	return resp
}
