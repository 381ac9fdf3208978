package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/dastanm/restops/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindBadRequest:
		status = http.StatusBadRequest
	case domain.KindForbidden:
		status = http.StatusForbidden
	}
	respondJSON(w, status, ErrorResponse{Error: err.Error()})
}

// actorFromRequest reads the identity the API gateway resolved during
// authentication. Roles arrive comma separated.
func actorFromRequest(r *http.Request) (domain.Actor, error) {
	var actor domain.Actor

	id, err := strconv.ParseInt(r.Header.Get("X-Actor-ID"), 10, 64)
	if err != nil {
		return actor, domain.Forbiddenf("missing or invalid X-Actor-ID header")
	}
	restaurantID, err := strconv.ParseInt(r.Header.Get("X-Restaurant-ID"), 10, 64)
	if err != nil {
		return actor, domain.Forbiddenf("missing or invalid X-Restaurant-ID header")
	}

	actor.ID = id
	actor.RestaurantID = restaurantID
	for _, raw := range strings.Split(r.Header.Get("X-Actor-Roles"), ",") {
		role := strings.TrimSpace(strings.ToUpper(raw))
		if role != "" {
			actor.Roles = append(actor.Roles, domain.Role(role))
		}
	}
	if len(actor.Roles) == 0 {
		return actor, domain.Forbiddenf("missing X-Actor-Roles header")
	}

	return actor, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, domain.BadRequestf("invalid id %q", s)
	}
	return id, nil
}

func pathParts(r *http.Request) []string {
	return strings.Split(strings.Trim(r.URL.Path, "/"), "/")
}
