package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/sigboard/internal/constants"
	"github.com/kozaktomas/sigboard/internal/similarity"
)

// errInvalidRequestBody is a shared error message for invalid JSON request bodies.
const errInvalidRequestBody = "invalid request body"

// maxJSONBody limits JSON request bodies.
const maxJSONBody = 1 << 20

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes the request body into dst. On failure it writes a
// 400 response and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return false
	}
	return true
}

// parsePostID reads the {id} URL parameter. On failure it writes a 400
// response and returns false.
func parsePostID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid post id")
		return 0, false
	}
	return id, true
}

// parseSearchQuery reads the optional limit and threshold query parameters.
func parseSearchQuery(r *http.Request) (similarity.Query, error) {
	var q similarity.Query
	values := r.URL.Query()

	if s := values.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit <= 0 || limit > constants.MaxSimilarLimit {
			return q, errors.New("limit must be between 1 and " + strconv.Itoa(constants.MaxSimilarLimit))
		}
		q.Limit = limit
	}
	if s := values.Get("threshold"); s != "" {
		threshold, err := strconv.ParseFloat(s, 64)
		if err != nil || threshold <= 0 || threshold > 1 {
			return q, errors.New("threshold must be in (0, 1]")
		}
		q.Threshold = threshold
	}
	return q, nil
}

// HealthCheck handles the health check endpoint.
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}
