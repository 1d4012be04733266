package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"visionchat/internal/common"
	"visionchat/internal/logger"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func respondJSON(w http.ResponseWriter, logger *logger.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, logger *logger.Logger, status int, detail string) {
	respondJSON(w, logger, status, errorResponse{Detail: detail})
}

// respondServiceError maps the common sentinel errors to status codes. Only
// unexpected errors are logged; their text never reaches the client.
func respondServiceError(w http.ResponseWriter, logger *logger.Logger, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, common.ErrUnauthorized):
		w.Header().Set("WWW-Authenticate", "Bearer")
		respondError(w, logger, http.StatusUnauthorized, "Could not validate credentials")
	case errors.Is(err, common.ErrConflict):
		respondError(w, logger, http.StatusBadRequest, "Already exists")
	case errors.Is(err, common.ErrNotFound):
		respondError(w, logger, http.StatusNotFound, "Not found")
	case errors.Is(err, common.ErrBadInput):
		respondError(w, logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrDetectionUnavailable):
		logger.Warning("Detection unavailable: %v", err)
		respondError(w, logger, http.StatusServiceUnavailable, "Object detection is currently unavailable")
	case errors.As(err, &tooLarge):
		respondError(w, logger, http.StatusRequestEntityTooLarge, "Uploaded file is too large")
	default:
		logger.Error("Request failed: %v", err)
		respondError(w, logger, http.StatusInternalServerError, "Internal server error")
	}
}

// missingFields reports 422 when any required form value is empty.
func missingFields(w http.ResponseWriter, r *http.Request, logger *logger.Logger, names ...string) bool {
	for _, name := range names {
		if r.FormValue(name) == "" {
			respondError(w, logger, http.StatusUnprocessableEntity, "Field required: "+name)
			return true
		}
	}
	return false
}
