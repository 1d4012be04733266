package handler

import (
	"net/http"

	"visionchat/internal/logger"
)

// HealthHandler handles GET /healthz.
func HealthHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	}
}
