package handler

import (
	"errors"
	"net/http"
	"strconv"

	"visionchat/internal/common"
	"visionchat/internal/logger"
	"visionchat/internal/middleware"
	"visionchat/internal/service"
)

type chatResponse struct {
	Response string `json:"response"`
}

// ChatHandler handles POST /api/chat with form fields question and image_id.
func ChatHandler(chat *service.ChatService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			respondServiceError(w, logger, common.ErrUnauthorized)
			return
		}
		if missingFields(w, r, logger, "question", "image_id") {
			return
		}

		imageID, err := strconv.ParseInt(r.FormValue("image_id"), 10, 64)
		if err != nil {
			respondError(w, logger, http.StatusUnprocessableEntity, "image_id must be an integer")
			return
		}

		answer, err := chat.Ask(r.Context(), user.ID, imageID, r.FormValue("question"))
		if errors.Is(err, common.ErrNotFound) {
			respondError(w, logger, http.StatusNotFound, "Image not found")
			return
		}
		if err != nil {
			respondServiceError(w, logger, err)
			return
		}

		respondJSON(w, logger, http.StatusOK, chatResponse{Response: answer})
	}
}
