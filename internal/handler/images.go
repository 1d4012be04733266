package handler

import (
	"net/http"
	"strconv"

	"visionchat/internal/common"
	"visionchat/internal/logger"
	"visionchat/internal/middleware"
	"visionchat/internal/model"
	"visionchat/internal/service"
)

type imagesResponse struct {
	Images []model.ImageSummary `json:"images"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// ListImagesHandler handles GET /api/images?limit=&offset=.
func ListImagesHandler(images *service.ImageService, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			respondServiceError(w, logger, common.ErrUnauthorized)
			return
		}

		q := r.URL.Query()
		page, err := images.List(r.Context(), user.ID, atoiDefault(q.Get("limit"), 0), atoiDefault(q.Get("offset"), 0))
		if err != nil {
			respondServiceError(w, logger, err)
			return
		}

		respondJSON(w, logger, http.StatusOK, imagesResponse{Images: page.Images, Limit: page.Limit, Offset: page.Offset})
	}
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
