package handler

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"

	"visionchat/internal/common"
	"visionchat/internal/detection"
	"visionchat/internal/logger"
	"visionchat/internal/middleware"
	"visionchat/internal/service"
)

// multipart parts beyond this stay on disk while parsing.
const maxMemory = 8 << 20

type detectResponse struct {
	ImageID        int64                 `json:"image_id"`
	AnnotatedImage string                `json:"annotated_image"`
	Detections     []detection.Detection `json:"detections"`
}

// DetectHandler handles POST /api/detect with a multipart "file" field.
// Bodies above maxUploadBytes are refused with 413.
func DetectHandler(detections *service.DetectionService, maxUploadBytes int64, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())
		if user == nil {
			respondServiceError(w, logger, common.ErrUnauthorized)
			return
		}

		if r.ContentLength > maxUploadBytes {
			respondServiceError(w, logger, &http.MaxBytesError{Limit: maxUploadBytes})
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondServiceError(w, logger, err)
				return
			}
			respondError(w, logger, http.StatusUnprocessableEntity, "Field required: file")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			respondError(w, logger, http.StatusUnprocessableEntity, "Field required: file")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			respondServiceError(w, logger, err)
			return
		}

		out, err := detections.Detect(r.Context(), user.ID, header.Filename, data)
		if err != nil {
			respondServiceError(w, logger, err)
			return
		}

		respondJSON(w, logger, http.StatusOK, detectResponse{
			ImageID:        out.Image.ID,
			AnnotatedImage: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(out.Annotated),
			Detections:     out.Detections,
		})
	}
}
