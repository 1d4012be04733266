package service

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"visionchat/internal/common"
	"visionchat/internal/detection"
	"visionchat/internal/logger"
	"visionchat/internal/model"
	"visionchat/internal/repository"
	"visionchat/internal/storage"
)

// EventPublisher delivers a message to the live connections of one user.
type EventPublisher interface {
	Publish(userID int64, data []byte)
}

// DetectionEvent is pushed to the owner after an upload has been processed.
type DetectionEvent struct {
	ImageID    int64                 `json:"image_id"`
	Filename   string                `json:"filename"`
	Detections []detection.Detection `json:"detections"`
}

// DetectionOutcome is the result of one accepted upload.
type DetectionOutcome struct {
	Image      *model.Image
	Annotated  []byte
	Detections []detection.Detection
}

// DetectionService runs uploads through the detector and persists them.
type DetectionService struct {
	detector Detector
	files    storage.FileStore
	images   repository.ImageRepository
	events   EventPublisher
	logger   *logger.Logger
}

// NewDetectionService wires the pipeline; events may be nil.
func NewDetectionService(detector Detector, files storage.FileStore, images repository.ImageRepository, events EventPublisher, logger *logger.Logger) *DetectionService {
	return &DetectionService{
		detector: detector,
		files:    files,
		images:   images,
		events:   events,
		logger:   logger,
	}
}

// Detect stores the upload under "<uuid><ext>", records the image together
// with its detections and returns the annotated preview. Nothing is stored
// when the image is rejected or the detector fails.
func (s *DetectionService) Detect(ctx context.Context, ownerID int64, originalName string, data []byte) (*DetectionOutcome, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", common.ErrBadInput)
	}

	result, err := s.detector.Detect(ctx, data)
	if err != nil {
		return nil, err
	}

	filename := uuid.NewString() + extension(originalName)
	path, err := s.files.Save(ctx, filename, data)
	if err != nil {
		return nil, err
	}

	img, err := s.images.CreateWithDetections(ctx, filename, path, ownerID, result.Detections)
	if err != nil {
		// The request context may already be done; the orphan must still go.
		if rmErr := s.files.Delete(context.WithoutCancel(ctx), path); rmErr != nil {
			s.logger.Error("Failed to remove orphaned upload %s: %v", path, rmErr)
		}
		return nil, err
	}
	s.logger.Info("Image %d stored for user %d with %d detection(s)", img.ID, ownerID, len(result.Detections))

	s.publish(ownerID, DetectionEvent{ImageID: img.ID, Filename: img.Filename, Detections: result.Detections})

	return &DetectionOutcome{
		Image:      img,
		Annotated:  result.Annotated,
		Detections: result.Detections,
	}, nil
}

func (s *DetectionService) publish(ownerID int64, event DetectionEvent) {
	if s.events == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("Failed to encode detection event: %v", err)
		return
	}
	s.events.Publish(ownerID, data)
}

// extension keeps the client's extension when it is a plain alphanumeric one.
func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 || len(ext) > 6 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
