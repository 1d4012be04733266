package service

import (
	"context"
	"fmt"

	"visionchat/internal/common"
	"visionchat/internal/detection"
	"visionchat/internal/logger"
	"visionchat/internal/model"
	"visionchat/internal/repository"
	"visionchat/internal/storage"
)

// Assistant answers a question about an image. The answer may be an error
// description rather than a real model reply.
type Assistant interface {
	Ask(ctx context.Context, question string, detections []detection.Detection, imageBytes []byte) string
}

// ChatService answers questions about images owned by the caller.
type ChatService struct {
	images    repository.ImageRepository
	files     storage.FileStore
	assistant Assistant
	logger    *logger.Logger
}

func NewChatService(images repository.ImageRepository, files storage.FileStore, assistant Assistant, logger *logger.Logger) *ChatService {
	return &ChatService{images: images, files: files, assistant: assistant, logger: logger}
}

// Ask fails with common.ErrNotFound when imageID does not exist or belongs
// to another user.
func (s *ChatService) Ask(ctx context.Context, ownerID, imageID int64, question string) (string, error) {
	if question == "" {
		return "", fmt.Errorf("%w: question is required", common.ErrBadInput)
	}

	img, err := s.images.GetForOwner(ctx, imageID, ownerID)
	if err != nil {
		return "", err
	}
	if img == nil {
		return "", fmt.Errorf("image %d: %w", imageID, common.ErrNotFound)
	}

	data, err := s.files.Read(ctx, img.FilePath)
	if err != nil {
		return "", err
	}

	answer := s.assistant.Ask(ctx, question, model.Detections(img.Detections), data)
	s.logger.Info("Answered question about image %d for user %d", imageID, ownerID)
	return answer, nil
}
