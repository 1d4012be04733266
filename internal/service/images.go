package service

import (
	"context"

	"visionchat/internal/model"
	"visionchat/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ImageService lists a user's upload history.
type ImageService struct {
	images repository.ImageRepository
}

func NewImageService(images repository.ImageRepository) *ImageService {
	return &ImageService{images: images}
}

// ImagePage is one page of history with the paging actually applied.
type ImagePage struct {
	Images []model.ImageSummary
	Limit  int
	Offset int
}

// List returns the owner's images newest first. limit is clamped to
// [1, 100] and defaults to 20; a negative offset becomes 0.
func (s *ImageService) List(ctx context.Context, ownerID int64, limit, offset int) (*ImagePage, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	images, err := s.images.ListByOwner(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, err
	}
	return &ImagePage{Images: images, Limit: limit, Offset: offset}, nil
}
