package repository

import (
	"context"

	"visionchat/internal/detection"
	"visionchat/internal/model"
)

// UserRepository defines the interface for user data operations.
type UserRepository interface {
	// Create fails with common.ErrConflict when the email is taken.
	Create(ctx context.Context, email, passwordHash, fullName string) (*model.User, error)

	// GetByEmail returns nil, nil when no user has that email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// ImageRepository defines the interface for image data operations.
type ImageRepository interface {
	Create(ctx context.Context, filename, filepath string, ownerID int64) (*model.Image, error)

	// CreateWithDetections stores an image and all of its detections in one
	// transaction, so the image is never visible without them.
	CreateWithDetections(ctx context.Context, filename, filepath string, ownerID int64, detections []detection.Detection) (*model.Image, error)

	// GetForOwner returns the image with its detections, or nil, nil when the
	// image does not exist or belongs to somebody else.
	GetForOwner(ctx context.Context, imageID, ownerID int64) (*model.Image, error)

	// ListByOwner returns the owner's images, newest first.
	ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]model.ImageSummary, error)
}

// DetectionRepository defines the interface for detection data operations.
type DetectionRepository interface {
	// CreateBatch stores all detections of one image in a single transaction.
	CreateBatch(ctx context.Context, imageID int64, detections []detection.Detection) error

	GetByImageID(ctx context.Context, imageID int64) ([]model.DetectionResult, error)
}

// Store bundles the repositories of one database backend.
type Store interface {
	Users() UserRepository
	Images() ImageRepository
	Detections() DetectionRepository
	Close() error
}
