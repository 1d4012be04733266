// Package postgres implements the repositories on PostgreSQL through gorm.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"visionchat/internal/common"
	"visionchat/internal/detection"
	"visionchat/internal/model"
	"visionchat/internal/repository"
)

// IsURL reports whether dsn selects this backend.
func IsURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Store holds the gorm handle shared by the repositories.
type Store struct {
	db *gorm.DB
}

// NewStore connects to dsn and migrates the schema.
func NewStore(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&model.User{}, &model.Image{}, &model.DetectionResult{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Users() repository.UserRepository           { return &UserRepository{db: s.db} }
func (s *Store) Images() repository.ImageRepository         { return &ImageRepository{db: s.db} }
func (s *Store) Detections() repository.DetectionRepository { return &DetectionRepository{db: s.db} }

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// UserRepository implements repository.UserRepository with gorm.
type UserRepository struct {
	db *gorm.DB
}

func (r *UserRepository) Create(ctx context.Context, email, passwordHash, fullName string) (*model.User, error) {
	user := &model.User{Email: email, HashedPassword: passwordHash, FullName: fullName}
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("user %s: %w", email, common.ErrConflict)
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// ImageRepository implements repository.ImageRepository with gorm.
type ImageRepository struct {
	db *gorm.DB
}

func (r *ImageRepository) Create(ctx context.Context, filename, filepath string, ownerID int64) (*model.Image, error) {
	img := &model.Image{Filename: filename, FilePath: filepath, OwnerID: ownerID}
	if err := r.db.WithContext(ctx).Create(img).Error; err != nil {
		return nil, fmt.Errorf("failed to insert image: %w", err)
	}
	return img, nil
}

func (r *ImageRepository) CreateWithDetections(ctx context.Context, filename, filepath string, ownerID int64, detections []detection.Detection) (*model.Image, error) {
	img := &model.Image{Filename: filename, FilePath: filepath, OwnerID: ownerID}
	for _, d := range detections {
		img.Detections = append(img.Detections, model.NewDetectionResult(0, d))
	}

	// Create saves the has-many association in the same transaction.
	if err := r.db.WithContext(ctx).Create(img).Error; err != nil {
		return nil, fmt.Errorf("failed to insert image: %w", err)
	}
	if img.Detections == nil {
		img.Detections = []model.DetectionResult{}
	}
	return img, nil
}

func (r *ImageRepository) GetForOwner(ctx context.Context, imageID, ownerID int64) (*model.Image, error) {
	var img model.Image
	err := r.db.WithContext(ctx).
		Preload("Detections", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Where("id = ? AND owner_id = ?", imageID, ownerID).
		First(&img).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}
	return &img, nil
}

func (r *ImageRepository) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]model.ImageSummary, error) {
	q := r.db.WithContext(ctx).
		Table("images AS i").
		Select("i.id, i.filename, i.uploaded_at, COUNT(d.id) AS detection_count").
		Joins("LEFT JOIN detection_results d ON d.image_id = i.id").
		Where("i.owner_id = ?", ownerID).
		Group("i.id").
		Order("i.uploaded_at DESC, i.id DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}

	images := []model.ImageSummary{}
	if err := q.Scan(&images).Error; err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	return images, nil
}

// DetectionRepository implements repository.DetectionRepository with gorm.
type DetectionRepository struct {
	db *gorm.DB
}

func (r *DetectionRepository) CreateBatch(ctx context.Context, imageID int64, detections []detection.Detection) error {
	if len(detections) == 0 {
		return nil
	}
	rows := make([]model.DetectionResult, 0, len(detections))
	for _, d := range detections {
		rows = append(rows, model.NewDetectionResult(imageID, d))
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to insert detections: %w", err)
		}
		return nil
	})
}

func (r *DetectionRepository) GetByImageID(ctx context.Context, imageID int64) ([]model.DetectionResult, error) {
	rows := []model.DetectionResult{}
	if err := r.db.WithContext(ctx).Where("image_id = ?", imageID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	return rows, nil
}
