package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"visionchat/internal/detection"
	"visionchat/internal/model"
)

// ImageRepository implements repository.ImageRepository for SQLite.
type ImageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// Create adds a new image record to the database.
func (r *ImageRepository) Create(ctx context.Context, filename, filepath string, ownerID int64) (*model.Image, error) {
	r.db.Lock()
	defer r.db.Unlock()

	img := &model.Image{
		Filename:   filename,
		FilePath:   filepath,
		UploadedAt: time.Now().UTC(),
		OwnerID:    ownerID,
	}

	result, err := r.db.Conn().ExecContext(ctx, `
		INSERT INTO images (filename, filepath, uploaded_at, owner_id)
		VALUES (?, ?, ?, ?)
	`, img.Filename, img.FilePath, img.UploadedAt, img.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert image: %w", err)
	}

	if img.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}
	return img, nil
}

// CreateWithDetections inserts the image and its detections in one transaction.
func (r *ImageRepository) CreateWithDetections(ctx context.Context, filename, filepath string, ownerID int64, detections []detection.Detection) (*model.Image, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	img := &model.Image{
		Filename:   filename,
		FilePath:   filepath,
		UploadedAt: time.Now().UTC(),
		OwnerID:    ownerID,
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO images (filename, filepath, uploaded_at, owner_id)
		VALUES (?, ?, ?, ?)
	`, img.Filename, img.FilePath, img.UploadedAt, img.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert image: %w", err)
	}
	if img.ID, err = result.LastInsertId(); err != nil {
		return nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	if len(detections) > 0 {
		if err := insertDetections(ctx, tx, img.ID, detections); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit image: %w", err)
	}

	img.Detections = make([]model.DetectionResult, 0, len(detections))
	for _, d := range detections {
		img.Detections = append(img.Detections, model.NewDetectionResult(img.ID, d))
	}
	return img, nil
}

// GetForOwner retrieves an image and its detections, scoped to the owner.
func (r *ImageRepository) GetForOwner(ctx context.Context, imageID, ownerID int64) (*model.Image, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var img model.Image
	err := r.db.Conn().QueryRowContext(ctx, `
		SELECT id, filename, filepath, uploaded_at, owner_id
		FROM images WHERE id = ? AND owner_id = ?
	`, imageID, ownerID).Scan(&img.ID, &img.Filename, &img.FilePath, &img.UploadedAt, &img.OwnerID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get image: %w", err)
	}

	img.Detections, err = queryDetections(ctx, r.db.Conn(), img.ID)
	if err != nil {
		return nil, err
	}
	return &img, nil
}

// ListByOwner returns the owner's images with their detection counts.
func (r *ImageRepository) ListByOwner(ctx context.Context, ownerID int64, limit, offset int) ([]model.ImageSummary, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT i.id, i.filename, i.uploaded_at, COUNT(d.id)
		FROM images i
		LEFT JOIN detection_results d ON i.id = d.image_id
		WHERE i.owner_id = ?
		GROUP BY i.id
		ORDER BY i.uploaded_at DESC, i.id DESC
	`
	args := []interface{}{ownerID}

	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
		if offset > 0 {
			query += " OFFSET ?"
			args = append(args, offset)
		}
	}

	rows, err := r.db.Conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	images := []model.ImageSummary{}
	for rows.Next() {
		var s model.ImageSummary
		if err := rows.Scan(&s.ID, &s.Filename, &s.UploadedAt, &s.DetectionCount); err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, s)
	}
	return images, rows.Err()
}
