package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"visionchat/internal/detection"
	"visionchat/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

// CreateBatch adds all detections of an image in a single transaction.
func (r *DetectionRepository) CreateBatch(ctx context.Context, imageID int64, detections []detection.Detection) error {
	if len(detections) == 0 {
		return nil
	}

	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertDetections(ctx, tx, imageID, detections); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByImageID retrieves all detections for an image in insertion order.
func (r *DetectionRepository) GetByImageID(ctx context.Context, imageID int64) ([]model.DetectionResult, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return queryDetections(ctx, r.db.Conn(), imageID)
}

func insertDetections(ctx context.Context, tx *sql.Tx, imageID int64, detections []detection.Detection) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detection_results (image_id, class_name, confidence, x1, y1, x2, y2)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range detections {
		row := model.NewDetectionResult(imageID, d)
		if _, err := stmt.ExecContext(ctx, row.ImageID, row.ClassName, row.Confidence, row.X1, row.Y1, row.X2, row.Y2); err != nil {
			return fmt.Errorf("failed to insert detection: %w", err)
		}
	}
	return nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryDetections(ctx context.Context, q queryer, imageID int64) ([]model.DetectionResult, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, image_id, class_name, confidence, x1, y1, x2, y2
		FROM detection_results WHERE image_id = ? ORDER BY id
	`, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	detections := []model.DetectionResult{}
	for rows.Next() {
		var d model.DetectionResult
		if err := rows.Scan(&d.ID, &d.ImageID, &d.ClassName, &d.Confidence, &d.X1, &d.Y1, &d.X2, &d.Y2); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		detections = append(detections, d)
	}
	return detections, rows.Err()
}
