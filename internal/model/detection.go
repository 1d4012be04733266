package model

import "visionchat/internal/detection"

// DetectionResult is one detected object persisted for an image.
type DetectionResult struct {
	ID         int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	ImageID    int64   `json:"image_id" gorm:"index;not null"`
	ClassName  string  `json:"class_name" gorm:"not null"`
	Confidence float64 `json:"confidence" gorm:"not null"`
	X1         float64 `json:"x1" gorm:"not null"`
	Y1         float64 `json:"y1" gorm:"not null"`
	X2         float64 `json:"x2" gorm:"not null"`
	Y2         float64 `json:"y2" gorm:"not null"`
}

func (DetectionResult) TableName() string {
	return "detection_results"
}

// Detection converts the row back into the adapter-level value.
func (d DetectionResult) Detection() detection.Detection {
	return detection.Detection{
		ClassName:  d.ClassName,
		Confidence: d.Confidence,
		BBox:       detection.BBox{d.X1, d.Y1, d.X2, d.Y2},
	}
}

// NewDetectionResult builds a row for imageID from an adapter-level value.
func NewDetectionResult(imageID int64, d detection.Detection) DetectionResult {
	return DetectionResult{
		ImageID:    imageID,
		ClassName:  d.ClassName,
		Confidence: d.Confidence,
		X1:         d.BBox[0],
		Y1:         d.BBox[1],
		X2:         d.BBox[2],
		Y2:         d.BBox[3],
	}
}

// Detections converts a slice of rows.
func Detections(rows []DetectionResult) []detection.Detection {
	out := make([]detection.Detection, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Detection())
	}
	return out
}
