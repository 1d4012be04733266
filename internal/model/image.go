package model

import "time"

// Image is the metadata of an uploaded file.
type Image struct {
	ID         int64             `json:"id" gorm:"primaryKey;autoIncrement"`
	Filename   string            `json:"filename" gorm:"uniqueIndex;not null"`
	FilePath   string            `json:"filepath" gorm:"column:filepath;not null"`
	UploadedAt time.Time         `json:"uploaded_at" gorm:"autoCreateTime"`
	OwnerID    int64             `json:"owner_id" gorm:"index;not null"`
	Owner      *User             `json:"-" gorm:"foreignKey:OwnerID;references:ID;constraint:OnDelete:CASCADE"`
	Detections []DetectionResult `json:"detections,omitempty" gorm:"foreignKey:ImageID"`
}

func (Image) TableName() string {
	return "images"
}

// ImageSummary is a row of an owner's upload history.
type ImageSummary struct {
	ID             int64     `json:"id"`
	Filename       string    `json:"filename"`
	UploadedAt     time.Time `json:"uploaded_at"`
	DetectionCount int       `json:"detection_count"`
}
