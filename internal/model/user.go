package model

import "time"

// User is an account identified by its unique email.
type User struct {
	ID             int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Email          string    `json:"email" gorm:"uniqueIndex;not null"`
	HashedPassword string    `json:"-" gorm:"column:hashed_password;not null"`
	FullName       string    `json:"full_name" gorm:"not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (User) TableName() string {
	return "users"
}
