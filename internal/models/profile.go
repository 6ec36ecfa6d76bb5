package models

import "time"

// StudentProfile carries cross-cutting grader attributes for a student.
type StudentProfile struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	StudentID         string    `gorm:"size:255;uniqueIndex;not null" json:"student_id"`
	PeerGradingBanned bool      `json:"peer_grading_banned"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
