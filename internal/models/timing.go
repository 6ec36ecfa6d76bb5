package models

import "time"

// TimingRecord tracks how long a grader held a checked-out submission.
// Started at checkout, finished when the grade is posted.
type TimingRecord struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SubmissionID uint       `gorm:"index;not null" json:"submission_id"`
	GraderID     string     `gorm:"size:255" json:"grader_id"`
	GraderType   string     `gorm:"size:4" json:"grader_type"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at"`
}
