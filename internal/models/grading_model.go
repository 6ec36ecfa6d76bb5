package models

import "time"

// GradingModel registers a trained automated-grading model for a problem
// location. The external trainer writes these rows; the routing engine only
// reads them to decide whether ML grading can be trusted for a location.
type GradingModel struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Location          string    `gorm:"size:255;index;not null" json:"location"`
	CreationSucceeded bool      `json:"creation_succeeded"`
	ModelPath         string    `gorm:"size:512" json:"model_path"`
	NumberOfEssays    int       `json:"number_of_essays"`
	CreatedAt         time.Time `json:"created_at"`
}
