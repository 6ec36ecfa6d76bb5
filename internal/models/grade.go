package models

import (
	"time"

	"gorm.io/datatypes"
)

// Grade record statuses.
const (
	GradeStatusSuccess = "success"
	GradeStatusFailure = "failure"
)

// GradeRecord captures one grading attempt against a submission. Records are
// immutable once written; duplicate propagation clones them rather than
// mutating.
type GradeRecord struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	SubmissionID uint           `gorm:"index;not null" json:"submission_id"`
	GraderType   string         `gorm:"size:4;not null" json:"grader_type"`
	GraderID     string         `gorm:"size:255;index;not null" json:"grader_id"`
	Status       string         `gorm:"size:16;not null" json:"status"`
	Score        float64        `json:"score"`
	Confidence   float64        `json:"confidence"`
	Feedback     string         `gorm:"type:text" json:"feedback"`
	Metadata     datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`

	Rubrics []Rubric `gorm:"foreignKey:GradeRecordID" json:"rubrics,omitempty"`
}

// Rubric is the top level of the structured scoring tree attached to a grade.
type Rubric struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	GradeRecordID uint    `gorm:"index;not null" json:"grade_record_id"`
	FinalizedText string  `gorm:"type:text" json:"finalized_text"`
	FinishedScore float64 `json:"finished_score"`

	Items []RubricItem `gorm:"foreignKey:RubricID" json:"items,omitempty"`
}

// RubricItem is one scored criterion within a rubric.
type RubricItem struct {
	ID       uint    `gorm:"primaryKey" json:"id"`
	RubricID uint    `gorm:"index;not null" json:"rubric_id"`
	Text     string  `gorm:"type:text" json:"text"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`

	Options []RubricOption `gorm:"foreignKey:RubricItemID" json:"options,omitempty"`
}

// RubricOption is one selectable level within a rubric item.
type RubricOption struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	RubricItemID uint    `gorm:"index;not null" json:"rubric_item_id"`
	Points       float64 `json:"points"`
	Text         string  `gorm:"type:text" json:"text"`
	Selected     bool    `json:"selected"`
}

// CloneForSubmission produces a deep copy of the grade record and its whole
// rubric tree with fresh identities, reparented onto submissionID. Ownership
// links below the record are zeroed so the ORM assigns new keys on insert.
func (g GradeRecord) CloneForSubmission(submissionID uint) GradeRecord {
	clone := g
	clone.ID = 0
	clone.SubmissionID = submissionID
	clone.CreatedAt = time.Time{}
	if g.Metadata != nil {
		clone.Metadata = make(datatypes.JSON, len(g.Metadata))
		copy(clone.Metadata, g.Metadata)
	}

	clone.Rubrics = make([]Rubric, len(g.Rubrics))
	for i, rubric := range g.Rubrics {
		rubricClone := rubric
		rubricClone.ID = 0
		rubricClone.GradeRecordID = 0
		rubricClone.Items = make([]RubricItem, len(rubric.Items))
		for j, item := range rubric.Items {
			itemClone := item
			itemClone.ID = 0
			itemClone.RubricID = 0
			itemClone.Options = make([]RubricOption, len(item.Options))
			for k, option := range item.Options {
				optionClone := option
				optionClone.ID = 0
				optionClone.RubricItemID = 0
				itemClone.Options[k] = optionClone
			}
			rubricClone.Items[j] = itemClone
		}
		clone.Rubrics[i] = rubricClone
	}

	return clone
}
