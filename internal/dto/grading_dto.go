package dto

// SelectNextRequest asks the selector for one pending submission.
type SelectNextRequest struct {
	Pool     string `json:"pool" validate:"required,oneof=ML IN PE BC"`
	GraderID string `json:"grader_id"`
	CourseID string `json:"course_id"`
	Location string `json:"location"`
}

// SelectNextResponse reports the outcome of a selection attempt.
type SelectNextResponse struct {
	Found      bool                `json:"found"`
	Submission *SubmissionResponse `json:"submission,omitempty"`
}

// RubricOptionRequest is one selectable level within a posted rubric item.
type RubricOptionRequest struct {
	Points   float64 `json:"points"`
	Text     string  `json:"text"`
	Selected bool    `json:"selected"`
}

// RubricItemRequest is one scored criterion within a posted rubric.
type RubricItemRequest struct {
	Text     string                `json:"text"`
	Score    float64               `json:"score"`
	MaxScore float64               `json:"max_score"`
	Options  []RubricOptionRequest `json:"options"`
}

// RubricRequest is the structured scoring detail attached to a grade.
type RubricRequest struct {
	FinalizedText string              `json:"finalized_text"`
	FinishedScore float64             `json:"finished_score"`
	Items         []RubricItemRequest `json:"items"`
}

// GradeRequest posts one grading attempt against a checked-out submission.
type GradeRequest struct {
	GraderType string          `json:"grader_type" validate:"required,oneof=ML IN PE BC"`
	GraderID   string          `json:"grader_id" validate:"required"`
	Status     string          `json:"status" validate:"required,oneof=success failure"`
	Score      float64         `json:"score"`
	Confidence float64         `json:"confidence" validate:"gte=0,lte=1"`
	Feedback   string          `json:"feedback"`
	Rubrics    []RubricRequest `json:"rubrics"`
}

// SweepReportResponse summarises one reaper pass.
type SweepReportResponse struct {
	TimedOutReset               int `json:"timed_out_reset"`
	Expired                     int `json:"expired"`
	BasicCheckResubmitted       int `json:"basic_check_resubmitted"`
	FailedBasicCheckResubmitted int `json:"failed_basic_check_resubmitted"`
	ReclaimedToStaff            int `json:"reclaimed_to_staff"`
	PromotedToML                int `json:"promoted_to_ml"`
	DuplicatesFinalized         int `json:"duplicates_finalized"`
}
