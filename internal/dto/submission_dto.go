package dto

import (
	"time"

	"github.com/noah-isme/grading-core/internal/models"
)

// IntakeRequest carries the fields the external queue supplies for a new
// submission.
type IntakeRequest struct {
	Location              string    `json:"location" validate:"required"`
	CourseID              string    `json:"course_id" validate:"required"`
	StudentID             string    `json:"student_id" validate:"required"`
	StudentResponse       string    `json:"student_response" validate:"required"`
	Prompt                string    `json:"prompt"`
	ProblemID             string    `json:"problem_id"`
	MaxScore              float64   `json:"max_score" validate:"gte=0"`
	PreferredGraderType   string    `json:"preferred_grader_type" validate:"required,oneof=ML IN PE"`
	StudentSubmissionTime time.Time `json:"student_submission_time"`
}

// IntakeResponse returns the identity of a newly created submission.
type IntakeResponse struct {
	SubmissionID uint `json:"submission_id"`
}

// SubmissionResponse is the external view of a submission.
type SubmissionResponse struct {
	ID                       uint      `json:"id"`
	Location                 string    `json:"location"`
	CourseID                 string    `json:"course_id"`
	StudentID                string    `json:"student_id"`
	StudentResponse          string    `json:"student_response"`
	Prompt                   string    `json:"prompt"`
	ProblemID                string    `json:"problem_id"`
	MaxScore                 float64   `json:"max_score"`
	PreferredGraderType      string    `json:"preferred_grader_type"`
	NextGraderType           string    `json:"next_grader_type"`
	PreviousGraderType       string    `json:"previous_grader_type"`
	State                    string    `json:"state"`
	IsDuplicate              bool      `json:"is_duplicate"`
	PostedResultsBackToQueue bool      `json:"posted_results_back_to_queue"`
	CreatedAt                time.Time `json:"created_at"`
	UpdatedAt                time.Time `json:"updated_at"`
}

// NewSubmissionResponse maps a submission model onto its response shape.
func NewSubmissionResponse(submission models.Submission) SubmissionResponse {
	return SubmissionResponse{
		ID:                       submission.ID,
		Location:                 submission.Location,
		CourseID:                 submission.CourseID,
		StudentID:                submission.StudentID,
		StudentResponse:          submission.StudentResponse,
		Prompt:                   submission.Prompt,
		ProblemID:                submission.ProblemID,
		MaxScore:                 submission.MaxScore,
		PreferredGraderType:      submission.PreferredGraderType,
		NextGraderType:           submission.NextGraderType,
		PreviousGraderType:       submission.PreviousGraderType,
		State:                    submission.State,
		IsDuplicate:              submission.IsDuplicate,
		PostedResultsBackToQueue: submission.PostedResultsBackToQueue,
		CreatedAt:                submission.CreatedAt,
		UpdatedAt:                submission.UpdatedAt,
	}
}
