package dto

import "github.com/noah-isme/grading-core/internal/models"

// FlagActionRequest resolves a flagged submission.
type FlagActionRequest struct {
	Action       string `json:"action" validate:"required"`
	SubmissionID uint   `json:"submission_id" validate:"required"`
}

// FlaggedSubmission is the moderation view of a flagged response.
type FlaggedSubmission struct {
	SubmissionID    uint   `json:"submission_id"`
	StudentID       string `json:"student_id"`
	StudentResponse string `json:"student_response"`
	ProblemID       string `json:"problem_id"`
	Location        string `json:"location"`
}

// NewFlaggedSubmission maps a submission onto its moderation view.
func NewFlaggedSubmission(submission models.Submission) FlaggedSubmission {
	return FlaggedSubmission{
		SubmissionID:    submission.ID,
		StudentID:       submission.StudentID,
		StudentResponse: submission.StudentResponse,
		ProblemID:       submission.ProblemID,
		Location:        submission.Location,
	}
}

// PendingNotification reports whether grading work awaits a requester.
type PendingNotification struct {
	Pending bool `json:"pending"`
}
