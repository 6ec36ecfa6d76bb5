package models

import "time"

// Submission states. Exactly one holds at any time.
const (
	StateWaitingToBeGraded = "waiting_to_be_graded"
	StateBeingGraded       = "being_graded"
	StateFinished          = "finished"
	StateFlagged           = "flagged"
)

// Grader pool codes, kept compatible with the upstream queue payloads.
const (
	GraderTypeML         = "ML"
	GraderTypeInstructor = "IN"
	GraderTypePeer       = "PE"
	GraderTypeBasicCheck = "BC"
)

// Submission is a student response moving through the grading pipeline.
// Submissions are never deleted; terminal outcomes are expressed through
// State and PostedResultsBackToQueue.
type Submission struct {
	ID                    uint      `gorm:"primaryKey" json:"id"`
	Location              string    `gorm:"size:255;index;not null" json:"location"`
	CourseID              string    `gorm:"size:255;index;not null" json:"course_id"`
	StudentID             string    `gorm:"size:255;index;not null" json:"student_id"`
	StudentResponse       string    `gorm:"type:text" json:"student_response"`
	Prompt                string    `gorm:"type:text" json:"prompt"`
	ProblemID             string    `gorm:"size:255" json:"problem_id"`
	MaxScore              float64   `json:"max_score"`
	StudentSubmissionTime time.Time `json:"student_submission_time"`

	// Routing: PreferredGraderType is the pool the problem was configured to
	// ultimately use; NextGraderType is the pool currently eligible to claim
	// the submission; PreviousGraderType is the last pool that graded it.
	PreferredGraderType string `gorm:"size:4;not null" json:"preferred_grader_type"`
	NextGraderType      string `gorm:"size:4;index;not null" json:"next_grader_type"`
	PreviousGraderType  string `gorm:"size:4" json:"previous_grader_type"`

	State string `gorm:"size:32;index;not null" json:"state"`

	IsDuplicate           bool  `gorm:"index" json:"is_duplicate"`
	DuplicateSubmissionID *uint `json:"duplicate_submission_id"`
	IsPlagiarized         bool  `json:"is_plagiarized"`

	// PostedResultsBackToQueue flips once the final grade has been delivered
	// to the external queue. Only valid after State reaches finished.
	PostedResultsBackToQueue bool `gorm:"index" json:"posted_results_back_to_queue"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`

	Grades []GradeRecord `gorm:"foreignKey:SubmissionID" json:"grades,omitempty"`
}

// IsTerminal reports whether the submission has reached a final state.
func (s Submission) IsTerminal() bool {
	return s.State == StateFinished
}

// ValidGraderType reports whether code names a known grader pool.
func ValidGraderType(code string) bool {
	switch code {
	case GraderTypeML, GraderTypeInstructor, GraderTypePeer, GraderTypeBasicCheck:
		return true
	}
	return false
}
