package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grading-core/internal/models"
)

// EventPublisher notifies external collaborators about lifecycle events: the
// intake worker listens for resubmit requests, the post-back worker for
// finished submissions.
type EventPublisher interface {
	PublishResubmit(ctx context.Context, submission models.Submission) error
	PublishFinished(ctx context.Context, submission models.Submission) error
}

type submissionEvent struct {
	SubmissionID uint      `json:"submission_id"`
	Location     string    `json:"location"`
	CourseID     string    `json:"course_id"`
	State        string    `json:"state"`
	SentAt       time.Time `json:"sent_at"`
}

type natsPublisher struct {
	conn            *nats.Conn
	resubmitSubject string
	finishedSubject string
	logger          zerolog.Logger
}

// NewNATSPublisher builds an event publisher on a NATS connection. Subjects
// are derived from the channel base, e.g. "grading" yields
// "grading.intake.resubmit" and "grading.submission.finished".
func NewNATSPublisher(conn *nats.Conn, channelBase string, logger zerolog.Logger) EventPublisher {
	base := strings.ReplaceAll(channelBase, ":", ".")

	return &natsPublisher{
		conn:            conn,
		resubmitSubject: base + ".intake.resubmit",
		finishedSubject: base + ".submission.finished",
		logger:          logger.With().Str("component", "event_publisher").Logger(),
	}
}

func (p *natsPublisher) publish(subject string, submission models.Submission) error {
	event := submissionEvent{
		SubmissionID: submission.ID,
		Location:     submission.Location,
		CourseID:     submission.CourseID,
		State:        submission.State,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.conn.Publish(subject, payload)
}

func (p *natsPublisher) PublishResubmit(_ context.Context, submission models.Submission) error {
	return p.publish(p.resubmitSubject, submission)
}

func (p *natsPublisher) PublishFinished(_ context.Context, submission models.Submission) error {
	return p.publish(p.finishedSubject, submission)
}

type nopPublisher struct{}

// NewNopPublisher returns a publisher that drops events, used when no broker
// is configured.
func NewNopPublisher() EventPublisher {
	return nopPublisher{}
}

func (nopPublisher) PublishResubmit(context.Context, models.Submission) error { return nil }
func (nopPublisher) PublishFinished(context.Context, models.Submission) error { return nil }
