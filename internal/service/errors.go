package service

import "errors"

// ErrSubmissionNotFound indicates the referenced submission does not exist.
var ErrSubmissionNotFound = errors.New("submission not found")

// ErrProfileNotFound indicates the referenced student profile does not exist.
var ErrProfileNotFound = errors.New("student profile not found")

// ErrStateConflict indicates the operation's precondition on the current
// submission state no longer holds. Callers should re-fetch and decide
// whether to retry.
var ErrStateConflict = errors.New("submission state changed")

// ErrInvalidAction indicates an unknown moderation action.
var ErrInvalidAction = errors.New("invalid flag action")

// ErrInvalidInput indicates a malformed request.
var ErrInvalidInput = errors.New("invalid input")

// ErrGraderBanned indicates the requester is banned from peer grading.
var ErrGraderBanned = errors.New("grader banned from peer grading")
