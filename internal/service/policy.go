package service

import "time"

// Policy groups the externally supplied routing thresholds. No literal values
// live in the core; deployments set these through configuration.
type Policy struct {
	// MinStaffBeforeML is the minimum number of staff-graded (plus pending
	// staff) submissions required per location before automated grading is
	// trusted.
	MinStaffBeforeML int
	// MinToUsePeer is the per-location staff minimum used for staff
	// notification checks when a location has no ML-preferred submissions.
	MinToUsePeer int
	// StallTimeout is how long a checked-out submission may sit unmodified
	// before the reaper presumes the grader abandoned it.
	StallTimeout time.Duration
	// ExpireAfter is the hard bound after which an unclaimed submission is
	// force-finished with a synthetic failure grade.
	ExpireAfter time.Duration
	// PeerGradersRequired is how many successful peer grades finish a
	// peer-preferred submission.
	PeerGradersRequired int
	// RequiredPeerGradingPerStudent is how many submissions each student must
	// peer grade per own response.
	RequiredPeerGradingPerStudent int
	// SimilarityThreshold rejects a peer candidate when the requester's
	// behavioral-similarity score to the candidate's author exceeds it.
	SimilarityThreshold float64
	// ExcludeBannedGraders controls whether banned students are refused as
	// peer-grading requesters.
	ExcludeBannedGraders bool
	// PeerSearchWindow bounds how many ranked peer candidates are examined
	// per selection.
	PeerSearchWindow int
}
