package screening

import (
	"errors"
	"fmt"
	"strings"
)

// Status is the authoritative application status. Persisted values are always
// upper-case; ParseStatus folds historical lower-case variants (e.g. "offer").
type Status string

const (
	StatusNew         Status = "NEW"
	StatusTestPending Status = "TEST_PENDING"
	StatusInterview   Status = "INTERVIEW"
	StatusOffer       Status = "OFFER"
	StatusRejected    Status = "REJECTED"
	StatusHired       Status = "HIRED"
)

// Screening and assessment thresholds.
const (
	ScreeningPassScore  = 60
	AssessmentPassScore = 70
)

var (
	ErrUnknownStatus     = errors.New("unknown application status")
	ErrAlreadySubmitted  = errors.New("assessment already submitted")
	ErrTerminalStatus    = errors.New("application status is terminal")
	ErrIllegalTransition = errors.New("illegal status transition")
	ErrReasonRequired    = errors.New("rejection reason code required")
)

// transitions is the full legal transition table. REJECTED and HIRED are
// terminal and have no outgoing edges.
var transitions = map[Status][]Status{
	StatusNew:         {StatusTestPending, StatusRejected},
	StatusTestPending: {StatusInterview, StatusRejected},
	StatusInterview:   {StatusOffer, StatusHired, StatusRejected},
	StatusOffer:       {StatusHired, StatusRejected},
	StatusRejected:    {},
	StatusHired:       {},
}

// ParseStatus normalizes a persisted status value.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// IsTerminal reports whether no further transitions are permitted.
func (s Status) IsTerminal() bool {
	return s == StatusRejected || s == StatusHired
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ScreeningOutcome decides the post-screening status. Crossing the threshold
// admits the candidate to the assessment; anything below rejects.
func ScreeningOutcome(score int) Status {
	if score >= ScreeningPassScore {
		return StatusTestPending
	}
	return StatusRejected
}

// AssessmentOutcome decides the post-grading status.
func AssessmentOutcome(score int) Status {
	if score >= AssessmentPassScore {
		return StatusInterview
	}
	return StatusRejected
}

// CheckSubmit guards the assessment submission. Submission is only legal while
// the application sits exactly in TEST_PENDING; any later status means the
// assessment was already taken (or the candidate was rejected before finishing).
func CheckSubmit(current Status) error {
	if current == StatusTestPending {
		return nil
	}
	return fmt.Errorf("%w (status %s)", ErrAlreadySubmitted, current)
}

// CheckManualReject guards the recruiter-initiated rejection.
func CheckManualReject(current Status, reason string) error {
	if current.IsTerminal() {
		return fmt.Errorf("%w (status %s)", ErrTerminalStatus, current)
	}
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	return nil
}

// CheckHire guards the hire confirmation: only from INTERVIEW or OFFER.
func CheckHire(current Status) error {
	if current == StatusInterview || current == StatusOffer {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, StatusHired)
}

// CheckOffer guards sending an offer: only from INTERVIEW.
func CheckOffer(current Status) error {
	if current == StatusInterview {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, StatusOffer)
}

// CheckDisqualify guards the proctoring disqualification, legal only while the
// assessment is in flight. It bypasses grading entirely.
func CheckDisqualify(current Status) error {
	if current == StatusTestPending {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, StatusRejected)
}
