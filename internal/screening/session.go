package screening

import (
	"errors"
	"fmt"
)

// Phase is a state of the proctored assessment flow. The flow is client-driven
// and untimed; the server keeps no intermediate checkpoint, so a Session value
// is rebuilt from scratch on every attempt while the application remains in
// TEST_PENDING.
type Phase string

const (
	PhaseConsent      Phase = "consent"
	PhaseAptitude     Phase = "aptitude"
	PhaseIntermission Phase = "intermission"
	PhaseTechnical    Phase = "technical"
	PhaseSubmitted    Phase = "submitted"
	PhaseRejected     Phase = "rejected"
)

var (
	ErrPhaseIncomplete  = errors.New("session: current phase has unanswered questions")
	ErrIllegalPhaseMove = errors.New("session: illegal phase transition")
	ErrSessionFinished  = errors.New("session: already finished")
)

// phaseNext is the single forward edge per phase. PhaseRejected is reachable
// from any non-final phase via the proctoring signal only, never by advancing.
var phaseNext = map[Phase]Phase{
	PhaseConsent:      PhaseAptitude,
	PhaseAptitude:     PhaseIntermission,
	PhaseIntermission: PhaseTechnical,
	PhaseTechnical:    PhaseSubmitted,
}

// Session walks a candidate through the assessment phases and accumulates the
// phase answers. consent and intermission are pure gates with no data capture.
type Session struct {
	phase     Phase
	aptitude  []Question
	technical []Question

	aptitudeAnswers  []*int
	technicalAnswers []*int
}

// NewSession builds a session over a normalized question bank.
func NewSession(bank []Question) (*Session, error) {
	if err := ValidateBank(bank); err != nil {
		return nil, err
	}
	aptitude, technical := SplitByCategory(bank)
	return &Session{
		phase:     PhaseConsent,
		aptitude:  aptitude,
		technical: technical,
	}, nil
}

// Phase returns the current phase.
func (s *Session) Phase() Phase { return s.phase }

// Finished reports whether the session reached a final phase.
func (s *Session) Finished() bool {
	return s.phase == PhaseSubmitted || s.phase == PhaseRejected
}

// PhaseQuestions returns the questions of the current phase, or nil for the
// gating phases.
func (s *Session) PhaseQuestions() []Question {
	switch s.phase {
	case PhaseAptitude:
		return s.aptitude
	case PhaseTechnical:
		return s.technical
	default:
		return nil
	}
}

// Advance moves to the next phase. For the answer-capturing phases the supplied
// answers must cover every question with a non-nil slot; partial completion
// blocks the move without recording anything. Gating phases ignore answers.
func (s *Session) Advance(answers []*int) error {
	if s.Finished() {
		return ErrSessionFinished
	}
	next, ok := phaseNext[s.phase]
	if !ok {
		return fmt.Errorf("%w: from %s", ErrIllegalPhaseMove, s.phase)
	}
	switch s.phase {
	case PhaseAptitude:
		if err := checkPhaseAnswers(answers, len(s.aptitude)); err != nil {
			return err
		}
		s.aptitudeAnswers = answers
	case PhaseTechnical:
		if err := checkPhaseAnswers(answers, len(s.technical)); err != nil {
			return err
		}
		s.technicalAnswers = answers
	}
	s.phase = next
	return nil
}

func checkPhaseAnswers(answers []*int, want int) error {
	if len(answers) != want {
		return fmt.Errorf("%w: got %d answers, want %d", ErrPhaseIncomplete, len(answers), want)
	}
	for i, a := range answers {
		if a == nil {
			return fmt.Errorf("%w: question %d unanswered", ErrPhaseIncomplete, i)
		}
	}
	return nil
}

// ProctorReject terminates the session from any in-flight phase. It is the only
// path into PhaseRejected and is independent of how far the candidate got.
func (s *Session) ProctorReject() error {
	if s.Finished() {
		return ErrSessionFinished
	}
	s.phase = PhaseRejected
	return nil
}

// Result concatenates the phase answer sets in phase order (aptitude before
// technical) together with the matching question order, ready for grading.
// Only valid once the session reached PhaseSubmitted.
func (s *Session) Result() (answers []*int, questions []Question, err error) {
	if s.phase != PhaseSubmitted {
		return nil, nil, fmt.Errorf("%w: session in phase %s", ErrIllegalPhaseMove, s.phase)
	}
	answers = append(append([]*int{}, s.aptitudeAnswers...), s.technicalAnswers...)
	questions = append(append([]Question{}, s.aptitude...), s.technical...)
	return answers, questions, nil
}
