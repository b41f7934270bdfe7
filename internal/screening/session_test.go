package screening

import (
	"errors"
	"testing"
)

func sessionBank(t *testing.T, aptitude, technical int) []Question {
	t.Helper()
	var bank []Question
	for i := 0; i < aptitude; i++ {
		bank = append(bank, Question{
			ID: "a", Prompt: "p", Options: []string{"x", "y"},
			CorrectOptionIndex: 0, Category: CategoryAptitude, Difficulty: DifficultyEasy,
		})
		bank[len(bank)-1].ID = "a" + string(rune('0'+i))
	}
	for i := 0; i < technical; i++ {
		bank = append(bank, Question{
			ID: "t", Prompt: "p", Options: []string{"x", "y"},
			CorrectOptionIndex: 1, Category: CategoryTechnical, Difficulty: DifficultyHard,
		})
		bank[len(bank)-1].ID = "t" + string(rune('0'+i))
	}
	return bank
}

func TestSessionHappyPath(t *testing.T) {
	s, err := NewSession(sessionBank(t, 2, 2))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if s.Phase() != PhaseConsent {
		t.Fatalf("start phase = %s", s.Phase())
	}
	if err := s.Advance(nil); err != nil { // consent gate
		t.Fatalf("advance consent: %v", err)
	}
	if err := s.Advance([]*int{intp(0), intp(1)}); err != nil {
		t.Fatalf("advance aptitude: %v", err)
	}
	if s.Phase() != PhaseIntermission {
		t.Fatalf("phase after aptitude = %s", s.Phase())
	}
	if err := s.Advance(nil); err != nil { // intermission gate
		t.Fatalf("advance intermission: %v", err)
	}
	if err := s.Advance([]*int{intp(1), intp(1)}); err != nil {
		t.Fatalf("advance technical: %v", err)
	}
	if s.Phase() != PhaseSubmitted {
		t.Fatalf("phase after technical = %s", s.Phase())
	}

	answers, questions, err := s.Result()
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if len(answers) != 4 || len(questions) != 4 {
		t.Fatalf("result lengths: %d answers, %d questions", len(answers), len(questions))
	}
	if questions[0].Category != CategoryAptitude || questions[3].Category != CategoryTechnical {
		t.Fatalf("result not in phase order: %+v", questions)
	}

	res, err := Grade(answers, questions)
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if res.Score != 75 {
		t.Fatalf("score = %d, want 75", res.Score)
	}
}

func TestSessionPartialPhaseBlocksAdvance(t *testing.T) {
	s, err := NewSession(sessionBank(t, 2, 1))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	_ = s.Advance(nil)
	if err := s.Advance([]*int{intp(0), nil}); !errors.Is(err, ErrPhaseIncomplete) {
		t.Fatalf("expected ErrPhaseIncomplete, got %v", err)
	}
	if s.Phase() != PhaseAptitude {
		t.Fatalf("blocked advance must not move phase, got %s", s.Phase())
	}
	if err := s.Advance([]*int{intp(0)}); !errors.Is(err, ErrPhaseIncomplete) {
		t.Fatalf("short answer slice: expected ErrPhaseIncomplete, got %v", err)
	}
}

func TestSessionProctorRejectMidFlight(t *testing.T) {
	s, err := NewSession(sessionBank(t, 1, 10))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	_ = s.Advance(nil)
	_ = s.Advance([]*int{intp(0)})
	_ = s.Advance(nil)
	// Candidate answered 2 of 10 technical questions when the proctor fires;
	// the session terminates without any grading.
	if err := s.ProctorReject(); err != nil {
		t.Fatalf("ProctorReject: %v", err)
	}
	if s.Phase() != PhaseRejected {
		t.Fatalf("phase = %s, want rejected", s.Phase())
	}
	if _, _, err := s.Result(); err == nil {
		t.Fatal("Result must be unavailable after proctor rejection")
	}
	if err := s.Advance(nil); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("expected ErrSessionFinished, got %v", err)
	}
}

func TestSessionNoBackwardsMoves(t *testing.T) {
	s, err := NewSession(sessionBank(t, 1, 1))
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	_ = s.Advance(nil)
	_ = s.Advance([]*int{intp(0)})
	_ = s.Advance(nil)
	_ = s.Advance([]*int{intp(1)})
	if err := s.Advance(nil); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("advance past submitted: expected ErrSessionFinished, got %v", err)
	}
	if err := s.ProctorReject(); !errors.Is(err, ErrSessionFinished) {
		t.Fatalf("proctor reject after submit: expected ErrSessionFinished, got %v", err)
	}
}
