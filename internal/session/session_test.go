package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nihongolab/jlptmock/internal/model"
)

func testExam() model.Exam {
	q := func(id, correct string) model.Question {
		return model.Question{
			ID:   id,
			Type: model.QuestionVocabulary,
			Options: []model.Option{
				{ID: "a", Text: "ア"},
				{ID: "b", Text: "イ"},
			},
			CorrectOptionID: correct,
		}
	}
	return model.Exam{
		ID:             "exam-1",
		Title:          "Test Exam",
		Level:          model.LevelN3,
		TotalQuestions: 5,
		TotalDuration:  2,
		Sections: []model.Section{
			{ID: "s1", Title: "Vocabulary", DurationMinutes: 1, Questions: []model.Question{q("q1", "a"), q("q2", "a")}},
			{ID: "s2", Title: "Grammar", DurationMinutes: 1, Questions: []model.Question{q("q3", "b"), q("q4", "b"), q("q5", "a")}},
			{ID: "s3", Title: "Listening", DurationMinutes: 0, Questions: []model.Question{}},
		},
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestNewSessionInitialState(t *testing.T) {
	s := New(testExam())

	if s.State() != StateInProgress {
		t.Errorf("state = %q, want in_progress", s.State())
	}
	si, qi := s.Position()
	if si != 0 || qi != 0 {
		t.Errorf("position = (%d,%d), want (0,0)", si, qi)
	}
	if s.RemainingSeconds() != 120 {
		t.Errorf("remaining = %d, want 120", s.RemainingSeconds())
	}
	if s.AnsweredCount() != 0 {
		t.Errorf("answered = %d, want 0", s.AnsweredCount())
	}
}

func TestSelectAnswer(t *testing.T) {
	s := New(testExam())

	if err := s.SelectAnswer("q1", "a"); err != nil {
		t.Fatalf("SelectAnswer: %v", err)
	}
	a, ok := s.Answer("q1")
	if !ok {
		t.Fatal("expected answer recorded")
	}
	if !a.IsCorrect {
		t.Error("q1/a should be correct")
	}

	// Re-selecting a different option overwrites; only the latest persists.
	if err := s.SelectAnswer("q1", "b"); err != nil {
		t.Fatalf("SelectAnswer overwrite: %v", err)
	}
	a, _ = s.Answer("q1")
	if a.SelectedOptionID != "b" || a.IsCorrect {
		t.Errorf("expected incorrect answer b, got %+v", a)
	}
	if s.AnsweredCount() != 1 {
		t.Errorf("answered = %d, want 1", s.AnsweredCount())
	}

	// Repeating the identical selection is idempotent.
	if err := s.SelectAnswer("q1", "b"); err != nil {
		t.Fatalf("SelectAnswer repeat: %v", err)
	}
	if s.AnsweredCount() != 1 {
		t.Errorf("answered = %d after repeat, want 1", s.AnsweredCount())
	}

	if err := s.SelectAnswer("nope", "a"); !errors.Is(err, ErrQuestionNotFound) {
		t.Errorf("expected ErrQuestionNotFound, got %v", err)
	}
	if err := s.SelectAnswer("q1", "z"); !errors.Is(err, ErrOptionNotFound) {
		t.Errorf("expected ErrOptionNotFound, got %v", err)
	}
}

func TestSectionNavigationClamped(t *testing.T) {
	s := New(testExam())

	// Retreat at the first section is a no-op, not an error.
	if err := s.RetreatSection(); err != nil {
		t.Fatalf("RetreatSection: %v", err)
	}
	if si, _ := s.Position(); si != 0 {
		t.Errorf("section = %d, want 0", si)
	}

	if err := s.AdvanceSection(); err != nil {
		t.Fatalf("AdvanceSection: %v", err)
	}
	if si, _ := s.Position(); si != 1 {
		t.Errorf("section = %d, want 1", si)
	}

	// Advance past the last section clamps.
	_ = s.AdvanceSection()
	if err := s.AdvanceSection(); err != nil {
		t.Fatalf("AdvanceSection at end: %v", err)
	}
	if si, _ := s.Position(); si != 2 {
		t.Errorf("section = %d, want 2", si)
	}
}

func TestQuestionNavigation(t *testing.T) {
	s := New(testExam())

	// Next crosses the section boundary.
	_ = s.Next() // q2
	_ = s.Next() // s2 q1
	si, qi := s.Position()
	if si != 1 || qi != 0 {
		t.Errorf("position = (%d,%d), want (1,0)", si, qi)
	}

	// Prev crosses back to the last question of the previous section.
	_ = s.Prev()
	si, qi = s.Position()
	if si != 0 || qi != 1 {
		t.Errorf("position = (%d,%d), want (0,1)", si, qi)
	}

	// Prev at the very first question is a no-op.
	_ = s.Prev()
	_ = s.Prev()
	si, qi = s.Position()
	if si != 0 || qi != 0 {
		t.Errorf("position = (%d,%d), want (0,0)", si, qi)
	}
}

func TestJumpTo(t *testing.T) {
	s := New(testExam())

	if err := s.JumpTo(1, 2); err != nil {
		t.Fatalf("JumpTo: %v", err)
	}
	si, qi := s.Position()
	if si != 1 || qi != 2 {
		t.Errorf("position = (%d,%d), want (1,2)", si, qi)
	}

	tests := []struct {
		name string
		si   int
		qi   int
	}{
		{"section too high", 3, 0},
		{"section negative", -1, 0},
		{"question too high", 0, 2},
		{"question negative", 0, -1},
		{"empty section", 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.JumpTo(tt.si, tt.qi); !errors.Is(err, ErrOutOfRange) {
				t.Errorf("JumpTo(%d,%d) = %v, want ErrOutOfRange", tt.si, tt.qi, err)
			}
			// Position must be unchanged after a rejected jump.
			si, qi := s.Position()
			if si != 1 || qi != 2 {
				t.Errorf("position = (%d,%d) after rejected jump, want (1,2)", si, qi)
			}
		})
	}
}

func TestTickMonotoneNonNegative(t *testing.T) {
	s := New(testExam())

	prev := s.RemainingSeconds()
	for i := 0; i < 130; i++ {
		s.Tick()
		r := s.RemainingSeconds()
		if r > prev {
			t.Fatalf("remaining increased from %d to %d", prev, r)
		}
		if r < 0 {
			t.Fatalf("remaining went negative: %d", r)
		}
		prev = r
	}
	if prev != 0 {
		t.Errorf("remaining = %d after exhausting clock, want 0", prev)
	}
}

func TestAutoSubmitOnTimeout(t *testing.T) {
	var completed []model.ExamResult
	s := New(testExam(), WithOnComplete(func(r model.ExamResult) {
		completed = append(completed, r)
	}))
	_ = s.SelectAnswer("q1", "a")

	for s.RemainingSeconds() > 1 {
		s.Tick()
	}
	if s.State() != StateInProgress {
		t.Fatal("session completed early")
	}

	s.Tick()
	if s.State() != StateCompleted {
		t.Fatalf("state = %q after final tick, want completed", s.State())
	}
	res, ok := s.Result()
	if !ok {
		t.Fatal("expected result after auto-submit")
	}
	if res.TimeSpentSeconds != 120 {
		t.Errorf("TimeSpentSeconds = %d, want 120", res.TimeSpentSeconds)
	}
	if len(completed) != 1 {
		t.Fatalf("completion callback fired %d times, want 1", len(completed))
	}

	// Late ticks after completion are ignored.
	s.Tick()
	if len(completed) != 1 {
		t.Errorf("late tick re-fired completion callback")
	}
}

func TestSubmitIdempotent(t *testing.T) {
	fired := 0
	s := New(testExam(), WithOnComplete(func(model.ExamResult) { fired++ }))
	_ = s.SelectAnswer("q1", "a")
	_ = s.SelectAnswer("q3", "b")
	_ = s.SelectAnswer("q4", "a") // incorrect
	s.Tick()
	s.Tick()

	first, err := s.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if first.CorrectCount != 2 {
		t.Errorf("CorrectCount = %d, want 2", first.CorrectCount)
	}
	if first.TimeSpentSeconds != 2 {
		t.Errorf("TimeSpentSeconds = %d, want 2", first.TimeSpentSeconds)
	}

	second, err := s.Submit()
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if second.CorrectCount != first.CorrectCount || second.Score != first.Score {
		t.Errorf("second submit differs: %+v vs %+v", second, first)
	}
	if !second.CompletedAt.Equal(first.CompletedAt) {
		t.Error("second submit recomputed CompletedAt")
	}
	if fired != 1 {
		t.Errorf("completion callback fired %d times, want 1", fired)
	}
}

func TestMutatorsAfterCompletion(t *testing.T) {
	s := New(testExam())
	if _, err := s.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := s.SelectAnswer("q1", "a"); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("SelectAnswer after submit = %v, want ErrSessionFinished", err)
	}
	if err := s.AdvanceSection(); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("AdvanceSection after submit = %v, want ErrSessionFinished", err)
	}
	if err := s.JumpTo(0, 0); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("JumpTo after submit = %v, want ErrSessionFinished", err)
	}
	if err := s.Exit(); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("Exit after submit = %v, want ErrSessionFinished", err)
	}
}

func TestExitDiscardsSession(t *testing.T) {
	s := New(testExam())
	_ = s.SelectAnswer("q1", "a")

	if err := s.Exit(); err != nil {
		t.Fatalf("Exit: %v", err)
	}
	if s.State() != StateExited {
		t.Errorf("state = %q, want exited", s.State())
	}
	if _, ok := s.Result(); ok {
		t.Error("exited session must not carry a result")
	}
	if _, err := s.Submit(); !errors.Is(err, ErrSessionFinished) {
		t.Errorf("Submit after exit = %v, want ErrSessionFinished", err)
	}

	select {
	case <-s.Done():
	default:
		t.Error("Done channel not closed after exit")
	}
}

func TestRunStopsOnSubmit(t *testing.T) {
	s := New(testExam())
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()

	if _, err := s.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after submit")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	s := New(testExam())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
}

func TestFormatRemaining(t *testing.T) {
	s := New(testExam())
	if got := s.FormatRemaining(); got != "2:00" {
		t.Errorf("FormatRemaining = %q, want 2:00", got)
	}
	for i := 0; i < 55; i++ {
		s.Tick()
	}
	if got := s.FormatRemaining(); got != "1:05" {
		t.Errorf("FormatRemaining = %q, want 1:05", got)
	}
}

func TestClockInjection(t *testing.T) {
	completed := time.Date(2025, 12, 1, 9, 30, 0, 0, time.UTC)
	s := New(testExam(), WithClock(fixedClock(completed)))

	res, err := s.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.CompletedAt.Equal(completed) {
		t.Errorf("CompletedAt = %v, want %v", res.CompletedAt, completed)
	}
	if !s.StartedAt().Equal(completed) {
		t.Errorf("StartedAt = %v, want %v", s.StartedAt(), completed)
	}
}

func TestAbsoluteNumber(t *testing.T) {
	s := New(testExam())
	tests := []struct {
		si, qi, want int
	}{
		{0, 0, 1},
		{0, 1, 2},
		{1, 0, 3},
		{1, 2, 5},
	}
	for _, tt := range tests {
		if got := s.AbsoluteNumber(tt.si, tt.qi); got != tt.want {
			t.Errorf("AbsoluteNumber(%d,%d) = %d, want %d", tt.si, tt.qi, got, tt.want)
		}
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	s := New(testExam())

	token, err := r.Add(s)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if token == "" {
		t.Fatal("empty token")
	}

	got, ok := r.Get(token)
	if !ok || got != s {
		t.Fatal("Get did not return the added session")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}

	r.Remove(token)
	if _, ok := r.Get(token); ok {
		t.Error("session still present after Remove")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d after remove, want 0", r.Len())
	}
}
