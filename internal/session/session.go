// Package session drives a single timed exam attempt from start to
// completion: position tracking, answer capture, the countdown timer and the
// hand-off to scoring on submit.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nihongolab/jlptmock/internal/model"
	"github.com/nihongolab/jlptmock/internal/scoring"
)

var (
	// ErrSessionFinished is returned when a mutator is invoked after the
	// session has been submitted or exited.
	ErrSessionFinished = errors.New("exam session already finished")
	// ErrOutOfRange is returned by JumpTo for an invalid target position.
	ErrOutOfRange = errors.New("jump target out of range")
	// ErrQuestionNotFound is returned when an answer names an unknown question.
	ErrQuestionNotFound = errors.New("question not found in exam")
	// ErrOptionNotFound is returned when an answer names an unknown option.
	ErrOptionNotFound = errors.New("option not found for question")
)

// State is the lifecycle state of a session.
type State string

const (
	StateInProgress State = "in_progress"
	StateCompleted  State = "completed"
	StateExited     State = "exited"
)

// Session is a single exam attempt. The exam content is read-only input; the
// session owns its answer map. Methods are safe for use from the timer
// goroutine and a request handler concurrently.
type Session struct {
	exam model.Exam
	cfg  scoring.Config

	mu            sync.Mutex
	state         State
	sectionIndex  int
	questionIndex int
	answers       map[string]model.UserAnswer
	remaining     int
	startedAt     time.Time
	result        *model.ExamResult

	now        func() time.Time
	onComplete func(model.ExamResult)
	stop       chan struct{}
	stopOnce   sync.Once
}

// Option configures a Session.
type Option func(*Session)

// WithClock injects a time source for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithScoring overrides the default scoring configuration.
func WithScoring(cfg scoring.Config) Option {
	return func(s *Session) { s.cfg = cfg }
}

// WithOnComplete registers a callback fired exactly once with the result when
// the session completes, whether by manual submit or timer expiry. The
// callback runs outside the session lock.
func WithOnComplete(fn func(model.ExamResult)) Option {
	return func(s *Session) { s.onComplete = fn }
}

// New starts a session at the first question with a full time allotment.
func New(exam model.Exam, opts ...Option) *Session {
	s := &Session{
		exam:      exam,
		cfg:       scoring.DefaultConfig(),
		state:     StateInProgress,
		answers:   make(map[string]model.UserAnswer),
		remaining: exam.TotalDuration * 60,
		now:       time.Now,
		stop:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startedAt = s.now()
	return s
}

// Exam returns the exam under attempt.
func (s *Session) Exam() model.Exam {
	return s.exam
}

// SelectAnswer records the answer for a question, overwriting any earlier
// selection. Correctness is fixed at selection time against the question's
// answer key.
func (s *Session) SelectAnswer(questionID, optionID string) error {
	q := s.exam.FindQuestion(questionID)
	if q == nil {
		return ErrQuestionNotFound
	}
	found := false
	for _, opt := range q.Options {
		if opt.ID == optionID {
			found = true
			break
		}
	}
	if !found {
		return ErrOptionNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return ErrSessionFinished
	}
	s.answers[questionID] = model.UserAnswer{
		QuestionID:       questionID,
		SelectedOptionID: optionID,
		IsCorrect:        optionID == q.CorrectOptionID,
	}
	return nil
}

// AdvanceSection moves one section forward, landing on its first question.
// At the last section this is a no-op.
func (s *Session) AdvanceSection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return ErrSessionFinished
	}
	if s.sectionIndex < len(s.exam.Sections)-1 {
		s.sectionIndex++
		s.questionIndex = 0
	}
	return nil
}

// RetreatSection moves one section back, landing on its first question.
// At the first section this is a no-op.
func (s *Session) RetreatSection() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return ErrSessionFinished
	}
	if s.sectionIndex > 0 {
		s.sectionIndex--
		s.questionIndex = 0
	}
	return nil
}

// Next moves to the following question, crossing into the next section when
// the current one is exhausted. At the very last question this is a no-op.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return ErrSessionFinished
	}
	sec := s.exam.Sections[s.sectionIndex]
	switch {
	case s.questionIndex < len(sec.Questions)-1:
		s.questionIndex++
	case s.sectionIndex < len(s.exam.Sections)-1:
		s.sectionIndex++
		s.questionIndex = 0
	}
	return nil
}

// Prev moves to the preceding question, crossing into the previous section's
// last question when at a section start. At the very first question this is
// a no-op.
func (s *Session) Prev() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return ErrSessionFinished
	}
	switch {
	case s.questionIndex > 0:
		s.questionIndex--
	case s.sectionIndex > 0:
		s.sectionIndex--
		s.questionIndex = len(s.exam.Sections[s.sectionIndex].Questions) - 1
	}
	return nil
}

// JumpTo sets the position directly, for palette navigation. Unlike the
// sequential moves, out-of-range targets are rejected with ErrOutOfRange and
// the position is left unchanged.
func (s *Session) JumpTo(sectionIndex, questionIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return ErrSessionFinished
	}
	if sectionIndex < 0 || sectionIndex >= len(s.exam.Sections) {
		return ErrOutOfRange
	}
	if questionIndex < 0 || questionIndex >= len(s.exam.Sections[sectionIndex].Questions) {
		return ErrOutOfRange
	}
	s.sectionIndex = sectionIndex
	s.questionIndex = questionIndex
	return nil
}

// Tick advances the countdown by one second. When the clock reaches zero the
// session submits itself; the owner is not asked for confirmation. Ticks
// arriving after completion are ignored so a racing timer cannot corrupt a
// submitted session.
func (s *Session) Tick() {
	s.mu.Lock()
	if s.state != StateInProgress {
		s.mu.Unlock()
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining > 0 {
		s.mu.Unlock()
		return
	}
	res, cb := s.submitLocked()
	s.mu.Unlock()
	if cb != nil {
		cb(res)
	}
}

// Submit finishes the attempt and returns the scored result. Submit is
// idempotent: a second call (for example the manual finish racing the timer
// expiry) returns the same result without rescoring.
func (s *Session) Submit() (model.ExamResult, error) {
	s.mu.Lock()
	if s.state == StateExited {
		s.mu.Unlock()
		return model.ExamResult{}, ErrSessionFinished
	}
	if s.state == StateCompleted {
		res := *s.result
		s.mu.Unlock()
		return res, nil
	}
	res, cb := s.submitLocked()
	s.mu.Unlock()
	if cb != nil {
		cb(res)
	}
	return res, nil
}

// submitLocked freezes the session and computes the result. Caller holds the
// lock and is responsible for invoking the returned callback after release.
func (s *Session) submitLocked() (model.ExamResult, func(model.ExamResult)) {
	timeSpent := s.exam.TotalDuration*60 - s.remaining
	answers := make(map[string]model.UserAnswer, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	res := s.cfg.Score(s.exam, answers, s.now(), timeSpent)
	s.result = &res
	s.state = StateCompleted
	s.stopOnce.Do(func() { close(s.stop) })
	return res, s.onComplete
}

// Exit abandons the attempt without producing a result and stops the timer.
// This is destructive; the caller is expected to have confirmed with the
// user first.
func (s *Session) Exit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInProgress {
		return ErrSessionFinished
	}
	s.state = StateExited
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

// Run drives the one-second countdown until the session finishes or ctx is
// cancelled. It is typically launched as a goroutine right after New.
func (s *Session) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Done returns a channel closed when the session completes or is exited.
func (s *Session) Done() <-chan struct{} {
	return s.stop
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Position returns the current section and question indices.
func (s *Session) Position() (sectionIndex, questionIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sectionIndex, s.questionIndex
}

// CurrentQuestion returns the question at the current position.
func (s *Session) CurrentQuestion() model.Question {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exam.Sections[s.sectionIndex].Questions[s.questionIndex]
}

// RemainingSeconds returns the seconds left on the clock; never negative.
func (s *Session) RemainingSeconds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// FormatRemaining renders the clock as minutes:seconds with zero-padded
// seconds, e.g. "89:05".
func (s *Session) FormatRemaining() string {
	r := s.RemainingSeconds()
	return fmt.Sprintf("%d:%02d", r/60, r%60)
}

// Answer returns the recorded answer for a question, if any.
func (s *Session) Answer(questionID string) (model.UserAnswer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.answers[questionID]
	return a, ok
}

// Answers returns a copy of the answer map.
func (s *Session) Answers() map[string]model.UserAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]model.UserAnswer, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// AnsweredCount returns how many questions have an answer recorded.
func (s *Session) AnsweredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.answers)
}

// Result returns the final result once the session has completed.
func (s *Session) Result() (model.ExamResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.result == nil {
		return model.ExamResult{}, false
	}
	return *s.result, true
}

// StartedAt returns when the attempt began.
func (s *Session) StartedAt() time.Time {
	return s.startedAt
}

// AbsoluteNumber returns the 1-based question number across all sections for
// the given position, as shown in the palette.
func (s *Session) AbsoluteNumber(sectionIndex, questionIndex int) int {
	n := 0
	for i := 0; i < sectionIndex && i < len(s.exam.Sections); i++ {
		n += len(s.exam.Sections[i].Questions)
	}
	return n + questionIndex + 1
}
