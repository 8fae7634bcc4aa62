// Package scoring computes exam results from a finished attempt's answers.
//
// The 180-point scale and the 60% pass rule are simplifications of the real
// JLPT scoring bands (which vary by level and section); they are kept as
// configuration rather than domain truth.
package scoring

import (
	"time"

	"github.com/nihongolab/jlptmock/internal/model"
)

const (
	// DefaultMaxScore is the JLPT scaled-score ceiling.
	DefaultMaxScore = 180
	// DefaultPassPercent is the share of correct answers counted as a pass.
	DefaultPassPercent = 60
)

// Config holds the scoring constants.
type Config struct {
	MaxScore    int
	PassPercent int
}

// DefaultConfig returns the standard JLPT-style configuration.
func DefaultConfig() Config {
	return Config{MaxScore: DefaultMaxScore, PassPercent: DefaultPassPercent}
}

// Score computes the result of an attempt at exam with the given answers.
// It is a pure function: unanswered questions count against the declared
// total, and an empty answer map yields a zero score. A zero-question exam
// scores zero rather than dividing by zero.
func (c Config) Score(exam model.Exam, answers map[string]model.UserAnswer, completedAt time.Time, timeSpentSeconds int) model.ExamResult {
	correct := 0
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
	}

	total := exam.TotalQuestions
	score := 0
	if total > 0 {
		// Round half up.
		score = (correct*c.MaxScore*2 + total) / (total * 2)
	}

	if answers == nil {
		answers = map[string]model.UserAnswer{}
	}
	return model.ExamResult{
		ExamID:           exam.ID,
		Score:            score,
		MaxScore:         c.MaxScore,
		CorrectCount:     correct,
		TotalQuestions:   total,
		Answers:          answers,
		CompletedAt:      completedAt,
		TimeSpentSeconds: timeSpentSeconds,
	}
}

// Passed reports whether the result clears the pass threshold. This is a
// presentation-layer framing, not part of the stored result.
func (c Config) Passed(r model.ExamResult) bool {
	if r.TotalQuestions == 0 {
		return false
	}
	return r.CorrectCount*100 >= r.TotalQuestions*c.PassPercent
}

// Percentage returns the rounded share of correct answers.
func Percentage(r model.ExamResult) int {
	if r.TotalQuestions == 0 {
		return 0
	}
	return (r.CorrectCount*100*2 + r.TotalQuestions) / (r.TotalQuestions * 2)
}
