package store

import (
	"fmt"
	"time"

	"github.com/nihongolab/jlptmock/internal/model"
)

// ExportAllResults builds export-ready rows from every stored result, joined
// with exam and user metadata. passPercent is the pass threshold applied to
// the correct-answer ratio.
func (s *Store) ExportAllResults(passPercent int) (model.ResultsExport, error) {
	results, err := s.ListAllResults()
	if err != nil {
		return model.ResultsExport{}, fmt.Errorf("list results: %w", err)
	}

	// Attempt numbers count per user per exam, oldest attempt first.
	// ListAllResults is newest first, so walk backwards.
	type attemptKey struct {
		userID int64
		examID string
	}
	attempts := make(map[attemptKey]int)

	exams := make(map[string]model.Exam)
	users := make(map[int64]*model.User)

	export := model.ResultsExport{ExportedAt: time.Now()}
	rows := make([]model.ExportedResult, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]

		exam, ok := exams[r.ExamID]
		if !ok {
			exam, err = s.GetExam(r.ExamID)
			if err != nil {
				return model.ResultsExport{}, fmt.Errorf("get exam %s: %w", r.ExamID, err)
			}
			exams[r.ExamID] = exam
		}

		user, ok := users[r.UserID]
		if !ok {
			user, err = s.GetUserByID(r.UserID)
			if err != nil {
				return model.ResultsExport{}, fmt.Errorf("get user %d: %w", r.UserID, err)
			}
			users[r.UserID] = user
		}
		var username, displayName string
		if user != nil {
			username = user.Username
			displayName = user.DisplayName
		}

		key := attemptKey{r.UserID, r.ExamID}
		attempts[key]++

		rows[i] = model.ExportedResult{
			ExamID:           r.ExamID,
			ExamTitle:        exam.Title,
			Level:            exam.Level,
			Username:         username,
			DisplayName:      displayName,
			AttemptNumber:    attempts[key],
			Score:            r.Score,
			MaxScore:         r.MaxScore,
			CorrectCount:     r.CorrectCount,
			TotalQuestions:   r.TotalQuestions,
			Passed:           r.CorrectCount*100 >= r.TotalQuestions*passPercent,
			CompletedAt:      r.CompletedAt,
			TimeSpentSeconds: r.TimeSpentSeconds,
		}
	}

	export.Results = rows
	return export, nil
}
