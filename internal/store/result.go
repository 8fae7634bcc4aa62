package store

import (
	"encoding/json"
	"fmt"

	"github.com/nihongolab/jlptmock/internal/model"
)

// StoredResult is an exam result together with its database row ID, which
// pages use to link to the result and review views.
type StoredResult struct {
	ID int64
	model.ExamResult
}

// SaveResult stores a finished attempt and returns its row ID.
func (s *Store) SaveResult(r model.ExamResult) (int64, error) {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return 0, fmt.Errorf("encode answers: %w", err)
	}
	res, err := s.db.Exec(
		`INSERT INTO results (exam_id, user_id, score, max_score, correct_count, total_questions, answers, completed_at, time_spent_seconds)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ExamID, r.UserID, r.Score, r.MaxScore, r.CorrectCount, r.TotalQuestions,
		string(answers), r.CompletedAt, r.TimeSpentSeconds,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetResult returns a stored result by row ID.
func (s *Store) GetResult(id int64) (StoredResult, error) {
	var r StoredResult
	var answers string
	err := s.db.QueryRow(
		`SELECT id, exam_id, user_id, score, max_score, correct_count, total_questions, answers, completed_at, time_spent_seconds
		 FROM results WHERE id = ?`, id,
	).Scan(&r.ID, &r.ExamID, &r.UserID, &r.Score, &r.MaxScore, &r.CorrectCount, &r.TotalQuestions,
		&answers, &r.CompletedAt, &r.TimeSpentSeconds)
	if err != nil {
		return StoredResult{}, err
	}
	if err := json.Unmarshal([]byte(answers), &r.Answers); err != nil {
		return StoredResult{}, fmt.Errorf("decode answers for result %d: %w", id, err)
	}
	return r, nil
}

// ListResultsForUser returns a user's results, newest first.
func (s *Store) ListResultsForUser(userID int64) ([]StoredResult, error) {
	return s.listResults(`WHERE user_id = ?`, userID)
}

// ListResultsForExam returns all results for an exam, newest first.
func (s *Store) ListResultsForExam(examID string) ([]StoredResult, error) {
	return s.listResults(`WHERE exam_id = ?`, examID)
}

// ListAllResults returns every stored result, newest first.
func (s *Store) ListAllResults() ([]StoredResult, error) {
	return s.listResults(``)
}

func (s *Store) listResults(where string, args ...any) ([]StoredResult, error) {
	query := `SELECT id, exam_id, user_id, score, max_score, correct_count, total_questions, answers, completed_at, time_spent_seconds
		 FROM results ` + where + ` ORDER BY completed_at DESC, id DESC`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []StoredResult
	for rows.Next() {
		var r StoredResult
		var answers string
		if err := rows.Scan(&r.ID, &r.ExamID, &r.UserID, &r.Score, &r.MaxScore, &r.CorrectCount, &r.TotalQuestions,
			&answers, &r.CompletedAt, &r.TimeSpentSeconds); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(answers), &r.Answers); err != nil {
			return nil, fmt.Errorf("decode answers: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// ResultCount returns the number of stored results.
func (s *Store) ResultCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&count)
	return count, err
}
