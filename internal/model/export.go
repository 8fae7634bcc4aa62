package model

import "time"

// ResultsExport is the top-level JSON structure for result export.
type ResultsExport struct {
	ExportedAt time.Time        `json:"exported_at"`
	Results    []ExportedResult `json:"results"`
}

// ExportedResult joins one attempt's result with exam and user metadata so
// the export file stands alone.
type ExportedResult struct {
	ExamID           string    `json:"exam_id"`
	ExamTitle        string    `json:"exam_title"`
	Level            Level     `json:"level"`
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	AttemptNumber    int       `json:"attempt_number"`
	Score            int       `json:"score"`
	MaxScore         int       `json:"max_score"`
	CorrectCount     int       `json:"correct_count"`
	TotalQuestions   int       `json:"total_questions"`
	Passed           bool      `json:"passed"`
	CompletedAt      time.Time `json:"completed_at"`
	TimeSpentSeconds int       `json:"time_spent_seconds"`
}
