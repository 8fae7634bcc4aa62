// Package content loads exam content: the embedded seed exams shipped with
// the binary and exam JSON files supplied at startup or uploaded by teachers.
package content

import (
	"embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nihongolab/jlptmock/internal/model"
)

//go:embed exams/*.json
var examFS embed.FS

// Build turns an imported exam into a stored exam: totals are recomputed from
// the sections and question numbers are made contiguous across the exam, so a
// hand-edited file cannot ship inconsistent aggregates.
func Build(imp model.ExamImport, status model.ExamStatus, now time.Time) (model.Exam, error) {
	if imp.ID == "" {
		return model.Exam{}, fmt.Errorf("exam has no id")
	}
	if imp.Title == "" {
		return model.Exam{}, fmt.Errorf("exam %s has no title", imp.ID)
	}
	if !imp.Level.Valid() {
		return model.Exam{}, fmt.Errorf("exam %s has invalid level %q", imp.ID, imp.Level)
	}
	if len(imp.Sections) == 0 {
		return model.Exam{}, fmt.Errorf("exam %s has no sections", imp.ID)
	}

	totalQuestions := 0
	totalDuration := 0
	number := 0
	for si := range imp.Sections {
		sec := &imp.Sections[si]
		if len(sec.Questions) == 0 {
			return model.Exam{}, fmt.Errorf("exam %s: section %s has no questions", imp.ID, sec.ID)
		}
		for qi := range sec.Questions {
			q := &sec.Questions[qi]
			if len(q.Options) < 2 {
				return model.Exam{}, fmt.Errorf("exam %s: question %s has fewer than two options", imp.ID, q.ID)
			}
			valid := false
			for _, opt := range q.Options {
				if opt.ID == q.CorrectOptionID {
					valid = true
					break
				}
			}
			if !valid {
				return model.Exam{}, fmt.Errorf("exam %s: question %s has no matching correct option", imp.ID, q.ID)
			}
			number++
			q.Number = number
		}
		totalQuestions += len(sec.Questions)
		totalDuration += sec.DurationMinutes
	}

	return model.Exam{
		ID:             imp.ID,
		Title:          imp.Title,
		Level:          imp.Level,
		Description:    imp.Description,
		TotalQuestions: totalQuestions,
		TotalDuration:  totalDuration,
		Sections:       imp.Sections,
		Status:         status,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Parse decodes and builds an exam from a JSON document.
func Parse(data []byte, status model.ExamStatus, now time.Time) (model.Exam, error) {
	var imp model.ExamImport
	if err := json.Unmarshal(data, &imp); err != nil {
		return model.Exam{}, fmt.Errorf("parse exam: %w", err)
	}
	return Build(imp, status, now)
}

// SeedExams returns the exams embedded in the binary, published and ready to
// store on first start.
func SeedExams(now time.Time) ([]model.Exam, error) {
	entries, err := examFS.ReadDir("exams")
	if err != nil {
		return nil, fmt.Errorf("read seed exams dir: %w", err)
	}
	var exams []model.Exam
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := examFS.ReadFile("exams/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read seed exam %s: %w", e.Name(), err)
		}
		exam, err := Parse(data, model.ExamPublished, now)
		if err != nil {
			return nil, fmt.Errorf("seed exam %s: %w", e.Name(), err)
		}
		exams = append(exams, exam)
	}
	return exams, nil
}
