package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nihongolab/jlptmock/internal/model"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS exams (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		level TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		total_questions INTEGER NOT NULL,
		total_duration INTEGER NOT NULL,
		sections TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'published',
		created_by INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_id TEXT NOT NULL,
		user_id INTEGER NOT NULL DEFAULT 0,
		score INTEGER NOT NULL,
		max_score INTEGER NOT NULL,
		correct_count INTEGER NOT NULL,
		total_questions INTEGER NOT NULL,
		answers TEXT NOT NULL,
		completed_at DATETIME NOT NULL,
		time_spent_seconds INTEGER NOT NULL,
		FOREIGN KEY (exam_id) REFERENCES exams(id)
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		created_at DATETIME NOT NULL,
		expires_at DATETIME NOT NULL,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS draft_snapshots (
		id TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		saved_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS exam_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveExam inserts or replaces an exam. Sections are stored as a JSON
// document; the exam is read back whole, never queried piecemeal.
func (s *Store) SaveExam(e model.Exam) error {
	sections, err := json.Marshal(e.Sections)
	if err != nil {
		return fmt.Errorf("encode sections: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO exams (id, title, level, description, total_questions, total_duration, sections, status, created_by, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			level = excluded.level,
			description = excluded.description,
			total_questions = excluded.total_questions,
			total_duration = excluded.total_duration,
			sections = excluded.sections,
			status = excluded.status,
			updated_at = excluded.updated_at`,
		e.ID, e.Title, e.Level, e.Description, e.TotalQuestions, e.TotalDuration,
		string(sections), e.Status, e.CreatedBy, e.CreatedAt, e.UpdatedAt,
	)
	return err
}

// GetExam returns an exam by ID.
func (s *Store) GetExam(id string) (model.Exam, error) {
	var e model.Exam
	var sections string
	err := s.db.QueryRow(
		`SELECT id, title, level, description, total_questions, total_duration, sections, status, created_by, created_at, updated_at
		 FROM exams WHERE id = ?`, id,
	).Scan(&e.ID, &e.Title, &e.Level, &e.Description, &e.TotalQuestions, &e.TotalDuration,
		&sections, &e.Status, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return model.Exam{}, err
	}
	if err := json.Unmarshal([]byte(sections), &e.Sections); err != nil {
		return model.Exam{}, fmt.Errorf("decode sections for exam %s: %w", id, err)
	}
	return e, nil
}

// ListExams returns all exams, newest first. With publishedOnly set, draft
// exams are excluded.
func (s *Store) ListExams(publishedOnly bool) ([]model.Exam, error) {
	query := `SELECT id, title, level, description, total_questions, total_duration, sections, status, created_by, created_at, updated_at
		 FROM exams`
	if publishedOnly {
		query += ` WHERE status = 'published'`
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		var sections string
		if err := rows.Scan(&e.ID, &e.Title, &e.Level, &e.Description, &e.TotalQuestions, &e.TotalDuration,
			&sections, &e.Status, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(sections), &e.Sections); err != nil {
			return nil, fmt.Errorf("decode sections for exam %s: %w", e.ID, err)
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// SetExamStatus flips an exam between draft and published.
func (s *Store) SetExamStatus(id string, status model.ExamStatus) error {
	_, err := s.db.Exec(
		`UPDATE exams SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	return err
}

// DeleteExam removes an exam and its results.
func (s *Store) DeleteExam(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM results WHERE exam_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM exams WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ExamCount returns the number of stored exams.
func (s *Store) ExamCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM exams`).Scan(&count)
	return count, err
}
