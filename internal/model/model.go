package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleStudent is a student user role.
	UserRoleStudent UserRole = "student"
	// UserRoleTeacher is a teacher user role.
	UserRoleTeacher UserRole = "teacher"
	// UserRoleAdmin is an admin user role.
	UserRoleAdmin UserRole = "admin"
)

// User represents a system user.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

type basePathCtxKey struct{}

// ContextWithBasePath stores the URL base path in context so views can build
// links under sub-path deployments.
func ContextWithBasePath(ctx context.Context, basePath string) context.Context {
	return context.WithValue(ctx, basePathCtxKey{}, basePath)
}

// BasePathFromContext retrieves the URL base path from context, or "".
func BasePathFromContext(ctx context.Context) string {
	p, _ := ctx.Value(basePathCtxKey{}).(string)
	return p
}

type csrfCtxKey struct{}

// ContextWithCSRFToken stores the CSRF token in context.
func ContextWithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, csrfCtxKey{}, token)
}

// CSRFTokenFromContext retrieves the CSRF token from context.
func CSRFTokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(csrfCtxKey{}).(string)
	return t
}

// Level represents a JLPT proficiency level, N1 (hardest) through N5 (easiest).
type Level string

const (
	LevelN1 Level = "N1"
	LevelN2 Level = "N2"
	LevelN3 Level = "N3"
	LevelN4 Level = "N4"
	LevelN5 Level = "N5"
)

// Levels lists all JLPT levels in home-page order, easiest first.
var Levels = []Level{LevelN5, LevelN4, LevelN3, LevelN2, LevelN1}

// Valid reports whether l is a known JLPT level.
func (l Level) Valid() bool {
	switch l {
	case LevelN1, LevelN2, LevelN3, LevelN4, LevelN5:
		return true
	}
	return false
}

// QuestionType categorizes an exam question.
type QuestionType string

const (
	QuestionVocabulary QuestionType = "vocabulary"
	QuestionGrammar    QuestionType = "grammar"
	QuestionReading    QuestionType = "reading"
	QuestionListening  QuestionType = "listening"
)

// ExamStatus represents the lifecycle state of an exam.
type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamPublished ExamStatus = "published"
)

// Option is a single answer choice. Text may embed furigana markup.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question represents a single exam question. Prompt, Context, ReadingText
// and option texts may embed furigana markup of the form {base|reading}.
type Question struct {
	ID              string       `json:"id"`
	Type            QuestionType `json:"type"`
	Number          int          `json:"number"`
	Prompt          string       `json:"prompt"`
	Context         string       `json:"context,omitempty"`
	ReadingText     string       `json:"reading_text,omitempty"`
	AudioURL        string       `json:"audio_url,omitempty"`
	ImageURL        string       `json:"image_url,omitempty"`
	Options         []Option     `json:"options"`
	CorrectOptionID string       `json:"correct_option_id"`
	Explanation     string       `json:"explanation"`
}

// Section is a timed subdivision of an exam.
type Section struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	DurationMinutes int        `json:"duration_minutes"`
	Questions       []Question `json:"questions"`
}

// Exam is the full content of a mock exam. TotalQuestions and TotalDuration
// are aggregates over the sections; immutable once an attempt begins.
type Exam struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Level          Level      `json:"level"`
	Description    string     `json:"description,omitempty"`
	TotalQuestions int        `json:"total_questions"`
	TotalDuration  int        `json:"total_duration"`
	Sections       []Section  `json:"sections"`
	Status         ExamStatus `json:"status"`
	CreatedBy      int64      `json:"created_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// QuestionCount returns the number of questions actually present in the
// sections, as opposed to the declared TotalQuestions.
func (e Exam) QuestionCount() int {
	n := 0
	for _, s := range e.Sections {
		n += len(s.Questions)
	}
	return n
}

// FindQuestion returns the question with the given ID, or nil.
func (e Exam) FindQuestion(id string) *Question {
	for si := range e.Sections {
		for qi := range e.Sections[si].Questions {
			if e.Sections[si].Questions[qi].ID == id {
				return &e.Sections[si].Questions[qi]
			}
		}
	}
	return nil
}

// UserAnswer records a single answer selection. IsCorrect is denormalized at
// selection time for fast lookup during review.
type UserAnswer struct {
	QuestionID       string `json:"question_id"`
	SelectedOptionID string `json:"selected_option_id"`
	IsCorrect        bool   `json:"is_correct"`
}

// ExamResult is the immutable outcome of a finished exam attempt.
type ExamResult struct {
	ExamID           string                `json:"exam_id"`
	UserID           int64                 `json:"user_id,omitempty"`
	Score            int                   `json:"score"`
	MaxScore         int                   `json:"max_score"`
	CorrectCount     int                   `json:"correct_count"`
	TotalQuestions   int                   `json:"total_questions"`
	Answers          map[string]UserAnswer `json:"answers"`
	CompletedAt      time.Time             `json:"completed_at"`
	TimeSpentSeconds int                   `json:"time_spent_seconds"`
}

// ExamImport is used for loading exams from JSON files or uploads.
type ExamImport struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Level       Level     `json:"level"`
	Description string    `json:"description,omitempty"`
	Sections    []Section `json:"sections"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	BasePath      string // URL prefix for sub-path deployments (e.g. "/jp")
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	MaxScore      int    // Scaled score ceiling (JLPT uses 180)
	PassPercent   int    // Percentage of correct answers counted as a pass
}
