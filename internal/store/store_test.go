package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/nihongolab/jlptmock/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("newTestStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testExam(id string) model.Exam {
	now := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	return model.Exam{
		ID:             id,
		Title:          "JLPT N3 Mock Exam",
		Level:          model.LevelN3,
		Description:    "Full-length practice test",
		TotalQuestions: 2,
		TotalDuration:  60,
		Status:         model.ExamPublished,
		CreatedAt:      now,
		UpdatedAt:      now,
		Sections: []model.Section{
			{
				ID:              id + "-s1",
				Title:           "言語知識",
				DurationMinutes: 60,
				Questions: []model.Question{
					{
						ID:     id + "-q1",
						Type:   model.QuestionVocabulary,
						Number: 1,
						Prompt: "{毎朝|まいあさ}コーヒーを飲みます。",
						Options: []model.Option{
							{ID: id + "-q1-1", Text: "まいあさ"},
							{ID: id + "-q1-2", Text: "まいちょう"},
						},
						CorrectOptionID: id + "-q1-1",
						Explanation:     "毎朝 is read まいあさ.",
					},
					{
						ID:     id + "-q2",
						Type:   model.QuestionGrammar,
						Number: 2,
						Prompt: "（　　）に入れるのに最もよいものはどれですか。",
						Options: []model.Option{
							{ID: id + "-q2-1", Text: "ので"},
							{ID: id + "-q2-2", Text: "のに"},
						},
						CorrectOptionID: id + "-q2-2",
						Explanation:     "のに expresses contrast with the expected outcome.",
					},
				},
			},
		},
	}
}

func insertTestUser(t *testing.T, s *Store, username string, role model.UserRole) int64 {
	t.Helper()
	id, err := s.CreateUser(model.User{
		Username:     username,
		DisplayName:  "Test " + username,
		PasswordHash: "x",
		Role:         role,
		Active:       true,
	})
	if err != nil {
		t.Fatalf("insertTestUser: %v", err)
	}
	return id
}

func TestExamCRUD(t *testing.T) {
	s := newTestStore(t)

	// Empty DB should return zero count and empty list.
	count, err := s.ExamCount()
	if err != nil {
		t.Fatalf("ExamCount: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected 0 exams, got %d", count)
	}

	exam := testExam("exam-1")
	if err := s.SaveExam(exam); err != nil {
		t.Fatalf("SaveExam: %v", err)
	}

	got, err := s.GetExam("exam-1")
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if got.Title != exam.Title {
		t.Errorf("expected title %q, got %q", exam.Title, got.Title)
	}
	if got.Level != model.LevelN3 {
		t.Errorf("expected level N3, got %q", got.Level)
	}
	if len(got.Sections) != 1 || len(got.Sections[0].Questions) != 2 {
		t.Fatalf("sections did not round-trip: %+v", got.Sections)
	}
	if got.Sections[0].Questions[0].Prompt != exam.Sections[0].Questions[0].Prompt {
		t.Errorf("question prompt did not round-trip")
	}

	// Not found.
	if _, err := s.GetExam("missing"); err != sql.ErrNoRows {
		t.Errorf("expected ErrNoRows, got %v", err)
	}

	// Upsert replaces in place.
	exam.Title = "Renamed"
	if err := s.SaveExam(exam); err != nil {
		t.Fatalf("SaveExam upsert: %v", err)
	}
	got, _ = s.GetExam("exam-1")
	if got.Title != "Renamed" {
		t.Errorf("expected renamed title, got %q", got.Title)
	}
	count, _ = s.ExamCount()
	if count != 1 {
		t.Errorf("upsert duplicated the exam: count %d", count)
	}
}

func TestListExamsPublishedFilter(t *testing.T) {
	s := newTestStore(t)

	pub := testExam("exam-pub")
	if err := s.SaveExam(pub); err != nil {
		t.Fatalf("SaveExam: %v", err)
	}
	draft := testExam("exam-draft")
	draft.Status = model.ExamDraft
	if err := s.SaveExam(draft); err != nil {
		t.Fatalf("SaveExam: %v", err)
	}

	all, err := s.ListExams(false)
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 exams, got %d", len(all))
	}

	published, err := s.ListExams(true)
	if err != nil {
		t.Fatalf("ListExams published: %v", err)
	}
	if len(published) != 1 || published[0].ID != "exam-pub" {
		t.Fatalf("expected only the published exam, got %+v", published)
	}

	// Publishing the draft makes it visible.
	if err := s.SetExamStatus("exam-draft", model.ExamPublished); err != nil {
		t.Fatalf("SetExamStatus: %v", err)
	}
	published, _ = s.ListExams(true)
	if len(published) != 2 {
		t.Errorf("expected 2 published exams, got %d", len(published))
	}
}

func TestDeleteExamCascadesResults(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveExam(testExam("exam-1")); err != nil {
		t.Fatalf("SaveExam: %v", err)
	}
	if _, err := s.SaveResult(model.ExamResult{
		ExamID:      "exam-1",
		Answers:     map[string]model.UserAnswer{},
		CompletedAt: time.Now(),
	}); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	if err := s.DeleteExam("exam-1"); err != nil {
		t.Fatalf("DeleteExam: %v", err)
	}
	count, _ := s.ExamCount()
	if count != 0 {
		t.Errorf("exam not deleted")
	}
	rcount, _ := s.ResultCount()
	if rcount != 0 {
		t.Errorf("results not deleted with exam")
	}
}

func TestResults(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveExam(testExam("exam-1")); err != nil {
		t.Fatalf("SaveExam: %v", err)
	}
	userID := insertTestUser(t, s, "hanako", model.UserRoleStudent)

	r := model.ExamResult{
		ExamID:         "exam-1",
		UserID:         userID,
		Score:          108,
		MaxScore:       180,
		CorrectCount:   9,
		TotalQuestions: 15,
		Answers: map[string]model.UserAnswer{
			"exam-1-q1": {QuestionID: "exam-1-q1", SelectedOptionID: "exam-1-q1-1", IsCorrect: true},
		},
		CompletedAt:      time.Date(2025, 2, 2, 15, 30, 0, 0, time.UTC),
		TimeSpentSeconds: 3100,
	}
	id, err := s.SaveResult(r)
	if err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, err := s.GetResult(id)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got.Score != 108 || got.CorrectCount != 9 {
		t.Errorf("result fields did not round-trip: %+v", got)
	}
	a, ok := got.Answers["exam-1-q1"]
	if !ok || !a.IsCorrect {
		t.Errorf("answers did not round-trip: %+v", got.Answers)
	}

	byUser, err := s.ListResultsForUser(userID)
	if err != nil {
		t.Fatalf("ListResultsForUser: %v", err)
	}
	if len(byUser) != 1 {
		t.Fatalf("expected 1 result for user, got %d", len(byUser))
	}

	byExam, err := s.ListResultsForExam("exam-1")
	if err != nil {
		t.Fatalf("ListResultsForExam: %v", err)
	}
	if len(byExam) != 1 {
		t.Fatalf("expected 1 result for exam, got %d", len(byExam))
	}
}

func TestUserCRUD(t *testing.T) {
	s := newTestStore(t)

	id := insertTestUser(t, s, "taro", model.UserRoleTeacher)

	u, err := s.GetUserByUsername("taro")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u == nil || u.ID != id {
		t.Fatalf("expected user with id %d, got %+v", id, u)
	}
	if u.Role != model.UserRoleTeacher {
		t.Errorf("expected teacher role, got %q", u.Role)
	}

	// Unknown username returns nil, nil.
	u, err = s.GetUserByUsername("nobody")
	if err != nil {
		t.Fatalf("GetUserByUsername: %v", err)
	}
	if u != nil {
		t.Errorf("expected nil for unknown user, got %+v", u)
	}

	// Duplicate username is rejected by the unique constraint.
	if _, err := s.CreateUser(model.User{Username: "taro", Role: model.UserRoleStudent}); err == nil {
		t.Error("expected error for duplicate username")
	}

	if err := s.ToggleUserActive(id); err != nil {
		t.Fatalf("ToggleUserActive: %v", err)
	}
	u, _ = s.GetUserByID(id)
	if u.Active {
		t.Error("expected user to be inactive after toggle")
	}
}

func TestAuthSessions(t *testing.T) {
	s := newTestStore(t)
	userID := insertTestUser(t, s, "taro", model.UserRoleStudent)

	token, err := s.CreateAuthSession(userID)
	if err != nil {
		t.Fatalf("CreateAuthSession: %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64-char hex token, got %d chars", len(token))
	}

	sess, err := s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession: %v", err)
	}
	if sess == nil || sess.UserID != userID {
		t.Fatalf("expected session for user %d, got %+v", userID, sess)
	}

	if err := s.DeleteAuthSession(token); err != nil {
		t.Fatalf("DeleteAuthSession: %v", err)
	}
	sess, err = s.GetAuthSession(token)
	if err != nil {
		t.Fatalf("GetAuthSession after delete: %v", err)
	}
	if sess != nil {
		t.Error("expected nil session after delete")
	}
}

func TestDraftSnapshots(t *testing.T) {
	s := newTestStore(t)

	// Missing draft.
	_, ok, err := s.LoadDraft("d1")
	if err != nil {
		t.Fatalf("LoadDraft: %v", err)
	}
	if ok {
		t.Error("expected missing draft")
	}

	if err := s.SaveDraft("d1", []byte(`{"step":2}`)); err != nil {
		t.Fatalf("SaveDraft: %v", err)
	}
	data, ok, err := s.LoadDraft("d1")
	if err != nil {
		t.Fatalf("LoadDraft: %v", err)
	}
	if !ok || string(data) != `{"step":2}` {
		t.Errorf("draft did not round-trip: %q", data)
	}

	// Upsert replaces.
	if err := s.SaveDraft("d1", []byte(`{"step":3}`)); err != nil {
		t.Fatalf("SaveDraft upsert: %v", err)
	}
	data, _, _ = s.LoadDraft("d1")
	if string(data) != `{"step":3}` {
		t.Errorf("expected updated draft, got %q", data)
	}

	ids, err := s.ListDraftIDs()
	if err != nil {
		t.Fatalf("ListDraftIDs: %v", err)
	}
	if len(ids) != 1 || ids[0] != "d1" {
		t.Errorf("expected [d1], got %v", ids)
	}

	if err := s.ClearDraft("d1"); err != nil {
		t.Fatalf("ClearDraft: %v", err)
	}
	_, ok, _ = s.LoadDraft("d1")
	if ok {
		t.Error("expected draft gone after clear")
	}
}

func TestImportedFileHash(t *testing.T) {
	s := newTestStore(t)

	// Missing file returns empty string.
	hash, err := s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "" {
		t.Errorf("expected empty hash, got %q", hash)
	}

	// Set hash.
	if err := s.SetImportedFileHash("/some/path.json", "abc123"); err != nil {
		t.Fatalf("SetImportedFileHash: %v", err)
	}
	hash, err = s.GetImportedFileHash("/some/path.json")
	if err != nil {
		t.Fatalf("GetImportedFileHash: %v", err)
	}
	if hash != "abc123" {
		t.Errorf("expected 'abc123', got %q", hash)
	}

	// Update existing.
	if err := s.SetImportedFileHash("/some/path.json", "def456"); err != nil {
		t.Fatalf("SetImportedFileHash update: %v", err)
	}
	hash, _ = s.GetImportedFileHash("/some/path.json")
	if hash != "def456" {
		t.Errorf("expected 'def456', got %q", hash)
	}
}

func TestExportAllResults(t *testing.T) {
	s := newTestStore(t)
	if err := s.SaveExam(testExam("exam-1")); err != nil {
		t.Fatalf("SaveExam: %v", err)
	}
	userID := insertTestUser(t, s, "hanako", model.UserRoleStudent)

	base := time.Date(2025, 2, 3, 10, 0, 0, 0, time.UTC)
	for i, correct := range []int{5, 9} {
		_, err := s.SaveResult(model.ExamResult{
			ExamID:         "exam-1",
			UserID:         userID,
			Score:          correct * 12,
			MaxScore:       180,
			CorrectCount:   correct,
			TotalQuestions: 15,
			Answers:        map[string]model.UserAnswer{},
			CompletedAt:    base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("SaveResult: %v", err)
		}
	}

	export, err := s.ExportAllResults(60)
	if err != nil {
		t.Fatalf("ExportAllResults: %v", err)
	}
	if len(export.Results) != 2 {
		t.Fatalf("expected 2 exported rows, got %d", len(export.Results))
	}

	// Newest first, but attempt numbers count from the oldest attempt.
	newest, oldest := export.Results[0], export.Results[1]
	if newest.CorrectCount != 9 || oldest.CorrectCount != 5 {
		t.Errorf("unexpected order: %+v", export.Results)
	}
	if oldest.AttemptNumber != 1 || newest.AttemptNumber != 2 {
		t.Errorf("attempt numbers = %d,%d, want 1,2", oldest.AttemptNumber, newest.AttemptNumber)
	}
	if oldest.Passed {
		t.Error("5/15 should not pass at 60%")
	}
	if !newest.Passed {
		t.Error("9/15 should pass at exactly 60%")
	}
	if newest.ExamTitle != "JLPT N3 Mock Exam" || newest.Username != "hanako" {
		t.Errorf("join fields missing: %+v", newest)
	}
}
