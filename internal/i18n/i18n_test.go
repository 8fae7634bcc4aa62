package i18n

import (
	"context"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AppTitle")
	if got != "JLPT Mock Exam" {
		t.Errorf("T(AppTitle) = %q, want 'JLPT Mock Exam'", got)
	}

	got = T(ctx, "StartExam")
	if got != "Start Exam" {
		t.Errorf("T(StartExam) = %q, want 'Start Exam'", got)
	}
}

func TestTranslateJapanese(t *testing.T) {
	ctx := initLang(t, "ja")

	got := T(ctx, "AppTitle")
	if got != "JLPT模擬試験" {
		t.Errorf("T(AppTitle) = %q, want 'JLPT模擬試験'", got)
	}

	got = T(ctx, "StartExam")
	if got != "試験を始める" {
		t.Errorf("T(StartExam) = %q, want '試験を始める'", got)
	}
}

func TestPluralTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got1 := Tp(ctx, "QuestionsAvailable", 1)
	if got1 != "1 question" {
		t.Errorf("Tp(QuestionsAvailable, 1) = %q, want '1 question'", got1)
	}

	got5 := Tp(ctx, "QuestionsAvailable", 5)
	if got5 != "5 questions" {
		t.Errorf("Tp(QuestionsAvailable, 5) = %q, want '5 questions'", got5)
	}
}

func TestJapaneseHasNoPluralForms(t *testing.T) {
	ctx := initLang(t, "ja")

	got1 := Tp(ctx, "QuestionsAvailable", 1)
	got5 := Tp(ctx, "QuestionsAvailable", 5)
	if got1 != "1問" || got5 != "5問" {
		t.Errorf("Tp(QuestionsAvailable) = %q/%q, want '1問'/'5問'", got1, got5)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "AnsweredOfTotal", map[string]any{"Answered": 12, "Total": 15})
	if got != "12 of 15 answered" {
		t.Errorf("Td(AnsweredOfTotal) = %q, want '12 of 15 answered'", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}
