package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/nihongolab/jlptmock/internal/draft"
	"github.com/nihongolab/jlptmock/internal/handler/views"
	"github.com/nihongolab/jlptmock/internal/model"
	"github.com/nihongolab/jlptmock/internal/scoring"
	"github.com/nihongolab/jlptmock/internal/session"
	"github.com/nihongolab/jlptmock/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store    *store.Store
	sessions *session.Registry
	config   model.ServerConfig
	scoring  scoring.Config

	mu      sync.Mutex
	owners  map[string]int64 // session token -> user ID
	results map[string]int64 // session token -> stored result row
	drafts  map[string]*draft.Draft
}

// New creates a new Handler.
func New(s *store.Store, cfg model.ServerConfig) (*Handler, error) {
	sc := scoring.DefaultConfig()
	if cfg.MaxScore > 0 {
		sc.MaxScore = cfg.MaxScore
	}
	if cfg.PassPercent > 0 {
		sc.PassPercent = cfg.PassPercent
	}
	return &Handler{
		store:    s,
		sessions: session.NewRegistry(),
		config:   cfg,
		scoring:  sc,
		owners:   make(map[string]int64),
		results:  make(map[string]int64),
		drafts:   make(map[string]*draft.Draft),
	}, nil
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Use(h.csrfMiddleware)

	r.Get("/static/*", h.handleStatic)

	r.Get("/login", h.handleLoginPage)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAuth)

		r.Get("/", h.handleHome)
		r.Post("/exam/{examID}/start", h.handleStartExam)
		r.Route("/exam/take/{token}", func(r chi.Router) {
			r.Get("/", h.handleExamPage)
			r.Get("/ws", h.handleExamSocket)
			r.Post("/answer", h.handleAnswer)
			r.Post("/next", h.handleNext)
			r.Post("/prev", h.handlePrev)
			r.Post("/section/next", h.handleNextSection)
			r.Post("/section/prev", h.handlePrevSection)
			r.Post("/jump", h.handleJump)
			r.Post("/submit", h.handleSubmit)
			r.Post("/exit", h.handleExit)
		})
		r.Get("/results", h.handleResultsList)
		r.Get("/results/{resultID}", h.handleResultPage)
		r.Get("/results/{resultID}/review", h.handleReviewPage)

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleTeacher, model.UserRoleAdmin))
			r.Get("/teacher", h.handleTeacherDashboard)
			r.Post("/teacher/exams/new", h.handleNewDraft)
			r.Post("/teacher/exams/{examID}/status", h.handleSetExamStatus)
			r.Route("/teacher/drafts/{draftID}", func(r chi.Router) {
				r.Get("/", h.handleDraftPage)
				r.Post("/basic-info", h.handleDraftBasicInfo)
				r.Post("/next", h.handleDraftNext)
				r.Post("/prev", h.handleDraftPrev)
				r.Post("/sections", h.handleDraftAddSection)
				r.Post("/sections/{sectionIndex}", h.handleDraftUpdateSection)
				r.Post("/sections/{sectionIndex}/delete", h.handleDraftDeleteSection)
				r.Post("/sections/{sectionIndex}/questions", h.handleDraftAddQuestion)
				r.Post("/sections/{sectionIndex}/questions/{questionIndex}", h.handleDraftUpdateQuestion)
				r.Post("/sections/{sectionIndex}/questions/{questionIndex}/delete", h.handleDraftDeleteQuestion)
				r.Post("/save", h.handleDraftSave)
				r.Post("/finalize", h.handleDraftFinalize)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(requireRole(model.UserRoleAdmin))
			r.Get("/admin/users", h.handleAdminUsersPage)
			r.Post("/admin/users", h.handleCreateUser)
			r.Post("/admin/users/{userID}/toggle", h.handleToggleUserActive)
			r.Get("/admin/exams", h.handleAdminExamsPage)
			r.Post("/admin/exams", h.handleUploadExam)
		})
	})
}

// BasePathMiddleware makes the configured base path available to views so
// links work under sub-path deployments.
func (h *Handler) BasePathMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := model.ContextWithBasePath(r.Context(), h.config.BasePath)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) path(p string) string {
	return h.config.BasePath + p
}

func (h *Handler) handleStatic(w http.ResponseWriter, r *http.Request) {
	name := path.Clean(chi.URLParam(r, "*"))
	http.ServeFileFS(w, r, views.StaticFS, "static/"+name)
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListExams(true)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	byLevel := make(map[model.Level][]model.Exam)
	for _, e := range exams {
		byLevel[e.Level] = append(byLevel[e.Level], e)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.HomePage(byLevel).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleStartExam(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	examID := chi.URLParam(r, "examID")

	exam, err := h.store.GetExam(examID)
	if err != nil {
		http.Error(w, "exam not found", http.StatusNotFound)
		return
	}
	if exam.Status != model.ExamPublished {
		http.Error(w, "exam is not published", http.StatusForbidden)
		return
	}

	// The token is only known after registration, but the completion
	// callback needs it; the timer does not start until Run below, so the
	// assignment is safe.
	var token string
	sess := session.New(exam,
		session.WithScoring(h.scoring),
		session.WithOnComplete(func(res model.ExamResult) {
			res.UserID = user.ID
			id, err := h.store.SaveResult(res)
			if err != nil {
				slog.Error("failed to save exam result", "exam", res.ExamID, "user", user.ID, "error", err)
				return
			}
			h.mu.Lock()
			h.results[token] = id
			h.mu.Unlock()
			slog.Info("exam completed", "exam", res.ExamID, "user", user.ID,
				"score", res.Score, "correct", res.CorrectCount, "total", res.TotalQuestions)
		}),
	)

	token, err = h.sessions.Add(sess)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.mu.Lock()
	h.owners[token] = user.ID
	h.mu.Unlock()

	go sess.Run(context.Background())
	slog.Info("exam started", "exam", examID, "user", user.ID, "token", token)

	http.Redirect(w, r, h.path("/exam/take/"+token), http.StatusSeeOther)
}

// sessionForRequest resolves the session token in the URL and checks the
// requesting user owns it.
func (h *Handler) sessionForRequest(w http.ResponseWriter, r *http.Request) (*session.Session, string, bool) {
	token := chi.URLParam(r, "token")
	sess, ok := h.sessions.Get(token)
	if !ok {
		http.Error(w, "exam session not found", http.StatusNotFound)
		return nil, "", false
	}
	user := model.UserFromContext(r.Context())
	h.mu.Lock()
	owner := h.owners[token]
	h.mu.Unlock()
	if user == nil || owner != user.ID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, "", false
	}
	return sess, token, true
}

// finishRedirect sends a finished session's user to the right place: the
// result page when a result exists, home otherwise. The session is dropped
// from the registry either way.
func (h *Handler) finishRedirect(w http.ResponseWriter, r *http.Request, token string) {
	h.sessions.Remove(token)
	h.mu.Lock()
	id, ok := h.results[token]
	delete(h.owners, token)
	h.mu.Unlock()
	if ok {
		http.Redirect(w, r, h.path(fmt.Sprintf("/results/%d", id)), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

func (h *Handler) handleExamPage(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.sessionForRequest(w, r)
	if !ok {
		return
	}
	if sess.State() != session.StateInProgress {
		h.finishRedirect(w, r, token)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.ExamPage(token, sess).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.sessionForRequest(w, r)
	if !ok {
		return
	}

	questionID := r.FormValue("question_id")
	optionID := r.FormValue("option_id")
	err := sess.SelectAnswer(questionID, optionID)
	switch {
	case errors.Is(err, session.ErrSessionFinished):
		h.finishRedirect(w, r, token)
		return
	case errors.Is(err, session.ErrQuestionNotFound), errors.Is(err, session.ErrOptionNotFound):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Answering the last unanswered question still leaves submission to the
	// user; just show the page again.
	http.Redirect(w, r, h.path("/exam/take/"+token), http.StatusSeeOther)
}

func (h *Handler) handleNav(w http.ResponseWriter, r *http.Request, move func(*session.Session) error) {
	sess, token, ok := h.sessionForRequest(w, r)
	if !ok {
		return
	}
	if err := move(sess); err != nil {
		if errors.Is(err, session.ErrSessionFinished) {
			h.finishRedirect(w, r, token)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, h.path("/exam/take/"+token), http.StatusSeeOther)
}

func (h *Handler) handleNext(w http.ResponseWriter, r *http.Request) {
	h.handleNav(w, r, (*session.Session).Next)
}

func (h *Handler) handlePrev(w http.ResponseWriter, r *http.Request) {
	h.handleNav(w, r, (*session.Session).Prev)
}

func (h *Handler) handleNextSection(w http.ResponseWriter, r *http.Request) {
	h.handleNav(w, r, (*session.Session).AdvanceSection)
}

func (h *Handler) handlePrevSection(w http.ResponseWriter, r *http.Request) {
	h.handleNav(w, r, (*session.Session).RetreatSection)
}

func (h *Handler) handleJump(w http.ResponseWriter, r *http.Request) {
	sectionIndex, err1 := strconv.Atoi(r.FormValue("section"))
	questionIndex, err2 := strconv.Atoi(r.FormValue("question"))
	if err1 != nil || err2 != nil {
		http.Error(w, "invalid jump target", http.StatusBadRequest)
		return
	}
	h.handleNav(w, r, func(s *session.Session) error {
		return s.JumpTo(sectionIndex, questionIndex)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.sessionForRequest(w, r)
	if !ok {
		return
	}
	if _, err := sess.Submit(); err != nil {
		// Exited session: nothing to show.
		h.finishRedirect(w, r, token)
		return
	}
	h.finishRedirect(w, r, token)
}

func (h *Handler) handleExit(w http.ResponseWriter, r *http.Request) {
	sess, token, ok := h.sessionForRequest(w, r)
	if !ok {
		return
	}
	_ = sess.Exit()
	h.sessions.Remove(token)
	h.mu.Lock()
	delete(h.owners, token)
	h.mu.Unlock()
	slog.Info("exam exited", "token", token)
	http.Redirect(w, r, h.path("/"), http.StatusSeeOther)
}

// resultForRequest loads a stored result and checks the requester may see
// it: the owner, or any teacher or admin.
func (h *Handler) resultForRequest(w http.ResponseWriter, r *http.Request) (store.StoredResult, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "resultID"), 10, 64)
	if err != nil {
		http.Error(w, "invalid result ID", http.StatusBadRequest)
		return store.StoredResult{}, false
	}
	res, err := h.store.GetResult(id)
	if err != nil {
		http.Error(w, "result not found", http.StatusNotFound)
		return store.StoredResult{}, false
	}
	user := model.UserFromContext(r.Context())
	if user == nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return store.StoredResult{}, false
	}
	if res.UserID != user.ID && user.Role != model.UserRoleTeacher && user.Role != model.UserRoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return store.StoredResult{}, false
	}
	return res, true
}

func (h *Handler) handleResultPage(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resultForRequest(w, r)
	if !ok {
		return
	}
	exam, err := h.store.GetExam(res.ExamID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.ResultPage(res, exam, h.scoring).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleReviewPage(w http.ResponseWriter, r *http.Request) {
	res, ok := h.resultForRequest(w, r)
	if !ok {
		return
	}
	exam, err := h.store.GetExam(res.ExamID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.ReviewPage(res, exam).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleResultsList(w http.ResponseWriter, r *http.Request) {
	user := model.UserFromContext(r.Context())
	results, err := h.store.ListResultsForUser(user.ID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	titles := make(map[string]string)
	for _, res := range results {
		if _, ok := titles[res.ExamID]; ok {
			continue
		}
		exam, err := h.store.GetExam(res.ExamID)
		if err != nil {
			titles[res.ExamID] = res.ExamID
			continue
		}
		titles[res.ExamID] = exam.Title
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.ResultsListPage(results, titles, h.scoring).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}
