package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nihongolab/jlptmock/internal/draft"
	"github.com/nihongolab/jlptmock/internal/handler/views"
	"github.com/nihongolab/jlptmock/internal/model"
)

func (h *Handler) handleTeacherDashboard(w http.ResponseWriter, r *http.Request) {
	exams, err := h.store.ListExams(false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	draftIDs, err := h.store.ListDraftIDs()
	if err != nil {
		slog.Error("failed to list draft snapshots", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.TeacherDashboardPage(exams, draftIDs).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleSetExamStatus(w http.ResponseWriter, r *http.Request) {
	examID := chi.URLParam(r, "examID")
	status := model.ExamStatus(r.FormValue("status"))
	if status != model.ExamDraft && status != model.ExamPublished {
		http.Error(w, "invalid status", http.StatusBadRequest)
		return
	}
	if err := h.store.SetExamStatus(examID, status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	slog.Info("exam status changed", "exam", examID, "status", status)
	http.Redirect(w, r, h.path("/teacher"), http.StatusSeeOther)
}

func (h *Handler) handleNewDraft(w http.ResponseWriter, r *http.Request) {
	id := fmt.Sprintf("draft-%d", time.Now().UnixMilli())
	d := draft.New(id, draft.WithSnapshotter(h.store))
	h.mu.Lock()
	h.drafts[id] = d
	h.mu.Unlock()
	slog.Info("draft created", "draft", id)
	http.Redirect(w, r, h.path("/teacher/drafts/"+id), http.StatusSeeOther)
}

// draftForRequest returns the draft named in the URL, resuming it from a
// stored snapshot if the server restarted since it was last edited.
func (h *Handler) draftForRequest(w http.ResponseWriter, r *http.Request) (*draft.Draft, bool) {
	id := chi.URLParam(r, "draftID")
	h.mu.Lock()
	d, ok := h.drafts[id]
	h.mu.Unlock()
	if ok {
		return d, true
	}

	snap, found, err := draft.Load(h.store, id)
	if err != nil {
		slog.Error("failed to load draft snapshot", "draft", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return nil, false
	}
	if !found {
		http.Error(w, "draft not found", http.StatusNotFound)
		return nil, false
	}
	d = draft.Resume(snap, draft.WithSnapshotter(h.store))
	h.mu.Lock()
	// Another request may have resumed it concurrently; keep the first.
	if existing, ok := h.drafts[id]; ok {
		d.Close()
		d = existing
	} else {
		h.drafts[id] = d
	}
	h.mu.Unlock()
	slog.Info("draft resumed from snapshot", "draft", id)
	return d, true
}

func (h *Handler) renderDraft(w http.ResponseWriter, r *http.Request, d *draft.Draft, errMsg string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.DraftWizardPage(d, errMsg).Render(r.Context(), w); err != nil {
		slog.Error("render error", "error", err)
	}
}

func (h *Handler) handleDraftPage(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draftForRequest(w, r)
	if !ok {
		return
	}
	h.renderDraft(w, r, d, "")
}

func (h *Handler) redirectToDraft(w http.ResponseWriter, r *http.Request, d *draft.Draft) {
	http.Redirect(w, r, h.path("/teacher/drafts/"+d.ID()), http.StatusSeeOther)
}

// draftError distinguishes user-correctable validation problems (shown on
// the wizard page) from caller bugs (plain 400).
func (h *Handler) draftError(w http.ResponseWriter, r *http.Request, d *draft.Draft, err error) {
	var verr draft.ValidationError
	if errors.As(err, &verr) {
		h.renderDraft(w, r, d, verr.Error())
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (h *Handler) handleDraftBasicInfo(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draftForRequest(w, r)
	if !ok {
		return
	}
	d.SetBasicInfo(draft.BasicInfo{
		Title:       r.FormValue("title"),
		Level:       model.Level(r.FormValue("level")),
		Description: r.FormValue("description"),
	})
	h.redirectToDraft(w, r, d)
}

func (h *Handler) handleDraftNext(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draftForRequest(w, r)
	if !ok {
		return
	}
	if err := d.NextStep(); err != nil {
		h.draftError(w, r, d, err)
		return
	}
	h.redirectToDraft(w, r, d)
}

func (h *Handler) handleDraftPrev(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draftForRequest(w, r)
	if !ok {
		return
	}
	d.PrevStep()
	h.redirectToDraft(w, r, d)
}

func (h *Handler) handleDraftAddSection(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draftForRequest(w, r)
	if !ok {
		return
	}
	duration, _ := strconv.Atoi(r.FormValue("duration"))
	d.AddSection(r.FormValue("title"), duration)
	h.redirectToDraft(w, r, d)
}

func sectionIndexParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "sectionIndex"))
}

func questionIndexParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "questionIndex"))
}

func (h *Handler) handleDraftUpdateSection(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draftForRequest(w, r)
	if !ok {
		return
	}
	idx, err := sectionIndexParam(r)
	if err != nil {
		http.Error(w, "invalid section index", http.StatusBadRequest)
		return
	}
	duration, _ := strconv.Atoi(r.FormValue("duration"))
	if err := d.UpdateSection(idx, r.FormValue("title"), duration); err != nil {
		h.draftError(w, r, d, err)
		return
	}
	h.redirectToDraft(w, r, d)
}

func (h *Handler) handleDraftDeleteSection(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draftForRequest(w, r)
	if !ok {
		return
	}
	idx, err := sectionIndexParam(r)
	if err != nil {
		http.Error(w, "invalid section index", http.StatusBadRequest)
		return
	}
	if err := d.DeleteSection(idx); err != nil {
		h.draftError(w, r, d, err)
		return
	}
	h.redirectToDraft(w, r, d)
}

func (h *Handler) handleDraftAddQuestion(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draftForRequest(w, r)
	if !ok {
		return
	}
	idx, err := sectionIndexParam(r)
	if err != nil {
		http.Error(w, "invalid section index", http.StatusBadRequest)
		return
	}
	if _, err := d.AddQuestion(idx); err != nil {
		h.draftError(w, r, d, err)
		return
	}
	h.redirectToDraft(w, r, d)
}

func (h *Handler) handleDraftUpdateQuestion(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draftForRequest(w, r)
	if !ok {
		return
	}
	si, err := sectionIndexParam(r)
	if err != nil {
		http.Error(w, "invalid section index", http.StatusBadRequest)
		return
	}
	qi, err := questionIndexParam(r)
	if err != nil {
		http.Error(w, "invalid question index", http.StatusBadRequest)
		return
	}

	sections := d.Sections()
	if si < 0 || si >= len(sections) || qi < 0 || qi >= len(sections[si].Questions) {
		http.Error(w, "no such question", http.StatusNotFound)
		return
	}
	current := sections[si].Questions[qi]

	// Options keep their IDs; only their text and the answer key change.
	q := model.Question{
		Type:        model.QuestionType(r.FormValue("type")),
		Prompt:      r.FormValue("prompt"),
		Context:     r.FormValue("context"),
		ReadingText: r.FormValue("reading_text"),
		Explanation: r.FormValue("explanation"),
	}
	for oi, opt := range current.Options {
		q.Options = append(q.Options, model.Option{
			ID:   opt.ID,
			Text: r.FormValue(fmt.Sprintf("option_%d", oi)),
		})
	}
	correctIdx, err := strconv.Atoi(r.FormValue("correct"))
	if err != nil || correctIdx < 0 || correctIdx >= len(q.Options) {
		http.Error(w, "invalid correct option", http.StatusBadRequest)
		return
	}
	q.CorrectOptionID = q.Options[correctIdx].ID

	if err := d.UpdateQuestion(si, qi, q); err != nil {
		h.draftError(w, r, d, err)
		return
	}
	h.redirectToDraft(w, r, d)
}

func (h *Handler) handleDraftDeleteQuestion(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draftForRequest(w, r)
	if !ok {
		return
	}
	si, err := sectionIndexParam(r)
	if err != nil {
		http.Error(w, "invalid section index", http.StatusBadRequest)
		return
	}
	qi, err := questionIndexParam(r)
	if err != nil {
		http.Error(w, "invalid question index", http.StatusBadRequest)
		return
	}
	if err := d.DeleteQuestion(si, qi); err != nil {
		h.draftError(w, r, d, err)
		return
	}
	h.redirectToDraft(w, r, d)
}

func (h *Handler) handleDraftSave(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draftForRequest(w, r)
	if !ok {
		return
	}
	if err := d.Save(); err != nil {
		slog.Error("explicit draft save failed", "draft", d.ID(), "error", err)
		http.Error(w, "failed to save draft", http.StatusInternalServerError)
		return
	}
	h.redirectToDraft(w, r, d)
}

func (h *Handler) handleDraftFinalize(w http.ResponseWriter, r *http.Request) {
	d, ok := h.draftForRequest(w, r)
	if !ok {
		return
	}
	publish := r.FormValue("publish") == "1"

	exam, err := d.Finalize(publish)
	if err != nil {
		h.draftError(w, r, d, err)
		return
	}
	if user := model.UserFromContext(r.Context()); user != nil {
		exam.CreatedBy = user.ID
	}
	if err := h.store.SaveExam(exam); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	delete(h.drafts, d.ID())
	h.mu.Unlock()
	slog.Info("draft finalized", "draft", d.ID(), "exam", exam.ID, "published", publish)
	http.Redirect(w, r, h.path("/teacher"), http.StatusSeeOther)
}
