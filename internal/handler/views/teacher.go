package views

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"

	"github.com/nihongolab/jlptmock/internal/draft"
	appI18n "github.com/nihongolab/jlptmock/internal/i18n"
	"github.com/nihongolab/jlptmock/internal/model"
)

// TeacherDashboardPage lists all exams (drafts included) with their status
// and any recoverable draft snapshots.
func TeacherDashboardPage(exams []model.Exam, draftIDs []string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &wr{Writer: w}
		b.f(`<h1>%s</h1>`, html.EscapeString(appI18n.T(ctx, "Dashboard")))

		b.f(`<form method="post" action="%s">`, href(ctx, "/teacher/exams/new"))
		csrfField(ctx, b)
		b.f(`<button type="submit" class="primary">%s</button>`, html.EscapeString(appI18n.T(ctx, "CreateExam")))
		b.s("</form>")

		if len(draftIDs) > 0 {
			b.f(`<h2>%s</h2><ul class="drafts">`, html.EscapeString(appI18n.T(ctx, "ResumeDraft")))
			for _, id := range draftIDs {
				b.f(`<li><a href="%s">%s</a></li>`,
					href(ctx, "/teacher/drafts/"+id), html.EscapeString(id))
			}
			b.s("</ul>")
		}

		b.f(`<h2>%s</h2>`, html.EscapeString(appI18n.T(ctx, "AvailableExams")))
		b.s(`<table class="exams-table"><tbody>`)
		for _, e := range exams {
			b.s("<tr>")
			b.f(`<td>%s</td><td>%s</td>`, html.EscapeString(e.Title), e.Level)
			b.f(`<td>%s ・ %s</td>`,
				html.EscapeString(appI18n.Tp(ctx, "QuestionsAvailable", e.TotalQuestions)),
				html.EscapeString(appI18n.Tp(ctx, "MinutesTotal", e.TotalDuration)))
			b.f(`<td>%s</td>`, e.Status)
			b.s("<td>")
			nextStatus := model.ExamPublished
			label := appI18n.T(ctx, "Publish")
			if e.Status == model.ExamPublished {
				nextStatus = model.ExamDraft
				label = appI18n.T(ctx, "SaveAsDraft")
			}
			b.f(`<form method="post" action="%s" class="inline">`, href(ctx, "/teacher/exams/"+e.ID+"/status"))
			csrfField(ctx, b)
			b.f(`<input type="hidden" name="status" value="%s">`, nextStatus)
			b.f(`<button type="submit">%s</button>`, html.EscapeString(label))
			b.s("</form></td></tr>")
		}
		b.s("</tbody></table>")
		return b.err
	})
	return layout("Dashboard", body)
}

// DraftWizardPage renders the three-step exam creator for the current step
// of the draft.
func DraftWizardPage(d *draft.Draft, errMsg string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &wr{Writer: w}
		base := href(ctx, "/teacher/drafts/"+d.ID())
		step := d.Step()

		b.f(`<h1>%s</h1>`, html.EscapeString(appI18n.T(ctx, "CreateExam")))
		b.s(`<ol class="steps">`)
		stepKeys := []string{"StepBasicInfo", "StepSections", "StepQuestions"}
		for i, key := range stepKeys {
			class := ""
			if draft.Step(i+1) == step {
				class = ` class="active"`
			}
			b.f(`<li%s>%d. %s</li>`, class, i+1, html.EscapeString(appI18n.T(ctx, key)))
		}
		b.s("</ol>")
		if errMsg != "" {
			b.f(`<p class="error">%s</p>`, html.EscapeString(errMsg))
		}

		switch step {
		case draft.StepBasicInfo:
			renderBasicInfoStep(ctx, b, base, d)
		case draft.StepSections:
			renderSectionsStep(ctx, b, base, d)
		case draft.StepQuestions:
			renderQuestionsStep(ctx, b, base, d)
		}

		b.s(`<footer class="wizard-nav">`)
		if step > draft.StepBasicInfo {
			b.f(`<form method="post" action="%s/prev" class="inline">`, base)
			csrfField(ctx, b)
			b.f(`<button type="submit">%s</button>`, html.EscapeString(appI18n.T(ctx, "PrevQuestion")))
			b.s("</form>")
		}
		if step < draft.StepQuestions {
			b.f(`<form method="post" action="%s/next" class="inline">`, base)
			csrfField(ctx, b)
			b.f(`<button type="submit" class="primary">%s</button>`, html.EscapeString(appI18n.T(ctx, "NextQuestion")))
			b.s("</form>")
		} else {
			b.f(`<form method="post" action="%s/finalize" class="inline">`, base)
			csrfField(ctx, b)
			b.f(`<input type="hidden" name="publish" value="1">`)
			b.f(`<button type="submit" class="primary">%s</button>`, html.EscapeString(appI18n.T(ctx, "Publish")))
			b.s("</form>")
			b.f(`<form method="post" action="%s/finalize" class="inline">`, base)
			csrfField(ctx, b)
			b.f(`<button type="submit">%s</button>`, html.EscapeString(appI18n.T(ctx, "SaveAsDraft")))
			b.s("</form>")
		}
		b.f(`<form method="post" action="%s/save" class="inline">`, base)
		csrfField(ctx, b)
		b.f(`<button type="submit">%s</button>`, html.EscapeString(appI18n.T(ctx, "SaveDraft")))
		b.s("</form></footer>")
		return b.err
	})
	return layout("Create Exam", body)
}

func renderBasicInfoStep(ctx context.Context, b *wr, base string, d *draft.Draft) {
	info := d.BasicInfo()
	b.f(`<form method="post" action="%s/basic-info">`, base)
	csrfField(ctx, b)
	b.f(`<label>%s<input type="text" name="title" value="%s" required></label>`,
		html.EscapeString(appI18n.T(ctx, "ExamTitle")), html.EscapeString(info.Title))
	b.f(`<label>%s<select name="level">`, html.EscapeString(appI18n.T(ctx, "Level")))
	for _, level := range model.Levels {
		selected := ""
		if level == info.Level {
			selected = " selected"
		}
		b.f(`<option value="%s"%s>%s</option>`, level, selected, level)
	}
	b.s("</select></label>")
	b.f(`<label>%s<textarea name="description">%s</textarea></label>`,
		html.EscapeString(appI18n.T(ctx, "Description")), html.EscapeString(info.Description))
	b.f(`<button type="submit">%s</button>`, html.EscapeString(appI18n.T(ctx, "SaveDraft")))
	b.s("</form>")
}

func renderSectionsStep(ctx context.Context, b *wr, base string, d *draft.Draft) {
	b.s(`<ul class="sections">`)
	for i, sec := range d.Sections() {
		b.s("<li>")
		b.f(`<form method="post" action="%s/sections/%d" class="inline">`, base, i)
		csrfField(ctx, b)
		b.f(`<input type="text" name="title" value="%s">`, html.EscapeString(sec.Title))
		b.f(`<input type="number" name="duration" value="%d" min="5" max="180">`, sec.DurationMinutes)
		b.f(`<button type="submit">%s</button>`, html.EscapeString(appI18n.T(ctx, "SaveDraft")))
		b.s("</form>")
		b.f(`<form method="post" action="%s/sections/%d/delete" class="inline">`, base, i)
		csrfField(ctx, b)
		b.s(`<button type="submit" class="danger">&times;</button></form>`)
		b.f(`<span class="meta">%s</span>`,
			html.EscapeString(appI18n.Tp(ctx, "QuestionsAvailable", len(sec.Questions))))
		b.s("</li>")
	}
	b.s("</ul>")
	b.f(`<form method="post" action="%s/sections">`, base)
	csrfField(ctx, b)
	b.f(`<input type="text" name="title" placeholder="%s">`, html.EscapeString(appI18n.T(ctx, "Section")))
	b.s(`<input type="number" name="duration" value="30" min="5" max="180">`)
	b.f(`<button type="submit">%s</button>`, html.EscapeString(appI18n.T(ctx, "AddSection")))
	b.s("</form>")
}

func renderQuestionsStep(ctx context.Context, b *wr, base string, d *draft.Draft) {
	for si, sec := range d.Sections() {
		b.f(`<section class="draft-section"><h3>%s</h3>`, html.EscapeString(sec.Title))
		for qi, q := range sec.Questions {
			b.f(`<form method="post" action="%s/sections/%d/questions/%d" class="question-form">`, base, si, qi)
			csrfField(ctx, b)
			b.f(`<h4>%s %d</h4>`, html.EscapeString(appI18n.T(ctx, "Question")), q.Number)
			b.s(`<select name="type">`)
			for _, qt := range []model.QuestionType{
				model.QuestionVocabulary, model.QuestionGrammar, model.QuestionReading, model.QuestionListening,
			} {
				selected := ""
				if qt == q.Type {
					selected = " selected"
				}
				b.f(`<option value="%s"%s>%s</option>`, qt, selected, qt)
			}
			b.s("</select>")
			b.f(`<textarea name="prompt" placeholder="%s">%s</textarea>`,
				html.EscapeString(appI18n.T(ctx, "Question")), html.EscapeString(q.Prompt))
			b.f(`<textarea name="context">%s</textarea>`, html.EscapeString(q.Context))
			b.f(`<textarea name="reading_text">%s</textarea>`, html.EscapeString(q.ReadingText))
			for oi, opt := range q.Options {
				checked := ""
				if opt.ID == q.CorrectOptionID {
					checked = " checked"
				}
				b.f(`<div class="option-row"><input type="radio" name="correct" value="%d"%s>`, oi, checked)
				b.f(`<input type="text" name="option_%d" value="%s"></div>`, oi, html.EscapeString(opt.Text))
			}
			b.f(`<textarea name="explanation">%s</textarea>`, html.EscapeString(q.Explanation))
			b.f(`<button type="submit">%s</button>`, html.EscapeString(appI18n.T(ctx, "SaveDraft")))
			b.s("</form>")
			b.f(`<form method="post" action="%s/sections/%d/questions/%d/delete" class="inline">`, base, si, qi)
			csrfField(ctx, b)
			b.s(`<button type="submit" class="danger">&times;</button></form>`)
		}
		b.f(`<form method="post" action="%s/sections/%d/questions" class="inline">`, base, si)
		csrfField(ctx, b)
		b.f(`<button type="submit">%s</button>`, html.EscapeString(appI18n.T(ctx, "AddQuestion")))
		b.s("</form></section>")
	}
}

// AdminUsersPage lists users and hosts the add-user form.
func AdminUsersPage(users []model.User, msg string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &wr{Writer: w}
		b.f(`<h1>%s</h1>`, html.EscapeString(appI18n.T(ctx, "Users")))
		if msg != "" {
			b.f(`<p class="notice">%s</p>`, html.EscapeString(msg))
		}
		b.s(`<table class="users"><tbody>`)
		for _, u := range users {
			b.s("<tr>")
			b.f(`<td>%s</td><td>%s</td><td>%s</td><td>%v</td>`,
				html.EscapeString(u.Username), html.EscapeString(u.DisplayName), u.Role, u.Active)
			b.s("<td>")
			b.f(`<form method="post" action="%s" class="inline">`,
				href(ctx, fmt.Sprintf("/admin/users/%d/toggle", u.ID)))
			csrfField(ctx, b)
			b.f(`<button type="submit">%s</button>`, html.EscapeString(appI18n.T(ctx, "Active")))
			b.s("</form></td></tr>")
		}
		b.s("</tbody></table>")

		b.f(`<h2>%s</h2>`, html.EscapeString(appI18n.T(ctx, "AddUser")))
		b.f(`<form method="post" action="%s">`, href(ctx, "/admin/users"))
		csrfField(ctx, b)
		b.f(`<label>%s<input type="text" name="username" required></label>`,
			html.EscapeString(appI18n.T(ctx, "Username")))
		b.s(`<label><input type="text" name="display_name"></label>`)
		b.f(`<label>%s<input type="password" name="password" required></label>`,
			html.EscapeString(appI18n.T(ctx, "Password")))
		b.f(`<label>%s<select name="role">`, html.EscapeString(appI18n.T(ctx, "Role")))
		for _, role := range []model.UserRole{model.UserRoleStudent, model.UserRoleTeacher, model.UserRoleAdmin} {
			b.f(`<option value="%s">%s</option>`, role, role)
		}
		b.s("</select></label>")
		b.f(`<button type="submit">%s</button>`, html.EscapeString(appI18n.T(ctx, "AddUser")))
		b.s("</form>")
		return b.err
	})
	return layout("Users", body)
}

// AdminExamsPage hosts the exam JSON upload form.
func AdminExamsPage(msg string, isError bool) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &wr{Writer: w}
		b.f(`<h1>%s</h1>`, html.EscapeString(appI18n.T(ctx, "UploadExam")))
		if msg != "" {
			class := "notice"
			if isError {
				class = "error"
			}
			b.f(`<p class="%s">%s</p>`, class, html.EscapeString(msg))
		}
		b.f(`<form method="post" action="%s" enctype="multipart/form-data">`, href(ctx, "/admin/exams"))
		csrfField(ctx, b)
		b.s(`<input type="file" name="exam_file" accept=".json" required>`)
		b.f(`<button type="submit">%s</button>`, html.EscapeString(appI18n.T(ctx, "UploadExam")))
		b.s("</form>")
		return b.err
	})
	return layout("Upload Exam", body)
}
