package views

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"

	appI18n "github.com/nihongolab/jlptmock/internal/i18n"
	"github.com/nihongolab/jlptmock/internal/model"
	"github.com/nihongolab/jlptmock/internal/scoring"
	"github.com/nihongolab/jlptmock/internal/session"
	"github.com/nihongolab/jlptmock/internal/store"
)

func formatTimeSpent(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// ExamPage renders the exam-taking screen: timer, current question, the
// question palette and navigation controls.
func ExamPage(token string, sess *session.Session) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &wr{Writer: w}
		exam := sess.Exam()
		si, qi := sess.Position()
		sec := exam.Sections[si]
		q := sess.CurrentQuestion()
		answers := sess.Answers()
		base := href(ctx, "/exam/take/"+token)

		b.s(`<header class="exam-header">`)
		b.f(`<h1>%s</h1>`, html.EscapeString(exam.Title))
		b.f(`<div class="section-title">%s %d: %s</div>`,
			html.EscapeString(appI18n.T(ctx, "Section")), si+1, html.EscapeString(sec.Title))
		b.f(`<div class="timer">%s: <span id="timer">%s</span></div>`,
			html.EscapeString(appI18n.T(ctx, "TimeRemaining")), sess.FormatRemaining())
		b.f(`<div class="progress">%s</div>`, html.EscapeString(appI18n.Td(ctx, "AnsweredOfTotal", map[string]any{
			"Answered": sess.AnsweredCount(),
			"Total":    exam.TotalQuestions,
		})))
		b.s("</header>")

		// Question palette: one jump button per question across all sections.
		b.s(`<nav class="palette">`)
		for psi, psec := range exam.Sections {
			for pqi, pq := range psec.Questions {
				class := "palette-btn"
				if _, ok := answers[pq.ID]; ok {
					class += " answered"
				}
				if psi == si && pqi == qi {
					class += " current"
				}
				b.f(`<form method="post" action="%s/jump" class="inline">`, base)
				csrfField(ctx, b)
				b.f(`<input type="hidden" name="section" value="%d">`, psi)
				b.f(`<input type="hidden" name="question" value="%d">`, pqi)
				b.f(`<button type="submit" class="%s">%d</button>`, class, sess.AbsoluteNumber(psi, pqi))
				b.s("</form>")
			}
		}
		b.s("</nav>")

		b.s(`<section class="question">`)
		b.f(`<h2>%s %d</h2>`, html.EscapeString(appI18n.T(ctx, "Question")), sess.AbsoluteNumber(si, qi))
		if q.ReadingText != "" {
			b.s(`<div class="reading-text">`)
			b.c(ctx, Ruby(q.ReadingText))
			b.s("</div>")
		}
		if q.Context != "" {
			b.s(`<p class="context">`)
			b.c(ctx, Ruby(q.Context))
			b.s("</p>")
		}
		if q.AudioURL != "" {
			b.f(`<audio controls src="%s"></audio>`, html.EscapeString(q.AudioURL))
		}
		if q.ImageURL != "" {
			b.f(`<img class="question-image" src="%s" alt="">`, html.EscapeString(q.ImageURL))
		}
		b.s(`<p class="prompt">`)
		b.c(ctx, Ruby(q.Prompt))
		b.s("</p>")

		selected := ""
		if a, ok := answers[q.ID]; ok {
			selected = a.SelectedOptionID
		}
		b.f(`<form method="post" action="%s/answer">`, base)
		csrfField(ctx, b)
		b.f(`<input type="hidden" name="question_id" value="%s">`, html.EscapeString(q.ID))
		b.s(`<ul class="options">`)
		for _, opt := range q.Options {
			checked := ""
			if opt.ID == selected {
				checked = " checked"
			}
			b.f(`<li><label><input type="radio" name="option_id" value="%s" onchange="this.form.submit()"%s> `,
				html.EscapeString(opt.ID), checked)
			b.c(ctx, Ruby(opt.Text))
			b.s("</label></li>")
		}
		b.s("</ul></form></section>")

		b.s(`<footer class="exam-nav">`)
		navForm := func(action, label string) {
			b.f(`<form method="post" action="%s/%s" class="inline">`, base, action)
			csrfField(ctx, b)
			b.f(`<button type="submit">%s</button>`, html.EscapeString(label))
			b.s("</form>")
		}
		navForm("prev", appI18n.T(ctx, "PrevQuestion"))
		navForm("next", appI18n.T(ctx, "NextQuestion"))
		navForm("section/prev", appI18n.T(ctx, "PrevSection"))
		navForm("section/next", appI18n.T(ctx, "NextSection"))
		b.f(`<form method="post" action="%s/submit" class="inline">`, base)
		csrfField(ctx, b)
		b.f(`<button type="submit" class="primary">%s</button>`, html.EscapeString(appI18n.T(ctx, "SubmitExam")))
		b.s("</form>")
		b.f(`<form method="post" action="%s/exit" class="inline" onsubmit="return confirm(%q)">`,
			base, appI18n.T(ctx, "ExitConfirm"))
		csrfField(ctx, b)
		b.f(`<button type="submit" class="danger">%s</button>`, html.EscapeString(appI18n.T(ctx, "ExitExam")))
		b.s("</form></footer>")

		// Live countdown over a websocket; on expiry the server submits the
		// exam and the page follows the redirect it sends.
		b.f(`<script>
(function () {
	var el = document.getElementById("timer");
	var proto = location.protocol === "https:" ? "wss://" : "ws://";
	var ws = new WebSocket(proto + location.host + %q + "/ws");
	ws.onmessage = function (ev) {
		var msg = JSON.parse(ev.data);
		if (msg.event === "completed") {
			location.href = msg.redirect;
			return;
		}
		el.textContent = msg.display;
	};
})();
</script>`, base)
		return b.err
	})
	return layout("Exam", body)
}

// ResultPage renders the score summary for a finished attempt.
func ResultPage(res store.StoredResult, exam model.Exam, cfg scoring.Config) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &wr{Writer: w}
		b.f(`<h1>%s</h1>`, html.EscapeString(appI18n.T(ctx, "Results")))
		b.f(`<h2>%s</h2>`, html.EscapeString(exam.Title))

		verdict := appI18n.T(ctx, "Failed")
		verdictClass := "failed"
		if cfg.Passed(res.ExamResult) {
			verdict = appI18n.T(ctx, "Passed")
			verdictClass = "passed"
		}
		b.f(`<p class="verdict %s">%s</p>`, verdictClass, html.EscapeString(verdict))

		b.f(`<p class="score">%s: %s</p>`,
			html.EscapeString(appI18n.T(ctx, "YourScore")),
			html.EscapeString(appI18n.Td(ctx, "ScoreOutOf", map[string]any{"Score": res.Score, "Max": res.MaxScore})))
		b.f(`<p>%s: %d / %d (%d%%)</p>`,
			html.EscapeString(appI18n.T(ctx, "CorrectAnswers")),
			res.CorrectCount, res.TotalQuestions, scoring.Percentage(res.ExamResult))
		b.f(`<p>%s: %s</p>`,
			html.EscapeString(appI18n.T(ctx, "TimeSpent")), formatTimeSpent(res.TimeSpentSeconds))

		b.f(`<p><a class="button" href="%s/review">%s</a> <a class="button" href="%s">%s</a></p>`,
			href(ctx, fmt.Sprintf("/results/%d", res.ID)), html.EscapeString(appI18n.T(ctx, "ReviewAnswers")),
			href(ctx, "/"), html.EscapeString(appI18n.T(ctx, "BackToHome")))
		return b.err
	})
	return layout("Results", body)
}

// ReviewPage renders every question with the user's answer, the correct
// answer and the explanation.
func ReviewPage(res store.StoredResult, exam model.Exam) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &wr{Writer: w}
		b.f(`<h1>%s</h1><h2>%s</h2>`,
			html.EscapeString(appI18n.T(ctx, "ReviewAnswers")), html.EscapeString(exam.Title))

		for _, sec := range exam.Sections {
			b.f(`<section class="review-section"><h3>%s</h3>`, html.EscapeString(sec.Title))
			for _, q := range sec.Questions {
				answer, answered := res.Answers[q.ID]
				cardClass := "review-card wrong"
				if answered && answer.IsCorrect {
					cardClass = "review-card correct"
				}
				b.f(`<article class="%s">`, cardClass)
				b.f(`<h4>%s %d</h4>`, html.EscapeString(appI18n.T(ctx, "Question")), q.Number)
				if q.ReadingText != "" {
					b.s(`<div class="reading-text">`)
					b.c(ctx, Ruby(q.ReadingText))
					b.s("</div>")
				}
				b.s(`<p class="prompt">`)
				b.c(ctx, Ruby(q.Prompt))
				b.s("</p>")

				optionText := func(id string) templ.Component {
					for _, opt := range q.Options {
						if opt.ID == id {
							return Ruby(opt.Text)
						}
					}
					return Ruby("")
				}

				b.f(`<p>%s: `, html.EscapeString(appI18n.T(ctx, "YourAnswer")))
				if answered {
					b.c(ctx, optionText(answer.SelectedOptionID))
				} else {
					b.f(`<em>%s</em>`, html.EscapeString(appI18n.T(ctx, "NotAnswered")))
				}
				b.s("</p>")
				b.f(`<p>%s: `, html.EscapeString(appI18n.T(ctx, "CorrectAnswer")))
				b.c(ctx, optionText(q.CorrectOptionID))
				b.s("</p>")
				if q.Explanation != "" {
					b.f(`<p class="explanation">%s: `, html.EscapeString(appI18n.T(ctx, "Explanation")))
					b.c(ctx, Ruby(q.Explanation))
					b.s("</p>")
				}
				b.s("</article>")
			}
			b.s("</section>")
		}
		b.f(`<p><a class="button" href="%s">%s</a></p>`,
			href(ctx, "/"), html.EscapeString(appI18n.T(ctx, "BackToHome")))
		return b.err
	})
	return layout("Review", body)
}

// ResultsListPage renders a user's past attempts. examTitles maps exam IDs
// to their display titles.
func ResultsListPage(results []store.StoredResult, examTitles map[string]string, cfg scoring.Config) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &wr{Writer: w}
		b.f(`<h1>%s</h1>`, html.EscapeString(appI18n.T(ctx, "MyResults")))
		if len(results) == 0 {
			b.f(`<p class="muted">%s</p>`, html.EscapeString(appI18n.T(ctx, "NoExams")))
			return b.err
		}
		b.s(`<table class="results"><tbody>`)
		for _, r := range results {
			verdict := appI18n.T(ctx, "Failed")
			verdictClass := "failed"
			if cfg.Passed(r.ExamResult) {
				verdict = appI18n.T(ctx, "Passed")
				verdictClass = "passed"
			}
			b.s("<tr>")
			b.f(`<td><a href="%s">%s</a></td>`,
				href(ctx, fmt.Sprintf("/results/%d", r.ID)), html.EscapeString(examTitles[r.ExamID]))
			b.f(`<td>%d / %d</td>`, r.Score, r.MaxScore)
			b.f(`<td class="%s">%s</td>`, verdictClass, html.EscapeString(verdict))
			b.f(`<td>%s</td>`, r.CompletedAt.Format("2006-01-02 15:04"))
			b.s("</tr>")
		}
		b.s("</tbody></table>")
		return b.err
	})
	return layout("Results", body)
}
