// Package views renders the HTML pages. Components are plain templ
// components so handlers can compose and render them with a request context.
package views

import (
	"context"
	"fmt"
	"html"
	"io"

	"github.com/a-h/templ"

	"github.com/nihongolab/jlptmock/internal/furigana"
	appI18n "github.com/nihongolab/jlptmock/internal/i18n"
	"github.com/nihongolab/jlptmock/internal/model"
)

// wr accumulates HTML output, remembering the first write error.
type wr struct {
	io.Writer
	err error
}

func (b *wr) f(format string, args ...any) {
	if b.err == nil {
		_, b.err = fmt.Fprintf(b.Writer, format, args...)
	}
}

func (b *wr) s(s string) {
	if b.err == nil {
		_, b.err = io.WriteString(b.Writer, s)
	}
}

func (b *wr) esc(s string) {
	b.s(html.EscapeString(s))
}

func (b *wr) c(ctx context.Context, comp templ.Component) {
	if b.err == nil {
		b.err = comp.Render(ctx, b.Writer)
	}
}

func href(ctx context.Context, path string) string {
	return model.BasePathFromContext(ctx) + path
}

// Ruby renders text with {base|reading} furigana markup as HTML ruby
// annotations. Plain runs and malformed markup come out as escaped text.
func Ruby(text string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &wr{Writer: w}
		for seg := range furigana.Segments(text) {
			if seg.IsRuby() {
				b.f("<ruby>%s<rt>%s</rt></ruby>", html.EscapeString(seg.Base), html.EscapeString(seg.Reading))
			} else {
				b.esc(seg.Base)
			}
		}
		return b.err
	})
}

func csrfField(ctx context.Context, b *wr) {
	b.f(`<input type="hidden" name="csrf_token" value="%s">`, html.EscapeString(model.CSRFTokenFromContext(ctx)))
}

func layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &wr{Writer: w}
		b.s("<!DOCTYPE html><html lang=\"ja\"><head><meta charset=\"utf-8\">")
		b.s(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.f("<title>%s - %s</title>", html.EscapeString(title), html.EscapeString(appI18n.T(ctx, "AppTitle")))
		b.f(`<link rel="stylesheet" href="%s">`, href(ctx, "/static/app.css"))
		b.s("</head><body>")

		user := model.UserFromContext(ctx)
		b.s(`<nav class="topnav">`)
		b.f(`<a class="brand" href="%s">%s</a>`, href(ctx, "/"), html.EscapeString(appI18n.T(ctx, "AppTitle")))
		if user != nil {
			b.s(`<div class="navlinks">`)
			b.f(`<a href="%s">%s</a>`, href(ctx, "/results"), html.EscapeString(appI18n.T(ctx, "MyResults")))
			if user.Role == model.UserRoleTeacher || user.Role == model.UserRoleAdmin {
				b.f(`<a href="%s">%s</a>`, href(ctx, "/teacher"), html.EscapeString(appI18n.T(ctx, "Dashboard")))
			}
			if user.Role == model.UserRoleAdmin {
				b.f(`<a href="%s">%s</a>`, href(ctx, "/admin/users"), html.EscapeString(appI18n.T(ctx, "Users")))
			}
			b.f(`<span class="username">%s</span>`, html.EscapeString(user.DisplayName))
			b.f(`<form method="post" action="%s" class="inline">`, href(ctx, "/logout"))
			csrfField(ctx, b)
			b.f(`<button type="submit" class="linklike">%s</button>`, html.EscapeString(appI18n.T(ctx, "Logout")))
			b.s("</form></div>")
		}
		b.s("</nav>")

		b.s(`<main class="container">`)
		b.c(ctx, body)
		b.s("</main></body></html>")
		return b.err
	})
}

// LoginPage renders the sign-in form, with an optional error message.
func LoginPage(errMsg string) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &wr{Writer: w}
		b.f(`<section class="login"><h1>%s</h1>`, html.EscapeString(appI18n.T(ctx, "Login")))
		if errMsg != "" {
			b.f(`<p class="error">%s</p>`, html.EscapeString(errMsg))
		}
		b.f(`<form method="post" action="%s">`, href(ctx, "/login"))
		csrfField(ctx, b)
		b.f(`<label>%s<input type="text" name="username" autocomplete="username" required></label>`,
			html.EscapeString(appI18n.T(ctx, "Username")))
		b.f(`<label>%s<input type="password" name="password" autocomplete="current-password" required></label>`,
			html.EscapeString(appI18n.T(ctx, "Password")))
		b.f(`<button type="submit">%s</button>`, html.EscapeString(appI18n.T(ctx, "Login")))
		b.s("</form></section>")
		return b.err
	})
	return layout("Login", body)
}

// HomePage renders the level picker with the published exams for each level.
func HomePage(examsByLevel map[model.Level][]model.Exam) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		b := &wr{Writer: w}
		b.f(`<h1>%s</h1>`, html.EscapeString(appI18n.T(ctx, "ChooseLevel")))
		for _, level := range model.Levels {
			exams := examsByLevel[level]
			b.f(`<section class="level level-%s"><h2>%s</h2>`, level, level)
			if len(exams) == 0 {
				b.f(`<p class="muted">%s</p>`, html.EscapeString(appI18n.T(ctx, "NoExams")))
				b.s("</section>")
				continue
			}
			b.s(`<ul class="exams">`)
			for _, e := range exams {
				b.s(`<li class="exam-card">`)
				b.f(`<h3>%s</h3>`, html.EscapeString(e.Title))
				if e.Description != "" {
					b.f(`<p>%s</p>`, html.EscapeString(e.Description))
				}
				b.f(`<p class="meta">%s ・ %s</p>`,
					html.EscapeString(appI18n.Tp(ctx, "QuestionsAvailable", e.TotalQuestions)),
					html.EscapeString(appI18n.Tp(ctx, "MinutesTotal", e.TotalDuration)))
				b.f(`<form method="post" action="%s">`, href(ctx, "/exam/"+e.ID+"/start"))
				csrfField(ctx, b)
				b.f(`<button type="submit">%s</button>`, html.EscapeString(appI18n.T(ctx, "StartExam")))
				b.s("</form></li>")
			}
			b.s("</ul></section>")
		}
		return b.err
	})
	return layout("Home", body)
}
