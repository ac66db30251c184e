package web

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"

	vm "github.com/ericfisherdev/policypanel/internal/adapter/driving/web/viewmodel"
)

// htmlWriter accumulates the first write error so components can be written
// as straight-line code.
type htmlWriter struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (hw *htmlWriter) raw(s string) {
	if hw.err != nil {
		return
	}
	_, hw.err = io.WriteString(hw.w, s)
}

func (hw *htmlWriter) text(s string) {
	hw.raw(templ.EscapeString(s))
}

func (hw *htmlWriter) attr(name, value string) {
	hw.raw(" " + name + `="` + templ.EscapeString(value) + `"`)
}

func (hw *htmlWriter) href(u string) {
	hw.attr("href", string(templ.URL(u)))
}

func (hw *htmlWriter) render(c templ.Component) {
	if hw.err != nil || c == nil {
		return
	}
	hw.err = c.Render(hw.ctx, hw.w)
}

func component(fn func(hw *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		hw := &htmlWriter{ctx: ctx, w: w}
		fn(hw)
		return hw.err
	})
}

// Layout wraps body in the page shell with the session header.
func Layout(title string, session vm.SessionViewModel, body templ.Component) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		hw.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		hw.raw(`<title>`)
		hw.text(title)
		hw.raw(`</title><link rel="stylesheet" href="/static/app.css"></head><body>`)

		hw.raw(`<header class="topbar"><a class="brand" href="/">Policy Panel</a><div class="session">`)
		if session.Authenticated {
			if session.User != "" {
				hw.raw(`<span class="user">`)
				hw.text(session.User)
				hw.raw(`</span>`)
			}
			hw.raw(`<form method="post" action="/logout">`)
			csrfField(hw, session.CSRFToken)
			hw.raw(`<button type="submit">Sign out</button></form>`)
		} else {
			hw.raw(`<a href="/login">Sign in</a>`)
		}
		hw.raw(`</div></header><main>`)
		hw.render(body)
		hw.raw(`</main></body></html>`)
	})
}

func csrfField(hw *htmlWriter, token string) {
	hw.raw(`<input type="hidden"`)
	hw.attr("name", csrfFormField)
	hw.attr("value", token)
	hw.raw(`>`)
}

func tableNav(hw *htmlWriter, links []vm.TableLinkViewModel) {
	hw.raw(`<nav class="tables">`)
	for _, l := range links {
		hw.raw(`<a`)
		hw.href(l.Path)
		if l.Active {
			hw.attr("class", "active")
		}
		hw.raw(`>`)
		hw.text(l.Label)
		hw.raw(`</a>`)
	}
	hw.raw(`</nav>`)
}

// TablePage renders a sortable table listing.
func TablePage(m vm.TablePageViewModel) templ.Component {
	return component(func(hw *htmlWriter) {
		tableNav(hw, m.Tables)

		hw.raw(`<div class="toolbar"><a class="button"`)
		hw.href(m.NewPath)
		hw.raw(`>Add row</a>`)
		if m.Sorted {
			hw.raw(`<a class="button secondary"`)
			hw.href(m.ClearPath)
			hw.raw(`>Clear sort</a>`)
		}
		hw.raw(`</div>`)

		if len(m.Columns) == 0 {
			hw.raw(`<p class="empty">This table has no data.</p>`)
			return
		}

		hw.raw(`<table class="data"><thead><tr><th>Name</th>`)
		for _, c := range m.Columns {
			hw.raw(`<th`)
			if c.Active {
				hw.attr("aria-sort", map[string]string{"asc": "ascending", "desc": "descending"}[c.Direction])
			}
			hw.raw(`><a`)
			hw.href(c.SortPath)
			hw.raw(`>`)
			hw.text(c.Name)
			if c.Active && c.Direction == "asc" {
				hw.raw(` ▲`)
			} else if c.Active {
				hw.raw(` ▼`)
			}
			hw.raw(`</a></th>`)
		}
		hw.raw(`</tr></thead><tbody>`)
		for _, r := range m.Rows {
			hw.raw(`<tr`)
			hw.attr("id", "row-"+r.ID)
			hw.raw(`><td><a`)
			hw.href(r.DetailPath)
			hw.raw(`>`)
			hw.text(r.Name)
			hw.raw(`</a></td>`)
			for _, cell := range r.Cells {
				hw.raw(`<td>`)
				hw.text(cell)
				hw.raw(`</td>`)
			}
			hw.raw(`</tr>`)
		}
		hw.raw(`</tbody></table>`)
	})
}

// RowCardPage renders every field of one row.
func RowCardPage(m vm.RowCardViewModel) templ.Component {
	return component(func(hw *htmlWriter) {
		if m.Notice != "" {
			hw.raw(`<p class="notice" role="status">`)
			hw.text(m.Notice)
			hw.raw(`</p>`)
		}
		hw.raw(`<article class="card"><a class="back"`)
		hw.href(m.BackPath)
		hw.raw(`>Back to table `)
		hw.text(m.Label)
		hw.raw(`</a><h1>`)
		hw.text(m.Name)
		hw.raw(`</h1><dl>`)
		for _, f := range m.Fields {
			hw.raw(`<dt>`)
			hw.text(f.Label)
			hw.raw(`</dt><dd>`)
			switch {
			case f.HTML != "":
				hw.raw(`<div class="markdown">`)
				// HTML was sanitized by RenderMarkdown.
				hw.render(templ.Raw(f.HTML))
				hw.raw(`</div>`)
			case f.Link != "":
				hw.raw(`<a rel="noopener noreferrer" target="_blank"`)
				hw.href(f.Link)
				hw.raw(`>`)
				hw.text(f.Link)
				hw.raw(`</a>`)
			default:
				hw.text(f.Text)
			}
			hw.raw(`</dd>`)
		}
		hw.raw(`</dl><footer class="meta">`)
		hw.text("Row " + m.ID)
		if m.CreatedAt != "" {
			hw.text(" · created " + m.CreatedAt)
		}
		if m.UpdatedAt != "" {
			hw.text(" · updated " + m.UpdatedAt)
		}
		hw.raw(`</footer></article>`)
	})
}

// RowFormPage renders the add-row form. When no session is active the form
// carries a token input so submitting it can sign in first.
func RowFormPage(m vm.RowFormViewModel) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw(`<section class="form"><a class="back"`)
		hw.href(m.BackPath)
		hw.raw(`>Back to table `)
		hw.text(m.Label)
		hw.raw(`</a><h1>Add row to table `)
		hw.text(m.Label)
		hw.raw(`</h1>`)

		errorList(hw, m.Errors)

		hw.raw(`<form method="post"`)
		hw.attr("action", m.Action)
		hw.raw(`>`)
		csrfField(hw, m.Session.CSRFToken)

		for _, f := range m.Fields {
			formField(hw, f)
		}

		if m.NeedsToken {
			hw.raw(`<fieldset class="token"><legend>Sign in to save</legend>`)
			hw.raw(`<label for="token">GitHub personal access token</label>`)
			hw.raw(`<input id="token" name="token" type="password" autocomplete="off" placeholder="ghp_...">`)
			hw.raw(`</fieldset>`)
		}

		hw.raw(`<button type="submit">Save row</button></form></section>`)
	})
}

func formField(hw *htmlWriter, f vm.FormFieldViewModel) {
	hw.raw(`<div class="field"><label`)
	hw.attr("for", f.ID)
	hw.raw(`>`)
	hw.text(f.Label)
	if f.Required {
		hw.raw(` <span class="required">*</span>`)
	}
	hw.raw(`</label>`)

	switch f.Kind {
	case "textarea":
		hw.raw(`<textarea rows="5"`)
		hw.attr("id", f.ID)
		hw.attr("name", f.ID)
		if f.Required {
			hw.raw(` required`)
		}
		hw.raw(`>`)
		hw.text(f.Value)
		hw.raw(`</textarea>`)
	case "checkbox":
		hw.raw(`<input type="checkbox" value="on"`)
		hw.attr("id", f.ID)
		hw.attr("name", f.ID)
		if f.Checked {
			hw.raw(` checked`)
		}
		hw.raw(`>`)
	case "select":
		hw.raw(`<select`)
		hw.attr("id", f.ID)
		hw.attr("name", f.ID)
		if f.Multiple {
			hw.raw(` multiple`)
			hw.attr("size", strconv.Itoa(min(max(len(f.Options), 2), 6)))
			hw.raw(`>`)
		} else {
			hw.raw(`><option value=""></option>`)
		}
		for _, opt := range f.Options {
			hw.raw(`<option`)
			hw.attr("value", opt)
			if selected(f.Value, opt) {
				hw.raw(` selected`)
			}
			hw.raw(`>`)
			hw.text(opt)
			hw.raw(`</option>`)
		}
		hw.raw(`</select>`)
	default:
		hw.raw(`<input`)
		hw.attr("type", f.Kind)
		hw.attr("id", f.ID)
		hw.attr("name", f.ID)
		hw.attr("value", f.Value)
		if f.Kind == "number" {
			hw.raw(` step="any"`)
		}
		if f.Required {
			hw.raw(` required`)
		}
		hw.raw(`>`)
	}

	if f.Hint != "" {
		hw.raw(`<small>`)
		hw.text(f.Hint)
		hw.raw(`</small>`)
	}
	hw.raw(`</div>`)
}

func errorList(hw *htmlWriter, errs []string) {
	if len(errs) == 0 {
		return
	}
	hw.raw(`<ul class="errors" role="alert">`)
	for _, e := range errs {
		hw.raw(`<li>`)
		hw.text(e)
		hw.raw(`</li>`)
	}
	hw.raw(`</ul>`)
}

// LoginPage renders the token entry form.
func LoginPage(m vm.LoginViewModel) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw(`<section class="form"><h1>Sign in</h1>`)
		if m.Session.Authenticated {
			hw.raw(`<p>Signed in as `)
			hw.text(m.Session.User)
			hw.raw(`. Entering a new token replaces the current session.</p>`)
		}
		if m.Error != "" {
			errorList(hw, []string{m.Error})
		}
		hw.raw(`<form method="post" action="/login">`)
		csrfField(hw, m.Session.CSRFToken)
		hw.raw(`<input type="hidden" name="next"`)
		hw.attr("value", m.Next)
		hw.raw(`><div class="field"><label for="token">GitHub personal access token</label>`)
		hw.raw(`<input id="token" name="token" type="password" autocomplete="off" required placeholder="ghp_..."></div>`)
		hw.raw(`<button type="submit">Sign in</button></form></section>`)
	})
}

// ErrorPage renders a short failure message.
func ErrorPage(message string) templ.Component {
	return component(func(hw *htmlWriter) {
		hw.raw(`<section class="error"><h1>Something went wrong</h1><p>`)
		hw.text(message)
		hw.raw(`</p><a href="/">Back to tables</a></section>`)
	})
}
