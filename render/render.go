// Package render turns presenter views into the HTML shown in the hover
// surface. Notes are markdown; raw HTML inside them is never passed through.
package render

import (
	"bytes"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/rikymarche-ctrl/anilist-extension-sub000/presenter"
)

const (
	msgLoading     = "Loading notes…"
	msgEmpty       = "No notes."
	msgRateLimited = "AniList rate limit reached, try again in a minute."
	msgError       = "Could not load notes."
)

// Renderer converts views to HTML fragments.
type Renderer struct {
	md goldmark.Markdown
}

// New returns a Renderer with GitHub-flavoured markdown and hard line
// breaks, matching how AniList displays list notes.
func New() *Renderer {
	return &Renderer{md: goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(html.WithHardWraps()),
	)}
}

// HTML renders v. A hidden view renders as "".
func (r *Renderer) HTML(v presenter.View) (string, error) {
	if !v.Visible {
		return "", nil
	}

	classes := []string{"notes"}
	if v.Stale {
		classes = append(classes, "notes-stale")
	}
	if v.Pinned {
		classes = append(classes, "notes-pinned")
	}

	var b strings.Builder
	b.WriteString(`<div class="` + strings.Join(classes, " ") + `">`)

	switch {
	case v.HasContent:
		var buf bytes.Buffer
		if err := r.md.Convert([]byte(v.Content), &buf); err != nil {
			return "", errors.Wrap(err, "render: markdown")
		}
		b.WriteString(`<div class="notes-body">`)
		b.Write(bytes.TrimSpace(buf.Bytes()))
		b.WriteString(`</div>`)
	case v.Loading:
		b.WriteString(status("loading", msgLoading))
	case v.Err == nil && !v.RateLimited:
		b.WriteString(status("empty", msgEmpty))
	}

	switch {
	case v.RateLimited:
		b.WriteString(status("limited", msgRateLimited))
	case v.Err != nil:
		b.WriteString(status("error", msgError))
	}

	b.WriteString(`</div>`)
	return b.String(), nil
}

func status(kind, msg string) string {
	return `<p class="notes-` + kind + `">` + msg + `</p>`
}

// Sink adapts fn into a presenter.Renderer that receives each view with
// its HTML. Markdown failures are passed as the error.
func (r *Renderer) Sink(fn func(v presenter.View, html string, err error)) presenter.Renderer {
	return presenter.RendererFunc(func(v presenter.View) {
		h, err := r.HTML(v)
		fn(v, h, err)
	})
}
