package pages

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

type ErrorPageProps struct {
	Code     int
	Title    string
	Message  string
	BackLink string
	BackText string
}

func ErrorPage(props ErrorPageProps) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		pw := &writer{w: w}
		pw.raw(`<section class="error"><p class="error-code">`)
		pw.text(strconv.Itoa(props.Code))
		pw.raw(`</p><h1>`)
		pw.text(props.Title)
		pw.raw(`</h1><p>`)
		pw.text(props.Message)
		pw.raw(`</p>`)

		back, text := props.BackLink, props.BackText
		if back == "" {
			back, text = "/", "Back to home"
		}
		pw.raw(`<a class="button" href="`)
		pw.text(string(templ.URL(back)))
		pw.raw(`">`)
		pw.text(text)
		pw.raw(`</a></section>`)
		return pw.err
	})
	return layout(props.Title, body)
}
