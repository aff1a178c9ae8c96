package web

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/QRBulk/internal/core"
	"github.com/JonMunkholm/QRBulk/internal/render"
)

// pageData is what the index page shows about the running instance.
type pageData struct {
	Formats       []render.Format
	MaxFileSize   int64
	MaxExportSize int
	PreviewSize   int
	Templates     bool
}

// indexPage is the landing page. The interactive editor talks to /api.
func indexPage(d pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		formats := make([]string, len(d.Formats))
		for i, f := range d.Formats {
			formats[i] = strings.ToUpper(string(f))
		}

		templates := "disabled"
		if d.Templates {
			templates = "enabled"
		}

		_, err := fmt.Fprintf(w, `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>QR Bulk</title>
</head>
<body>
<main>
<h1>QR Bulk</h1>
<p>Upload a CSV or spreadsheet, map the link column and download one QR code per row as a zip archive.</p>
<dl>
<dt>Formats</dt><dd>%s</dd>
<dt>Max file size</dt><dd>%d MB</dd>
<dt>Max export size</dt><dd>%d px</dd>
<dt>Preview canvas</dt><dd>%d px</dd>
<dt>Design templates</dt><dd>%s</dd>
</dl>
</main>
</body>
</html>
`,
			templ.EscapeString(strings.Join(formats, ", ")),
			d.MaxFileSize>>20,
			d.MaxExportSize,
			d.PreviewSize,
			templates,
		)
		return err
	})
}

// errorAlert is the HTMX error fragment.
func errorAlert(msg core.UserMessage, requestID string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="alert alert-error" role="alert"><p>%s</p><p>%s</p><small>Code: %s`,
			templ.EscapeString(msg.Message),
			templ.EscapeString(msg.Action),
			templ.EscapeString(msg.Code),
		)
		if err != nil {
			return err
		}
		if requestID != "" {
			if _, err := fmt.Fprintf(w, ` · Ref: %s`, templ.EscapeString(requestID)); err != nil {
				return err
			}
		}
		_, err = io.WriteString(w, "</small></div>")
		return err
	})
}
