// Package views renders the HTML fragments returned to HTMX callers.
package views

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/validata/internal/core"
)

// maxRowErrors caps the row errors listed in a fragment.
const maxRowErrors = 50

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert">`)
		fmt.Fprintf(&b, `<p class="alert-message">%s</p>`, templ.EscapeString(message))
		if action != "" {
			fmt.Fprintf(&b, `<p class="alert-action">%s</p>`, templ.EscapeString(action))
		}
		fmt.Fprintf(&b, `<p class="alert-code">%s</p></div>`, templ.EscapeString(code))
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Diagnostic renders an aborted ingestion: the mapped message, the column
// sets of a schema mismatch, the offending rule, and the row errors.
func Diagnostic(d *core.Diagnostic, msg core.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<div class="diagnostic" data-kind="%s">`, templ.EscapeString(string(d.Kind)))
		fmt.Fprintf(&b, `<p class="diagnostic-message">%s</p>`, templ.EscapeString(d.Message))
		if msg.Action != "" {
			fmt.Fprintf(&b, `<p class="diagnostic-action">%s</p>`, templ.EscapeString(msg.Action))
		}

		if len(d.ExpectedColumns) > 0 || len(d.ActualColumns) > 0 {
			b.WriteString(`<dl class="diagnostic-columns">`)
			fmt.Fprintf(&b, `<dt>Expected</dt><dd>%s</dd>`, templ.EscapeString(strings.Join(d.ExpectedColumns, ", ")))
			fmt.Fprintf(&b, `<dt>Received</dt><dd>%s</dd>`, templ.EscapeString(strings.Join(d.ActualColumns, ", ")))
			b.WriteString(`</dl>`)
		}

		if d.Rule != "" {
			fmt.Fprintf(&b, `<p class="diagnostic-rule">Rule <code>%s</code>`, templ.EscapeString(d.Rule))
			if len(d.MissingParams) > 0 {
				fmt.Fprintf(&b, ` is missing <code>%s</code>`, templ.EscapeString(strings.Join(d.MissingParams, ", ")))
			}
			b.WriteString(`</p>`)
		}

		if len(d.Errors) > 0 {
			b.WriteString(`<table class="row-errors"><thead><tr><th>Row</th><th>Column</th><th>Value</th><th>Message</th></tr></thead><tbody>`)
			for i, e := range d.Errors {
				if i == maxRowErrors {
					break
				}
				fmt.Fprintf(&b, `<tr><td>%d</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
					e.Row,
					templ.EscapeString(e.Column),
					templ.EscapeString(e.Value.String()),
					templ.EscapeString(e.Message),
				)
			}
			b.WriteString(`</tbody></table>`)
			if len(d.Errors) > maxRowErrors {
				fmt.Fprintf(&b, `<p class="row-errors-more">%d more errors</p>`, len(d.Errors)-maxRowErrors)
			}
		}

		if d.ProjectDeleted {
			b.WriteString(`<p class="diagnostic-deleted">The project was deleted.</p>`)
		}
		fmt.Fprintf(&b, `<p class="alert-code">%s</p></div>`, templ.EscapeString(msg.Code))
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// IngestSummary renders a committed ingestion.
func IngestSummary(res *core.IngestResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="alert alert-success" role="status"><p>%s: %d rows inserted into <code>%s</code>.</p></div>`,
			templ.EscapeString(res.FileName), res.RowsInserted, templ.EscapeString(res.TableName))
		return err
	})
}
