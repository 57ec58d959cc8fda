package email

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"
)

// WelcomeSubject is the subject line of the promotion email.
const WelcomeSubject = "Welcome to the family"

// mdRenderer escapes raw HTML in its input (WithUnsafe is not set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var welcomeTemplate = template.Must(template.New("welcome").Parse(`# Welcome, {{.Name}}!

You have joined us on **{{.Days}}** Sundays, and we are delighted to count you as a member.
Nothing changes at the door: keep checking in the way you always have.

See you on Sunday.
`))

// WelcomeData fills the welcome template.
type WelcomeData struct {
	Name string
	Days int
}

// RenderWelcome renders the promotion email body to HTML.
// PRE: data.Name is non-empty
// POST: Returns sanitized HTML; markdown control characters in the name are escaped
func RenderWelcome(data WelcomeData) (string, error) {
	data.Name = escapeMarkdown(data.Name)

	var md bytes.Buffer
	if err := welcomeTemplate.Execute(&md, data); err != nil {
		return "", fmt.Errorf("render welcome markdown: %w", err)
	}
	var html bytes.Buffer
	if err := mdRenderer.Convert(md.Bytes(), &html); err != nil {
		return "", fmt.Errorf("render welcome html: %w", err)
	}
	return html.String(), nil
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`, "`", "\\`", "#", `\#`, "<", `\<`,
)

func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
