// Package export renders a chat transcript into a standalone HTML document
// suitable for download.
package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/russross/blackfriday/v2"
)

// Entry is one transcript line handed to the renderer: who said it, their
// display name, and the plain text (display break markers already unwound).
type Entry struct {
	Role string `json:"role"`
	Name string `json:"name"`
	Text string `json:"text"`
}

const documentShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<style>
body { font-family: sans-serif; max-width: 720px; margin: 2em auto; color: #222; }
.entry { margin-bottom: 1.2em; padding: 0.6em 0.9em; border-radius: 8px; }
.entry.user { background: #eef6ff; }
.entry.ai { background: #f4f4f4; }
.entry .who { font-weight: 600; margin-bottom: 0.3em; }
h1 { font-size: 1.4em; }
</style>
</head>
<body>
<h1>%s</h1>
%s</body>
</html>
`

// Render produces the transcript document for the given subject.
// Assistant text is treated as markdown; user text is escaped verbatim.
func Render(subject string, entries []Entry) []byte {
	title := "MedLife AI Chat Transcript"
	if subject != "" {
		title += " for " + subject
	}

	var sections bytes.Buffer
	for _, entry := range entries {
		text := strings.ReplaceAll(entry.Text, "<br>", "\n")

		var rendered string
		if entry.Role == "user" {
			rendered = "<p>" + strings.ReplaceAll(html.EscapeString(text), "\n", "<br>") + "</p>"
		} else {
			rendered = string(blackfriday.Run([]byte(text)))
		}

		roleClass := "ai"
		if entry.Role == "user" {
			roleClass = "user"
		}
		fmt.Fprintf(&sections, "<div class=\"entry %s\"><div class=\"who\">%s</div>%s</div>\n",
			roleClass, html.EscapeString(entry.Name), rendered)
	}

	escapedTitle := html.EscapeString(title)
	return []byte(fmt.Sprintf(documentShell, escapedTitle, escapedTitle, sections.String()))
}
