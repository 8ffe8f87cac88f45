package parser

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// StripHTML reduces feed markup to plain text: tags removed, entities decoded, whitespace collapsed.
func StripHTML(raw string) string {
	if raw == "" {
		return ""
	}
	// Block-level closings become spaces so adjacent paragraphs do not glue together.
	spaced := strings.NewReplacer("</p>", "</p> ", "<br>", " ", "<br/>", " ", "<br />", " ", "</div>", "</div> ").Replace(raw)
	text := html.UnescapeString(strictPolicy.Sanitize(spaced))
	return strings.Join(strings.Fields(text), " ")
}
