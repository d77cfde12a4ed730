package lexicache

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// IgnoredTags contains elements whose text never appears in rendered entries.
var IgnoredTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"svg":      true,
}

// blockTags start a new line when rendered as text.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "header": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"ol": true, "ul": true, "li": true, "dl": true, "dt": true, "dd": true,
	"blockquote": true, "table": true, "tr": true, "br": true, "hr": true,
}

// PlainText renders entry HTML as terminal text. Block elements start new
// lines, list items are bulleted and runs of whitespace collapse.
func PlainText(content string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", &SourceError{Message: "failed to parse entry content", Cause: err}
	}

	var lines []string
	var line strings.Builder
	flush := func() {
		if s := strings.TrimSpace(line.String()); s != "" {
			lines = append(lines, s)
		}
		line.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			tag := strings.ToLower(n.Data)
			if IgnoredTags[tag] {
				return
			}
			if blockTags[tag] {
				flush()
				if tag == "li" {
					line.WriteString("- ")
				}
			}
		}

		if n.Type == html.TextNode {
			space := func() {
				if line.Len() > 0 && !strings.HasSuffix(line.String(), " ") {
					line.WriteByte(' ')
				}
			}
			words := strings.Fields(n.Data)
			if hasLeadingSpace(n.Data) {
				space()
			}
			if len(words) > 0 {
				line.WriteString(strings.Join(words, " "))
				if hasTrailingSpace(n.Data) {
					space()
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockTags[strings.ToLower(n.Data)] {
			flush()
		}
	}

	for _, n := range doc.Nodes {
		walk(n)
	}
	flush()

	return strings.Join(lines, "\n"), nil
}

// Preview returns the first line of the rendered entry, cut to at most max
// runes. Unparseable content yields an empty preview.
func Preview(content string, max int) string {
	text, err := PlainText(content)
	if err != nil {
		return ""
	}
	first, _, _ := strings.Cut(text, "\n")
	if max <= 0 || utf8.RuneCountInString(first) <= max {
		return first
	}
	runes := []rune(first)
	return strings.TrimSpace(string(runes[:max-1])) + "…"
}

func hasLeadingSpace(s string) bool {
	return s != "" && strings.TrimLeft(s, " \t\n\r") != s
}

func hasTrailingSpace(s string) bool {
	return s != "" && strings.TrimRight(s, " \t\n\r") != s
}
