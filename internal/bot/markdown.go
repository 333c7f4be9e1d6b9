// ABOUTME: Renders model Markdown into Telegram-flavored HTML
// ABOUTME: Also splits long replies at Telegram's message length cap

package bot

import (
	"bytes"
	stdhtml "html"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// maxMessageLength is Telegram's hard cap on message text.
const maxMessageLength = 4096

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Strikethrough),
)

var (
	headingOpenRe  = regexp.MustCompile(`<h[1-6][^>]*>`)
	headingCloseRe = regexp.MustCompile(`</h[1-6]>`)
	// Block and table tags Telegram rejects outright.
	stripTagRe = regexp.MustCompile(`</?(?:p|ul|ol|hr|table|thead|tbody|tr|th|td|img|input)[^>]*/?>`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

var tagReplacer = strings.NewReplacer(
	"<strong>", "<b>", "</strong>", "</b>",
	"<em>", "<i>", "</em>", "</i>",
	"<del>", "<s>", "</del>", "</s>",
	"</p>", "\n",
	"<li>", "• ", "</li>", "",
	"<br>", "\n", "<br/>", "\n", "<br />", "\n",
)

// RenderHTML converts Markdown to the HTML subset Telegram accepts:
// b, i, s, u, code, pre, a and blockquote. Unsupported block structure
// is flattened into plain text with newlines. If conversion fails the
// input is returned escaped, so the reply always goes out.
func RenderHTML(md string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return stdhtml.EscapeString(md)
	}
	return sanitizeHTML(buf.String())
}

func sanitizeHTML(s string) string {
	s = headingOpenRe.ReplaceAllString(s, "<b>")
	s = headingCloseRe.ReplaceAllString(s, "</b>\n")
	s = tagReplacer.Replace(s)
	s = stripTagRe.ReplaceAllString(s, "")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// SplitMessage chops text into chunks no longer than limit, preferring
// newline boundaries and falling back to spaces before cutting hard.
func SplitMessage(text string, limit int) []string {
	if limit <= 0 {
		limit = maxMessageLength
	}

	var chunks []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut < limit/2 {
			cut = strings.LastIndex(text[:limit], " ")
		}
		if cut < limit/2 {
			cut = limit
		}
		chunk := strings.TrimSpace(text[:cut])
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		text = strings.TrimSpace(text[cut:])
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
