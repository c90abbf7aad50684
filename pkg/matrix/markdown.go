package matrix

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"
)

// Notification bodies embed <br> line breaks, so raw HTML must pass through.
var markdown = goldmark.New(
	goldmark.WithRendererOptions(
		html.WithUnsafe(),
	),
)

// RenderMarkdown converts a markdown body to the HTML used for formatted_body.
func RenderMarkdown(body string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

// NewMarkdownMessage builds an m.text message with an HTML rendering of body.
// If rendering fails the plain body is still sent.
func NewMarkdownMessage(body string) MessageContent {
	content := MessageContent{MsgType: MsgTypeText, Body: body}
	rendered, err := RenderMarkdown(body)
	if err != nil {
		return content
	}
	content.Format = FormatHTML
	content.FormattedBody = rendered
	return content
}
