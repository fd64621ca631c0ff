package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdown 使用 Glamour 渲染 markdown 文本
// RenderMarkdown renders markdown text using Glamour
func RenderMarkdown(content string, width int) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	if width <= 0 {
		width = 80
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content
	}

	return strings.TrimRight(rendered, "\n")
}
