// Package format escapes outgoing text for the Bot API parse modes.
package format

import (
	"fmt"
	"regexp"
	"strings"

	tele "gopkg.in/telebot.v4"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

var (
	mdV1Re     = regexp.MustCompile("[_*`\\[]")
	mdV2Re     = regexp.MustCompile(`[_*\[\]()~` + "`" + `>#+\-=|{}.!\\]`)
	mdV2CodeRe = regexp.MustCompile("[`\\\\]")
	mdV2LinkRe = regexp.MustCompile(`[)\\]`)
)

func backslash(s string) string { return `\` + s }

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
// For V2, entityType "pre"/"code" and "text_link" select the narrower escape sets those entities need.
func EscapeMarkdown(text string, version int, entityType string) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1Re.ReplaceAllStringFunc(text, backslash), nil
	case MarkdownV2:
		switch entityType {
		case "pre", "code":
			return mdV2CodeRe.ReplaceAllStringFunc(text, backslash), nil
		case "text_link":
			return mdV2LinkRe.ReplaceAllStringFunc(text, backslash), nil
		}
		return mdV2Re.ReplaceAllStringFunc(text, backslash), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

var htmlReplacer = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeHTML escapes the three characters the Bot API HTML mode treats as markup.
func EscapeHTML(text string) string {
	return htmlReplacer.Replace(text)
}

// ForParseMode escapes text so it renders literally under mode.
func ForParseMode(text string, mode tele.ParseMode) (string, error) {
	switch mode {
	case tele.ModeHTML:
		return EscapeHTML(text), nil
	case tele.ModeMarkdownV2:
		return EscapeMarkdown(text, MarkdownV2, "")
	case tele.ModeMarkdown:
		return EscapeMarkdown(text, MarkdownV1, "")
	case tele.ModeDefault:
		return text, nil
	}
	return "", fmt.Errorf("unsupported parse mode: %q", mode)
}
