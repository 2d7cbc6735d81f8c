package slackbot

import (
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/salesbot/salesbot/internal/conversation"
	"github.com/salesbot/salesbot/internal/render"
	"github.com/slack-go/slack"
	slackutil "github.com/takara2314/slack-go-util"
)

const (
	// Slack rejects header text longer than this.
	maxHeaderRunes = 150
	// Slack allows at most ten fields per section.
	maxSectionFields = 10
)

// BuildBlocks renders a conversation reply as Block Kit. Replies without a
// payload become a single expanded section.
func BuildBlocks(reply conversation.Reply, log *slog.Logger) []slack.Block {
	if reply.Payload == nil {
		return []slack.Block{textSection(reply.Text)}
	}
	payload := reply.Payload

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, truncateRunes(payload.Header, maxHeaderRunes), true, false)),
	}

	switch payload.Kind {
	case render.KindScalar:
		blocks = append(blocks, textSection("*"+payload.Value+"*"))
		if len(payload.Fields) > 0 {
			blocks = append(blocks, fieldSections(payload.Fields)...)
		}
	default:
		for i, row := range payload.Rows {
			if i > 0 {
				blocks = append(blocks, slack.NewDividerBlock())
			}
			blocks = append(blocks, textSection(render.RowText(row)))
		}
	}

	if reply.ChartURL != "" {
		blocks = append(blocks, slack.NewImageBlock(
			reply.ChartURL,
			payload.Header,
			"",
			slack.NewTextBlockObject(slack.PlainTextType, "Chart", false, false),
		))
	}

	if reply.Summary != "" {
		insight := ConvertMarkdownToBlocks("*💡 Insight*\n"+reply.Summary, log)
		if len(insight) == 0 {
			insight = []slack.Block{textSection("*💡 Insight*\n" + reply.Summary)}
		}
		blocks = append(blocks, insight...)
	}

	if footer := footerText(reply); footer != "" {
		blocks = append(blocks, slack.NewContextBlock(
			"",
			slack.NewTextBlockObject(slack.MarkdownType, footer, false, false),
		))
	}
	return blocks
}

func footerText(reply conversation.Reply) string {
	var parts []string
	if reply.Payload != nil && reply.Payload.Footer != "" {
		parts = append(parts, "_"+reply.Payload.Footer+"_")
	}
	if reply.Translation != nil {
		source := reply.Translation.Source
		if reply.Translation.Model != "" {
			source += " (" + reply.Translation.Model + ")"
		}
		parts = append(parts, "Answered via "+source)
	}
	if reply.Duration > 0 {
		parts = append(parts, fmt.Sprintf("%dms", reply.Duration.Milliseconds()))
	}
	return strings.Join(parts, " · ")
}

func fieldSections(fields []render.Field) []slack.Block {
	var blocks []slack.Block
	for start := 0; start < len(fields); start += maxSectionFields {
		end := min(start+maxSectionFields, len(fields))
		objects := make([]*slack.TextBlockObject, 0, end-start)
		for _, field := range fields[start:end] {
			objects = append(objects, slack.NewTextBlockObject(slack.MarkdownType, "*"+field.Name+":*\n"+field.Value, false, false))
		}
		blocks = append(blocks, slack.NewSectionBlock(nil, objects, nil))
	}
	return blocks
}

func textSection(text string) *slack.SectionBlock {
	return &slack.SectionBlock{
		Type:   slack.MBTSection,
		Text:   slack.NewTextBlockObject(slack.MarkdownType, text, false, false),
		Expand: true,
	}
}

// ConvertMarkdownToBlocks converts markdown text to Slack blocks with
// expand=true on every section. It returns nil when conversion fails.
func ConvertMarkdownToBlocks(text string, log *slog.Logger) []slack.Block {
	converted, err := slackutil.ConvertMarkdownTextToBlocks(text)
	if err != nil {
		if log != nil {
			log.Debug("failed to convert markdown to blocks, using plain text", "error", err)
		}
		return nil
	}
	return SetExpandOnSectionBlocks(converted)
}

// SetExpandOnSectionBlocks sets expand=true on section blocks to prevent
// "see more" truncation. Other blocks are kept as they are.
func SetExpandOnSectionBlocks(blocks []slack.Block) []slack.Block {
	if blocks == nil {
		return nil
	}
	result := make([]slack.Block, 0, len(blocks))
	for _, block := range blocks {
		section, ok := block.(*slack.SectionBlock)
		if !ok {
			result = append(result, block)
			continue
		}
		result = append(result, &slack.SectionBlock{
			Type:      section.Type,
			Text:      section.Text,
			BlockID:   section.BlockID,
			Fields:    section.Fields,
			Accessory: section.Accessory,
			Expand:    true,
		})
	}
	return result
}

// SanitizeErrorMessage converts raw transport and API errors to user-friendly
// messages.
func SanitizeErrorMessage(errMsg string) string {
	lower := strings.ToLower(errMsg)

	if strings.Contains(errMsg, "429") || strings.Contains(lower, "rate limit") || strings.Contains(lower, "ratelimited") {
		return "I'm currently experiencing high demand. Please try again in a moment."
	}

	if strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "broken pipe") ||
		strings.Contains(errMsg, "EOF") ||
		strings.Contains(lower, "i/o timeout") {
		return "I'm having trouble connecting to the sales database. Please try again in a moment."
	}

	if strings.Contains(errMsg, "SQLSTATE") ||
		strings.Contains(errMsg, "Binder Error") ||
		strings.Contains(errMsg, "Parser Error") ||
		strings.Contains(lower, "sql rejected") {
		return "I encountered an issue processing your query. Please try rephrasing your question."
	}

	if strings.Contains(errMsg, "invalid_blocks") || strings.Contains(errMsg, "msg_too_long") {
		return "I couldn't format that answer for Slack. Please try a narrower question."
	}

	var cleanLines []string
	for _, line := range strings.Split(errMsg, "\n") {
		if strings.Contains(line, "Request-ID:") ||
			strings.Contains(line, "https://") ||
			strings.Contains(line, `"type":"error"`) {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		cleanLines = append(cleanLines, strings.TrimSpace(line))
	}
	if len(cleanLines) > 0 {
		return "Sorry, I encountered an error: " + strings.Join(cleanLines, " ")
	}
	return "Sorry, I encountered an error. Please try again."
}

func truncateRunes(value string, limit int) string {
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	runes := []rune(value)
	return string(runes[:limit-3]) + "..."
}
