package ai

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/benvon/tubecompanion/internal/models"
)

const (
	// ChatTranscriptCharLimit bounds transcript text in chat prompts
	ChatTranscriptCharLimit = 20000
	// SummaryTranscriptWordLimit bounds transcript text in summary prompts
	SummaryTranscriptWordLimit = 4000
	// TruncationMarker is appended to truncated text
	TruncationMarker = "..."
	// QuickStartQuestionCount is the number of opening questions requested
	QuickStartQuestionCount = 3
)

// VideoContext is the grounding material for a chat turn
type VideoContext struct {
	Title       string
	Description string
	Transcript  string
}

// HasGrounding reports whether the context is worth a system prompt
func (v VideoContext) HasGrounding() bool {
	return strings.TrimSpace(v.Title) != "" || strings.TrimSpace(v.Transcript) != ""
}

const roleFraming = "You are a helpful assistant that answers questions about a YouTube video using the context below."

func chatRules(language models.Language) string {
	return strings.Join([]string{
		"Rules:",
		"- Format every answer in Markdown.",
		fmt.Sprintf("- Reply in the language the user writes in. If it is unclear, reply in %s.", language.DisplayName()),
		"- If the answer is not in the video context, say \"I don't know\" instead of making something up.",
		"- Wrap the key answer in a fenced code block.",
		"- End every answer with 3-5 numbered follow-up questions the user could ask next.",
	}, "\n")
}

// BuildSystemPrompt assembles the chat system message. Empty fields are omitted;
// the transcript is cut to ChatTranscriptCharLimit characters.
func BuildSystemPrompt(language models.Language, video VideoContext) string {
	return BuildSystemPromptWithLimit(language, video, ChatTranscriptCharLimit)
}

// BuildSystemPromptWithLimit is BuildSystemPrompt with a configurable transcript budget
func BuildSystemPromptWithLimit(language models.Language, video VideoContext, transcriptChars int) string {
	if !language.IsValid() {
		language = models.LanguageEnglish
	}

	parts := []string{roleFraming}
	if title := strings.TrimSpace(video.Title); title != "" {
		parts = append(parts, "Video Title: "+title)
	}
	if desc := strings.TrimSpace(video.Description); desc != "" {
		parts = append(parts, "Video Description: "+desc)
	}
	if transcript := strings.TrimSpace(video.Transcript); transcript != "" {
		parts = append(parts, "Video Transcript (partial): "+TruncateChars(transcript, transcriptChars))
	}
	parts = append(parts, chatRules(language))
	return strings.Join(parts, "\n\n")
}

// BuildSummaryMessages returns the messages for a video summary request
func BuildSummaryMessages(language models.Language, video VideoContext, wordLimit int) []ChatMessage {
	if wordLimit <= 0 {
		wordLimit = SummaryTranscriptWordLimit
	}
	system := fmt.Sprintf(
		"You summarize YouTube videos. Write a concise Markdown summary with a one paragraph overview "+
			"followed by the key points as a bulleted list. Write in %s.", language.DisplayName())

	var user strings.Builder
	if video.Title != "" {
		user.WriteString("Video Title: " + video.Title + "\n")
	}
	if video.Description != "" {
		user.WriteString("Video Description: " + video.Description + "\n")
	}
	user.WriteString("Transcript: " + TruncateWords(video.Transcript, wordLimit))

	return []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user.String()},
	}
}

// BuildQuickStartMessages returns the messages for generating opening questions
func BuildQuickStartMessages(language models.Language, video VideoContext, wordLimit int) []ChatMessage {
	if wordLimit <= 0 {
		wordLimit = SummaryTranscriptWordLimit
	}
	system := fmt.Sprintf(
		"You suggest questions a viewer could ask about a YouTube video. Reply with exactly %d questions, "+
			"one per line, numbered \"1.\", \"2.\" and so on, with no other text. Write in %s.",
		QuickStartQuestionCount, language.DisplayName())

	user := "Video Title: " + video.Title + "\nTranscript: " + TruncateWords(video.Transcript, wordLimit)
	return []ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	}
}

var listPrefix = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s*`)

// ParseQuestions extracts list items from a model reply, keeping at most limit
func ParseQuestions(text string, limit int) []string {
	questions := []string{}
	for _, line := range strings.Split(text, "\n") {
		q := strings.TrimSpace(listPrefix.ReplaceAllString(line, ""))
		q = strings.Trim(q, "*_` ")
		if q == "" {
			continue
		}
		questions = append(questions, q)
		if limit > 0 && len(questions) == limit {
			break
		}
	}
	return questions
}

// TruncateChars cuts s to at most limit characters and appends TruncationMarker when cut
func TruncateChars(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + TruncationMarker
}

// TruncateWords keeps the first limit whitespace separated words and appends TruncationMarker when cut
func TruncateWords(s string, limit int) string {
	words := strings.Fields(s)
	if limit <= 0 || len(words) <= limit {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:limit], " ") + TruncationMarker
}
