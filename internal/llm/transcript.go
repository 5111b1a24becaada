package llm

import (
	"regexp"
	"strings"
)

// VoiceInstructions is appended to the user content when a voice note is
// attached, so the reply can be split back into transcription and answer.
const VoiceInstructions = "The customer sent a voice message (attached audio). First write an exact transcription of what they said on its own line. Then leave one blank line. Then write your reply to them."

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// SplitTranscription splits multimodal output on its first blank line.
// When no blank line exists the whole output is the reply, the first line is
// returned as a best-effort transcription, and split is false.
func SplitTranscription(output string) (transcription, reply string, split bool) {
	text := strings.TrimSpace(strings.ReplaceAll(output, "\r\n", "\n"))
	if loc := blankLine.FindStringIndex(text); loc != nil {
		before := strings.TrimSpace(text[:loc[0]])
		after := strings.TrimSpace(text[loc[1]:])
		if before != "" {
			return before, after, true
		}
	}
	first, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(first), text, false
}
