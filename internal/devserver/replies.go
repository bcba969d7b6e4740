package devserver

import (
	"fmt"
	"strings"
)

// ReplyFunc produces the full assistant reply for a user message
type ReplyFunc func(message string) string

var cannedReplies = []struct {
	keywords []string
	reply    string
}{
	{
		keywords: []string{"week", "plan"},
		reply: "Here is a draft for your week:\n\n" +
			"| Day | Focus |\n|---|---|\n" +
			"| Monday | Deep work, 09:00-12:00 |\n" +
			"| Wednesday | Meetings batch |\n" +
			"| Friday | Review and planning |\n\n" +
			"Shall I block these slots?",
	},
	{
		keywords: []string{"gym", "workout", "run"},
		reply:    "Training logged. I'd suggest **three sessions**: Monday, Wednesday and Saturday mornings.",
	},
	{
		keywords: []string{"meeting", "call"},
		reply:    "Noted. Your next free slot is tomorrow at 14:00. Want me to reserve it?",
	},
	{
		keywords: []string{"attached:"},
		reply:    "File received. I'll factor it into your schedule.",
	},
}

// DefaultReply answers with a canned scheduling reply chosen by keyword
func DefaultReply(message string) string {
	lower := strings.ToLower(message)
	for _, c := range cannedReplies {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.reply
			}
		}
	}
	return fmt.Sprintf("Directive received: %q. Ultron has added it to the queue.", message)
}

// fragments splits reply into chunks of a few words each. Concatenating the
// chunks yields reply unchanged.
func fragments(reply string, wordsPerChunk int) []string {
	if wordsPerChunk < 1 {
		wordsPerChunk = 1
	}
	words := strings.SplitAfter(reply, " ")

	var out []string
	for i := 0; i < len(words); i += wordsPerChunk {
		end := min(i+wordsPerChunk, len(words))
		chunk := strings.Join(words[i:end], "")
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

// truncateTitle keeps the first n characters of a message
func truncateTitle(message string, n int) string {
	r := []rune(message)
	if len(r) <= n {
		return message
	}
	return string(r[:n])
}
