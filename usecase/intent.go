package usecase

import (
	"strings"
)

// Intent is what the user wants the agent to do with an utterance
type Intent string

const (
	IntentLog      Intent = "log"
	IntentCalendar Intent = "calendar"
	IntentChat     Intent = "chat"
)

// logPhrases lead a log request. Longer phrases come first so that
// "note this down" is stripped whole rather than as "note this".
var logPhrases = []string{
	"log my note",
	"note this down",
	"remember this",
	"record this",
	"note this",
	"journal this",
}

var logKeywords = append([]string{"save this", "jot this down", "add to my journal", "write this down", "make a note"}, logPhrases...)

var calendarKeywords = []string{
	"calendar",
	"schedule",
	"meeting",
	"appointment",
	"am i free",
	"am i busy",
}

// IntentRouter classifies utterances by keyword
type IntentRouter struct{}

// NewIntentRouter creates a keyword intent router
func NewIntentRouter() *IntentRouter {
	return &IntentRouter{}
}

// Detect returns the intent of text, defaulting to chat
func (r *IntentRouter) Detect(text string) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return IntentChat
	}

	for _, keyword := range logKeywords {
		if strings.Contains(lower, keyword) {
			return IntentLog
		}
	}
	for _, keyword := range calendarKeywords {
		if strings.Contains(lower, keyword) {
			return IntentCalendar
		}
	}
	return IntentChat
}

// ExtractEntry strips a leading log phrase and an optional colon from text
func ExtractEntry(text string) string {
	content := strings.TrimSpace(text)
	lower := strings.ToLower(content)
	for _, phrase := range logPhrases {
		if strings.HasPrefix(lower, phrase) {
			content = strings.TrimSpace(content[len(phrase):])
			content = strings.TrimSpace(strings.TrimPrefix(content, ":"))
			break
		}
	}
	return content
}
