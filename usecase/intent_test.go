package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntentRouter_Detect(t *testing.T) {
	router := NewIntentRouter()

	tests := []struct {
		text string
		want Intent
	}{
		{"Log my note: had a great day", IntentLog},
		{"note this down meeting went well", IntentLog},
		{"Remember this, call mom later", IntentLog},
		{"please journal this", IntentLog},
		{"What's on my calendar today?", IntentCalendar},
		{"Am I free this afternoon", IntentCalendar},
		{"How was my week?", IntentChat},
		{"", IntentChat},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, router.Detect(tt.text))
		})
	}
}

func TestExtractEntry(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Log my note: had a great day", "had a great day"},
		{"log my note had a great day", "had a great day"},
		{"Note this down: meeting went well", "meeting went well"},
		{"note this: buy milk", "buy milk"},
		{"Remember this call mom later", "call mom later"},
		{"Journal this : long walk", "long walk"},
		{"log my note", ""},
		{"had a great day", "had a great day"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractEntry(tt.text))
		})
	}
}
