package service

import (
	"fmt"
	"time"
)

// topicPersona is the system instruction for broadcast topic generation.
const topicPersona = "You are a warm family mascot who starts gentle conversations. " +
	"Suggest topics a family of any age can enjoy talking about."

// season buckets the month into a coarse 4-way classification.
func season(t time.Time) string {
	switch t.Month() {
	case time.March, time.April, time.May:
		return "spring"
	case time.June, time.July, time.August:
		return "summer"
	case time.September, time.October, time.November:
		return "autumn"
	default:
		return "winter"
	}
}

// timeOfDay buckets the hour into a coarse 4-way classification.
func timeOfDay(t time.Time) string {
	switch h := t.Hour(); {
	case h >= 5 && h < 11:
		return "morning"
	case h >= 11 && h < 17:
		return "daytime"
	case h >= 17 && h < 22:
		return "evening"
	default:
		return "night"
	}
}

// topicPrompt builds the season- and time-parameterized broadcast prompt.
func topicPrompt(t time.Time) string {
	return fmt.Sprintf(
		"It is a %s %s. Suggest one short, friendly question or topic a family could chat about right now. Reply with the topic only.",
		season(t), timeOfDay(t),
	)
}
