// Package intent classifies raw utterances into the assistant's fixed set of
// intents using an ordered, first-match rule list.
package intent

import (
	"regexp"
	"strings"
)

// Kind identifies an intent.
type Kind string

const (
	KindFeedback     Kind = "feedback"
	KindFAQ          Kind = "faq"
	KindSetName      Kind = "set_name"
	KindSetLocation  Kind = "set_location"
	KindReminders    Kind = "reminders"
	KindSystem       Kind = "system"
	KindOpenApp      Kind = "open_app"
	KindPlayMusic    Kind = "play_music"
	KindAppointment  Kind = "appointment"
	KindWeather      Kind = "weather"
	KindSelfIdentity Kind = "self_identity"
	KindKnowledge    Kind = "knowledge"
	KindDynamic      Kind = "dynamic"
)

// FeedbackPrefix marks an utterance as feedback on the previous answer.
const FeedbackPrefix = "feedback:"

// Intent is the classification of one utterance.
type Intent struct {
	Kind Kind

	// Category is the matched FAQ category for KindFAQ.
	Category string

	// Payload is the free text captured by the rule: the name or location for
	// profile commands, the text after "feedback:" for feedback. It is empty
	// when the rule matched but nothing could be captured.
	Payload string
}

var (
	setNamePattern     = regexp.MustCompile(`(?i)(?:set my name as|my name is)(?:\s+(.*))?`)
	setLocationPattern = regexp.MustCompile(`(?i)(?:set my location as|my location is)(?:\s+(.*))?`)
	remindersPattern   = regexp.MustCompile(`(?i)(?:remind me about appointments|what are my upcoming appointments)`)

	systemKeywords       = []string{"shut down", "shutdown", "turn off", "restart", "reboot", "brightness", "mute", "unmute"}
	appointmentPhrases   = []string{"set an appointment", "schedule a meeting"}
	selfIdentityKeywords = []string{"who are you", "what are you", "tell me about yourself", "your name", "who created you", "who made you"}
	questionMarkers      = []string{"how ", "what ", "when", "who", "search", "?"}
)

// Classifier applies the ordered intent rules. The order is significant:
// the first matching rule wins.
//
//  1. FAQ pattern table
//  2. profile commands (name, then location)
//  3. appointment reminders
//  4. system-control keywords
//  5. "open"
//  6. "play"
//  7. appointment creation
//  8. "weather"
//  9. self-identity keywords
//  10. knowledge question if an interrogative marker is present, else dynamic
//
// A "feedback:" prefix is checked before all of them.
type Classifier struct {
	faq *FAQ
}

// NewClassifier creates a Classifier that consults faq in step 1.
func NewClassifier(faq *FAQ) *Classifier {
	return &Classifier{faq: faq}
}

// Classify returns the intent of utterance.
func (c *Classifier) Classify(utterance string) Intent {
	text := strings.TrimSpace(utterance)
	lower := strings.ToLower(text)

	if strings.HasPrefix(lower, FeedbackPrefix) {
		return Intent{Kind: KindFeedback, Payload: strings.TrimSpace(text[len(FeedbackPrefix):])}
	}

	if c.faq != nil {
		if cat, ok := c.faq.Match(text); ok {
			return Intent{Kind: KindFAQ, Category: cat.Name}
		}
	}

	if m := setNamePattern.FindStringSubmatch(text); m != nil {
		return Intent{Kind: KindSetName, Payload: strings.TrimSpace(m[1])}
	}
	if m := setLocationPattern.FindStringSubmatch(text); m != nil {
		return Intent{Kind: KindSetLocation, Payload: strings.TrimSpace(m[1])}
	}

	switch {
	case remindersPattern.MatchString(text):
		return Intent{Kind: KindReminders}
	case containsAny(lower, systemKeywords):
		return Intent{Kind: KindSystem}
	case strings.Contains(lower, "open"):
		return Intent{Kind: KindOpenApp}
	case strings.Contains(lower, "play"):
		return Intent{Kind: KindPlayMusic}
	case containsAny(lower, appointmentPhrases):
		return Intent{Kind: KindAppointment}
	case strings.Contains(lower, "weather"):
		return Intent{Kind: KindWeather}
	case containsAny(lower, selfIdentityKeywords):
		return Intent{Kind: KindSelfIdentity}
	case containsAny(lower, questionMarkers):
		return Intent{Kind: KindKnowledge}
	default:
		return Intent{Kind: KindDynamic}
	}
}

// IsQuestion reports whether text carries an interrogative marker.
func IsQuestion(text string) bool {
	return containsAny(strings.ToLower(text), questionMarkers)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
