package intent_test

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/trinity-go/pkg/intent"
)

func newClassifier() *intent.Classifier {
	return intent.NewClassifier(intent.NewDefaultFAQ(rand.New(rand.NewPCG(1, 2))))
}

func TestClassify(t *testing.T) {
	c := newClassifier()

	tests := []struct {
		utterance string
		want      intent.Intent
	}{
		{"Who are you?", intent.Intent{Kind: intent.KindFAQ, Category: "intro"}},
		{"what is your name", intent.Intent{Kind: intent.KindFAQ, Category: "intro"}},
		{"who developed you", intent.Intent{Kind: intent.KindFAQ, Category: "creator"}},
		{"Are you a robot", intent.Intent{Kind: intent.KindFAQ, Category: "personality"}},
		{"my name is Alice", intent.Intent{Kind: intent.KindSetName, Payload: "Alice"}},
		{"Set my name as  Bob Smith ", intent.Intent{Kind: intent.KindSetName, Payload: "Bob Smith"}},
		{"my name is", intent.Intent{Kind: intent.KindSetName}},
		{"set my location as Hanoi", intent.Intent{Kind: intent.KindSetLocation, Payload: "Hanoi"}},
		{"my location is", intent.Intent{Kind: intent.KindSetLocation}},
		{"remind me about appointments", intent.Intent{Kind: intent.KindReminders}},
		{"What are my upcoming appointments", intent.Intent{Kind: intent.KindReminders}},
		{"turn off the computer", intent.Intent{Kind: intent.KindSystem}},
		{"increase brightness", intent.Intent{Kind: intent.KindSystem}},
		{"unmute", intent.Intent{Kind: intent.KindSystem}},
		{"open chrome", intent.Intent{Kind: intent.KindOpenApp}},
		{"open the weather app", intent.Intent{Kind: intent.KindOpenApp}},
		{"play Bohemian Rhapsody", intent.Intent{Kind: intent.KindPlayMusic}},
		{"play music", intent.Intent{Kind: intent.KindPlayMusic}},
		{"set an appointment with Bob at 10:00", intent.Intent{Kind: intent.KindAppointment}},
		{"schedule a meeting with Ann tomorrow", intent.Intent{Kind: intent.KindAppointment}},
		{"what's the weather in Paris", intent.Intent{Kind: intent.KindWeather}},
		{"tell me about yourself", intent.Intent{Kind: intent.KindSelfIdentity}},
		{"who made you", intent.Intent{Kind: intent.KindSelfIdentity}},
		{"how to make coffee", intent.Intent{Kind: intent.KindKnowledge}},
		{"who is the president of France", intent.Intent{Kind: intent.KindKnowledge}},
		{"search golang generics", intent.Intent{Kind: intent.KindKnowledge}},
		{"photosynthesis?", intent.Intent{Kind: intent.KindKnowledge}},
		{"photosynthesis", intent.Intent{Kind: intent.KindDynamic}},
		{"feedback: that is wrong", intent.Intent{Kind: intent.KindFeedback, Payload: "that is wrong"}},
		{"Feedback:", intent.Intent{Kind: intent.KindFeedback}},
	}

	for _, tt := range tests {
		t.Run(tt.utterance, func(t *testing.T) {
			got := c.Classify(tt.utterance)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Classify(%q) mismatch (-want +got):\n%s", tt.utterance, diff)
			}
		})
	}
}

func TestClassify_ProfileBeforeLaterRules(t *testing.T) {
	c := newClassifier()

	got := c.Classify("my name is Otto and open chrome")
	want := intent.Intent{Kind: intent.KindSetName, Payload: "Otto and open chrome"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestClassify_WithoutFAQ(t *testing.T) {
	c := intent.NewClassifier(nil)
	assert.Equal(t, intent.KindSelfIdentity, c.Classify("who are you").Kind)
}

func TestFAQ_Answer(t *testing.T) {
	faq := intent.NewDefaultFAQ(rand.New(rand.NewPCG(7, 7)))

	answer, ok := faq.Answer("WHO CREATED YOU")
	assert.True(t, ok)
	assert.Contains(t, intent.DefaultCategories[1].Responses, answer)

	_, ok = faq.Answer("tell me a joke")
	assert.False(t, ok)

	answer, ok = faq.Respond("capabilities")
	assert.True(t, ok)
	assert.Contains(t, intent.DefaultCategories[2].Responses, answer)

	_, ok = faq.Respond("missing")
	assert.False(t, ok)
}

func TestFAQ_PickCoversAllChoices(t *testing.T) {
	faq := intent.NewDefaultFAQ(rand.New(rand.NewPCG(3, 4)))
	choices := []string{"a", "b"}

	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		seen[faq.Pick(choices)] = true
	}
	assert.Len(t, seen, 2)
	assert.Equal(t, "", faq.Pick(nil))
}

func TestIsQuestion(t *testing.T) {
	assert.True(t, intent.IsQuestion("How tall is Everest"))
	assert.True(t, intent.IsQuestion("rust?"))
	assert.False(t, intent.IsQuestion("photosynthesis"))
}
