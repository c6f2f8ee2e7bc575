package knowledge_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/trinity-go/pkg/extract"
	"github.com/oceanbase/trinity-go/pkg/knowledge"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"What is Osmosis", "what is osmosis"},
		{"  what   is   osmosis  ", "what is osmosis"},
		{"Osmosis, what is it?", "what is osmosis, it?"},
		{"Can you tell me how to boil eggs", "how to can you tell me boil eggs"},
		{"how to what is", "how to what is"},
		{"how to make how to", "how to make"},
		{"How do I boil eggs", "how do i boil eggs"},
		{"WEATHER", "weather"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, knowledge.Normalize(tt.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"What is osmosis",
		"how to what is",
		"what is how to",
		"how what is to",
		"what whatis is is",
		"hhow to ow to",
		"  Mixed\tCase \n Input ",
		"tell me about rust",
		"what is what is what is",
	}
	for _, in := range inputs {
		once := knowledge.Normalize(in)
		assert.Equal(t, once, knowledge.Normalize(once), "input %q", in)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   float64
		accept bool
	}{
		{"empty", "", 0.5, false},
		{"short", "Osmosis is diffusion.", 0.5, false},
		{"exactly fifty", strings.Repeat("a", 50), 0.5, false},
		{"fifty one", strings.Repeat("a", 51), 0.8, true},
		{"multibyte counts runes", strings.Repeat("é", 50), 0.5, false},
		{"eighty", strings.Repeat("x", 80), 0.8, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, knowledge.Score(tt.answer))
			assert.Equal(t, tt.accept, knowledge.Accept(tt.answer))
		})
	}
}

func TestRefine(t *testing.T) {
	ents := &extract.Entities{Locations: []string{"Paris"}, NounPhrases: []string{"capital", "Paris"}}
	assert.Equal(t, "what is the capital of Paris Paris capital", knowledge.Refine("what is the capital of Paris", ents))
	assert.Equal(t, "plain", knowledge.Refine(" plain ", nil))
}
