package intent

import (
	"math/rand/v2"
	"strings"
	"sync"
)

// Category is one group of equivalent self-description answers.
type Category struct {
	Name      string   `json:"name" yaml:"name"`
	Patterns  []string `json:"patterns" yaml:"patterns"`
	Responses []string `json:"responses" yaml:"responses"`
}

// DefaultCategories is the built-in self-description table.
var DefaultCategories = []Category{
	{
		Name:     "intro",
		Patterns: []string{"who are you", "what are you", "what is your name"},
		Responses: []string{
			"I am Trinity - A multi-purpose virtual assistant developed by the AI Engineers team from Vaa.",
			"My name is Trinity. I am a new generation virtual assistant capable of multitasking and system control.",
		},
	},
	{
		Name:     "creator",
		Patterns: []string{"who created you", "who developed you"},
		Responses: []string{
			"I was developed by the AI research team at Vaa with the mission of supporting people in their daily work.",
			"The AI engineering team from Vietnam created me with the desire to bring the most advanced technological experience to users.",
		},
	},
	{
		Name:     "capabilities",
		Patterns: []string{"what can you do", "your function"},
		Responses: []string{
			"I can help you: Control devices, manage schedules, find information, play music, and more!",
			"My tasks include: System control, intelligent virtual assistant, work and entertainment support.",
		},
	},
	{
		Name:     "personality",
		Patterns: []string{"are you human", "do you have feelings", "are you a robot"},
		Responses: []string{
			"I am an artificial intelligence, without feelings but always trying to communicate naturally!",
			"I am an AI program designed to understand and respond like a human.",
		},
	},
}

// FAQ is a fixed pattern table answered with a uniformly random response from
// the first matching category. It is safe for concurrent use.
type FAQ struct {
	categories []Category

	mu  sync.Mutex
	rng *rand.Rand
}

// NewFAQ creates a FAQ over categories. A nil rng uses a randomly seeded source.
func NewFAQ(categories []Category, rng *rand.Rand) *FAQ {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &FAQ{categories: categories, rng: rng}
}

// NewDefaultFAQ creates a FAQ over DefaultCategories.
func NewDefaultFAQ(rng *rand.Rand) *FAQ {
	return NewFAQ(DefaultCategories, rng)
}

// Match returns the first category with a pattern contained in text,
// ignoring case.
func (f *FAQ) Match(text string) (Category, bool) {
	lower := strings.ToLower(text)
	for _, c := range f.categories {
		for _, p := range c.Patterns {
			if strings.Contains(lower, p) {
				return c, true
			}
		}
	}
	return Category{}, false
}

// Answer returns a random response of the category matching text.
func (f *FAQ) Answer(text string) (string, bool) {
	c, ok := f.Match(text)
	if !ok || len(c.Responses) == 0 {
		return "", false
	}
	return f.Pick(c.Responses), true
}

// Respond returns a random response of the named category.
func (f *FAQ) Respond(name string) (string, bool) {
	for _, c := range f.categories {
		if c.Name == name && len(c.Responses) > 0 {
			return f.Pick(c.Responses), true
		}
	}
	return "", false
}

// Pick returns a uniformly random element of choices using the FAQ's source.
func (f *FAQ) Pick(choices []string) string {
	if len(choices) == 0 {
		return ""
	}
	f.mu.Lock()
	i := f.rng.IntN(len(choices))
	f.mu.Unlock()
	return choices[i]
}
