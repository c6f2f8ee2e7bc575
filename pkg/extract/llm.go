package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/oceanbase/trinity-go/pkg/llm"
)

const defaultEntityPrompt = `You are a named-entity recognizer for a voice assistant.
Extract entities from the user's command and answer with JSON only, using exactly these keys:
{"persons": [], "locations": [], "organizations": [], "products": [], "works_of_art": [], "datetimes": [], "noun_phrases": []}

Rules:
- locations are cities, countries and other geopolitical entities
- organizations and products include application and brand names
- works_of_art are titles of songs, films and books
- datetimes keep the user's wording ("tomorrow", "10:30 am")
- noun_phrases are the base noun chunks of the sentence
- keep the input language and casing; use empty lists when nothing applies`

// LLMExtractor extracts entities by prompting a text-generation provider for JSON.
//
// When the provider fails or answers with invalid JSON and a fallback is set,
// the fallback's result is returned instead.
//
// Example usage:
//
//	extractor := extract.NewLLMExtractor(provider, extract.NewRuleExtractor(), logger)
//	ents, _ := extractor.Extract(ctx, "set an appointment with John at 10:30")
type LLMExtractor struct {
	llm      llm.Provider
	fallback Extractor
	prompt   string
	logger   zerolog.Logger
}

// NewLLMExtractor creates an LLM-backed extractor. fallback may be nil.
func NewLLMExtractor(provider llm.Provider, fallback Extractor, logger zerolog.Logger) *LLMExtractor {
	return &LLMExtractor{
		llm:      provider,
		fallback: fallback,
		prompt:   defaultEntityPrompt,
		logger:   logger,
	}
}

// WithPrompt replaces the system prompt.
func (e *LLMExtractor) WithPrompt(prompt string) *LLMExtractor {
	if prompt != "" {
		e.prompt = prompt
	}
	return e
}

// Extract implements Extractor.
func (e *LLMExtractor) Extract(ctx context.Context, text string) (*Entities, error) {
	ents, err := e.extract(ctx, text)
	if err == nil {
		return ents, nil
	}
	if e.fallback == nil || ctx.Err() != nil {
		return nil, err
	}
	e.logger.Warn().Err(err).Msg("llm entity extraction failed, using fallback")
	return e.fallback.Extract(ctx, text)
}

func (e *LLMExtractor) extract(ctx context.Context, text string) (*Entities, error) {
	response, err := e.llm.GenerateWithMessages(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: e.prompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Input:\n%s", text)},
	}, llm.WithTemperature(0), llm.WithMaxTokens(400))
	if err != nil {
		return nil, fmt.Errorf("failed to extract entities: %w", err)
	}

	ents, err := parseEntities(response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entities response: %w", err)
	}
	return ents, nil
}

// parseEntities decodes the model's JSON answer, tolerating markdown fences.
func parseEntities(response string) (*Entities, error) {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")
	response = strings.TrimSpace(response)
	if i := strings.Index(response, "{"); i > 0 {
		response = response[i:]
	}
	if i := strings.LastIndex(response, "}"); i >= 0 && i < len(response)-1 {
		response = response[:i+1]
	}

	var ents Entities
	if err := json.Unmarshal([]byte(response), &ents); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	return &ents, nil
}
