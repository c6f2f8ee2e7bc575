// Package extract pulls structured entities (people, places, times, noun
// phrases) out of free-form utterances.
package extract

import (
	"context"
	"strings"

	"github.com/samber/lo"
)

// Extractor extracts entities from text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*Entities, error)
}

// Entities holds the entities found in one utterance, in order of appearance.
type Entities struct {
	Persons       []string `json:"persons"`
	Locations     []string `json:"locations"`
	Organizations []string `json:"organizations"`
	Products      []string `json:"products"`
	WorksOfArt    []string `json:"works_of_art"`
	Datetimes     []string `json:"datetimes"`
	NounPhrases   []string `json:"noun_phrases"`
}

// FirstPerson returns the first person mentioned, or "".
func (e *Entities) FirstPerson() string { return first(e.Persons) }

// FirstLocation returns the first geopolitical entity, or "".
func (e *Entities) FirstLocation() string { return first(e.Locations) }

// Named returns every named entity followed by every noun phrase, without
// duplicates and in order of first appearance.
func (e *Entities) Named() []string {
	if e == nil {
		return nil
	}
	var all []string
	for _, group := range [][]string{e.Persons, e.Locations, e.Organizations, e.Products, e.WorksOfArt, e.Datetimes, e.NounPhrases} {
		all = append(all, group...)
	}
	all = lo.Filter(all, func(s string, _ int) bool { return strings.TrimSpace(s) != "" })
	return lo.Uniq(all)
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
