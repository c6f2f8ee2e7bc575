package knowledge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanbase/trinity-go/pkg/extract"
	"github.com/oceanbase/trinity-go/pkg/metrics"
	"github.com/oceanbase/trinity-go/pkg/search"
	"github.com/oceanbase/trinity-go/pkg/storage"
)

// NoResultsContext stands in for the evidence when search yields nothing.
const NoResultsContext = "No relevant search results found."

// Clarification reasons.
const (
	ReasonLowQuality   = "low_quality"
	ReasonUnknownTopic = "unknown_topic"
)

// Reward deltas reported by the cascade.
const (
	DeltaFirstPass        = 2
	DeltaRetry            = 1
	DeltaFeedbackSupplied = 5
	DeltaFeedbackDeclined = -5
)

// Stage names the cascade step that produced a Resolution.
type Stage string

const (
	StageFirstPass Stage = "first_pass"
	StageRetry     Stage = "retry"
	StageClarify   Stage = "clarify"
	StageFeedback  Stage = "feedback"
)

// ErrEmptyQuery is returned for queries that normalize to nothing.
var ErrEmptyQuery = errors.New("empty query")

// Generator synthesizes an answer from an evidence context.
type Generator interface {
	Answer(ctx context.Context, contextText string) (string, error)
}

// Clarification describes a resolution suspended until the caller supplies text.
type Clarification struct {
	Topic       string `json:"topic"`
	Query       string `json:"query"`
	Reason      string `json:"reason"`
	FirstAnswer string `json:"first_answer,omitempty"`
}

// Resolution is the outcome of one cascade run or resumption.
type Resolution struct {
	Query     string  `json:"query"`
	Topic     string  `json:"topic"`
	Answer    string  `json:"answer"`
	Context   string  `json:"-"`
	Stage     Stage   `json:"stage"`
	Score     float64 `json:"score"`
	FromCache bool    `json:"from_cache"`

	// Delta is the reward the caller should apply. The resolver never
	// touches the reward store.
	Delta int `json:"delta"`

	// NeedsClarification is set when the caller must resume through Feedback.
	NeedsClarification *Clarification `json:"needs_clarification,omitempty"`
}

// Config configures a Resolver.
type Config struct {
	Store     storage.KnowledgeStore
	Generator Generator

	// Searcher may be nil, in which case every search yields no results.
	Searcher search.Searcher

	// Extractor enriches search queries. Optional.
	Extractor extract.Extractor

	SearchTimeout   time.Duration
	GenerateTimeout time.Duration
	ExtractTimeout  time.Duration

	// FirstPassResults and WidenedResults default to 5 and 10.
	FirstPassResults int
	WidenedResults   int

	Logger zerolog.Logger
}

// Resolver runs the knowledge resolution cascade.
//
// Resolve proceeds cache → search → generate → quality gate → widened retry,
// and suspends with a Clarification when both attempts fail the gate. Writes
// to one topic are serialized, so concurrent resolutions store a single entry.
type Resolver struct {
	store     storage.KnowledgeStore
	generator Generator
	searcher  search.Searcher
	extractor extract.Extractor

	searchTimeout   time.Duration
	generateTimeout time.Duration
	extractTimeout  time.Duration
	firstPass       int
	widened         int

	locks  *keyedMutex
	logger zerolog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(cfg Config) (*Resolver, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("knowledge: store is required")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("knowledge: generator is required")
	}
	r := &Resolver{
		store:           cfg.Store,
		generator:       cfg.Generator,
		searcher:        cfg.Searcher,
		extractor:       cfg.Extractor,
		searchTimeout:   orDefault(cfg.SearchTimeout, 10*time.Second),
		generateTimeout: orDefault(cfg.GenerateTimeout, 60*time.Second),
		extractTimeout:  orDefault(cfg.ExtractTimeout, 5*time.Second),
		firstPass:       cfg.FirstPassResults,
		widened:         cfg.WidenedResults,
		locks:           newKeyedMutex(),
		logger:          cfg.Logger,
	}
	if r.firstPass <= 0 {
		r.firstPass = 5
	}
	if r.widened <= 0 {
		r.widened = 10
	}
	return r, nil
}

// Resolve answers query through the cascade.
//
// Only storage faults are returned as errors. Search and generation failures
// feed the fallback stages instead.
func (r *Resolver) Resolve(ctx context.Context, query string) (*Resolution, error) {
	topic := Normalize(query)
	if topic == "" {
		return nil, ErrEmptyQuery
	}

	cached, hit, err := r.store.GetLearned(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("resolve: %w", err)
	}

	var refined string
	refinedQuery := func() string {
		if refined == "" {
			refined = Refine(query, r.entities(ctx, query))
		}
		return refined
	}

	evidence := cached
	if hit {
		metrics.CascadeStage.WithLabelValues(metrics.StageCacheHit).Inc()
	} else {
		metrics.CascadeStage.WithLabelValues(metrics.StageSearch).Inc()
		evidence = r.search(ctx, refinedQuery(), r.firstPass)
	}

	answer := r.generate(ctx, evidence)
	res := &Resolution{Query: query, Topic: topic, Answer: answer, Context: evidence, FromCache: hit, Score: Score(answer)}
	if res.Score >= Threshold {
		if err := r.persistIfAbsent(ctx, hit, topic, evidence); err != nil {
			return nil, err
		}
		metrics.CascadeStage.WithLabelValues(metrics.StageAccepted).Inc()
		res.Stage = StageFirstPass
		res.Delta = DeltaFirstPass
		return res, nil
	}

	r.logger.Debug().Str("topic", topic).Msg("first answer below quality threshold, widening search")
	metrics.CascadeStage.WithLabelValues(metrics.StageRetry).Inc()

	widened := r.search(ctx, refinedQuery(), r.widened)
	retry := r.generate(ctx, widened)
	if Score(retry) >= Threshold {
		if err := r.persistIfAbsent(ctx, hit, topic, widened); err != nil {
			return nil, err
		}
		metrics.CascadeStage.WithLabelValues(metrics.StageRetryAccepted).Inc()
		return &Resolution{
			Query: query, Topic: topic, Answer: retry, Context: widened,
			FromCache: hit, Score: Score(retry), Stage: StageRetry, Delta: DeltaRetry,
		}, nil
	}

	metrics.CascadeStage.WithLabelValues(metrics.StageClarify).Inc()
	res.Stage = StageClarify
	res.NeedsClarification = &Clarification{
		Topic:       topic,
		Query:       query,
		Reason:      ReasonLowQuality,
		FirstAnswer: answer,
	}
	return res, nil
}

// Feedback resumes a suspended resolution with the caller's text.
//
// For a low-quality clarification, supplied text replaces the topic's
// knowledge and a new answer is generated from it (+5); no text falls back to
// the first answer (−5). For an unknown topic, supplied text teaches the topic
// and no text yields an apology; neither carries a reward.
func (r *Resolver) Feedback(ctx context.Context, c *Clarification, text string) (*Resolution, error) {
	if c == nil {
		return nil, fmt.Errorf("feedback: missing clarification")
	}
	topic := c.Topic
	if topic == "" {
		topic = Normalize(c.Query)
	}
	metrics.CascadeStage.WithLabelValues(metrics.StageFeedback).Inc()
	res := &Resolution{Query: c.Query, Topic: topic, Stage: StageFeedback}

	if text == "" {
		switch c.Reason {
		case ReasonUnknownTopic:
			res.Answer = fmt.Sprintf("Sorry, I don't have any information about '%s'.", c.Query)
		default:
			res.Answer = "No new information provided. Using initial answer:\n" + c.FirstAnswer
			res.Delta = DeltaFeedbackDeclined
		}
		return res, nil
	}

	if err := r.Teach(ctx, topic, text); err != nil {
		return nil, err
	}
	answer := r.Compose(ctx, text)
	res.Context = text
	res.Score = Score(answer)

	switch c.Reason {
	case ReasonUnknownTopic:
		res.Answer = answer
	default:
		res.Answer = "Thank you for your feedback. Here is the updated answer:\n" + answer
		res.Delta = DeltaFeedbackSupplied
	}
	return res, nil
}

// Lookup returns the stored knowledge for query's topic.
func (r *Resolver) Lookup(ctx context.Context, query string) (string, bool, error) {
	topic := Normalize(query)
	if topic == "" {
		return "", false, nil
	}
	text, ok, err := r.store.GetLearned(ctx, topic)
	if err != nil {
		return "", false, fmt.Errorf("lookup: %w", err)
	}
	return text, ok, nil
}

// Teach stores text as the knowledge of query's topic, bypassing the quality gate.
func (r *Resolver) Teach(ctx context.Context, query, text string) error {
	topic := Normalize(query)
	if topic == "" {
		return ErrEmptyQuery
	}
	unlock := r.locks.Lock(topic)
	defer unlock()
	if err := r.store.PutLearned(ctx, topic, text); err != nil {
		return fmt.Errorf("teach: %w", err)
	}
	return nil
}

// Compose generates an answer from text, falling back to text itself when
// generation yields nothing.
func (r *Resolver) Compose(ctx context.Context, text string) string {
	if answer := r.generate(ctx, text); answer != "" {
		return answer
	}
	return text
}

// persistIfAbsent stores evidence for an uncached topic. The no-results
// sentinel is never stored.
func (r *Resolver) persistIfAbsent(ctx context.Context, cached bool, topic, evidence string) error {
	if cached || evidence == NoResultsContext {
		return nil
	}
	unlock := r.locks.Lock(topic)
	defer unlock()

	_, exists, err := r.store.GetLearned(ctx, topic)
	if err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	if exists {
		return nil
	}
	if err := r.store.PutLearned(ctx, topic, evidence); err != nil {
		return fmt.Errorf("persist: %w", err)
	}
	return nil
}

func (r *Resolver) search(ctx context.Context, query string, n int) string {
	if r.searcher == nil {
		return NoResultsContext
	}
	ctx, cancel := context.WithTimeout(ctx, r.searchTimeout)
	defer cancel()

	start := time.Now()
	results, err := r.searcher.Search(ctx, query, n)
	metrics.ObserveCollaborator("search", start, err)
	if err != nil {
		r.logger.Warn().Err(err).Int("n", n).Msg("search failed")
		return NoResultsContext
	}
	if snippets := search.Snippets(results); snippets != "" {
		return snippets
	}
	return NoResultsContext
}

func (r *Resolver) generate(ctx context.Context, evidence string) string {
	ctx, cancel := context.WithTimeout(ctx, r.generateTimeout)
	defer cancel()

	start := time.Now()
	answer, err := r.generator.Answer(ctx, evidence)
	metrics.ObserveCollaborator("generate", start, err)
	if err != nil {
		r.logger.Warn().Err(err).Msg("answer generation failed")
		return ""
	}
	return answer
}

func (r *Resolver) entities(ctx context.Context, query string) *extract.Entities {
	if r.extractor == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, r.extractTimeout)
	defer cancel()

	start := time.Now()
	ents, err := r.extractor.Extract(ctx, query)
	metrics.ObserveCollaborator("extract", start, err)
	if err != nil {
		r.logger.Debug().Err(err).Msg("entity extraction failed, searching with the raw query")
		return nil
	}
	return ents
}

func orDefault(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
