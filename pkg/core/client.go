package core

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog"

	"github.com/oceanbase/trinity-go/pkg/calendar"
	"github.com/oceanbase/trinity-go/pkg/clarify"
	"github.com/oceanbase/trinity-go/pkg/extract"
	"github.com/oceanbase/trinity-go/pkg/intent"
	"github.com/oceanbase/trinity-go/pkg/knowledge"
	"github.com/oceanbase/trinity-go/pkg/llm"
	anthropicLLM "github.com/oceanbase/trinity-go/pkg/llm/anthropic"
	ollamaLLM "github.com/oceanbase/trinity-go/pkg/llm/ollama"
	openaiLLM "github.com/oceanbase/trinity-go/pkg/llm/openai"
	"github.com/oceanbase/trinity-go/pkg/metrics"
	"github.com/oceanbase/trinity-go/pkg/music"
	"github.com/oceanbase/trinity-go/pkg/search"
	"github.com/oceanbase/trinity-go/pkg/storage"
	"github.com/oceanbase/trinity-go/pkg/storage/oceanbase"
	postgresStore "github.com/oceanbase/trinity-go/pkg/storage/postgres"
	sqliteStore "github.com/oceanbase/trinity-go/pkg/storage/sqlite"
	"github.com/oceanbase/trinity-go/pkg/system"
	"github.com/oceanbase/trinity-go/pkg/weather"
)

// Client is the Trinity assistant.
//
// It routes utterances to intent handlers, resolves knowledge questions
// through the search/generate cascade, and keeps the per-user reward ledger,
// the usage counters and the interaction log.
//
// The client is safe for concurrent use. Calls for the same uid serialize
// their reward updates in the store, so concurrent deltas are never lost.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	client, _ := core.NewClient(config)
//	defer client.Close()
//
//	resp, _ := client.Dispatch(ctx, "what is the capital of France?", "user_001")
//	fmt.Println(resp.Text)
type Client struct {
	config *Config

	store      storage.Store
	llm        llm.Provider
	resolver   *knowledge.Resolver
	classifier *intent.Classifier
	faq        *intent.FAQ

	extractor  extract.Extractor
	searcher   search.Searcher
	weather    weather.Provider
	calendar   calendar.Calendar
	music      music.Finder
	launcher   system.Launcher
	opener     system.URLOpener
	controller system.Controller
	clarify    clarify.Store

	// apps maps spoken application names to executables or URLs.
	apps map[string]string

	timeouts      TimeoutConfig
	snowflakeNode *snowflake.Node
	logger        zerolog.Logger
	now           func() time.Time
}

// NewClient creates a new assistant client.
//
// Collaborators not injected through opts are built from cfg:
//   - Store (SQLite, PostgreSQL or OceanBase)
//   - LLM provider (OpenAI, DeepSeek or Ollama) and the answer generator
//   - Web search (Google, DuckDuckGo or none), behind an LRU cache
//   - Entity extractor (rules, or LLM with rules fallback)
//   - Weather, music, calendar, launcher and device control
//   - Pending clarification store (memory or Redis)
//
// Example:
//
//	client, err := core.NewClient(cfg, core.WithLogger(log))
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		return nil, NewAssistantError("NewClient", fmt.Errorf("%w: config is required", ErrInvalidConfig))
	}
	o := applyClientOptions(opts)

	needLLM := o.LLM == nil && (o.Generator == nil || (o.Extractor == nil && cfg.Extractor.Provider == "llm"))
	if err := cfg.validate(o.Store == nil, needLLM); err != nil {
		return nil, err
	}

	logger := zerolog.Nop()
	if o.Logger != nil {
		logger = *o.Logger
	}
	now := o.Now
	if now == nil {
		now = time.Now
	}

	c := &Client{
		config:     cfg,
		store:      o.Store,
		llm:        o.LLM,
		extractor:  o.Extractor,
		searcher:   o.Searcher,
		weather:    o.Weather,
		calendar:   o.Calendar,
		music:      o.Music,
		launcher:   o.Launcher,
		opener:     o.Opener,
		controller: o.Controller,
		clarify:    o.Clarify,
		timeouts:   cfg.Timeouts.withDefaults(),
		logger:     logger,
		now:        now,
	}

	var err error
	if c.store == nil {
		if c.store, err = initStorage(cfg.Database); err != nil {
			return nil, err
		}
	}
	if c.llm == nil && needLLM {
		if c.llm, err = initLLM(cfg.LLM); err != nil {
			c.Close()
			return nil, err
		}
	}
	generator := o.Generator
	if generator == nil {
		generator = llm.NewAnswerer(c.llm, &llm.AnswerConfig{
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
		})
	}
	if c.searcher == nil {
		if c.searcher, err = initSearcher(cfg.Search); err != nil {
			c.Close()
			return nil, err
		}
	}
	if c.extractor == nil {
		c.extractor = initExtractor(cfg.Extractor, c.llm, logger)
	}
	if c.weather == nil {
		c.weather = weather.NewWeatherAPI(&weather.WeatherAPIConfig{
			APIKey:   cfg.Weather.APIKey,
			Endpoint: cfg.Weather.Endpoint,
		})
	}
	if c.music == nil && cfg.Music.APIKey != "" {
		yt, err := music.NewYouTube(&music.YouTubeConfig{APIKey: cfg.Music.APIKey, Endpoint: cfg.Music.Endpoint})
		if err != nil {
			c.Close()
			return nil, NewAssistantError("NewClient", err)
		}
		c.music = yt
	}
	if c.calendar == nil {
		c.calendar = calendar.NewMemory(calendar.WithClock(now))
	}
	if c.launcher == nil {
		c.launcher = system.NewExecLauncher(logger, cfg.System.DryRun)
	}
	if c.opener == nil {
		c.opener = system.NewBrowserOpener(logger, cfg.System.DryRun)
	}
	if c.controller == nil {
		brightness := cfg.System.Brightness
		if brightness == 0 {
			brightness = 50
		}
		c.controller = system.NewStateController(logger, brightness)
	}
	if c.clarify == nil {
		if c.clarify, err = initClarify(cfg.Clarify, now, logger); err != nil {
			c.Close()
			return nil, err
		}
	}

	c.apps = maps.Clone(system.DefaultAppMapping)
	if cfg.System.AppMapping != nil {
		c.apps = make(map[string]string, len(cfg.System.AppMapping))
		for name, path := range cfg.System.AppMapping {
			c.apps[strings.ToLower(strings.TrimSpace(name))] = path
		}
	}

	c.resolver, err = knowledge.NewResolver(knowledge.Config{
		Store:           c.store,
		Generator:       generator,
		Searcher:        c.searcher,
		Extractor:       c.extractor,
		SearchTimeout:   c.timeouts.Search.Std(),
		GenerateTimeout: c.timeouts.Generate.Std(),
		ExtractTimeout:  c.timeouts.Extract.Std(),
		Logger:          logger,
	})
	if err != nil {
		c.Close()
		return nil, NewAssistantError("NewClient", err)
	}

	rng := o.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	c.faq = intent.NewDefaultFAQ(rng)
	c.classifier = intent.NewClassifier(c.faq)

	if c.snowflakeNode, err = snowflake.NewNode(o.NodeID); err != nil {
		c.Close()
		return nil, NewAssistantError("NewClient", err)
	}

	return c, nil
}

// Dispatch routes one utterance from uid to its intent handler and returns
// the personalized response.
//
// Recoverable failures (a missing entity, an unavailable collaborator) are
// reported through Response.Error with a user-facing Text. Only a missing uid,
// empty input and storage faults are returned as errors; no state is touched
// in those cases except for storage faults raised mid-way.
//
// Example:
//
//	resp, err := client.Dispatch(ctx, "set an appointment with Bob at 10:00", "user_001")
func (c *Client) Dispatch(ctx context.Context, utterance, uid string) (*Response, error) {
	if uid == "" {
		return nil, NewAssistantError("Dispatch", ErrUnauthorized)
	}
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, NewAssistantError("Dispatch", ErrInvalidInput)
	}
	if err := c.store.EnsureProfile(ctx, uid); err != nil {
		return nil, NewAssistantError("Dispatch", storageFault(err))
	}

	in := c.classifier.Classify(utterance)
	c.logger.Debug().Str("uid", uid).Str("intent", string(in.Kind)).Msg("dispatching utterance")

	out, err := c.route(ctx, uid, utterance, in)
	if err != nil {
		return nil, NewAssistantError("Dispatch", err)
	}
	return c.finish(ctx, "Dispatch", uid, utterance, in.Kind, out)
}

// ResolveKnowledge answers query through the knowledge cascade on behalf of uid.
//
// When the answer stays below the quality threshold after the widened retry,
// the response carries NeedsClarification and the caller resumes it with
// RecordFeedback.
func (c *Client) ResolveKnowledge(ctx context.Context, query, uid string) (*Response, error) {
	if uid == "" {
		return nil, NewAssistantError("ResolveKnowledge", ErrUnauthorized)
	}
	query = strings.TrimSpace(query)
	if knowledge.Normalize(query) == "" {
		return nil, NewAssistantError("ResolveKnowledge", ErrInvalidInput)
	}
	if err := c.store.EnsureProfile(ctx, uid); err != nil {
		return nil, NewAssistantError("ResolveKnowledge", storageFault(err))
	}

	out, err := c.resolve(ctx, query)
	if err != nil {
		return nil, NewAssistantError("ResolveKnowledge", err)
	}
	return c.finish(ctx, "ResolveKnowledge", uid, query, intent.KindKnowledge, out)
}

// Teach stores text as the knowledge for topic, replacing any earlier entry.
// It bypasses the quality gate.
//
// Example:
//
//	msg, err := client.Teach(ctx, "golang", "Go is a statically typed language from Google.")
func (c *Client) Teach(ctx context.Context, topic, text string) (string, error) {
	topic = strings.TrimSpace(topic)
	text = strings.TrimSpace(text)
	if knowledge.Normalize(topic) == "" || text == "" {
		return "", NewAssistantError("Teach", ErrInvalidInput)
	}
	if err := c.resolver.Teach(ctx, topic, text); err != nil {
		return "", NewAssistantError("Teach", storageFault(err))
	}
	c.logger.Info().Str("topic", knowledge.Normalize(topic)).Msg("topic taught")
	return fmt.Sprintf("Thanks, I've learned about '%s'.", topic), nil
}

// RecordFeedback resumes the clarification pending for uid on topic.
//
// Non-empty text becomes the topic's knowledge. Empty text declines: a
// low-quality answer falls back to the first answer with a penalty, an unknown
// topic gets an apology. ErrNotFound is returned when nothing is pending.
func (c *Client) RecordFeedback(ctx context.Context, uid, topic, text string) (*Response, error) {
	if uid == "" {
		return nil, NewAssistantError("RecordFeedback", ErrUnauthorized)
	}
	key := knowledge.Normalize(topic)
	if key == "" {
		return nil, NewAssistantError("RecordFeedback", ErrInvalidInput)
	}

	pending, err := c.clarify.Take(ctx, uid, key)
	if errors.Is(err, clarify.ErrNotFound) {
		return nil, NewAssistantError("RecordFeedback", ErrNotFound)
	}
	if err != nil {
		return nil, NewAssistantError("RecordFeedback", storageFault(err))
	}

	text = strings.TrimSpace(text)
	res, err := c.resolver.Feedback(ctx, &pending.Clarification, text)
	if err != nil {
		// keep the clarification answerable after a failed write
		if _, perr := c.clarify.Put(ctx, uid, &pending.Clarification); perr != nil {
			c.logger.Error().Err(perr).Str("uid", uid).Str("topic", key).Msg("failed to restore clarification")
		}
		return nil, NewAssistantError("RecordFeedback", storageFault(err))
	}

	kind := intent.KindKnowledge
	if pending.Clarification.Reason == knowledge.ReasonUnknownTopic {
		kind = intent.KindDynamic
	}
	utterance := text
	if utterance == "" {
		utterance = pending.Clarification.Query
	}
	return c.finish(ctx, "RecordFeedback", uid, utterance, kind, &outcome{text: res.Answer, delta: res.Delta})
}

// Close releases the store, the LLM provider and the clarification store.
//
// Example:
//
//	defer client.Close()
func (c *Client) Close() error {
	var errs []error

	if c.clarify != nil {
		if err := c.clarify.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.llm != nil {
		if err := c.llm.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.store != nil {
		if err := c.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Store returns the persistence backend.
func (c *Client) Store() storage.Store { return c.store }

// ClarifyStore returns the pending clarification store.
func (c *Client) ClarifyStore() clarify.Store { return c.clarify }

// Config returns the configuration the client was built from.
func (c *Client) Config() *Config { return c.config }

// outcome is what a handler hands back to finish.
type outcome struct {
	text  string
	delta int

	// err is a recovered failure reported through Response.Error.
	err error

	clarification *knowledge.Clarification
}

func (c *Client) route(ctx context.Context, uid, utterance string, in intent.Intent) (*outcome, error) {
	switch in.Kind {
	case intent.KindFeedback:
		return c.negativeFeedback(in.Payload), nil
	case intent.KindFAQ:
		return c.answerFAQ(utterance), nil
	case intent.KindSetName:
		return c.setName(ctx, uid, in.Payload)
	case intent.KindSetLocation:
		return c.setLocation(ctx, uid, in.Payload)
	case intent.KindReminders:
		return c.reminders(ctx), nil
	case intent.KindSystem:
		return c.systemCommand(ctx, utterance), nil
	case intent.KindOpenApp:
		return c.openApp(ctx, utterance)
	case intent.KindPlayMusic:
		return c.playMusic(ctx, utterance)
	case intent.KindAppointment:
		return c.setAppointment(ctx, utterance), nil
	case intent.KindWeather:
		return c.checkWeather(ctx, uid, utterance)
	case intent.KindSelfIdentity:
		return c.selfIdentity(utterance), nil
	case intent.KindKnowledge:
		return c.resolve(ctx, utterance)
	default:
		return c.dynamicRespond(ctx, utterance)
	}
}

// finish applies the reward delta once, personalizes the text, parks any
// clarification and appends the interaction record.
func (c *Client) finish(ctx context.Context, op, uid, utterance string, kind intent.Kind, out *outcome) (*Response, error) {
	score := 0
	if out.delta != 0 {
		s, err := c.store.AdjustScore(ctx, uid, out.delta)
		if err != nil {
			return nil, NewAssistantError(op, storageFault(err))
		}
		score = s
	}

	profile, err := c.store.GetProfile(ctx, uid)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, NewAssistantError(op, storageFault(err))
	}
	if out.delta == 0 && profile != nil {
		score = profile.Score
	}
	text := personalize(profile, out.text)

	if out.clarification != nil {
		if _, err := c.clarify.Put(ctx, uid, out.clarification); err != nil {
			return nil, NewAssistantError(op, storageFault(err))
		}
	}

	rec := &storage.InteractionRecord{
		ID:        c.snowflakeNode.Generate().Int64(),
		UID:       uid,
		Timestamp: c.now(),
		Utterance: utterance,
		Response:  text,
	}
	if err := c.store.AppendInteraction(ctx, rec); err != nil {
		return nil, NewAssistantError(op, storageFault(err))
	}

	label := "ok"
	switch {
	case out.clarification != nil:
		label = "clarify"
	case out.err != nil:
		label = Classify(out.err)
	}
	metrics.DispatchCount.WithLabelValues(string(kind), label).Inc()
	metrics.ObserveReward(string(kind), out.delta)

	errClass := Classify(out.err)
	switch {
	case errors.Is(out.err, ErrQualityBelowThreshold):
		// internal escalation signal; the caller sees only the clarification
		errClass = ""
		c.logger.Info().Err(out.err).Str("uid", uid).Msg("clarification requested")
	case out.err != nil:
		c.logger.Warn().Err(out.err).Str("uid", uid).Str("intent", string(kind)).Msg("handler recovered from failure")
	}

	return &Response{
		Text:               text,
		Intent:             kind,
		Delta:              out.delta,
		Score:              score,
		Error:              errClass,
		NeedsClarification: out.clarification,
	}, nil
}

func storageFault(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageOperation, err)
}

// initStorage initializes the storage backend.
func initStorage(cfg DatabaseConfig) (storage.Store, error) {
	var (
		store storage.Store
		err   error
	)
	switch cfg.Provider {
	case "oceanbase":
		var c oceanbase.Config
		if c, err = networkConfig[oceanbase.Config](cfg.Config, 2881, func(host string, port int, user, password, dbName, prefix string) oceanbase.Config {
			return oceanbase.Config{Host: host, Port: port, User: user, Password: password, DBName: dbName, TablePrefix: prefix}
		}); err == nil {
			store, err = oceanbase.NewClient(&c)
		}
	case "postgres":
		var c postgresStore.Config
		if c, err = networkConfig[postgresStore.Config](cfg.Config, 5432, func(host string, port int, user, password, dbName, prefix string) postgresStore.Config {
			return postgresStore.Config{Host: host, Port: port, User: user, Password: password, DBName: dbName, TablePrefix: prefix}
		}); err == nil {
			if c.SSLMode, err = configString(cfg.Config, "ssl_mode", "disable"); err == nil {
				store, err = postgresStore.NewClient(&c)
			}
		}
	case "sqlite":
		var path, prefix string
		if path, err = configString(cfg.Config, "db_path", "./data/trinity.db"); err != nil {
			break
		}
		if prefix, err = configString(cfg.Config, "table_prefix", ""); err != nil {
			break
		}
		store, err = sqliteStore.NewClient(&sqliteStore.Config{DBPath: path, TablePrefix: prefix})
	default:
		err = ErrInvalidConfig
	}
	if err != nil {
		return nil, NewAssistantError("initStorage", err)
	}
	return store, nil
}

// networkConfig reads the settings shared by the networked SQL backends.
func networkConfig[T any](m map[string]interface{}, defaultPort int, build func(host string, port int, user, password, dbName, prefix string) T) (T, error) {
	var zero T
	host, err := configString(m, "host", "localhost")
	if err != nil {
		return zero, err
	}
	port, err := configInt(m, "port", defaultPort)
	if err != nil {
		return zero, err
	}
	user, err := configString(m, "user", "")
	if err != nil {
		return zero, err
	}
	password, err := configString(m, "password", "")
	if err != nil {
		return zero, err
	}
	dbName, err := configString(m, "db_name", "trinity")
	if err != nil {
		return zero, err
	}
	prefix, err := configString(m, "table_prefix", "")
	if err != nil {
		return zero, err
	}
	return build(host, port, user, password, dbName, prefix), nil
}

// initLLM initializes the LLM provider.
func initLLM(cfg LLMConfig) (llm.Provider, error) {
	var (
		provider llm.Provider
		err      error
	)
	switch cfg.Provider {
	case "openai", "deepseek":
		provider, err = openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
			Flavor:  cfg.Provider,
		})
	case "anthropic":
		provider, err = anthropicLLM.NewClient(&anthropicLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "ollama":
		provider, err = ollamaLLM.NewClient(&ollamaLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	default:
		err = ErrInvalidConfig
	}
	if err != nil {
		return nil, NewAssistantError("initLLM", err)
	}
	return provider, nil
}

// initSearcher initializes web search. "none" yields a nil Searcher, which
// the cascade treats as "no results".
func initSearcher(cfg SearchConfig) (search.Searcher, error) {
	var s search.Searcher
	switch cfg.Provider {
	case "google":
		g, err := search.NewGoogle(&search.GoogleConfig{APIKey: cfg.APIKey, EngineID: cfg.EngineID, Endpoint: cfg.Endpoint})
		if err != nil {
			return nil, NewAssistantError("initSearcher", err)
		}
		s = g
	case "", "duckduckgo":
		s = search.NewDuckDuckGo(&search.DuckDuckGoConfig{Endpoint: cfg.Endpoint})
	case "none":
		return nil, nil
	default:
		return nil, NewAssistantError("initSearcher", ErrInvalidConfig)
	}
	if cfg.CacheSize > 0 {
		return search.NewCached(s, cfg.CacheSize, cfg.CacheTTL.Std()), nil
	}
	return s, nil
}

// initExtractor initializes entity extraction.
func initExtractor(cfg ExtractorConfig, provider llm.Provider, logger zerolog.Logger) extract.Extractor {
	rules := extract.NewRuleExtractor()
	if cfg.Provider == "llm" && provider != nil {
		return extract.NewLLMExtractor(provider, rules, logger)
	}
	return rules
}

// initClarify initializes the pending clarification store.
func initClarify(cfg ClarifyConfig, now func() time.Time, logger zerolog.Logger) (clarify.Store, error) {
	switch cfg.Provider {
	case "", "memory":
		return clarify.NewMemory(clarify.MemoryConfig{TTL: cfg.TTL.Std(), Now: now, Logger: logger}), nil
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		r, err := clarify.NewRedis(ctx, clarify.RedisConfig{URL: cfg.RedisURL, TTL: cfg.TTL.Std()})
		if err != nil {
			return nil, NewAssistantError("initClarify", err)
		}
		return r, nil
	default:
		return nil, NewAssistantError("initClarify", ErrInvalidConfig)
	}
}
