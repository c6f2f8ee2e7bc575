package core

import (
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"

	"github.com/oceanbase/trinity-go/pkg/calendar"
	"github.com/oceanbase/trinity-go/pkg/clarify"
	"github.com/oceanbase/trinity-go/pkg/extract"
	"github.com/oceanbase/trinity-go/pkg/knowledge"
	"github.com/oceanbase/trinity-go/pkg/llm"
	"github.com/oceanbase/trinity-go/pkg/music"
	"github.com/oceanbase/trinity-go/pkg/search"
	"github.com/oceanbase/trinity-go/pkg/storage"
	"github.com/oceanbase/trinity-go/pkg/system"
	"github.com/oceanbase/trinity-go/pkg/weather"
)

// ClientOption configures a Client.
//
// Collaborators set through options take precedence over the ones NewClient
// would build from Config, which is how tests and embedders swap in their own.
type ClientOption func(*ClientOptions)

// ClientOptions holds the collaborators injected into NewClient.
type ClientOptions struct {
	Store      storage.Store
	LLM        llm.Provider
	Generator  knowledge.Generator
	Searcher   search.Searcher
	Extractor  extract.Extractor
	Weather    weather.Provider
	Calendar   calendar.Calendar
	Music      music.Finder
	Launcher   system.Launcher
	Opener     system.URLOpener
	Controller system.Controller
	Clarify    clarify.Store
	Logger     *zerolog.Logger
	Rand       *rand.Rand
	Now        func() time.Time
	NodeID     int64
}

// WithStore sets the persistence backend.
func WithStore(s storage.Store) ClientOption {
	return func(o *ClientOptions) {
		o.Store = s
	}
}

// WithLLM sets the text-generation provider.
//
// Example:
//
//	client, _ := core.NewClient(cfg, core.WithLLM(provider))
func WithLLM(p llm.Provider) ClientOption {
	return func(o *ClientOptions) {
		o.LLM = p
	}
}

// WithGenerator sets the answer generator directly, bypassing the LLM provider.
func WithGenerator(g knowledge.Generator) ClientOption {
	return func(o *ClientOptions) {
		o.Generator = g
	}
}

// WithSearcher sets the web search collaborator.
func WithSearcher(s search.Searcher) ClientOption {
	return func(o *ClientOptions) {
		o.Searcher = s
	}
}

// WithExtractor sets the entity extractor.
func WithExtractor(e extract.Extractor) ClientOption {
	return func(o *ClientOptions) {
		o.Extractor = e
	}
}

// WithWeather sets the weather collaborator.
func WithWeather(p weather.Provider) ClientOption {
	return func(o *ClientOptions) {
		o.Weather = p
	}
}

// WithCalendar sets the calendar collaborator.
func WithCalendar(c calendar.Calendar) ClientOption {
	return func(o *ClientOptions) {
		o.Calendar = c
	}
}

// WithMusic sets the music finder.
func WithMusic(f music.Finder) ClientOption {
	return func(o *ClientOptions) {
		o.Music = f
	}
}

// WithLauncher sets the application launcher.
func WithLauncher(l system.Launcher) ClientOption {
	return func(o *ClientOptions) {
		o.Launcher = l
	}
}

// WithURLOpener sets the browser opener.
func WithURLOpener(u system.URLOpener) ClientOption {
	return func(o *ClientOptions) {
		o.Opener = u
	}
}

// WithController sets the device controller.
func WithController(c system.Controller) ClientOption {
	return func(o *ClientOptions) {
		o.Controller = c
	}
}

// WithClarifyStore sets the pending clarification store.
func WithClarifyStore(s clarify.Store) ClientOption {
	return func(o *ClientOptions) {
		o.Clarify = s
	}
}

// WithLogger sets the logger (default zerolog.Nop).
func WithLogger(l zerolog.Logger) ClientOption {
	return func(o *ClientOptions) {
		o.Logger = &l
	}
}

// WithRand sets the random source for FAQ answers.
func WithRand(r *rand.Rand) ClientOption {
	return func(o *ClientOptions) {
		o.Rand = r
	}
}

// WithClock sets the time source used for appointments and the interaction log.
func WithClock(now func() time.Time) ClientOption {
	return func(o *ClientOptions) {
		o.Now = now
	}
}

// WithNodeID sets the snowflake node id for interaction record ids (default 1).
func WithNodeID(id int64) ClientOption {
	return func(o *ClientOptions) {
		o.NodeID = id
	}
}

func applyClientOptions(opts []ClientOption) *ClientOptions {
	o := &ClientOptions{NodeID: 1}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GreetOption supplies missing profile fields to Greet.
type GreetOption func(*GreetOptions)

// GreetOptions contains the fields Greet may fill in.
type GreetOptions struct {
	Username string
	Location string
}

// WithUsername supplies the username when the profile has none.
//
// Example:
//
//	msg, err := client.Greet(ctx, uid, core.WithUsername("Alice"), core.WithLocation("Hanoi"))
func WithUsername(name string) GreetOption {
	return func(o *GreetOptions) {
		o.Username = name
	}
}

// WithLocation supplies the location when the profile has none.
func WithLocation(location string) GreetOption {
	return func(o *GreetOptions) {
		o.Location = location
	}
}

func applyGreetOptions(opts []GreetOption) *GreetOptions {
	o := &GreetOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
