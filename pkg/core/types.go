package core

import (
	"time"

	"github.com/oceanbase/trinity-go/pkg/intent"
	"github.com/oceanbase/trinity-go/pkg/knowledge"
	"github.com/oceanbase/trinity-go/pkg/storage"
)

// Response is the outcome of one assistant call.
//
// Example:
//
//	resp, _ := client.Dispatch(ctx, "my name is Alice", uid)
//	fmt.Println(resp.Text)  // "Hello Alice, Your name has been set to Alice."
//	fmt.Println(resp.Delta) // 10
type Response struct {
	// Text is the personalized user-facing text.
	Text string `json:"text"`

	// Intent is the handler that produced the text.
	Intent intent.Kind `json:"intent"`

	// Delta is the reward applied for this call (0 when none).
	Delta int `json:"delta"`

	// Score is the caller's reward score after Delta.
	Score int `json:"score"`

	// Error classifies a failure recovered into Text: "extraction_failure"
	// or "collaborator_unavailable". Empty on success.
	Error string `json:"error,omitempty"`

	// NeedsClarification is set when the call is suspended until the user
	// supplies text through RecordFeedback.
	NeedsClarification *knowledge.Clarification `json:"needs_clarification,omitempty"`
}

// UsageEntry is one row of a usage ranking.
type UsageEntry struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
	Genre string `json:"genre,omitempty"`
}

// Statistics summarizes a user's profile and the usage history.
type Statistics struct {
	Profile           *storage.UserProfile `json:"profile,omitempty"`
	TopSongs          []UsageEntry         `json:"top_songs"`
	TopApps           []UsageEntry         `json:"top_apps"`
	TotalInteractions int64                `json:"total_interactions"`
	FirstInteraction  *time.Time           `json:"first_interaction,omitempty"`
	LastInteraction   *time.Time           `json:"last_interaction,omitempty"`
}

// Recommendations are suggestions derived from usage history.
type Recommendations struct {
	Song      string `json:"song"`
	App       string `json:"app"`
	Reminders string `json:"reminders"`
}
