package core

import (
	"strings"

	"github.com/oceanbase/trinity-go/pkg/storage"
)

// personalize prefixes text with the user's name when one is known.
// The profile is read after the handler ran, so a name set by this very
// utterance is already used.
func personalize(profile *storage.UserProfile, text string) string {
	if profile == nil || strings.TrimSpace(profile.Username) == "" {
		return text
	}
	return "Hello " + profile.Username + ", " + text
}
