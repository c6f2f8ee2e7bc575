package storage

import "fmt"

// Tables holds the table names used by the SQL backends.
// A prefix lets several assistants share one database.
type Tables struct {
	Knowledge    string
	Interactions string
	Profiles     string
	Songs        string
	Apps         string
}

// NewTables returns table names with the given prefix applied.
func NewTables(prefix string) Tables {
	return Tables{
		Knowledge:    prefix + "learned_knowledge",
		Interactions: prefix + "interactions",
		Profiles:     prefix + "user_profile",
		Songs:        prefix + "song_usage",
		Apps:         prefix + "app_usage",
	}
}

// UsageColumns describes the table layout of one usage counter kind.
type UsageColumns struct {
	Table    string
	Key      string
	Count    string
	HasGenre bool
}

// Usage returns the table layout for kind.
func (t Tables) Usage(kind UsageKind) (UsageColumns, error) {
	switch kind {
	case UsageSong:
		return UsageColumns{Table: t.Songs, Key: "song_title", Count: "play_count", HasGenre: true}, nil
	case UsageApp:
		return UsageColumns{Table: t.Apps, Key: "app_name", Count: "usage_count"}, nil
	default:
		return UsageColumns{}, fmt.Errorf("unknown usage kind %q", kind)
	}
}
