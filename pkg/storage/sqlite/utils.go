package sqlite

import (
	"github.com/oceanbase/trinity-go/pkg/storage"
)

// buildUIDClause builds an optional WHERE clause on uid.
func buildUIDClause(uid string) (string, []interface{}) {
	if uid == "" {
		return "", nil
	}
	return "WHERE uid = ?", []interface{}{uid}
}

// buildProfileSet builds SET fragments for the non-empty fields of update.
func buildProfileSet(update storage.ProfileUpdate) ([]string, []interface{}) {
	sets := []string{}
	args := []interface{}{}

	if update.Username != nil && *update.Username != "" {
		sets = append(sets, "username = ?")
		args = append(args, *update.Username)
	}
	if update.Location != nil && *update.Location != "" {
		sets = append(sets, "location = ?")
		args = append(args, *update.Location)
	}
	if update.Preferences != nil && *update.Preferences != "" {
		sets = append(sets, "preferences = ?")
		args = append(args, *update.Preferences)
	}

	return sets, args
}
