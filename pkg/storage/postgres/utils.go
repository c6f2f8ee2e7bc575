package postgres

import (
	"fmt"

	"github.com/oceanbase/trinity-go/pkg/storage"
)

// buildUIDClause builds an optional WHERE clause on uid starting from $1.
func buildUIDClause(uid string) (string, []interface{}) {
	if uid == "" {
		return "", nil
	}
	return "WHERE uid = $1", []interface{}{uid}
}

// buildProfileSet builds SET fragments for the non-empty fields of update,
// numbering placeholders from startIndex. It returns the next free index.
func buildProfileSet(update storage.ProfileUpdate, startIndex int) ([]string, []interface{}, int) {
	sets := []string{}
	args := []interface{}{}
	argIndex := startIndex

	add := func(column string, value *string) {
		if value == nil || *value == "" {
			return
		}
		sets = append(sets, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, *value)
		argIndex++
	}
	add("username", update.Username)
	add("location", update.Location)
	add("preferences", update.Preferences)

	return sets, args, argIndex
}
