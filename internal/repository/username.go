package repository

import "strings"

// normalizeUsername is the lookup key shared by every store: usernames are
// unique regardless of case and surrounding whitespace.
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
