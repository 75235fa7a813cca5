package backend

import "regexp"

// MaxIDLength is the longest caller-chosen ID the backend accepts.
const MaxIDLength = 36

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,35}$`)

// ValidID reports whether id is acceptable as a document or file ID: 1 to 36
// characters of a-z, A-Z, 0-9, period, hyphen and underscore, not starting
// with a special character.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}
