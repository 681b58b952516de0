package relay

import "regexp"

var fileIDPattern = regexp.MustCompile(`/files/([^/]+)$`)

// FileIDFromLocation extracts the upstream file id, the path segment that
// follows a trailing "/files/" component of an upload location.
func FileIDFromLocation(location string) (string, error) {
	m := fileIDPattern.FindStringSubmatch(location)
	if m == nil {
		return "", ErrMalformedFileID
	}
	return m[1], nil
}
