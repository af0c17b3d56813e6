package domain

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// IDPlaceholder replaces dynamic path segments in an EndpointKey.
const IDPlaceholder = "{id}"

// EndpointKey is the canonical "{METHOD}:{path}" form of a request target.
type EndpointKey string

// ClassifyEndpoint normalizes method and path into an EndpointKey. Segments that
// look like identifiers (UUIDs, integers, long opaque tokens) become {id}.
func ClassifyEndpoint(method, path string) EndpointKey {
	return EndpointKey(strings.ToUpper(strings.TrimSpace(method)) + ":" + NormalizePath(path))
}

// NormalizePath drops empty segments and replaces identifier-like segments
// with IDPlaceholder. An empty path yields "/".
func NormalizePath(path string) string {
	raw := strings.Split(path, "/")
	segments := make([]string, 0, len(raw))
	for _, segment := range raw {
		if segment == "" {
			continue
		}
		if isIdentifier(segment) {
			segment = IDPlaceholder
		}
		segments = append(segments, segment)
	}
	return "/" + strings.Join(segments, "/")
}

func isIdentifier(segment string) bool {
	if _, err := uuid.Parse(segment); err == nil {
		return true
	}
	if _, err := strconv.ParseInt(segment, 10, 64); err == nil {
		return true
	}
	return isOpaqueToken(segment)
}

// isOpaqueToken matches hashes and slugs: more than ten letters, digits,
// hyphens or underscores with at least one digit. Plain words such as
// "conversations" or "start-recording" stay literal so they can be matched
// by the rule table.
func isOpaqueToken(segment string) bool {
	if utf8.RuneCountInString(segment) <= 10 {
		return false
	}
	hasDigit := false
	for _, r := range segment {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLetter(r), r == '-', r == '_':
		default:
			return false
		}
	}
	return hasDigit
}
