package services

import "strings"

// ParseTags turns the comma-separated tags field of upload/update requests
// into a trimmed, lowercased list. Order is preserved and duplicates are
// kept; tags are free text, not a controlled vocabulary.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, part := range strings.Split(raw, ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if tag == "" {
			continue
		}
		tags = append(tags, tag)
	}
	return tags
}
