package content

import (
	"fmt"
	"regexp"
	"strings"
)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases a topic and collapses everything else into single dashes.
func Slugify(topic string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(topic), "-")
	return strings.Trim(s, "-")
}

// GenerateItemID builds an item ID from the current max sequence and a topic.
// The format is NNNN-slug, e.g. 0042-grapes.
func GenerateItemID(currentMax int, topic string) string {
	slug := Slugify(topic)
	if slug == "" {
		slug = "untitled"
	}
	return fmt.Sprintf("%04d-%s", currentMax+1, slug)
}

// ParseItemSequence extracts the sequence number from an item ID.
// Returns -1 if the ID format is invalid.
func ParseItemSequence(id string) int {
	var num int
	var rest string
	n, err := fmt.Sscanf(id, "%d-%s", &num, &rest)
	if err != nil || n != 2 {
		return -1
	}
	return num
}
