package therapy

import (
	"sort"
	"strings"
)

// TagExtractor labels a message with topic categories for logging. It is
// purely classificatory: no side effects, same message always yields the
// same tag set.
type TagExtractor struct {
	groups map[string][]string
}

// NewTagExtractor builds an extractor over topic keyword groups
// (category name -> keyword list). Keywords are lower-cased once.
func NewTagExtractor(groups map[string][]string) *TagExtractor {
	cleaned := make(map[string][]string, len(groups))
	for tag, keywords := range groups {
		list := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				list = append(list, kw)
			}
		}
		cleaned[tag] = list
	}
	return &TagExtractor{groups: cleaned}
}

// Extract returns the sorted set of category names whose keyword lists
// substring-match the lower-cased message.
func (e *TagExtractor) Extract(message string) []string {
	lower := strings.ToLower(message)
	var tags []string
	for tag, keywords := range e.groups {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				tags = append(tags, tag)
				break
			}
		}
	}
	sort.Strings(tags)
	return tags
}
