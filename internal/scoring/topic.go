package scoring

import (
	"regexp"
	"strings"
)

// majorTopics is the ordered token list checked first during topic
// extraction; earlier entries win when a title mentions several.
var majorTopics = []string{
	"ukraine", "russia", "putin", "zelensky", "kyiv", "moscow",
	"covid", "coronavirus", "pandemic",
	"china", "taiwan", "beijing",
	"israel", "gaza", "palestine",
	"climate", "earthquake", "hurricane",
	"trump", "biden", "election",
}

// significantWord matches the first standalone word of at least four letters.
var significantWord = regexp.MustCompile(`\b[a-zA-Z]{4,}\b`)

// ExtractTopic derives the tracking topic for a title: the first major topic
// token contained in the normalized title, else the first word of four or
// more letters, else "general".
func ExtractTopic(title string) string {
	lower := strings.ToLower(title)

	for _, topic := range majorTopics {
		if strings.Contains(lower, topic) {
			return topic
		}
	}

	if word := significantWord.FindString(title); word != "" {
		return strings.ToLower(word)
	}

	return "general"
}
