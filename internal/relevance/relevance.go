// Package relevance decides whether a question is about the sales data at
// all. It errs on the side of letting questions through.
package relevance

import (
	"regexp"
	"strings"

	"github.com/salesbot/salesbot/internal/schema"
)

const (
	ReasonKeyword  = "keyword"
	ReasonOffTopic = "off_topic"
	ReasonDefault  = "default"
)

type Decision struct {
	Relevant bool   `json:"relevant"`
	Reason   string `json:"reason"`
	// Match is the keyword or off-topic pattern that decided the outcome.
	Match string `json:"match,omitempty"`
}

var domainKeywords = []string{
	"sale", "sales", "sold", "sell", "selling", "revenue", "income", "profit", "earning",
	"product", "products", "item", "category", "categories", "country", "countries",
	"region", "market", "rating", "ratings", "review", "star", "quantity", "units",
	"order", "orders", "customer", "purchase", "top", "best", "worst", "average", "total",
	"trend", "monthly", "month", "year", "quarter", "growth", "performance", "compare",
	"chart", "graph", "visualiz", "breakdown", "how many", "how much",
}

var offTopicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:weather|forecast|temperature|rain|snow)\b`),
	regexp.MustCompile(`\b(?:joke|jokes|funny|riddle)\b`),
	regexp.MustCompile(`\b(?:recipe|recipes|cook|cooking|bake|baking)\b`),
	regexp.MustCompile(`\b(?:news|headlines|politics|election)\b`),
	regexp.MustCompile(`\b(?:score|scores|match|game)\s+(?:last night|today|yesterday)\b`),
	regexp.MustCompile(`\b(?:movie|movies|film|tv show|netflix)\b`),
	regexp.MustCompile(`\b(?:poem|poetry|story|song|lyrics)\b`),
	regexp.MustCompile(`\b(?:code|coding|program|python|javascript|debug)\b`),
	regexp.MustCompile(`\b(?:who are you|what are you|your name|are you (?:a )?(?:bot|human|real))\b`),
	regexp.MustCompile(`\b(?:meaning of life|horoscope|translate)\b`),
}

// Classifier holds the keyword and pattern tables. The zero value is not
// usable; use New.
type Classifier struct {
	keywords []string
	offTopic []*regexp.Regexp
}

// New returns a classifier over the built-in keyword list, every enumerated
// category and country, and the built-in off-topic patterns.
func New() *Classifier {
	keywords := make([]string, 0, len(domainKeywords)+len(schema.Categories)+len(schema.Countries))
	keywords = append(keywords, domainKeywords...)
	for _, value := range schema.Categories {
		keywords = append(keywords, strings.ToLower(value))
	}
	for _, value := range schema.Countries {
		keywords = append(keywords, strings.ToLower(value))
	}
	return &Classifier{keywords: keywords, offTopic: offTopicPatterns}
}

// Classify checks domain keywords first, then off-topic patterns, and
// otherwise assumes the question is relevant.
func (c *Classifier) Classify(question string) Decision {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, keyword := range c.keywords {
		if strings.Contains(q, keyword) {
			return Decision{Relevant: true, Reason: ReasonKeyword, Match: keyword}
		}
	}
	for _, pattern := range c.offTopic {
		if m := pattern.FindString(q); m != "" {
			return Decision{Relevant: false, Reason: ReasonOffTopic, Match: m}
		}
	}
	return Decision{Relevant: true, Reason: ReasonDefault}
}

func (c *Classifier) IsRelevant(question string) bool {
	return c.Classify(question).Relevant
}
