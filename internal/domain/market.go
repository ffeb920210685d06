package domain

import (
	"strings"
	"time"
	"unicode"
)

// Market is a single prediction-market snapshot as fetched from the market source.
// A Market is never mutated after fetch; each refresh replaces the whole slice.
type Market struct {
	Ticker       string    `json:"ticker"`
	EventTicker  string    `json:"event_ticker,omitempty"`
	Title        string    `json:"title"`
	Subtitle     string    `json:"subtitle,omitempty"`
	RawCategory  string    `json:"raw_category,omitempty"` // Category string as reported upstream
	Category     Category  `json:"category"`
	YesPrice     int       `json:"yes_price"` // Cents, 0-100
	Volume       int64     `json:"volume"`
	OpenInterest int64     `json:"open_interest"`
	CloseTime    time.Time `json:"close_time,omitzero"`
}

// NoPrice returns the complementary NO price in cents.
func (m Market) NoPrice() int {
	return 100 - m.YesPrice
}

// Category is the normalized topic a market belongs to.
type Category int

const (
	CategoryOther Category = iota
	CategoryPolitics
	CategoryEconomy
	CategoryClimate
	CategoryWeather
	CategorySports
	CategoryEntertainment
	CategoryTechnology
	CategoryScience
	CategoryCrypto
	CategoryWorld
)

var categoryNames = [...]string{
	CategoryOther:         "Other",
	CategoryPolitics:      "Politics",
	CategoryEconomy:       "Economy",
	CategoryClimate:       "Climate",
	CategoryWeather:       "Weather",
	CategorySports:        "Sports",
	CategoryEntertainment: "Entertainment",
	CategoryTechnology:    "Technology",
	CategoryScience:       "Science",
	CategoryCrypto:        "Crypto",
	CategoryWorld:         "World",
}

// String returns the display name of the category.
func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return categoryNames[CategoryOther]
	}
	return categoryNames[c]
}

// MarshalText encodes the category by display name.
func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText decodes a display name (case-insensitive).
func (c *Category) UnmarshalText(text []byte) error {
	parsed, ok := ParseCategory(string(text))
	if !ok {
		return NewInputError("category", ErrUnknownCategory)
	}
	*c = parsed
	return nil
}

// ParseCategory resolves a display name (case-insensitive) to a Category.
func ParseCategory(name string) (Category, bool) {
	name = strings.TrimSpace(name)
	for i, n := range categoryNames {
		if strings.EqualFold(n, name) {
			return Category(i), true
		}
	}
	return CategoryOther, false
}

// categoryAliases maps substrings of the upstream category field to categories.
// Order matters: the first matching alias wins.
var categoryAliases = []struct {
	alias    string
	category Category
}{
	{"politics", CategoryPolitics},
	{"economics", CategoryEconomy},
	{"financial", CategoryEconomy},
	{"fed", CategoryEconomy},
	{"climate", CategoryClimate},
	{"weather", CategoryWeather},
	{"sports", CategorySports},
	{"entertainment", CategoryEntertainment},
	{"tech", CategoryTechnology},
	{"science", CategoryScience},
	{"crypto", CategoryCrypto},
	{"world", CategoryWorld},
}

// titleKeywords is consulted when the upstream category field is inconclusive.
// Multi-word keywords are matched as phrases, single words as whole tokens.
var titleKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryPolitics, []string{"trump", "biden", "election", "congress", "senate", "president", "governor", "vote"}},
	{CategoryEconomy, []string{"fed", "inflation", "gdp", "unemployment", "rate", "rates", "recession", "jobs", "cpi"}},
	{CategoryWeather, []string{"temperature", "hurricane", "rain", "snow", "weather", "storm"}},
	{CategorySports, []string{"nfl", "nba", "mlb", "super bowl", "championship", "game", "match"}},
	{CategoryTechnology, []string{"ai", "openai", "google", "apple", "microsoft", "tech"}},
	{CategoryCrypto, []string{"bitcoin", "ethereum", "crypto", "btc", "eth"}},
	{CategoryEntertainment, []string{"oscar", "emmy", "movie", "film", "grammy", "album"}},
}

// Categorize derives the category of a market from the upstream category field,
// falling back to keywords found in the title.
func Categorize(rawCategory, title string) Category {
	raw := strings.ToLower(rawCategory)
	if raw != "" {
		for _, a := range categoryAliases {
			if strings.Contains(raw, a.alias) {
				return a.category
			}
		}
	}

	lowered := strings.ToLower(title)
	tokens := make(map[string]bool)
	for _, t := range strings.FieldsFunc(lowered, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[t] = true
	}

	for _, group := range titleKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(lowered, kw) {
					return group.category
				}
				continue
			}
			if tokens[kw] {
				return group.category
			}
		}
	}
	return CategoryOther
}
