package match

import (
	"errors"
	"math"
	"sort"

	"kalshi_news/internal/domain"
)

const (
	DefaultThreshold  = 0.15
	DefaultMaxMatches = 5
)

// Options controls which matches are kept.
type Options struct {
	Threshold  float64 // Minimum relevance, inclusive
	MaxMatches int     // 0 means no matches are returned
}

// DefaultOptions returns the default matching options.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, MaxMatches: DefaultMaxMatches}
}

// Validate rejects thresholds outside [0,1] and negative counts.
func (o Options) Validate() error {
	if math.IsNaN(o.Threshold) || o.Threshold < 0 || o.Threshold > 1 {
		return domain.NewInputError("threshold", domain.ErrOutOfRange)
	}
	if o.MaxMatches < 0 {
		return domain.NewInputError("max_matches", errors.New("must not be negative"))
	}
	return nil
}

// Corpus is a news snapshot with keywords extracted once per item.
// A Corpus is read-only after construction and safe for concurrent use.
type Corpus struct {
	items    []domain.NewsItem
	keywords []Set
}

// NewCorpus extracts keywords for every item.
func NewCorpus(items []domain.NewsItem) *Corpus {
	c := &Corpus{
		items:    items,
		keywords: make([]Set, len(items)),
	}
	for i, item := range items {
		c.keywords[i] = Extract(item.Text())
	}
	return c
}

// Len returns the number of items in the corpus.
func (c *Corpus) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// Matcher ranks corpus items against markets.
type Matcher struct {
	opts Options
}

// NewMatcher validates opts and returns a Matcher.
func NewMatcher(opts Options) (*Matcher, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Matcher{opts: opts}, nil
}

// MarketKeywords returns the keyword set used for a market: its title and subtitle.
func MarketKeywords(mk domain.Market) Set {
	if mk.Subtitle == "" {
		return Extract(mk.Title)
	}
	return Extract(mk.Title + " " + mk.Subtitle)
}

// Match returns the corpus items whose relevance to mk is at least the threshold,
// ordered by relevance, then newer publication, then corpus order.
// The result is empty, never nil, when nothing qualifies.
func (m *Matcher) Match(mk domain.Market, c *Corpus) []domain.Match {
	out := []domain.Match{}
	if c.Len() == 0 || m.opts.MaxMatches == 0 {
		return out
	}

	kw := MarketKeywords(mk)
	if len(kw) == 0 {
		return out
	}

	for i, nk := range c.keywords {
		score := Similarity(kw, nk)
		if score == 0 || score < m.opts.Threshold {
			continue
		}
		out = append(out, domain.Match{News: c.items[i], Relevance: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return out[i].News.Published.After(out[j].News.Published)
	})

	if len(out) > m.opts.MaxMatches {
		out = out[:m.opts.MaxMatches:m.opts.MaxMatches]
	}
	return out
}
