// Package planner turns an intent into a short ordered list of catalog queries.
package planner

import (
	"strings"
	"unicode/utf8"

	"github.com/desertthunder/djx/internal/models"
)

const (
	DefaultMaxQueries = 3
	DefaultMaxLength  = 100
)

// Options bounds the plan. Zero values use the defaults.
type Options struct {
	MaxQueries int
	MaxLength  int
}

func (o Options) withDefaults() Options {
	if o.MaxQueries <= 0 {
		o.MaxQueries = DefaultMaxQueries
	}
	if o.MaxLength <= 0 {
		o.MaxLength = DefaultMaxLength
	}
	return o
}

// combinations lists facet groups in priority order.
var combinations = [][]models.Facet{
	{models.FacetGenre, models.FacetEra},
	{models.FacetMood, models.FacetTempo, models.FacetEnergy},
	{models.FacetGenre},
	{models.FacetMood},
}

// Plan builds up to opts.MaxQueries queries from intent.
//
// When the intent has no usable facet the plan is the transcript alone. Query text is whitespace-collapsed and
// truncated to opts.MaxLength runes; duplicates (case-insensitive) keep their first position. Ranks are the
// 0-based positions in the returned slice.
func Plan(intent models.Intent, opts Options) []models.SearchQuery {
	opts = opts.withDefaults()

	var queries []models.SearchQuery
	seen := make(map[string]bool)
	add := func(text string, facets []models.Facet) {
		text = clean(text, opts.MaxLength)
		key := strings.ToLower(text)
		if text == "" || seen[key] || len(queries) >= opts.MaxQueries {
			return
		}
		seen[key] = true
		queries = append(queries, models.SearchQuery{Text: text, Facets: facets, Rank: len(queries)})
	}

	for _, combo := range combinations {
		var parts []string
		var used []models.Facet
		for _, f := range combo {
			if v := strings.TrimSpace(intent.Get(f)); v != "" {
				parts = append(parts, v)
				used = append(used, f)
			}
		}
		if len(parts) > 0 {
			add(strings.Join(parts, " "), used)
		}
	}

	if len(queries) == 0 {
		add(intent.Fallback, nil)
	}

	return queries
}

// Fallback builds the transcript query at the given rank, or false when the transcript is blank.
func Fallback(intent models.Intent, rank int, opts Options) (models.SearchQuery, bool) {
	opts = opts.withDefaults()
	text := clean(intent.Fallback, opts.MaxLength)
	if text == "" {
		return models.SearchQuery{}, false
	}
	return models.SearchQuery{Text: text, Rank: rank}, true
}

// Contains reports whether plan already has a query with text equal to q's (case-insensitive).
func Contains(plan []models.SearchQuery, q models.SearchQuery) bool {
	for _, p := range plan {
		if strings.EqualFold(p.Text, q.Text) {
			return true
		}
	}
	return false
}

// clean collapses whitespace and cuts s to at most max runes.
func clean(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}
