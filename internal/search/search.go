// Package search ranks open events against a free-text query with
// typo-tolerant matching over name, category, description, location
// and price.
package search

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/get-me-through/server/internal/domain/events"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// maxDistance is the worst Levenshtein distance still considered a hit.
const maxDistance = 3

type EventSource interface {
	ListOpen(ctx context.Context) ([]*events.Event, error)
}

type Searcher struct {
	source EventSource
}

func New(source EventSource) *Searcher {
	return &Searcher{source: source}
}

type scored struct {
	event    *events.Event
	distance int
}

// Search returns the open events matching the query ordered best match
// first, ties broken by name. An empty query matches everything. Results
// are sliced by limit and offset; total is the full match count.
func (s *Searcher) Search(ctx context.Context, query string, limit, offset int) ([]*events.Event, int, error) {
	open, err := s.source.ListOpen(ctx)
	if err != nil {
		return nil, 0, err
	}

	query = strings.TrimSpace(query)

	var matched []scored
	for _, event := range open {
		if query == "" {
			matched = append(matched, scored{event: event})
			continue
		}
		if distance, ok := bestDistance(query, event); ok {
			matched = append(matched, scored{event: event, distance: distance})
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].distance != matched[j].distance {
			return matched[i].distance < matched[j].distance
		}
		return matched[i].event.Name < matched[j].event.Name
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*events.Event, len(matched))
	for i, m := range matched {
		out[i] = m.event
	}
	return out, total, nil
}

// bestDistance ranks the query against the event's searchable fields
// and keeps the closest hit. A query token counts as a match when it is
// within maxDistance of one of a field's words, or when it is a
// subsequence of the whole field (so "hack" still finds
// "Hackathon 2026"); distance only orders the results.
func bestDistance(query string, event *events.Event) (int, bool) {
	targets := []string{
		event.Name,
		event.CategoryName,
		event.Description,
		event.Location,
		strconv.FormatInt(event.Price, 10),
	}
	best := -1
	keep := func(distance int) {
		if best == -1 || distance < best {
			best = distance
		}
	}

	for _, token := range strings.Fields(query) {
		for _, target := range targets {
			for _, rank := range fuzzy.RankFindNormalizedFold(token, strings.Fields(target)) {
				if rank.Distance <= maxDistance {
					keep(rank.Distance)
				}
			}
			if fuzzy.MatchNormalizedFold(token, target) {
				keep(fuzzy.RankMatchNormalizedFold(token, target))
			}
		}
	}
	if best == -1 {
		return 0, false
	}
	return best, true
}
