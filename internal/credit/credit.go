// Package credit defines the records produced by a crawl and the shared-actor
// ranking derived from them.
package credit

import (
	"sort"
	"time"
)

// Credit associates one actor with one movie or TV title from their filmography.
type Credit struct {
	Actor string `json:"actor"`
	Title string `json:"movie_or_TV_name"`
}

// TableHeader is the header row of the credit output table.
var TableHeader = []string{"actor", "movie_or_TV_name"}

// Run describes one crawl execution.
type Run struct {
	ID         string    `json:"id"`
	SeedURL    string    `json:"seed_url"`
	SeedTitle  string    `json:"seed_title,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Pages      int       `json:"pages"`
	Failures   int       `json:"failures"`
}

// Duration reports how long the run took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// SortCredits orders credits by actor. Each actor's filmography order is kept.
func SortCredits(credits []Credit) {
	sort.SliceStable(credits, func(i, j int) bool {
		return credits[i].Actor < credits[j].Actor
	})
}

// Actors returns the number of distinct actors among credits.
func Actors(credits []Credit) int {
	seen := make(map[string]struct{}, len(credits))
	for _, c := range credits {
		seen[c.Actor] = struct{}{}
	}
	return len(seen)
}
