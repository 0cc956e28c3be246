package credit

import (
	"sort"
	"strings"
)

// Recommendation is one row of the "movies sharing actors" table.
type Recommendation struct {
	Title        string `json:"movie_or_TV_name"`
	SharedActors int    `json:"shared_actors"`
}

// RecommendationHeader is the header row used by tabular recommendation output.
var RecommendationHeader = []string{"movie_or_TV_name", "number of shared actors"}

// Rank counts distinct actors per title and orders titles by that count,
// highest first. Ties fall back to title order. Titles listed in exclude are
// dropped, compared case-insensitively.
func Rank(credits []Credit, exclude []string) []Recommendation {
	skip := make(map[string]struct{}, len(exclude))
	for _, title := range exclude {
		skip[strings.ToLower(strings.TrimSpace(title))] = struct{}{}
	}

	actorsByTitle := make(map[string]map[string]struct{})
	for _, c := range credits {
		if c.Title == "" || c.Actor == "" {
			continue
		}
		if _, ok := skip[strings.ToLower(c.Title)]; ok {
			continue
		}
		actors, ok := actorsByTitle[c.Title]
		if !ok {
			actors = make(map[string]struct{})
			actorsByTitle[c.Title] = actors
		}
		actors[c.Actor] = struct{}{}
	}

	recs := make([]Recommendation, 0, len(actorsByTitle))
	for title, actors := range actorsByTitle {
		recs = append(recs, Recommendation{Title: title, SharedActors: len(actors)})
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].SharedActors != recs[j].SharedActors {
			return recs[i].SharedActors > recs[j].SharedActors
		}
		return recs[i].Title < recs[j].Title
	})
	return recs
}

// Top returns the first n recommendations. n <= 0 returns all of them.
func Top(recs []Recommendation, n int) []Recommendation {
	if n <= 0 || n >= len(recs) {
		return recs
	}
	return recs[:n]
}
