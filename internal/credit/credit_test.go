package credit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankCountsDistinctActors(t *testing.T) {
	t.Parallel()

	credits := []Credit{
		{Actor: "Robert Downey Jr.", Title: "Avengers: Endgame"},
		{Actor: "Robert Downey Jr.", Title: "Iron Man"},
		{Actor: "Robert Downey Jr.", Title: "Iron Man"},
		{Actor: "Chris Evans", Title: "Avengers: Endgame"},
		{Actor: "Chris Evans", Title: "Captain America"},
		{Actor: "Scarlett Johansson", Title: "Avengers: Endgame"},
		{Actor: "Scarlett Johansson", Title: "Captain America"},
		{Actor: "Scarlett Johansson", Title: "Her"},
		{Actor: "", Title: "Ghost"},
		{Actor: "Nobody", Title: ""},
	}

	got := Rank(credits, nil)
	require.Equal(t, []Recommendation{
		{Title: "Avengers: Endgame", SharedActors: 3},
		{Title: "Captain America", SharedActors: 2},
		{Title: "Her", SharedActors: 1},
		{Title: "Iron Man", SharedActors: 1},
	}, got)
}

func TestRankExcludesTitles(t *testing.T) {
	t.Parallel()

	credits := []Credit{
		{Actor: "A", Title: "Seed Movie"},
		{Actor: "B", Title: "Seed Movie"},
		{Actor: "A", Title: "Other"},
	}
	got := Rank(credits, []string{" seed movie "})
	require.Equal(t, []Recommendation{{Title: "Other", SharedActors: 1}}, got)
}

func TestTop(t *testing.T) {
	t.Parallel()

	recs := []Recommendation{{Title: "a"}, {Title: "b"}, {Title: "c"}}
	assert.Len(t, Top(recs, 2), 2)
	assert.Len(t, Top(recs, 0), 3)
	assert.Len(t, Top(recs, 10), 3)
	assert.Empty(t, Top(nil, 3))
}

func TestSortCreditsKeepsFilmographyOrder(t *testing.T) {
	t.Parallel()

	credits := []Credit{
		{Actor: "Zoe", Title: "Z2"},
		{Actor: "Zoe", Title: "Z1"},
		{Actor: "Adam", Title: "A2"},
		{Actor: "Adam", Title: "A1"},
	}
	SortCredits(credits)
	assert.Equal(t, []Credit{
		{Actor: "Adam", Title: "A2"},
		{Actor: "Adam", Title: "A1"},
		{Actor: "Zoe", Title: "Z2"},
		{Actor: "Zoe", Title: "Z1"},
	}, credits)
	assert.Equal(t, 2, Actors(credits))
}

func TestRunDuration(t *testing.T) {
	t.Parallel()

	start := time.Unix(100, 0)
	assert.Equal(t, 3*time.Second, Run{StartedAt: start, FinishedAt: start.Add(3 * time.Second)}.Duration())
	assert.Zero(t, Run{StartedAt: start}.Duration())
}
