// Package publisher announces finished crawl runs to downstream consumers.
package publisher

import (
	"context"
	"time"

	"github.com/JakeFAU/castcrawler/internal/credit"
)

// Publisher publishes a JSON-encodable payload to a topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RunCompleted is emitted after a crawl run has been persisted.
type RunCompleted struct {
	RunID      string    `json:"run_id"`
	SeedURL    string    `json:"seed_url"`
	SeedTitle  string    `json:"seed_title,omitempty"`
	Credits    int       `json:"credits"`
	Actors     int       `json:"actors"`
	Pages      int       `json:"pages"`
	Failures   int       `json:"failures"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewRunCompleted summarizes run and its credits into an event.
func NewRunCompleted(run credit.Run, credits []credit.Credit) RunCompleted {
	return RunCompleted{
		RunID:      run.ID,
		SeedURL:    run.SeedURL,
		SeedTitle:  run.SeedTitle,
		Credits:    len(credits),
		Actors:     credit.Actors(credits),
		Pages:      run.Pages,
		Failures:   run.Failures,
		FinishedAt: run.FinishedAt,
	}
}
