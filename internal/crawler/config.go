package crawler

import (
	"fmt"
	"time"
)

// Selectors are the CSS selectors used on each page type.
type Selectors struct {
	SeedTitle      string
	ActorLink      string
	ActorName      string
	FilmographyRow string
	CreditTitle    string
}

// DefaultSelectors matches the classic IMDb title, full credits and name pages.
func DefaultSelectors() Selectors {
	return Selectors{
		SeedTitle:      "h1",
		ActorLink:      "td.primary_photo a",
		ActorName:      "span.itemprop",
		FilmographyRow: "div.filmo-row",
		CreditTitle:    "a",
	}
}

// Config holds the settings for a crawl run.
// It is decoupled from Viper so the spider can be built directly in tests.
type Config struct {
	SeedURL        string
	CreditsSuffix  string
	AllowedDomains []string
	UserAgent      string
	RespectRobots  bool
	Parallelism    int
	Delay          time.Duration
	RandomDelay    time.Duration
	RequestTimeout time.Duration
	// MaxActors caps the number of actor pages queued. Zero means no cap.
	MaxActors int
	Selectors Selectors
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if _, err := CreditsURL(c.SeedURL, c.CreditsSuffix); err != nil {
		return err
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent must be set")
	}
	if c.Parallelism <= 0 {
		return fmt.Errorf("parallelism must be > 0")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be > 0")
	}
	if c.MaxActors < 0 {
		return fmt.Errorf("max actors must be >= 0")
	}
	s := c.Selectors
	if s.ActorLink == "" || s.ActorName == "" || s.FilmographyRow == "" || s.CreditTitle == "" {
		return fmt.Errorf("actor link, actor name, filmography row and credit title selectors are required")
	}
	return nil
}
