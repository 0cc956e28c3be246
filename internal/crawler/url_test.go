package crawler

import (
	"errors"
	"testing"
)

func TestCreditsURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		seed   string
		suffix string
		want   string
	}{
		{"trailing slash", "https://www.imdb.com/title/tt4154796/", "fullcredits", "https://www.imdb.com/title/tt4154796/fullcredits"},
		{"no trailing slash", "https://www.imdb.com/title/tt4154796", "fullcredits", "https://www.imdb.com/title/tt4154796/fullcredits"},
		{"query and fragment dropped", "https://www.imdb.com/title/tt4154796/?ref_=nv_sr_1#cast", "fullcredits", "https://www.imdb.com/title/tt4154796/fullcredits"},
		{"suffix slashes trimmed", "http://localhost:8080/title/tt1/", "/fullcredits/", "http://localhost:8080/title/tt1/fullcredits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CreditsURL(tt.seed, tt.suffix)
			if err != nil {
				t.Fatalf("CreditsURL() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("CreditsURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCreditsURLRejectsBadSeed(t *testing.T) {
	t.Parallel()

	for _, seed := range []string{"", "www.imdb.com/title/tt4154796/", "ftp://www.imdb.com/title/tt1/", "https://"} {
		if _, err := CreditsURL(seed, "fullcredits"); !errors.Is(err, ErrInvalidSeed) {
			t.Errorf("CreditsURL(%q) error = %v, want ErrInvalidSeed", seed, err)
		}
	}
	if _, err := CreditsURL("https://www.imdb.com/title/tt1/", " / "); err == nil {
		t.Fatal("expected error for empty suffix")
	}
}
