package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL.
var ErrInvalidSeed = errors.New("seed must be an absolute http(s) URL")

// CreditsURL appends the cast-and-crew suffix to the seed title URL.
// Query and fragment are dropped and the seed path always ends in a slash
// before the suffix is added, so both ".../tt4154796" and ".../tt4154796/"
// yield ".../tt4154796/fullcredits".
func CreditsURL(seed, suffix string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(seed))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidSeed, seed)
	}
	suffix = strings.Trim(strings.TrimSpace(suffix), "/")
	if suffix == "" {
		return "", fmt.Errorf("credits suffix must be set")
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.RawPath = ""
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	u.Path += suffix
	return u.String(), nil
}
