// Package crawler implements the three-stage cast crawl: a movie title page,
// its full cast-and-crew listing, and every listed actor's filmography page.
// Fetching, scheduling and robots.txt handling are delegated to colly; this
// package only wires the collectors together and extracts credits from the
// returned documents.
package crawler
