package crawler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/castcrawler/internal/credit"
)

type fixedIDs struct{ id string }

func (f fixedIDs) NewID() (string, error) { return f.id, nil }

type failingIDs struct{}

func (failingIDs) NewID() (string, error) { return "", errors.New("no entropy") }

type stepClock struct{ ticks atomic.Int64 }

func (c *stepClock) Now() time.Time {
	n := c.ticks.Add(1)
	return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Second)
}

// newIMDbServer serves the fixtures under the same paths IMDb uses.
func newIMDbServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	serve := func(name string) http.HandlerFunc {
		return func(w http.ResponseWriter, _ *http.Request) {
			if hits != nil {
				hits.Add(1)
			}
			raw, err := os.ReadFile(filepath.Join("testdata", name))
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(raw)
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/title/tt4154796/", serve("title.html"))
	mux.HandleFunc("/title/tt4154796/fullcredits", serve("fullcredits.html"))
	mux.HandleFunc("/name/nm0000375/", serve("nm0000375.html"))
	mux.HandleFunc("/name/nm0262635/", serve("nm0262635.html"))
	mux.HandleFunc("/name/nm0424060/", serve("nm0424060.html"))
	mux.HandleFunc("/name/nm9999999/", func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	})
	mux.HandleFunc("/title/tt0000001/", serve("nm0000375.html"))
	mux.HandleFunc("/title/tt0000001/fullcredits", serve("title.html"))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(seed string) Config {
	return Config{
		SeedURL:        seed,
		CreditsSuffix:  "fullcredits",
		UserAgent:      "castcrawler-test",
		RespectRobots:  false,
		Parallelism:    2,
		RequestTimeout: 5 * time.Second,
		Selectors:      DefaultSelectors(),
	}
}

func TestSpiderRun(t *testing.T) {
	t.Parallel()

	srv := newIMDbServer(t, nil)
	spider, err := NewSpider(testConfig(srv.URL+"/title/tt4154796/"), nil, fixedIDs{id: "run-1"}, &stepClock{}, zap.NewNop())
	require.NoError(t, err)

	run, credits, err := spider.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, "Avengers: Endgame (2019)", run.SeedTitle)
	assert.Equal(t, 5, run.Pages)
	assert.Equal(t, 1, run.Failures)
	assert.Equal(t, time.Second, run.Duration())

	assert.Equal(t, []credit.Credit{
		{Actor: "Chris Evans", Title: "Avengers: Endgame"},
		{Actor: "Chris Evans", Title: "Avengers: Infinity War"},
		{Actor: "Chris Evans", Title: "Captain America: The First Avenger"},
		{Actor: "Robert Downey Jr.", Title: "Avengers: Endgame"},
		{Actor: "Robert Downey Jr.", Title: "Avengers: Infinity War"},
		{Actor: "Robert Downey Jr.", Title: "Iron Man"},
		{Actor: "Scarlett Johansson", Title: "Avengers: Endgame"},
		{Actor: "Scarlett Johansson", Title: "Black Widow"},
	}, credits)
}

func TestSpiderRunVisitsDuplicateActorOnce(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := newIMDbServer(t, &hits)
	spider, err := NewSpider(testConfig(srv.URL+"/title/tt4154796"), nil, fixedIDs{id: "run-2"}, nil, nil)
	require.NoError(t, err)

	_, credits, err := spider.Run(context.Background())
	require.NoError(t, err)
	// seed + credits + three actors; the 404 is not counted by the fixture handler.
	assert.Equal(t, int32(5), hits.Load())
	assert.Equal(t, 3, credit.Actors(credits))
}

func TestSpiderRunMaxActors(t *testing.T) {
	t.Parallel()

	srv := newIMDbServer(t, nil)
	cfg := testConfig(srv.URL + "/title/tt4154796/")
	cfg.MaxActors = 2
	spider, err := NewSpider(cfg, nil, fixedIDs{id: "run-3"}, nil, nil)
	require.NoError(t, err)

	run, credits, err := spider.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, run.Pages)
	assert.Equal(t, 0, run.Failures)
	assert.Equal(t, 2, credit.Actors(credits))
	for _, c := range credits {
		assert.NotEqual(t, "Scarlett Johansson", c.Actor)
	}
}

func TestSpiderRunNoCredits(t *testing.T) {
	t.Parallel()

	srv := newIMDbServer(t, nil)
	spider, err := NewSpider(testConfig(srv.URL+"/title/tt0000001/"), nil, fixedIDs{id: "run-4"}, nil, nil)
	require.NoError(t, err)

	run, credits, err := spider.Run(context.Background())
	require.ErrorIs(t, err, ErrNoCredits)
	assert.Empty(t, credits)
	assert.Equal(t, 2, run.Pages)
}

func TestSpiderRunCanceled(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := newIMDbServer(t, &hits)
	spider, err := NewSpider(testConfig(srv.URL+"/title/tt4154796/"), nil, fixedIDs{id: "run-5"}, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, credits, err := spider.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, credits)
	assert.Zero(t, hits.Load())
}

func TestSpiderRunIDFailure(t *testing.T) {
	t.Parallel()

	spider, err := NewSpider(testConfig("https://www.imdb.com/title/tt4154796/"), nil, failingIDs{}, nil, nil)
	require.NoError(t, err)
	_, _, err = spider.Run(context.Background())
	require.ErrorContains(t, err, "no entropy")
}

func TestNewSpiderValidatesConfig(t *testing.T) {
	t.Parallel()

	cfg := testConfig("not a url")
	_, err := NewSpider(cfg, nil, nil, nil, nil)
	require.ErrorIs(t, err, ErrInvalidSeed)

	cfg = testConfig("https://www.imdb.com/title/tt4154796/")
	cfg.Parallelism = 0
	_, err = NewSpider(cfg, nil, nil, nil, nil)
	require.Error(t, err)

	cfg = testConfig("https://www.imdb.com/title/tt4154796/")
	cfg.Selectors.ActorName = ""
	_, err = NewSpider(cfg, nil, nil, nil, nil)
	require.Error(t, err)
}

// Not parallel: swaps the global tracer provider.
func TestSpiderRunRecordsSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	srv := newIMDbServer(t, nil)
	spider, err := NewSpider(testConfig(srv.URL+"/title/tt4154796/"), nil, fixedIDs{id: "run-span"}, nil, nil)
	require.NoError(t, err)
	_, _, err = spider.Run(context.Background())
	require.NoError(t, err)

	noCredits, err := NewSpider(testConfig(srv.URL+"/title/tt0000001/"), nil, fixedIDs{id: "run-empty"}, nil, nil)
	require.NoError(t, err)
	_, _, err = noCredits.Run(context.Background())
	require.ErrorIs(t, err, ErrNoCredits)

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	attrs := func(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
		out := make(map[attribute.Key]attribute.Value)
		for _, kv := range s.Attributes() {
			out[kv.Key] = kv.Value
		}
		return out
	}
	ok := attrs(ended[0])
	assert.Equal(t, "crawler.Run", ended[0].Name())
	assert.Equal(t, "run-span", ok["crawler.run_id"].AsString())
	assert.Equal(t, int64(8), ok["crawler.credits"].AsInt64())
	assert.Equal(t, codes.Unset, ended[0].Status().Code)

	assert.Equal(t, codes.Error, ended[1].Status().Code)
	assert.Equal(t, "run-empty", attrs(ended[1])["crawler.run_id"].AsString())
}

func TestSpiderRunSkipsNamelessActor(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"/title/tt1/": `<html><body><h1>Seed</h1></body></html>`,
		"/title/tt1/fullcredits": `<html><body><table class="cast_list">
<tr><td class="primary_photo"><a href="/name/nm1/"><img alt="real"></a></td></tr>
<tr><td class="primary_photo"><a href="/name/nm2/"><img alt="nameless"></a></td></tr>
</table></body></html>`,
		"/name/nm1/": `<html><body><h1><span class="itemprop">Real Name</span></h1>
<div class="filmo-row"><b><a href="/title/tt2/">Good</a></b></div></body></html>`,
		"/name/nm2/": `<html><body><h1></h1>
<div class="filmo-row"><b><a href="/title/tt3/">Orphan</a></b></div></body></html>`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	core, logs := observer.New(zap.WarnLevel)
	spider, err := NewSpider(testConfig(srv.URL+"/title/tt1/"), nil, fixedIDs{id: "run-nameless"}, nil, zap.New(core))
	require.NoError(t, err)

	run, credits, err := spider.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, run.Pages)
	assert.Equal(t, 1, run.Failures)
	assert.Equal(t, []credit.Credit{{Actor: "Real Name", Title: "Good"}}, credits)

	warned := logs.FilterMessage("Actor name not found").All()
	require.Len(t, warned, 1)
	assert.Equal(t, srv.URL+"/name/nm2/", warned[0].ContextMap()["url"])
}
