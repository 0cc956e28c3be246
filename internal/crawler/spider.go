package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gocolly/colly/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/castcrawler/internal/credit"
	"github.com/JakeFAU/castcrawler/internal/id/uuid"
	"github.com/JakeFAU/castcrawler/internal/metrics"
	"github.com/JakeFAU/castcrawler/internal/telemetry"
)

// ErrNoCredits is returned when a run finishes without extracting any credit.
var ErrNoCredits = errors.New("crawl produced no credits")

// Spider walks seed page -> full credits page -> actor pages and collects credits.
type Spider struct {
	cfg       Config
	transport http.RoundTripper
	ids       IDGenerator
	clock     Clock
	logger    *zap.Logger
}

// NewSpider validates cfg and builds a Spider. A nil transport, id generator,
// clock or logger falls back to a pooled transport, UUIDv7 ids, the system
// clock and a no-op logger.
func NewSpider(cfg Config, transport http.RoundTripper, ids IDGenerator, clock Clock, logger *zap.Logger) (*Spider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid crawler config: %w", err)
	}
	if transport == nil {
		transport = NewHTTPTransport(cfg)
	}
	if ids == nil {
		ids = uuid.New()
	}
	if clock == nil {
		clock = systemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Spider{
		cfg:       cfg,
		transport: transport,
		ids:       ids,
		clock:     clock,
		logger:    logger.Named("spider"),
	}, nil
}

// runState is shared between the collector callbacks of a single run.
type runState struct {
	mu        sync.Mutex
	seedTitle string
	credits   []credit.Credit
	pages     int
	failures  int
	queued    int
}

func (s *runState) addPage() {
	s.mu.Lock()
	s.pages++
	s.mu.Unlock()
}

func (s *runState) addFailure() {
	s.mu.Lock()
	s.failures++
	s.mu.Unlock()
}

// reserveActor claims a slot for one more actor page; it fails once limit is reached.
func (s *runState) reserveActor(limit int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > 0 && s.queued >= limit {
		return false
	}
	s.queued++
	return true
}

func (s *runState) releaseActor() {
	s.mu.Lock()
	s.queued--
	s.mu.Unlock()
}

func (s *runState) emit(actor string, titles []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, title := range titles {
		s.credits = append(s.credits, credit.Credit{Actor: actor, Title: title})
	}
}

// Run performs one crawl. Credits are returned sorted by actor with each
// actor's filmography order preserved.
func (s *Spider) Run(ctx context.Context) (credit.Run, []credit.Credit, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "crawler.Run",
		trace.WithAttributes(attribute.String("crawler.seed_url", s.cfg.SeedURL)),
	)
	defer span.End()

	run, credits, err := s.run(ctx)
	span.SetAttributes(
		attribute.String("crawler.run_id", run.ID),
		attribute.Int("crawler.pages", run.Pages),
		attribute.Int("crawler.failures", run.Failures),
		attribute.Int("crawler.credits", len(credits)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return run, credits, err
}

func (s *Spider) run(ctx context.Context) (credit.Run, []credit.Credit, error) {
	runID, err := s.ids.NewID()
	if err != nil {
		return credit.Run{}, nil, fmt.Errorf("generate run id: %w", err)
	}
	creditsURL, err := CreditsURL(s.cfg.SeedURL, s.cfg.CreditsSuffix)
	if err != nil {
		return credit.Run{}, nil, err
	}

	run := credit.Run{
		ID:        runID,
		SeedURL:   s.cfg.SeedURL,
		StartedAt: s.clock.Now(),
	}
	logger := s.logger.With(zap.String("run_id", runID))
	state := &runState{}

	base, err := s.newCollector(ctx)
	if err != nil {
		return run, nil, err
	}
	seed := base.Clone()
	credits := base.Clone()
	actors := base.Clone()

	s.instrument(ctx, seed, metrics.StageSeed, state, logger)
	s.instrument(ctx, credits, metrics.StageCredits, state, logger)
	s.instrument(ctx, actors, metrics.StageActor, state, logger)

	seed.OnHTML("html", func(e *colly.HTMLElement) {
		title := ExtractSeedTitle(e.DOM, s.cfg.Selectors.SeedTitle)
		state.mu.Lock()
		state.seedTitle = title
		state.mu.Unlock()
		logger.Info("Seed page parsed", zap.String("title", title))
	})
	seed.OnScraped(func(r *colly.Response) {
		if err := credits.Visit(creditsURL); err != nil {
			logger.Error("Failed to queue credits page", zap.String("url", creditsURL), zap.Error(err))
			state.addFailure()
		}
	})

	credits.OnHTML("html", func(e *colly.HTMLElement) {
		links := ExtractActorLinks(e.DOM, s.cfg.Selectors.ActorLink)
		logger.Info("Credits page parsed",
			zap.String("url", e.Request.URL.String()),
			zap.Int("actor_links", len(links)),
		)
		for _, link := range links {
			if !state.reserveActor(s.cfg.MaxActors) {
				logger.Info("Actor limit reached", zap.Int("max_actors", s.cfg.MaxActors))
				return
			}
			actorURL := e.Request.AbsoluteURL(link)
			if err := actors.Visit(actorURL); err != nil {
				state.releaseActor()
				var alreadyVisited *colly.AlreadyVisitedError
				if errors.As(err, &alreadyVisited) {
					logger.Debug("Actor page already queued", zap.String("url", actorURL))
					continue
				}
				logger.Warn("Failed to queue actor page", zap.String("url", actorURL), zap.Error(err))
			}
		}
	})

	actors.OnHTML("html", func(e *colly.HTMLElement) {
		pageURL := e.Request.URL.String()
		name := ExtractActorName(e.DOM, s.cfg.Selectors.ActorName)
		if name == "" {
			logger.Warn("Actor name not found", zap.String("url", pageURL))
			state.addFailure()
			return
		}
		titles := ExtractFilmography(e.DOM, s.cfg.Selectors.FilmographyRow, s.cfg.Selectors.CreditTitle)
		state.emit(name, titles)
		metrics.ObserveCredits(len(titles))
		logger.Debug("Actor page parsed",
			zap.String("url", pageURL),
			zap.String("actor", name),
			zap.Int("credits", len(titles)),
		)
	})

	logger.Info("Crawl started", zap.String("seed", s.cfg.SeedURL), zap.String("credits_url", creditsURL))
	if err := seed.Visit(s.cfg.SeedURL); err != nil {
		return run, nil, fmt.Errorf("visit seed: %w", err)
	}
	seed.Wait()
	credits.Wait()
	actors.Wait()

	state.mu.Lock()
	run.SeedTitle = state.seedTitle
	run.Pages = state.pages
	run.Failures = state.failures
	out := state.credits
	state.credits = nil
	state.mu.Unlock()
	run.FinishedAt = s.clock.Now()

	if err := ctx.Err(); err != nil {
		return run, nil, fmt.Errorf("crawl canceled: %w", err)
	}

	credit.SortCredits(out)
	metrics.ObserveRun(run.Duration())
	logger.Info("Crawl finished",
		zap.Int("pages", run.Pages),
		zap.Int("failures", run.Failures),
		zap.Int("credits", len(out)),
		zap.Duration("duration", run.Duration()),
	)
	if len(out) == 0 {
		return run, nil, ErrNoCredits
	}
	return run, out, nil
}

func (s *Spider) newCollector(ctx context.Context) (*colly.Collector, error) {
	opts := []colly.CollectorOption{
		colly.Async(true),
		colly.UserAgent(s.cfg.UserAgent),
		colly.StdlibContext(ctx),
	}
	if len(s.cfg.AllowedDomains) > 0 {
		opts = append(opts, colly.AllowedDomains(s.cfg.AllowedDomains...))
	}
	c := colly.NewCollector(opts...)
	c.AllowURLRevisit = false
	c.IgnoreRobotsTxt = !s.cfg.RespectRobots
	c.WithTransport(s.transport)
	c.SetRequestTimeout(s.cfg.RequestTimeout)
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: s.cfg.Parallelism,
		Delay:       s.cfg.Delay,
		RandomDelay: s.cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("set collector limits: %w", err)
	}
	return c, nil
}

// instrument attaches cancellation, logging and metrics hooks to a collector.
func (s *Spider) instrument(ctx context.Context, c *colly.Collector, stage string, state *runState, logger *zap.Logger) {
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		logger.Debug("Visiting", zap.String("stage", stage), zap.String("url", r.URL.String()))
	})

	c.OnResponse(func(r *colly.Response) {
		state.addPage()
		metrics.ObservePage(stage, r.StatusCode)
	})

	c.OnError(func(r *colly.Response, err error) {
		state.addFailure()
		status := 0
		target := ""
		if r != nil {
			status = r.StatusCode
			if r.Request != nil && r.Request.URL != nil {
				target = r.Request.URL.String()
			}
		}
		metrics.ObserveRequestError(stage, status)
		msg := "Request failed"
		switch status {
		case http.StatusTooManyRequests:
			msg = "Rate limited"
		case http.StatusForbidden:
			msg = "Forbidden"
		}
		logger.Error(msg,
			zap.String("stage", stage),
			zap.String("url", target),
			zap.Int("status_code", status),
			zap.Error(err),
		)
	})
}
