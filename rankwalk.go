// Package rankwalk drives search-engine queries that locate a target
// link in paginated results, click through to it and linger like a
// human visitor, while aggregating ranking statistics across runs.
package rankwalk

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hazyhaar/rankwalk/internal/browser"
	"github.com/hazyhaar/rankwalk/internal/humanize"
	"github.com/hazyhaar/rankwalk/internal/idgen"
	"github.com/hazyhaar/rankwalk/internal/limiter"
	"github.com/hazyhaar/rankwalk/internal/match"
	"github.com/hazyhaar/rankwalk/internal/registry"
	"github.com/hazyhaar/rankwalk/internal/stats"
	"github.com/hazyhaar/rankwalk/internal/store"
	"github.com/hazyhaar/rankwalk/internal/walker"
)

// Outcome and Snapshot are aliased from the internal stats package so
// callers outside the module can name what Service returns.
type (
	Outcome  = stats.Outcome
	Snapshot = stats.Snapshot
)

// Config assembles a Service. Factory, Keywords and Targets are
// required; everything else has a working default.
type Config struct {
	Keywords *registry.Keywords
	Targets  *registry.Targets
	Factory  browser.Factory

	Strategy Strategy // nil = Sequential
	// Simulator humanizes the run: typing cadence, page surveys, dwell
	// on the target, iteration pacing. Nil disables all of it.
	Simulator *humanize.Simulator
	Limiter   *limiter.Limiter // nil = unpaced
	Recorder  *stats.Recorder  // nil = fresh recorder
	Store     *store.Store     // nil = statistics stay in memory
	IDs       idgen.Generator  // nil = UUIDv7

	MaxPages int           // page budget unless a keyword overrides it
	DwellMin time.Duration // on-target reading pause after a click
	DwellMax time.Duration
	DelayMin time.Duration // pause between iterations
	DelayMax time.Duration

	Logger *slog.Logger
}

// Service runs search cycles: one browser session at a time, one task
// at a time, every outcome recorded.
type Service struct {
	cfg      Config
	keywords *registry.Keywords
	targets  *registry.Targets
	factory  browser.Factory
	strategy Strategy
	sim      *humanize.Simulator
	limiter  *limiter.Limiter
	recorder *stats.Recorder
	store    *store.Store
	ids      idgen.Generator
	matcher  *match.Matcher
	logger   *slog.Logger
}

func New(cfg Config) (*Service, error) {
	if cfg.Factory == nil {
		return nil, fmt.Errorf("rankwalk: session factory required")
	}
	if cfg.Keywords == nil || cfg.Targets == nil {
		return nil, fmt.Errorf("rankwalk: keyword and target registries required")
	}
	if cfg.Strategy == nil {
		cfg.Strategy = Sequential{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = stats.NewRecorder()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = walker.DefaultMaxPages
	}
	if cfg.IDs == nil {
		cfg.IDs = idgen.New
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		cfg:      cfg,
		keywords: cfg.Keywords,
		targets:  cfg.Targets,
		factory:  cfg.Factory,
		strategy: cfg.Strategy,
		sim:      cfg.Simulator,
		limiter:  cfg.Limiter,
		recorder: cfg.Recorder,
		store:    cfg.Store,
		ids:      cfg.IDs,
		matcher:  match.New(cfg.Logger),
		logger:   cfg.Logger,
	}, nil
}

// FromConfig assembles a Service from a loaded configuration file.
func FromConfig(cfg *FileConfig, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	keywords := registry.NewKeywords()
	if err := keywords.Load(cfg.RegistryKeywords()); err != nil {
		return nil, err
	}
	entries, err := cfg.RegistryTargets()
	if err != nil {
		return nil, err
	}
	targets := registry.NewTargets()
	if err := targets.Load(entries); err != nil {
		return nil, err
	}

	engine := browser.Google()
	if cfg.Browser.EngineURL != "" {
		base := strings.TrimRight(cfg.Browser.EngineURL, "/")
		engine.BaseURL = base
		engine.ResultsTemplate = base + "/search?q={query}&start={start}"
	}

	sim := humanize.New(uint64(time.Now().UnixNano()))

	var factory browser.Factory
	switch cfg.Browser.Provider {
	case "http":
		hc := browser.HTTPConfig{Engine: engine, Logger: logger}
		if len(cfg.Browser.UserAgents) > 0 {
			hc.UserAgent = cfg.Browser.UserAgents[0]
		}
		factory = browser.HTTPFactory(hc)
	default:
		factory = browser.RodFactory(browser.RodConfig{
			Engine:           engine,
			RemoteURL:        cfg.Browser.Remote,
			Headless:         cfg.Browser.HeadlessOn(),
			UserAgents:       cfg.Browser.UserAgents,
			ResourceBlocking: cfg.Browser.ResourceBlocking,
			WaitTimeout:      cfg.General.WaitTimeout.Std(),
			TypeDelay:        sim.TypeDelay,
			Logger:           logger,
		})
	}

	lim := limiter.New(limiter.Config{
		MinInterval:    max(cfg.Limits.MinInterval.Std(), 0),
		Hourly:         max(cfg.Limits.Hourly, 0),
		Daily:          max(cfg.Limits.Daily, 0),
		LongBreakEvery: max(cfg.Limits.LongBreak.Every, 0),
		LongBreakMin:   cfg.Limits.LongBreak.Min.Std(),
		LongBreakMax:   cfg.Limits.LongBreak.Max.Std(),
		CooldownAfter:  max(cfg.Limits.FailureCooldown.After, 0),
		CooldownMin:    cfg.Limits.FailureCooldown.Min.Std(),
		CooldownMax:    cfg.Limits.FailureCooldown.Max.Std(),
		Logger:         logger,
	})

	var st *store.Store
	if cfg.Storage.Path != "" {
		st, err = store.Open(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
	}

	var strat Strategy = Sequential{}
	delayMin := cfg.General.MinDelay.Std()
	delayMax := cfg.General.MaxDelay.Std()
	if re := cfg.General.RandomExecution; re.Enabled {
		strat = Randomized{
			Iterations:    re.TotalIterations,
			RandomKeyword: re.RandomKeywordSelection,
			RandomTarget:  re.RandomURLSelection,
		}
		delayMin = re.MinDelayBetweenIterations.Std()
		delayMax = re.MaxDelayBetweenIterations.Std()
	}

	return New(Config{
		Keywords:  keywords,
		Targets:   targets,
		Factory:   factory,
		Strategy:  strat,
		Simulator: sim,
		Limiter:   lim,
		Store:     st,
		MaxPages:  cfg.General.MaxPages,
		DwellMin:  cfg.General.PageDelay.Min.Std(),
		DwellMax:  cfg.General.PageDelay.Max.Std(),
		DelayMin:  delayMin,
		DelayMax:  delayMax,
		Logger:    logger,
	})
}

// RunCycle acquires one browser session and executes the cycle's task
// plan against it. Per-task failures become failed outcomes and the
// cycle continues; failing to acquire the session is fatal and yields
// zero outcomes. The returned list covers every executed task, success
// or not.
func (s *Service) RunCycle(ctx context.Context) ([]Outcome, error) {
	session, err := s.factory(ctx)
	if err != nil {
		s.logger.Error("rankwalk: session acquisition failed", "error", err)
		return nil, err
	}
	defer session.Close()

	pairs := s.strategy.Plan(s.keywords.ListEnabled(), s.targets.ListEnabled())
	if len(pairs) == 0 {
		s.logger.Info("rankwalk: no enabled keyword/target pairs, nothing to do")
		return nil, nil
	}
	s.logger.Info("rankwalk: cycle starting", "tasks", len(pairs))

	var survey func(context.Context)
	if s.sim != nil {
		survey = func(ctx context.Context) { s.sim.SurveyPage(ctx, session) }
	}
	w := walker.New(walker.Config{
		Matcher: s.matcher,
		Survey:  survey,
		Logger:  s.logger,
	})

	outcomes := make([]Outcome, 0, len(pairs))
	for i, task := range pairs {
		o := s.runTask(ctx, session, w, task)
		outcomes = append(outcomes, o)
		s.record(ctx, o)
		if s.limiter != nil {
			s.limiter.Done(o.Matched)
		}

		if err := ctx.Err(); err != nil {
			s.logger.Warn("rankwalk: cycle interrupted", "completed", len(outcomes), "planned", len(pairs))
			return outcomes, err
		}
		if i < len(pairs)-1 && s.sim != nil {
			if err := s.sim.Pause(ctx, s.cfg.DelayMin, s.cfg.DelayMax); err != nil {
				return outcomes, err
			}
		}
	}

	s.logger.Info("rankwalk: cycle finished", "tasks", len(outcomes),
		"success_rate", s.recorder.OverallSuccessRate())
	return outcomes, nil
}

func (s *Service) runTask(ctx context.Context, session browser.Session, w *walker.Walker, task TaskPair) Outcome {
	start := time.Now()
	o := Outcome{
		ID:      s.ids(),
		Keyword: task.Keyword.Text,
		Target:  task.Target.URL,
		At:      start,
	}
	fail := func(err error) Outcome {
		o.State = walker.StateAborted.String()
		o.Error = err.Error()
		o.ErrorKind = errorKind(err)
		o.Elapsed = time.Since(start)
		s.targets.RecordAttempt(task.Target.URL)
		return o
	}

	if s.limiter != nil {
		if err := s.limiter.Reserve(ctx); err != nil {
			return fail(err)
		}
	}

	s.logger.Info("rankwalk: task starting", "keyword", task.Keyword.Text, "target", task.Target.URL)
	if err := session.Search(ctx, task.Keyword.Text); err != nil {
		s.logger.Warn("rankwalk: search failed", "keyword", task.Keyword.Text, "error", err)
		return fail(err)
	}

	maxPages := task.Keyword.MaxPages
	if maxPages <= 0 {
		maxPages = s.cfg.MaxPages
	}
	res := w.Walk(ctx, session, task.Target.Rule(), maxPages)

	o.Matched = res.Found
	o.Clicked = res.Clicked
	o.Page = res.Page
	o.Pages = res.Pages
	o.State = res.State.String()
	if res.Err != nil {
		o.Error = res.Err.Error()
		o.ErrorKind = errorKind(res.Err)
	}

	if res.Clicked && s.sim != nil {
		if err := s.sim.Dwell(ctx, session, s.cfg.DwellMin, s.cfg.DwellMax); err != nil {
			s.logger.Debug("rankwalk: dwell cut short", "error", err)
		}
	}
	o.Elapsed = time.Since(start)
	s.targets.RecordAttempt(task.Target.URL)

	if o.Matched {
		s.logger.Info("rankwalk: target found", "keyword", o.Keyword, "target", o.Target,
			"page", o.Page, "clicked", o.Clicked)
	} else {
		s.logger.Info("rankwalk: target not found", "keyword", o.Keyword, "target", o.Target,
			"state", o.State, "pages", o.Pages)
	}
	return o
}

func (s *Service) record(ctx context.Context, o Outcome) {
	s.recorder.Record(o)
	if s.store == nil {
		return
	}
	// Outcomes survive interrupts; persistence must not die with ctx.
	if err := s.store.Append(context.WithoutCancel(ctx), o); err != nil {
		s.logger.Warn("rankwalk: persist outcome failed", "id", o.ID, "error", err)
	}
}

// Stats returns the live recorder.
func (s *Service) Stats() *stats.Recorder { return s.recorder }

// Snapshot exports the aggregate view; window bounds the trend series.
func (s *Service) Snapshot(window time.Duration) Snapshot {
	return s.recorder.Snapshot(window)
}

// Rebuild discards the in-memory statistics and replays the persisted
// outcome log through a fresh recorder.
func (s *Service) Rebuild(ctx context.Context) error {
	if s.store == nil {
		return fmt.Errorf("rankwalk: rebuild requires a store")
	}
	fresh := stats.NewRecorder()
	if err := s.store.Replay(ctx, func(o stats.Outcome) error {
		fresh.Record(o)
		return nil
	}); err != nil {
		return fmt.Errorf("rankwalk: rebuild: %w", err)
	}
	s.recorder = fresh
	return nil
}

// Close releases owned resources.
func (s *Service) Close() error {
	if s.store == nil {
		return nil
	}
	return s.store.Close()
}
