package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"editguard/internal/adapter"
	"editguard/internal/adapter/backends"
	"editguard/internal/config"
	"editguard/internal/constraint"
	"editguard/internal/diff"
	"editguard/internal/events"
	"editguard/internal/intake"
	"editguard/internal/logging"
	"editguard/internal/mode"
	"editguard/internal/processor"
	"editguard/internal/store"
	"editguard/internal/validate"
)

// app is the wired component graph for one command invocation.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	modes     *mode.Registry
	compiler  *constraint.Compiler
	validator *validate.Validator
	engine    *diff.Engine
	bus       *events.Bus
	router    *adapter.Router
	store     *store.Store
	proc      *processor.Processor
}

// newApp wires every component from cfg. The processor is only built when
// a corrector is given.
func newApp(ctx context.Context, cfg *config.Config, l *zap.Logger, corrector processor.Corrector) (*app, error) {
	a := &app{
		cfg:       cfg,
		logger:    l,
		modes:     mode.NewRegistry(l),
		compiler:  constraint.NewCompiler(l),
		validator: validate.New(l),
		engine:    diff.NewEngine(diffOptions(cfg)),
	}
	for _, mc := range cfg.Modes {
		if err := a.modes.Register(mode.FromConfig(mc)); err != nil {
			return nil, fmt.Errorf("mode %s: %w", mc.ID, err)
		}
	}

	if cfg.Store.Enabled {
		st, err := store.Open(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		a.store = st
		counts, err := st.Stats(ctx)
		if err != nil {
			st.Close()
			return nil, err
		}
		logging.For(l, logging.CategoryStore).Debug("store opened",
			zap.String("path", st.Path()),
			zap.Int("results", counts["results"]),
			zap.Int("journal", counts["journal"]))
	}

	a.bus = events.New(events.Options{
		Threshold: cfg.Events.FailureThreshold,
		Window:    cfg.GetFailureWindow(),
		QueueSize: cfg.Events.QueueSize,
	}, l)
	if cfg.Logging.IsCategoryEnabled(string(logging.CategoryEvents)) {
		a.bus.On(events.Wildcard, events.LogHandler(l))
	}

	router, err := adapter.NewRouter(adapter.Options{
		Strategy:       cfg.Router.Strategy,
		HealthInterval: cfg.GetHealthInterval(),
	}, a.bus, l)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.router = router
	if err := backends.RegisterAll(ctx, router, cfg.EnabledBackends(), a.store, l); err != nil {
		a.Close(ctx)
		return nil, err
	}

	if corrector != nil {
		a.proc, err = processor.New(processor.Deps{
			Modes:     a.modes,
			Compiler:  a.compiler,
			Validator: a.validator,
			Engine:    a.engine,
			Router:    a.router,
			Corrector: corrector,
			Bus:       a.bus,
			Store:     a.store,
		}, processor.Options{
			Limits:        intake.Limits{DefaultMode: cfg.Engine.DefaultMode, MaxTextLength: cfg.Engine.MaxTextLength},
			Compile:       compileOptions(cfg),
			SlowThreshold: cfg.GetSlowThreshold(),
			Persist:       cfg.Processor.Persist,
		}, l)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
	}
	logging.For(l, logging.CategoryBoot).Debug("components wired",
		zap.Strings("backends", router.Names()),
		zap.Bool("store", a.store != nil))
	return a, nil
}

// Close releases the router, the event channel and the store in that order.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.router != nil {
		errs = append(errs, a.router.Close(ctx))
	}
	if a.bus != nil {
		_ = a.bus.Flush(ctx)
		a.bus.Close()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

func diffOptions(cfg *config.Config) diff.Options {
	return diff.Options{
		Timeout:              cfg.GetDiffTimeout(),
		LineModeThreshold:    cfg.Diff.LineModeThreshold,
		MatchThreshold:       cfg.Diff.MatchThreshold,
		MatchDistance:        cfg.Diff.MatchDistance,
		PatchDeleteThreshold: cfg.Diff.PatchDeleteThreshold,
		PatchMargin:          cfg.Diff.PatchMargin,
	}
}

func compileOptions(cfg *config.Config) constraint.Options {
	return constraint.Options{
		Timeout:           cfg.GetEngineTimeout(),
		RetryCount:        cfg.Engine.RetryCount,
		PreferredBackends: cfg.Engine.PreferredBackends,
		FallbackPolicy:    cfg.Engine.FallbackPolicy,
	}
}
