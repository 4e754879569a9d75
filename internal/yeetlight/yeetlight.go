package yeetlight

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	bulbview "github.com/wheelibin/yeetlight/internal/bulbView"
	commanddispatcher "github.com/wheelibin/yeetlight/internal/commandDispatcher"
	"github.com/wheelibin/yeetlight/internal/config"
	linkpropagator "github.com/wheelibin/yeetlight/internal/linkPropagator"
	"github.com/wheelibin/yeetlight/internal/models"
	overridecoordinator "github.com/wheelibin/yeetlight/internal/overrideCoordinator"
	"github.com/wheelibin/yeetlight/internal/registry"
	"github.com/wheelibin/yeetlight/internal/repos"
)

type Gateway interface {
	commanddispatcher.Gateway
	FetchConfig(ctx context.Context) (models.BulbsConfig, error)
}

// Yeetlight owns the bulb set and one view per bulb
type Yeetlight struct {
	logger  *log.Logger
	cfg     config.Config
	gateway Gateway
	db      *sql.DB

	registry    *registry.Registry
	coordinator *overridecoordinator.Coordinator
	ledger      *repos.CommandRepo
	views       map[string]*bulbview.View

	mu        sync.RWMutex
	listeners []func(models.BulbSnapshot)
}

func NewYeetlight(logger *log.Logger, cfg config.Config, gateway Gateway, db *sql.DB) *Yeetlight {
	return &Yeetlight{
		logger:  logger,
		cfg:     cfg,
		gateway: gateway,
		db:      db,
		views:   map[string]*bulbview.View{},
	}
}

// Initialise fetches the bulb configuration and initialises a view per bulb.
// A view that fails to load its status is logged and left uninitialised.
func (y *Yeetlight) Initialise(ctx context.Context) error {
	y.logger.Debug("Yeetlight.Initialise")

	bulbsConfig, err := y.gateway.FetchConfig(ctx)
	if err != nil {
		return err
	}

	bulbRepo, err := repos.NewBulbRepo(y.logger, y.db)
	if err != nil {
		return err
	}
	overrideRepo, err := repos.NewOverrideRepo(y.logger, y.db)
	if err != nil {
		return err
	}
	y.ledger, err = repos.NewCommandRepo(y.logger, y.db)
	if err != nil {
		return err
	}

	y.registry, err = registry.New(y.logger, bulbRepo, registry.BulbsFromConfig(bulbsConfig))
	if err != nil {
		return err
	}
	y.registry.OnChange(func(b models.Bulb) { y.publish(b.Name) })

	dispatcher := commanddispatcher.NewDispatcher(y.logger, y.gateway, y.registry, y.ledger, y.cfg.SequencePowerOn)
	y.coordinator = overridecoordinator.NewCoordinator(y.logger, overrideRepo, y.registry, y.cfg.OverrideTTL, time.Now)
	propagator := linkpropagator.NewPropagator(y.logger, dispatcher, y.cfg.LinkRateLimit)

	for _, name := range y.registry.Names() {
		view := bulbview.NewView(y.logger, name, y.registry, dispatcher, y.coordinator, propagator)
		view.OnChange(y.publish)
		y.views[name] = view

		if err := view.Initialise(ctx); err != nil {
			y.logger.Error("bulb unavailable", "bulb", name, "err", err)
		}
	}

	y.logger.Info("bulbs loaded", "count", len(y.views))
	return nil
}

func (y *Yeetlight) Names() []string {
	if y.registry == nil {
		return []string{}
	}
	return y.registry.Names()
}

func (y *Yeetlight) View(name string) (*bulbview.View, error) {
	view, ok := y.views[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, registry.ErrUnknownBulb)
	}
	return view, nil
}

// Snapshot returns the display state of every bulb, sorted by name
func (y *Yeetlight) Snapshot() []models.BulbSnapshot {
	return lo.FilterMap(y.Names(), func(name string, _ int) (models.BulbSnapshot, bool) {
		snapshot, err := y.views[name].Snapshot()
		if err != nil {
			y.logger.Error("Error reading bulb", "bulb", name, "err", err)
			return snapshot, false
		}
		return snapshot, true
	})
}

func (y *Yeetlight) Apply(ctx context.Context, name string, intent models.Intent) error {
	view, err := y.View(name)
	if err != nil {
		return err
	}
	return view.Apply(ctx, intent)
}

func (y *Yeetlight) EnableLink(name string, link string, enable bool) error {
	view, err := y.View(name)
	if err != nil {
		return err
	}
	return view.EnableLink(link, enable)
}

func (y *Yeetlight) Retry(ctx context.Context, name string, attr models.Attribute) error {
	view, err := y.View(name)
	if err != nil {
		return err
	}
	return view.Retry(ctx, attr)
}

func (y *Yeetlight) Rollback(name string, attr models.Attribute) error {
	view, err := y.View(name)
	if err != nil {
		return err
	}
	return view.Rollback(attr)
}

// Refresh re-fetches the status of every initialised bulb
func (y *Yeetlight) Refresh(ctx context.Context) error {
	var errs []error
	for _, name := range y.Names() {
		view := y.views[name]
		if !view.Initialised() {
			continue
		}
		if err := view.Refresh(ctx); err != nil {
			y.logger.Warn("refresh failed", "bulb", name, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Failures returns the failed commands for a bulb issued at or after since
func (y *Yeetlight) Failures(name string, since time.Time) ([]models.CommandRecord, error) {
	if _, err := y.View(name); err != nil {
		return nil, err
	}
	return y.ledger.Failures(name, since)
}

// OnChange registers a listener for every displayed state change
func (y *Yeetlight) OnChange(fn func(models.BulbSnapshot)) {
	y.mu.Lock()
	defer y.mu.Unlock()
	y.listeners = append(y.listeners, fn)
}

func (y *Yeetlight) publish(name string) {
	y.mu.RLock()
	listeners := append([]func(models.BulbSnapshot){}, y.listeners...)
	y.mu.RUnlock()
	if len(listeners) == 0 {
		return
	}

	view, ok := y.views[name]
	if !ok {
		return
	}
	snapshot, err := view.Snapshot()
	if err != nil {
		y.logger.Error("Error reading bulb for listeners", "bulb", name, "err", err)
		return
	}
	for _, fn := range listeners {
		fn(snapshot)
	}
}

// Run refreshes bulb status and expires stale overrides until ctx is done
func (y *Yeetlight) Run(ctx context.Context) {
	y.logger.Debug("Yeetlight.Run")

	var refresh, expire <-chan time.Time
	if y.cfg.RefreshInterval > 0 {
		refreshTimer := time.NewTicker(y.cfg.RefreshInterval)
		defer refreshTimer.Stop()
		refresh = refreshTimer.C
	}
	if y.cfg.OverrideTTL > 0 {
		expireTimer := time.NewTicker(y.cfg.OverrideTTL / 2)
		defer expireTimer.Stop()
		expire = expireTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			y.logger.Info("Yeetlight.Run: stop signal received")
			return

		case t := <-refresh:
			y.logger.Debug("Yeetlight.Run: refreshing bulbs...", "t", t)
			_ = y.Refresh(ctx)

		case <-expire:
			n, err := y.coordinator.Expire()
			if err != nil {
				y.logger.Error("Error expiring overrides", "err", err)
				continue
			}
			if n > 0 {
				for _, name := range y.Names() {
					y.publish(name)
				}
			}
		}
	}
}

// Close waits for in-flight commands and tears down every view
func (y *Yeetlight) Close() error {
	var errs []error
	for _, view := range y.views {
		if err := view.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
