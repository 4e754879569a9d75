package linkpropagator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/wheelibin/yeetlight/internal/concurrency"
	"github.com/wheelibin/yeetlight/internal/models"
)

var ErrUnknownLink = errors.New("unknown link")

// Links is the per-view set of linked bulbs with their enable flags.
// Every link starts disabled, whatever was enabled in a previous view.
type Links struct {
	mu    sync.RWMutex
	links []models.Link
}

func NewLinks(names []string) *Links {
	return &Links{
		links: lo.Map(names, func(name string, _ int) models.Link {
			return models.Link{Name: name}
		}),
	}
}

func (l *Links) Enable(name string, enable bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, idx, found := lo.FindIndexOf(l.links, func(link models.Link) bool { return link.Name == name })
	if !found {
		return fmt.Errorf("%q: %w", name, ErrUnknownLink)
	}
	l.links[idx].Enable = enable
	return nil
}

// Enabled returns the names of the enabled links, in configured order
func (l *Links) Enabled() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return lo.FilterMap(l.links, func(link models.Link, _ int) (string, bool) {
		return link.Name, link.Enable
	})
}

func (l *Links) All() []models.Link {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Link{}, l.links...)
}

type Dispatcher interface {
	DispatchLinked(ctx context.Context, origin string, name string, intent models.Intent) error
}

type linkedCommand struct {
	origin string
	target string
	intent models.Intent
}

// Propagator mirrors a primary command onto enabled linked bulbs.
// Linked commands go through the full dispatch path, prerequisites included,
// and their results never reach the primary flow.
type Propagator struct {
	logger *log.Logger
	worker *concurrency.ThrottledWorker[linkedCommand]

	inflight sync.WaitGroup
}

func NewPropagator(logger *log.Logger, dispatcher Dispatcher, perSecond float64) *Propagator {
	p := &Propagator{logger: logger}
	p.worker = concurrency.NewThrottledWorker(perSecond, func(ctx context.Context, cmd linkedCommand) error {
		err := dispatcher.DispatchLinked(ctx, cmd.origin, cmd.target, cmd.intent)
		if err != nil {
			logger.Warn("linked command failed", "bulb", cmd.target, "origin", cmd.origin, "intent", cmd.intent, "err", err)
		}
		return err
	})
	return p
}

// Propagate issues intent to every enabled link in the background and returns
// the bulbs it was issued to
func (p *Propagator) Propagate(ctx context.Context, origin string, links *Links, intent models.Intent) []string {
	if links == nil {
		return nil
	}
	targets := links.Enabled()
	if len(targets) == 0 {
		return targets
	}

	p.logger.Debug("propagating", "origin", origin, "intent", intent, "targets", targets)
	cmds := lo.Map(targets, func(target string, _ int) linkedCommand {
		return linkedCommand{origin: origin, target: target, intent: intent}
	})

	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		// detached from the caller, like any other fire-and-forget command
		_ = p.worker.Run(context.WithoutCancel(ctx), cmds)
	}()

	return targets
}

// Wait blocks until every propagated command has resolved
func (p *Propagator) Wait() {
	p.inflight.Wait()
}
