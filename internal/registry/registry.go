package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"github.com/wheelibin/yeetlight/internal/models"
)

// ErrUnknownBulb is returned for any name outside the fixed bulb set.
// The set never changes at runtime, so callers should treat it as a programming error.
var ErrUnknownBulb = errors.New("unknown bulb")

type bulbStore interface {
	Add(bulbs []models.Bulb) error
	Names() ([]string, error)
	Get(name string) (models.Bulb, bool, error)
	SetAttribute(name string, attr models.Attribute, value models.Reading) error
	SetState(name string, power models.Power, brightness, temperature, color models.Reading) error
}

// Registry holds the last confirmed state of every known bulb.
// Observed attributes are written only from confirmed command results or status fetches.
type Registry struct {
	logger *log.Logger
	store  bulbStore
	names  []string

	mu        sync.RWMutex
	listeners []func(models.Bulb)
}

// BulbsFromConfig builds the bulb list from the configuration document, sorted by name
func BulbsFromConfig(cfg models.BulbsConfig) []models.Bulb {
	names := lo.Keys(cfg.Bulbs)
	sort.Strings(names)

	return lo.Map(names, func(name string, _ int) models.Bulb {
		c := cfg.Bulbs[name]
		addr := c.Addr
		if addr == "" {
			addr = name
		}
		return models.Bulb{
			Name:   name,
			Addr:   addr,
			IsRGB:  c.RGB,
			Linked: append([]string{}, c.Linked...),
		}
	})
}

func New(logger *log.Logger, store bulbStore, bulbs []models.Bulb) (*Registry, error) {
	names := lo.Map(bulbs, func(b models.Bulb, _ int) string { return b.Name })

	if lo.Contains(names, "") {
		return nil, errors.New("bulb name must not be empty")
	}
	if dupes := lo.FindDuplicates(names); len(dupes) > 0 {
		return nil, fmt.Errorf("duplicate bulb names: %v", dupes)
	}
	for _, b := range bulbs {
		if missing, _ := lo.Difference(b.Linked, names); len(missing) > 0 {
			return nil, fmt.Errorf("bulb (%s) linked to %v: %w", b.Name, missing, ErrUnknownBulb)
		}
	}

	bulbs = lo.Map(bulbs, func(b models.Bulb, _ int) models.Bulb {
		if b.Addr == "" {
			b.Addr = b.Name
		}
		return b
	})
	if err := store.Add(bulbs); err != nil {
		return nil, err
	}

	sorted, err := store.Names()
	if err != nil {
		return nil, err
	}
	logger.Debug("registry created", "bulbs", len(sorted))

	return &Registry{logger: logger, store: store, names: sorted}, nil
}

func (r *Registry) Names() []string {
	return append([]string{}, r.names...)
}

func (r *Registry) Has(name string) bool {
	idx := sort.SearchStrings(r.names, name)
	return idx < len(r.names) && r.names[idx] == name
}

func (r *Registry) check(name string) error {
	if !r.Has(name) {
		return fmt.Errorf("%q: %w", name, ErrUnknownBulb)
	}
	return nil
}

func (r *Registry) Get(name string) (models.Bulb, error) {
	if err := r.check(name); err != nil {
		return models.Bulb{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.get(name)
}

func (r *Registry) get(name string) (models.Bulb, error) {
	bulb, found, err := r.store.Get(name)
	if err != nil {
		return models.Bulb{}, err
	}
	if !found {
		return models.Bulb{}, fmt.Errorf("%q: %w", name, ErrUnknownBulb)
	}
	return bulb, nil
}

func (r *Registry) Power(name string) (models.Power, error) {
	bulb, err := r.Get(name)
	if err != nil {
		return models.PowerUnknown, err
	}
	return bulb.Power, nil
}

func (r *Registry) Read(name string, attr models.Attribute) (models.Reading, error) {
	bulb, err := r.Get(name)
	if err != nil {
		return models.Unknown(), err
	}
	return bulb.Read(attr), nil
}

// Observe records a confirmed attribute value
func (r *Registry) Observe(name string, attr models.Attribute, value models.Reading) error {
	if err := r.check(name); err != nil {
		return err
	}

	r.mu.Lock()
	err := r.store.SetAttribute(name, attr, value)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.logger.Debug("observed", "bulb", name, "attribute", attr, "value", value.Format(attr))
	r.notify(name)
	return nil
}

// ApplyStatus records a status snapshot, all attributes in one step
func (r *Registry) ApplyStatus(name string, status models.Status) error {
	if err := r.check(name); err != nil {
		return err
	}

	power := models.PowerFromStatus(status.Power)

	r.mu.Lock()
	err := r.store.SetState(name, power, status.Brightness.Reading, status.Temperature.Reading, status.RGB.Reading)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	r.logger.Debug("status applied", "bulb", name, "power", power)
	r.notify(name)
	return nil
}

// OnChange registers a listener called after every mutation with the bulb's new state
func (r *Registry) OnChange(fn func(models.Bulb)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

func (r *Registry) notify(name string) {
	r.mu.RLock()
	listeners := append([]func(models.Bulb){}, r.listeners...)
	bulb, err := r.get(name)
	r.mu.RUnlock()

	if err != nil {
		r.logger.Error("error reading bulb for change listeners", "bulb", name, "err", err)
		return
	}
	for _, fn := range listeners {
		fn(bulb)
	}
}
