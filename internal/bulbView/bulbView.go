package bulbview

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	commanddispatcher "github.com/wheelibin/yeetlight/internal/commandDispatcher"
	linkpropagator "github.com/wheelibin/yeetlight/internal/linkPropagator"
	"github.com/wheelibin/yeetlight/internal/models"
)

var (
	ErrNotInitialised = errors.New("bulb view not initialised")
	ErrNothingToRetry = errors.New("no failed override to retry")
)

type BulbSource interface {
	Get(name string) (models.Bulb, error)
}

type Dispatcher interface {
	LoadStatus(ctx context.Context, name string) error
	Dispatch(ctx context.Context, name string, intent models.Intent) error
	Wait()
}

type Coordinator interface {
	Stage(name string, attr models.Attribute, value int64) (models.Override, error)
	Read(name string, attr models.Attribute) (models.Reading, error)
	Lookup(name string, attr models.Attribute) (*models.Override, error)
	Clear(name string, attr models.Attribute) error
	Fail(staged models.Override, cause error) (bool, error)
	Rollback(name string, attr models.Attribute) error
	Purge(name string) error
}

type Propagator interface {
	Propagate(ctx context.Context, origin string, links *linkpropagator.Links, intent models.Intent) []string
	Wait()
}

// View is the detail view of one bulb: the values a user sees and the entry
// point for everything they do to it
type View struct {
	logger      *log.Logger
	name        string
	bulbs       BulbSource
	dispatcher  Dispatcher
	coordinator Coordinator
	propagator  Propagator

	mu          sync.RWMutex
	links       *linkpropagator.Links
	initialised bool
	onChange    func(name string)
}

func NewView(logger *log.Logger, name string, bulbs BulbSource, dispatcher Dispatcher, coordinator Coordinator, propagator Propagator) *View {
	return &View{
		logger:      logger.With("bulb", name),
		name:        name,
		bulbs:       bulbs,
		dispatcher:  dispatcher,
		coordinator: coordinator,
		propagator:  propagator,
	}
}

func (v *View) Name() string {
	return v.name
}

// OnChange registers a callback for override and link changes.
// Confirmed state changes are published by the registry.
func (v *View) OnChange(fn func(name string)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onChange = fn
}

func (v *View) changed() {
	v.mu.RLock()
	fn := v.onChange
	v.mu.RUnlock()
	if fn != nil {
		fn(v.name)
	}
}

// Initialise loads the bulb status and rebuilds its links, all disabled.
// A status failure leaves the view uninitialised.
func (v *View) Initialise(ctx context.Context) error {
	v.logger.Debug("View.Initialise")

	if err := v.dispatcher.LoadStatus(ctx, v.name); err != nil {
		return fmt.Errorf("Error initialising view: %w", err)
	}
	bulb, err := v.bulbs.Get(v.name)
	if err != nil {
		return err
	}
	if err := v.coordinator.Purge(v.name); err != nil {
		return err
	}

	v.mu.Lock()
	v.links = linkpropagator.NewLinks(bulb.Linked)
	v.initialised = true
	v.mu.Unlock()

	v.changed()
	return nil
}

func (v *View) Initialised() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.initialised
}

// Refresh re-fetches the bulb status, leaving links and overrides untouched
func (v *View) Refresh(ctx context.Context) error {
	if !v.Initialised() {
		return ErrNotInitialised
	}
	return v.dispatcher.LoadStatus(ctx, v.name)
}

func (v *View) currentLinks() (*linkpropagator.Links, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if !v.initialised {
		return nil, fmt.Errorf("bulb (%s): %w", v.name, ErrNotInitialised)
	}
	return v.links, nil
}

// Apply runs a user intent: stage the value, mirror it to enabled links, send
// it to this bulb, then clear the override on success or flag it failed
func (v *View) Apply(ctx context.Context, intent models.Intent) error {
	links, err := v.currentLinks()
	if err != nil {
		return err
	}
	if err := v.checkIntent(intent); err != nil {
		return err
	}

	if intent.Attribute == models.AttrPower && intent.Power == models.PowerUnknown {
		return v.resetPower(ctx, links)
	}

	staged, err := v.coordinator.Stage(v.name, intent.Attribute, intent.Reading().Value)
	if err != nil {
		return err
	}
	v.changed()

	v.propagator.Propagate(ctx, v.name, links, intent)

	if err := v.dispatcher.Dispatch(ctx, v.name, intent); err != nil {
		if _, ferr := v.coordinator.Fail(staged, err); ferr != nil {
			v.logger.Error("Error flagging override", "attribute", intent.Attribute, "err", ferr)
		}
		v.changed()
		return err
	}

	if err := v.coordinator.Clear(v.name, intent.Attribute); err != nil {
		return err
	}
	v.changed()
	return nil
}

func (v *View) resetPower(ctx context.Context, links *linkpropagator.Links) error {
	if err := v.coordinator.Clear(v.name, models.AttrPower); err != nil {
		return err
	}
	intent := models.PowerIntent(models.PowerUnknown)
	v.propagator.Propagate(ctx, v.name, links, intent)
	return v.dispatcher.Dispatch(ctx, v.name, intent)
}

func (v *View) checkIntent(intent models.Intent) error {
	if err := intent.Validate(); err != nil {
		return err
	}
	if intent.Attribute != models.AttrColor {
		return nil
	}
	bulb, err := v.bulbs.Get(v.name)
	if err != nil {
		return err
	}
	if !bulb.IsRGB {
		return fmt.Errorf("bulb (%s): %w", v.name, commanddispatcher.ErrNoColor)
	}
	return nil
}

func (v *View) SetPower(ctx context.Context, on bool) error {
	return v.Apply(ctx, models.PowerIntent(models.PowerFromBool(on)))
}

// ResetPower forgets the confirmed power locally, nothing is sent to the bulb
func (v *View) ResetPower(ctx context.Context) error {
	return v.Apply(ctx, models.PowerIntent(models.PowerUnknown))
}

func (v *View) SetBrightness(ctx context.Context, pct int) error {
	return v.Apply(ctx, models.BrightnessIntent(pct))
}

func (v *View) SetTemperature(ctx context.Context, temperature int) error {
	return v.Apply(ctx, models.TemperatureIntent(temperature))
}

func (v *View) SetColor(ctx context.Context, color models.Color) error {
	return v.Apply(ctx, models.ColorIntent(color))
}

// Stage shows a value while the user is still editing it, nothing is sent
func (v *View) Stage(intent models.Intent) error {
	if _, err := v.currentLinks(); err != nil {
		return err
	}
	if err := v.checkIntent(intent); err != nil {
		return err
	}
	if _, err := v.coordinator.Stage(v.name, intent.Attribute, intent.Reading().Value); err != nil {
		return err
	}
	v.changed()
	return nil
}

func (v *View) StageBrightness(pct int) error {
	return v.Stage(models.BrightnessIntent(pct))
}

func (v *View) StageTemperature(temperature int) error {
	return v.Stage(models.TemperatureIntent(temperature))
}

func (v *View) StageColor(color models.Color) error {
	return v.Stage(models.ColorIntent(color))
}

func (v *View) Power() (models.Power, error) {
	r, err := v.coordinator.Read(v.name, models.AttrPower)
	return models.PowerFromReading(r), err
}

func (v *View) Brightness() (models.Reading, error) {
	return v.coordinator.Read(v.name, models.AttrBrightness)
}

func (v *View) Temperature() (models.Reading, error) {
	return v.coordinator.Read(v.name, models.AttrTemperature)
}

func (v *View) Color() (models.Reading, error) {
	return v.coordinator.Read(v.name, models.AttrColor)
}

func (v *View) EnableLink(name string, enable bool) error {
	links, err := v.currentLinks()
	if err != nil {
		return err
	}
	if err := links.Enable(name, enable); err != nil {
		return err
	}
	v.logger.Debug("link toggled", "link", name, "enable", enable)
	v.changed()
	return nil
}

func (v *View) Links() []models.Link {
	links, err := v.currentLinks()
	if err != nil {
		return []models.Link{}
	}
	return links.All()
}

// Retry re-sends the value of a failed override
func (v *View) Retry(ctx context.Context, attr models.Attribute) error {
	o, err := v.coordinator.Lookup(v.name, attr)
	if err != nil {
		return err
	}
	if o == nil || o.Status != models.OverrideFailed {
		return fmt.Errorf("bulb (%s) %s: %w", v.name, attr, ErrNothingToRetry)
	}
	v.logger.Info("retrying", "attribute", attr, "previousErr", o.Error)
	return v.Apply(ctx, models.IntentFor(attr, o.Value))
}

// Rollback drops the override so the confirmed value is shown again
func (v *View) Rollback(attr models.Attribute) error {
	if err := v.coordinator.Rollback(v.name, attr); err != nil {
		return err
	}
	v.changed()
	return nil
}

func (v *View) Snapshot() (models.BulbSnapshot, error) {
	bulb, err := v.bulbs.Get(v.name)
	if err != nil {
		return models.BulbSnapshot{}, err
	}

	snapshot := models.BulbSnapshot{
		Name:        bulb.Name,
		Addr:        bulb.Addr,
		RGB:         bulb.IsRGB,
		Initialised: v.Initialised(),
		Attributes:  map[models.Attribute]models.AttributeSnapshot{},
		Links:       v.Links(),
		UpdatedAt:   bulb.UpdatedAt,
	}

	attrs := lo.Filter(models.Attributes, func(attr models.Attribute, _ int) bool {
		return attr != models.AttrColor || bulb.IsRGB
	})
	for _, attr := range attrs {
		confirmed := bulb.Read(attr)
		a := models.AttributeSnapshot{
			Value:     confirmed.Format(attr),
			Confirmed: confirmed.Format(attr),
		}
		o, err := v.coordinator.Lookup(v.name, attr)
		if err != nil {
			return models.BulbSnapshot{}, err
		}
		if o != nil {
			a.Value = models.Known(o.Value).Format(attr)
			a.Pending = o.Status == models.OverridePending
			a.Failed = o.Status == models.OverrideFailed
			a.Error = o.Error
		}
		snapshot.Attributes[attr] = a
	}

	return snapshot, nil
}

// Wait blocks until prerequisites and linked commands issued so far have resolved
func (v *View) Wait() {
	v.propagator.Wait()
	v.dispatcher.Wait()
}

// Close discards the view's overrides and links
func (v *View) Close() error {
	v.Wait()

	v.mu.Lock()
	v.links = nil
	v.initialised = false
	v.mu.Unlock()

	return v.coordinator.Purge(v.name)
}
