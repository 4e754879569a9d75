package overridecoordinator

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/wheelibin/yeetlight/internal/models"
	"github.com/wheelibin/yeetlight/internal/registry"
)

type OverrideStore interface {
	SetOverride(o models.Override) error
	GetOverride(bulb string, attr models.Attribute) (*models.Override, error)
	SetOverrideFailed(o models.Override, message string) (bool, error)
	ClearOverride(bulb string, attr models.Attribute) error
	ClearOverrides(bulb string) error
	ClearOverridesStagedBefore(t time.Time) (int64, error)
}

type ConfirmedState interface {
	Has(name string) bool
	Read(name string, attr models.Attribute) (models.Reading, error)
}

// Coordinator holds the values a user is editing, shown in place of the
// confirmed state until the command resolves or the override expires
type Coordinator struct {
	logger   *log.Logger
	store    OverrideStore
	registry ConfirmedState
	ttl      time.Duration
	now      func() time.Time
}

// NewCoordinator creates a coordinator, a zero ttl keeps overrides until cleared
func NewCoordinator(logger *log.Logger, store OverrideStore, registry ConfirmedState, ttl time.Duration, now func() time.Time) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{logger: logger, store: store, registry: registry, ttl: ttl, now: now}
}

func (c *Coordinator) check(name string) error {
	if !c.registry.Has(name) {
		return fmt.Errorf("%q: %w", name, registry.ErrUnknownBulb)
	}
	return nil
}

// Stage replaces any override for the bulb attribute, resetting a failed state.
// The returned override identifies this stage for Fail.
func (c *Coordinator) Stage(name string, attr models.Attribute, value int64) (models.Override, error) {
	if err := c.check(name); err != nil {
		return models.Override{}, err
	}

	o := models.Override{
		Bulb:      name,
		Attribute: attr,
		Value:     value,
		Status:    models.OverridePending,
		StagedAt:  c.now(),
	}
	if err := c.store.SetOverride(o); err != nil {
		return models.Override{}, err
	}
	return o, nil
}

// Read returns the override when one is staged, else the confirmed value
func (c *Coordinator) Read(name string, attr models.Attribute) (models.Reading, error) {
	o, err := c.Lookup(name, attr)
	if err != nil {
		return models.Unknown(), err
	}
	if o != nil {
		return models.Known(o.Value), nil
	}
	return c.registry.Read(name, attr)
}

// Lookup returns the live override for the bulb attribute, or nil.
// Expired overrides are removed on the way.
func (c *Coordinator) Lookup(name string, attr models.Attribute) (*models.Override, error) {
	if err := c.check(name); err != nil {
		return nil, err
	}

	o, err := c.store.GetOverride(name, attr)
	if err != nil || o == nil {
		return nil, err
	}

	if c.ttl > 0 && c.now().Sub(o.StagedAt) > c.ttl {
		c.logger.Info("override expired", "bulb", name, "attribute", attr, "status", o.Status)
		if err := c.store.ClearOverride(name, attr); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return o, nil
}

func (c *Coordinator) Clear(name string, attr models.Attribute) error {
	if err := c.check(name); err != nil {
		return err
	}
	return c.store.ClearOverride(name, attr)
}

// Fail flags a stage as failed. The value stays displayed so the user can
// retry or roll back. Returns false when the bulb attribute was staged again
// meanwhile, whatever the value.
func (c *Coordinator) Fail(staged models.Override, cause error) (bool, error) {
	if err := c.check(staged.Bulb); err != nil {
		return false, err
	}

	message := "command not applied"
	if cause != nil {
		message = cause.Error()
	}
	return c.store.SetOverrideFailed(staged, message)
}

// Rollback discards the override, showing the confirmed value again
func (c *Coordinator) Rollback(name string, attr models.Attribute) error {
	c.logger.Info("rolling back", "bulb", name, "attribute", attr)
	return c.Clear(name, attr)
}

func (c *Coordinator) Purge(name string) error {
	if err := c.check(name); err != nil {
		return err
	}
	return c.store.ClearOverrides(name)
}

// Expire removes every override older than the ttl
func (c *Coordinator) Expire() (int64, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	n, err := c.store.ClearOverridesStagedBefore(c.now().Add(-c.ttl))
	if n > 0 {
		c.logger.Info("overrides expired", "count", n)
	}
	return n, err
}
