package commanddispatcher

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/wheelibin/yeetlight/internal/constants"
	"github.com/wheelibin/yeetlight/internal/models"
)

// ErrNoColor is returned when a color is sent to a bulb without the RGB capability
var ErrNoColor = errors.New("bulb has no color capability")

type Gateway interface {
	FetchStatus(ctx context.Context, addr string) (models.Status, error)
	SetPower(ctx context.Context, addr string, on bool) error
	SetBrightness(ctx context.Context, addr string, pct int) error
	SetTemperature(ctx context.Context, addr string, temperature int) error
	SetColor(ctx context.Context, addr string, color models.Color) error
}

type BulbRegistry interface {
	Get(name string) (models.Bulb, error)
	Observe(name string, attr models.Attribute, value models.Reading) error
	ApplyStatus(name string, status models.Status) error
}

type Ledger interface {
	Record(rec models.CommandRecord) error
}

// Dispatcher sends intents to the backend and records confirmed results in the registry.
//
// An attribute command for a bulb that is not known to be on is preceded by a
// power-on command. By default the attribute command is held only until the
// power-on request has been sent, not until it completes, so the device may
// still apply the two in either order. With sequencePowerOn the attribute
// command is held until the power-on completes.
type Dispatcher struct {
	logger          *log.Logger
	gateway         Gateway
	registry        BulbRegistry
	ledger          Ledger
	sequencePowerOn bool

	prerequisites sync.WaitGroup
}

func NewDispatcher(logger *log.Logger, gateway Gateway, registry BulbRegistry, ledger Ledger, sequencePowerOn bool) *Dispatcher {
	return &Dispatcher{
		logger:          logger,
		gateway:         gateway,
		registry:        registry,
		ledger:          ledger,
		sequencePowerOn: sequencePowerOn,
	}
}

// SetPower switches the bulb on or off. PowerUnknown is a local reset: the
// registry power goes back to unknown and nothing is sent.
func (d *Dispatcher) SetPower(ctx context.Context, name string, power models.Power) error {
	return d.dispatch(ctx, name, models.PowerIntent(power), "")
}

func (d *Dispatcher) SetBrightness(ctx context.Context, name string, pct int) error {
	return d.dispatch(ctx, name, models.BrightnessIntent(pct), "")
}

func (d *Dispatcher) SetTemperature(ctx context.Context, name string, temperature int) error {
	return d.dispatch(ctx, name, models.TemperatureIntent(temperature), "")
}

func (d *Dispatcher) SetColor(ctx context.Context, name string, color models.Color) error {
	return d.dispatch(ctx, name, models.ColorIntent(color), "")
}

func (d *Dispatcher) Dispatch(ctx context.Context, name string, intent models.Intent) error {
	return d.dispatch(ctx, name, intent, "")
}

// DispatchLinked is Dispatch on behalf of a command issued to origin
func (d *Dispatcher) DispatchLinked(ctx context.Context, origin string, name string, intent models.Intent) error {
	return d.dispatch(ctx, name, intent, origin)
}

// LoadStatus fetches the bulb status and replaces every observed attribute
func (d *Dispatcher) LoadStatus(ctx context.Context, name string) error {
	bulb, err := d.registry.Get(name)
	if err != nil {
		return err
	}

	status, err := d.gateway.FetchStatus(ctx, bulb.Addr)
	if err != nil {
		return fmt.Errorf("Error loading status for bulb (%s): %w", name, err)
	}

	return d.registry.ApplyStatus(name, status)
}

// Wait blocks until every in-flight power-on prerequisite has resolved
func (d *Dispatcher) Wait() {
	d.prerequisites.Wait()
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, intent models.Intent, origin string) error {
	bulb, err := d.registry.Get(name)
	if err != nil {
		return err
	}
	if err := intent.Validate(); err != nil {
		return err
	}

	if intent.Attribute == models.AttrPower {
		return d.setPower(ctx, bulb, intent.Power, origin)
	}

	if intent.Attribute == models.AttrColor && !bulb.IsRGB {
		return fmt.Errorf("bulb (%s): %w", name, ErrNoColor)
	}

	if bulb.Power != models.PowerOn {
		if err := d.requirePower(ctx, bulb, origin); err != nil {
			return err
		}
	}

	if err := d.send(ctx, bulb, intent, false, origin); err != nil {
		return err
	}
	return d.registry.Observe(bulb.Name, intent.Attribute, intent.Reading())
}

func (d *Dispatcher) setPower(ctx context.Context, bulb models.Bulb, power models.Power, origin string) error {
	if power == models.PowerUnknown {
		d.logger.Debug("power reset", "bulb", bulb.Name)
		return d.registry.Observe(bulb.Name, models.AttrPower, models.Unknown())
	}

	if err := d.send(ctx, bulb, models.PowerIntent(power), false, origin); err != nil {
		return err
	}
	return d.registry.Observe(bulb.Name, models.AttrPower, power.Reading())
}

func (d *Dispatcher) requirePower(ctx context.Context, bulb models.Bulb, origin string) error {
	if d.sequencePowerOn {
		if err := d.powerOn(ctx, bulb, origin); err != nil {
			return fmt.Errorf("Error powering on bulb (%s): %w", bulb.Name, err)
		}
		return nil
	}

	issued := make(chan struct{})
	var once sync.Once
	sent := func() { once.Do(func() { close(issued) }) }

	d.prerequisites.Add(1)
	go func() {
		defer d.prerequisites.Done()
		defer sent()

		// the prerequisite outlives the request that triggered it
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.PrerequisiteTimeout)
		defer cancel()

		if err := d.powerOn(withSentHook(pctx, sent), bulb, origin); err != nil {
			d.logger.Warn("power-on prerequisite failed", "bulb", bulb.Name, "err", err)
		}
	}()
	<-issued

	return nil
}

func (d *Dispatcher) powerOn(ctx context.Context, bulb models.Bulb, origin string) error {
	if err := d.send(ctx, bulb, models.PowerIntent(models.PowerOn), true, origin); err != nil {
		return err
	}
	return d.registry.Observe(bulb.Name, models.AttrPower, models.PowerOn.Reading())
}

func (d *Dispatcher) send(ctx context.Context, bulb models.Bulb, intent models.Intent, prerequisite bool, origin string) error {
	d.logger.Debug("sending command", "bulb", bulb.Name, "intent", intent, "prerequisite", prerequisite)

	var err error
	switch intent.Attribute {
	case models.AttrPower:
		err = d.gateway.SetPower(ctx, bulb.Addr, intent.Power == models.PowerOn)
	case models.AttrBrightness:
		err = d.gateway.SetBrightness(ctx, bulb.Addr, int(intent.Value))
	case models.AttrTemperature:
		err = d.gateway.SetTemperature(ctx, bulb.Addr, int(intent.Value))
	case models.AttrColor:
		err = d.gateway.SetColor(ctx, bulb.Addr, models.Color(intent.Value))
	default:
		err = fmt.Errorf("invalid attribute %q", intent.Attribute)
	}

	markSent(ctx)

	d.record(bulb.Name, intent, prerequisite, origin, err)
	if err != nil {
		d.logger.Warn("command not applied", "bulb", bulb.Name, "intent", intent, "err", err)
		return fmt.Errorf("Error sending %s to bulb (%s): %w", intent, bulb.Name, err)
	}
	return nil
}

func (d *Dispatcher) record(name string, intent models.Intent, prerequisite bool, origin string, cmdErr error) {
	rec := models.CommandRecord{
		ID:           uuid.NewString(),
		Bulb:         name,
		Attribute:    intent.Attribute,
		Value:        intent.Reading().Format(intent.Attribute),
		Prerequisite: prerequisite,
		LinkedFrom:   origin,
		Succeeded:    cmdErr == nil,
		IssuedAt:     time.Now(),
	}
	if cmdErr != nil {
		rec.Error = cmdErr.Error()
	}

	if err := d.ledger.Record(rec); err != nil {
		d.logger.Error("Error recording command", "bulb", name, "err", err)
	}
}

type sentHookKey struct{}

// withSentHook calls fn once the request made with ctx has been written to the
// backend, or once the gateway call returns for gateways that never write one
func withSentHook(ctx context.Context, fn func()) context.Context {
	ctx = context.WithValue(ctx, sentHookKey{}, fn)
	return httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		WroteRequest: func(httptrace.WroteRequestInfo) { fn() },
	})
}

func markSent(ctx context.Context) {
	if fn, ok := ctx.Value(sentHookKey{}).(func()); ok {
		fn()
	}
}
