package commanddispatcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	commanddispatcher "github.com/wheelibin/yeetlight/internal/commandDispatcher"
	"github.com/wheelibin/yeetlight/internal/gateway"
	"github.com/wheelibin/yeetlight/internal/models"
	"github.com/wheelibin/yeetlight/internal/registry"
	"github.com/wheelibin/yeetlight/internal/repos"
	"github.com/wheelibin/yeetlight/mocks"
)

var errOffline = errors.New("device offline")

type fixture struct {
	registry *registry.Registry
	gateway  *mocks.MockCommanddispatcherGateway
	ledger   *mocks.MockCommanddispatcherLedger

	mu      sync.Mutex
	records []models.CommandRecord
}

func (f *fixture) recorded() []models.CommandRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.CommandRecord{}, f.records...)
}

func newFixture(t *testing.T, sequencePowerOn bool) (*fixture, *commanddispatcher.Dispatcher) {
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
	db, err := repos.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store, err := repos.NewBulbRepo(logger, db)
	require.NoError(t, err)
	reg, err := registry.New(logger, store, []models.Bulb{
		{Name: "kitchen", Addr: "192.168.1.5", IsRGB: true, Linked: []string{"hall"}},
		{Name: "hall"},
	})
	require.NoError(t, err)

	f := &fixture{
		registry: reg,
		gateway:  mocks.NewMockCommanddispatcherGateway(t),
		ledger:   mocks.NewMockCommanddispatcherLedger(t),
	}
	f.ledger.On("Record", mock.Anything).Run(func(args mock.Arguments) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.records = append(f.records, args.Get(0).(models.CommandRecord))
	}).Return(nil).Maybe()

	return f, commanddispatcher.NewDispatcher(logger, f.gateway, reg, f.ledger, sequencePowerOn)
}

func Test_SetPower(t *testing.T) {

	t.Run("reset should set power unknown without a network call", func(t *testing.T) {
		t.Parallel()
		// arrange
		f, d := newFixture(t, false)
		require.NoError(t, f.registry.Observe("kitchen", models.AttrPower, models.PowerOn.Reading()))

		// act
		err := d.SetPower(context.Background(), "kitchen", models.PowerUnknown)

		// assert
		require.NoError(t, err)
		power, _ := f.registry.Power("kitchen")
		assert.Equal(t, models.PowerUnknown, power)
		f.gateway.AssertNotCalled(t, "SetPower", mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, f.recorded())
	})

	t.Run("confirmed power should be observed", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, false)
		f.gateway.On("SetPower", mock.Anything, "192.168.1.5", false).Return(nil).Once()

		err := d.SetPower(context.Background(), "kitchen", models.PowerOff)

		require.NoError(t, err)
		power, _ := f.registry.Power("kitchen")
		assert.Equal(t, models.PowerOff, power)
		recs := f.recorded()
		require.Len(t, recs, 1)
		assert.Equal(t, "off", recs[0].Value)
		assert.True(t, recs[0].Succeeded)
		assert.NotEmpty(t, recs[0].ID)
	})

	t.Run("failed power command should leave the registry unchanged", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, false)
		f.gateway.On("SetPower", mock.Anything, "hall", true).Return(errOffline).Once()

		err := d.SetPower(context.Background(), "hall", models.PowerOn)

		assert.True(t, errors.Is(err, errOffline))
		power, _ := f.registry.Power("hall")
		assert.Equal(t, models.PowerUnknown, power)
		recs := f.recorded()
		require.Len(t, recs, 1)
		assert.False(t, recs[0].Succeeded)
		assert.Contains(t, recs[0].Error, "device offline")
	})

	t.Run("unknown bulb should fail fast", func(t *testing.T) {
		t.Parallel()
		_, d := newFixture(t, false)

		err := d.SetPower(context.Background(), "garage", models.PowerOn)

		assert.True(t, errors.Is(err, registry.ErrUnknownBulb))
	})

}

func Test_AttributeCommands(t *testing.T) {

	t.Run("brightness on a bulb not known to be on should issue a power-on prerequisite", func(t *testing.T) {
		t.Parallel()
		// arrange
		f, d := newFixture(t, false)
		f.gateway.On("SetPower", mock.Anything, "hall", true).Return(nil).Once()
		f.gateway.On("SetBrightness", mock.Anything, "hall", 50).Return(nil).Once()

		// act
		err := d.SetBrightness(context.Background(), "hall", 50)
		d.Wait()

		// assert
		require.NoError(t, err)
		bulb, _ := f.registry.Get("hall")
		assert.Equal(t, models.Known(50), bulb.Brightness)
		assert.Equal(t, models.PowerOn, bulb.Power)

		recs := f.recorded()
		require.Len(t, recs, 2)
		prerequisites := 0
		for _, rec := range recs {
			if rec.Prerequisite {
				prerequisites++
				assert.Equal(t, models.AttrPower, rec.Attribute)
			}
		}
		assert.Equal(t, 1, prerequisites)
	})

	t.Run("power-on prerequisite should always reach the gateway before the attribute command", func(t *testing.T) {
		t.Parallel()
		// arrange
		f, d := newFixture(t, false)
		var (
			mu    sync.Mutex
			order []string
		)
		called := func(name string) func(mock.Arguments) {
			return func(mock.Arguments) {
				mu.Lock()
				defer mu.Unlock()
				order = append(order, name)
			}
		}
		f.gateway.On("SetPower", mock.Anything, "hall", true).Run(called("power")).Return(nil)
		f.gateway.On("SetBrightness", mock.Anything, "hall", 50).Run(called("brightness")).Return(nil)

		for i := 0; i < 500; i++ {
			require.NoError(t, f.registry.Observe("hall", models.AttrPower, models.Unknown()))
			mu.Lock()
			order = nil
			mu.Unlock()

			// act
			err := d.SetBrightness(context.Background(), "hall", 50)
			d.Wait()

			// assert
			require.NoError(t, err)
			mu.Lock()
			got := append([]string{}, order...)
			mu.Unlock()
			require.Equal(t, []string{"power", "brightness"}, got, "run %d", i)
		}
	})

	t.Run("attribute command should wait for the power-on to be sent, not to complete", func(t *testing.T) {
		t.Parallel()
		// arrange
		powerReceived := make(chan struct{})
		releasePower := make(chan struct{})
		mux := http.NewServeMux()
		mux.HandleFunc("/on", func(w http.ResponseWriter, _ *http.Request) {
			close(powerReceived)
			<-releasePower
		})
		mux.HandleFunc("/brightness", func(w http.ResponseWriter, _ *http.Request) {
			select {
			case <-powerReceived:
			case <-time.After(2 * time.Second):
				http.Error(w, "power-on not received first", http.StatusConflict)
			}
		})
		srv := httptest.NewServer(mux)
		t.Cleanup(srv.Close)
		released := false
		t.Cleanup(func() {
			if !released {
				close(releasePower)
			}
		})

		logger := log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
		f, _ := newFixture(t, false)
		d := commanddispatcher.NewDispatcher(logger, gateway.NewGateway(logger, srv.URL, 5*time.Second), f.registry, f.ledger, false)

		// act
		err := d.SetBrightness(context.Background(), "hall", 50)

		// assert
		require.NoError(t, err)
		power, _ := f.registry.Power("hall")
		assert.Equal(t, models.PowerUnknown, power, "power-on should still be in flight")

		close(releasePower)
		released = true
		d.Wait()
		power, _ = f.registry.Power("hall")
		assert.Equal(t, models.PowerOn, power)
	})

	t.Run("bulb already on should not receive a prerequisite", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, false)
		require.NoError(t, f.registry.Observe("hall", models.AttrPower, models.PowerOn.Reading()))
		f.gateway.On("SetTemperature", mock.Anything, "hall", 2700).Return(nil).Once()

		err := d.SetTemperature(context.Background(), "hall", 2700)
		d.Wait()

		require.NoError(t, err)
		f.gateway.AssertNotCalled(t, "SetPower", mock.Anything, mock.Anything, mock.Anything)
		temperature, _ := f.registry.Read("hall", models.AttrTemperature)
		assert.Equal(t, models.Known(2700), temperature)
	})

	t.Run("bulb known to be off should receive a prerequisite", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, false)
		require.NoError(t, f.registry.Observe("hall", models.AttrPower, models.PowerOff.Reading()))
		f.gateway.On("SetPower", mock.Anything, "hall", true).Return(nil).Once()
		f.gateway.On("SetTemperature", mock.Anything, "hall", 2700).Return(nil).Once()

		err := d.SetTemperature(context.Background(), "hall", 2700)
		d.Wait()

		require.NoError(t, err)
	})

	t.Run("failed prerequisite should not block the attribute command", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, false)
		f.gateway.On("SetPower", mock.Anything, "hall", true).Return(errOffline).Once()
		f.gateway.On("SetBrightness", mock.Anything, "hall", 20).Return(nil).Once()

		err := d.SetBrightness(context.Background(), "hall", 20)
		d.Wait()

		require.NoError(t, err)
		power, _ := f.registry.Power("hall")
		assert.Equal(t, models.PowerUnknown, power)
	})

	t.Run("sequenced power-on should complete before the attribute command", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, true)
		var order []string
		f.gateway.On("SetPower", mock.Anything, "hall", true).Run(func(mock.Arguments) { order = append(order, "power") }).Return(nil).Once()
		f.gateway.On("SetBrightness", mock.Anything, "hall", 50).Run(func(mock.Arguments) { order = append(order, "brightness") }).Return(nil).Once()

		err := d.SetBrightness(context.Background(), "hall", 50)

		require.NoError(t, err)
		assert.Equal(t, []string{"power", "brightness"}, order)
	})

	t.Run("sequenced power-on failure should abort the attribute command", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, true)
		f.gateway.On("SetPower", mock.Anything, "hall", true).Return(errOffline).Once()

		err := d.SetBrightness(context.Background(), "hall", 50)

		assert.True(t, errors.Is(err, errOffline))
		f.gateway.AssertNotCalled(t, "SetBrightness", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("failed attribute command should not be observed", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, false)
		require.NoError(t, f.registry.Observe("hall", models.AttrPower, models.PowerOn.Reading()))
		require.NoError(t, f.registry.Observe("hall", models.AttrBrightness, models.Known(80)))
		f.gateway.On("SetBrightness", mock.Anything, "hall", 10).Return(errOffline).Once()

		err := d.SetBrightness(context.Background(), "hall", 10)

		assert.True(t, errors.Is(err, errOffline))
		brightness, _ := f.registry.Read("hall", models.AttrBrightness)
		assert.Equal(t, models.Known(80), brightness)
	})

	t.Run("color should be sent to rgb bulbs", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, false)
		require.NoError(t, f.registry.Observe("kitchen", models.AttrPower, models.PowerOn.Reading()))
		green, _ := models.ParseColor("#00ff00")
		f.gateway.On("SetColor", mock.Anything, "192.168.1.5", green).Return(nil).Once()

		err := d.SetColor(context.Background(), "kitchen", green)

		require.NoError(t, err)
		color, _ := f.registry.Read("kitchen", models.AttrColor)
		assert.Equal(t, "#00ff00", color.Format(models.AttrColor))
		assert.Equal(t, "#00ff00", f.recorded()[0].Value)
	})

	t.Run("color on a bulb without rgb should be refused before any call", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, false)

		err := d.SetColor(context.Background(), "hall", models.Color(0xff0000))

		assert.True(t, errors.Is(err, commanddispatcher.ErrNoColor))
		assert.Empty(t, f.recorded())
	})

	t.Run("out of range values should be refused before any call", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, false)

		err := d.SetBrightness(context.Background(), "hall", 0)

		assert.True(t, errors.Is(err, models.ErrOutOfRange))
		assert.Empty(t, f.recorded())
	})

	t.Run("linked dispatch should record the origin", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, false)
		require.NoError(t, f.registry.Observe("hall", models.AttrPower, models.PowerOn.Reading()))
		f.gateway.On("SetBrightness", mock.Anything, "hall", 50).Return(nil).Once()

		err := d.DispatchLinked(context.Background(), "kitchen", "hall", models.BrightnessIntent(50))

		require.NoError(t, err)
		assert.Equal(t, "kitchen", f.recorded()[0].LinkedFrom)
	})

}

func Test_LoadStatus(t *testing.T) {

	t.Run("status should be applied to the registry", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, false)
		off := "off"
		f.gateway.On("FetchStatus", mock.Anything, "192.168.1.5").Return(models.Status{
			Power:       &off,
			Brightness:  models.FlexInt{Reading: models.Known(80)},
			Temperature: models.FlexInt{Reading: models.Known(4000)},
			RGB:         models.FlexInt{Reading: models.Known(16711680)},
		}, nil).Once()

		err := d.LoadStatus(context.Background(), "kitchen")

		require.NoError(t, err)
		bulb, _ := f.registry.Get("kitchen")
		assert.Equal(t, models.PowerOff, bulb.Power)
		assert.Equal(t, models.Known(80), bulb.Brightness)
		assert.Equal(t, models.Known(4000), bulb.Temperature)
		assert.Equal(t, "#ff0000", bulb.Color.Format(models.AttrColor))
	})

	t.Run("fetch failure should be returned", func(t *testing.T) {
		t.Parallel()
		f, d := newFixture(t, false)
		f.gateway.On("FetchStatus", mock.Anything, "hall").Return(models.Status{}, errOffline).Once()

		err := d.LoadStatus(context.Background(), "hall")

		assert.True(t, errors.Is(err, errOffline))
	})

}
