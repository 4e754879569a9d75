package overridecoordinator_test

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wheelibin/yeetlight/internal/models"
	overridecoordinator "github.com/wheelibin/yeetlight/internal/overrideCoordinator"
	"github.com/wheelibin/yeetlight/internal/registry"
	"github.com/wheelibin/yeetlight/internal/repos"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newCoordinator(t *testing.T, ttl time.Duration) (*overridecoordinator.Coordinator, *registry.Registry, *clock) {
	logger := log.NewWithOptions(os.Stderr, log.Options{Level: log.FatalLevel})
	db, err := repos.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bulbs, err := repos.NewBulbRepo(logger, db)
	require.NoError(t, err)
	reg, err := registry.New(logger, bulbs, []models.Bulb{{Name: "kitchen"}, {Name: "hall"}})
	require.NoError(t, err)
	overrides, err := repos.NewOverrideRepo(logger, db)
	require.NoError(t, err)

	c := &clock{t: time.Date(2023, 6, 1, 20, 0, 0, 0, time.UTC)}
	return overridecoordinator.NewCoordinator(logger, overrides, reg, ttl, c.now), reg, c
}

func stage(t *testing.T, c *overridecoordinator.Coordinator, name string, attr models.Attribute, value int64) models.Override {
	o, err := c.Stage(name, attr, value)
	require.NoError(t, err)
	return o
}

func Test_Coordinator(t *testing.T) {

	t.Run("read should prefer the override over the confirmed value", func(t *testing.T) {
		t.Parallel()
		// arrange
		c, reg, _ := newCoordinator(t, time.Minute)
		require.NoError(t, reg.Observe("kitchen", models.AttrBrightness, models.Known(80)))

		// act
		stage(t, c, "kitchen", models.AttrBrightness, 30)
		staged, err := c.Read("kitchen", models.AttrBrightness)
		require.NoError(t, err)
		require.NoError(t, c.Clear("kitchen", models.AttrBrightness))
		cleared, err := c.Read("kitchen", models.AttrBrightness)
		require.NoError(t, err)

		// assert
		assert.Equal(t, models.Known(30), staged)
		assert.Equal(t, models.Known(80), cleared)
	})

	t.Run("staging again should replace the previous value", func(t *testing.T) {
		t.Parallel()
		c, _, _ := newCoordinator(t, time.Minute)

		stage(t, c, "kitchen", models.AttrTemperature, 2700)
		stage(t, c, "kitchen", models.AttrTemperature, 3000)

		reading, err := c.Read("kitchen", models.AttrTemperature)
		require.NoError(t, err)
		assert.Equal(t, models.Known(3000), reading)
	})

	t.Run("overrides should be per bulb and attribute", func(t *testing.T) {
		t.Parallel()
		c, _, _ := newCoordinator(t, time.Minute)

		stage(t, c, "kitchen", models.AttrBrightness, 30)

		hall, _ := c.Read("hall", models.AttrBrightness)
		temperature, _ := c.Read("kitchen", models.AttrTemperature)
		assert.False(t, hall.Known)
		assert.False(t, temperature.Known)
	})

	t.Run("failed override should keep its value and carry the error", func(t *testing.T) {
		t.Parallel()
		c, _, _ := newCoordinator(t, time.Minute)
		staged := stage(t, c, "kitchen", models.AttrBrightness, 30)

		flagged, err := c.Fail(staged, errors.New("device offline"))

		require.NoError(t, err)
		assert.True(t, flagged)
		o, err := c.Lookup("kitchen", models.AttrBrightness)
		require.NoError(t, err)
		require.NotNil(t, o)
		assert.Equal(t, models.OverrideFailed, o.Status)
		assert.Equal(t, "device offline", o.Error)
		assert.Equal(t, int64(30), o.Value)
	})

	t.Run("failure of a superseded value should not flag the newer stage", func(t *testing.T) {
		t.Parallel()
		c, _, _ := newCoordinator(t, time.Minute)
		older := stage(t, c, "kitchen", models.AttrBrightness, 30)
		stage(t, c, "kitchen", models.AttrBrightness, 60)

		flagged, err := c.Fail(older, errors.New("device offline"))

		require.NoError(t, err)
		assert.False(t, flagged)
		o, _ := c.Lookup("kitchen", models.AttrBrightness)
		assert.Equal(t, models.OverridePending, o.Status)
	})

	t.Run("failure of an earlier stage should not flag a restage of the same value", func(t *testing.T) {
		t.Parallel()
		c, _, clk := newCoordinator(t, time.Minute)
		older := stage(t, c, "kitchen", models.AttrBrightness, 30)
		clk.t = clk.t.Add(time.Millisecond)
		stage(t, c, "kitchen", models.AttrBrightness, 30)

		flagged, err := c.Fail(older, errors.New("device offline"))

		require.NoError(t, err)
		assert.False(t, flagged)
		o, _ := c.Lookup("kitchen", models.AttrBrightness)
		require.NotNil(t, o)
		assert.Equal(t, models.OverridePending, o.Status)
		assert.Empty(t, o.Error)
	})

	t.Run("override older than the ttl should fall back to the confirmed value", func(t *testing.T) {
		t.Parallel()
		c, reg, clk := newCoordinator(t, time.Minute)
		require.NoError(t, reg.Observe("kitchen", models.AttrBrightness, models.Known(80)))
		stage(t, c, "kitchen", models.AttrBrightness, 30)

		clk.t = clk.t.Add(61 * time.Second)
		reading, err := c.Read("kitchen", models.AttrBrightness)

		require.NoError(t, err)
		assert.Equal(t, models.Known(80), reading)
		o, _ := c.Lookup("kitchen", models.AttrBrightness)
		assert.Nil(t, o)
	})

	t.Run("zero ttl should keep overrides until cleared", func(t *testing.T) {
		t.Parallel()
		c, _, clk := newCoordinator(t, 0)
		stage(t, c, "kitchen", models.AttrBrightness, 30)

		clk.t = clk.t.Add(24 * time.Hour)
		reading, _ := c.Read("kitchen", models.AttrBrightness)
		n, err := c.Expire()

		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, models.Known(30), reading)
	})

	t.Run("expire should only remove stale overrides", func(t *testing.T) {
		t.Parallel()
		c, _, clk := newCoordinator(t, time.Minute)
		stage(t, c, "kitchen", models.AttrBrightness, 30)
		clk.t = clk.t.Add(2 * time.Minute)
		stage(t, c, "hall", models.AttrBrightness, 40)

		n, err := c.Expire()

		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		hall, _ := c.Read("hall", models.AttrBrightness)
		assert.Equal(t, models.Known(40), hall)
	})

	t.Run("rollback and purge should drop overrides", func(t *testing.T) {
		t.Parallel()
		c, _, _ := newCoordinator(t, time.Minute)
		stage(t, c, "kitchen", models.AttrBrightness, 30)
		stage(t, c, "kitchen", models.AttrColor, 0xff0000)
		stage(t, c, "hall", models.AttrColor, 0xff0000)

		require.NoError(t, c.Rollback("kitchen", models.AttrBrightness))
		brightness, _ := c.Lookup("kitchen", models.AttrBrightness)
		color, _ := c.Lookup("kitchen", models.AttrColor)
		assert.Nil(t, brightness)
		assert.NotNil(t, color)

		require.NoError(t, c.Purge("kitchen"))
		color, _ = c.Lookup("kitchen", models.AttrColor)
		hall, _ := c.Lookup("hall", models.AttrColor)
		assert.Nil(t, color)
		assert.NotNil(t, hall)
	})

	t.Run("unknown bulb should fail fast", func(t *testing.T) {
		t.Parallel()
		c, _, _ := newCoordinator(t, time.Minute)

		_, err := c.Stage("garage", models.AttrBrightness, 30)

		assert.True(t, errors.Is(err, registry.ErrUnknownBulb))
	})

}
