package models

import (
	"errors"
	"fmt"
	"time"
)

var ErrOutOfRange = errors.New("value out of range")

// device limits, as enforced by the bulb backend
const (
	BrightnessMin  = 1
	BrightnessMax  = 100
	TemperatureMin = 1700
	TemperatureMax = 6500
)

// Power is the tri-state power of a bulb. The zero value is unknown, which is
// what every bulb reports until its first status fetch completes.
type Power int

const (
	PowerUnknown Power = iota
	PowerOff
	PowerOn
)

// PowerFromStatus maps the status "power" field, only the exact string "on" is on
func PowerFromStatus(s *string) Power {
	if s == nil {
		return PowerUnknown
	}
	if *s == "on" {
		return PowerOn
	}
	return PowerOff
}

func PowerFromBool(on bool) Power {
	if on {
		return PowerOn
	}
	return PowerOff
}

// ParsePower parses user input: on/off, or reset/unknown for the local-only reset
func ParsePower(s string) (Power, error) {
	switch s {
	case "on", "true":
		return PowerOn, nil
	case "off", "false":
		return PowerOff, nil
	case "reset", "unknown":
		return PowerUnknown, nil
	}
	return PowerUnknown, fmt.Errorf("invalid power state %q", s)
}

func (p Power) String() string {
	switch p {
	case PowerOn:
		return "on"
	case PowerOff:
		return "off"
	}
	return "unknown"
}

func (p Power) Reading() Reading {
	switch p {
	case PowerOn:
		return Known(1)
	case PowerOff:
		return Known(0)
	}
	return Unknown()
}

func PowerFromReading(r Reading) Power {
	if !r.Known {
		return PowerUnknown
	}
	return PowerFromBool(r.Value != 0)
}

// Attribute names one of the four observed attributes of a bulb
type Attribute string

const (
	AttrPower       Attribute = "power"
	AttrBrightness  Attribute = "brightness"
	AttrTemperature Attribute = "temperature"
	AttrColor       Attribute = "color"
)

var Attributes = []Attribute{AttrPower, AttrBrightness, AttrTemperature, AttrColor}

func ParseAttribute(s string) (Attribute, error) {
	for _, a := range Attributes {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("invalid attribute %q", s)
}

// Reading is an attribute value that may not be known yet
type Reading struct {
	Value int64
	Known bool
}

func Known(v int64) Reading {
	return Reading{Value: v, Known: true}
}

func Unknown() Reading {
	return Reading{}
}

// Format renders a reading for display, colours as #rrggbb
func (r Reading) Format(attr Attribute) string {
	if !r.Known {
		return "unknown"
	}
	switch attr {
	case AttrPower:
		return PowerFromReading(r).String()
	case AttrColor:
		return Color(r.Value).String()
	}
	return fmt.Sprintf("%d", r.Value)
}

// Bulb is the confirmed state of one light, as held by the registry
type Bulb struct {
	Name   string
	Addr   string
	IsRGB  bool
	Linked []string

	Power       Power
	Brightness  Reading
	Temperature Reading
	Color       Reading

	UpdatedAt *time.Time
}

func (b Bulb) Read(attr Attribute) Reading {
	switch attr {
	case AttrPower:
		return b.Power.Reading()
	case AttrBrightness:
		return b.Brightness
	case AttrTemperature:
		return b.Temperature
	case AttrColor:
		return b.Color
	}
	return Unknown()
}

// BulbConfig is one entry of the bulbs configuration document
type BulbConfig struct {
	Addr   string   `json:"addr,omitempty"`
	RGB    bool     `json:"rgb,omitempty"`
	Linked []string `json:"linked,omitempty"`
}

// BulbsConfig is the configuration document served at /config.json
type BulbsConfig struct {
	Bulbs map[string]BulbConfig `json:"bulbs"`
}

// Link pairs a linked bulb with a view-scoped enable flag
type Link struct {
	Name   string `json:"name"`
	Enable bool   `json:"enable"`
}

type OverrideStatus string

const (
	OverridePending OverrideStatus = "pending"
	OverrideFailed  OverrideStatus = "failed"
)

// Override is a staged value shown in place of the confirmed one
type Override struct {
	Bulb      string
	Attribute Attribute
	Value     int64
	Status    OverrideStatus
	Error     string
	StagedAt  time.Time
}

// Intent is a single user action against a bulb attribute
type Intent struct {
	Attribute Attribute
	Power     Power
	Value     int64
}

func PowerIntent(p Power) Intent {
	return Intent{Attribute: AttrPower, Power: p}
}

func BrightnessIntent(pct int) Intent {
	return Intent{Attribute: AttrBrightness, Value: int64(pct)}
}

func TemperatureIntent(t int) Intent {
	return Intent{Attribute: AttrTemperature, Value: int64(t)}
}

func ColorIntent(c Color) Intent {
	return Intent{Attribute: AttrColor, Value: int64(c)}
}

// Validate checks the intent value against the device limits
func (i Intent) Validate() error {
	switch i.Attribute {
	case AttrPower:
		return nil
	case AttrBrightness:
		if i.Value < BrightnessMin || i.Value > BrightnessMax {
			return fmt.Errorf("brightness %d: %w", i.Value, ErrOutOfRange)
		}
	case AttrTemperature:
		if i.Value < TemperatureMin || i.Value > TemperatureMax {
			return fmt.Errorf("temperature %d: %w", i.Value, ErrOutOfRange)
		}
	case AttrColor:
		if i.Value < 0 || i.Value > ColorMax {
			return fmt.Errorf("color %d: %w", i.Value, ErrOutOfRange)
		}
	default:
		return fmt.Errorf("invalid attribute %q", i.Attribute)
	}
	return nil
}

func (i Intent) String() string {
	if i.Attribute == AttrPower {
		return fmt.Sprintf("power=%s", i.Power)
	}
	return fmt.Sprintf("%s=%s", i.Attribute, Known(i.Value).Format(i.Attribute))
}

// CommandRecord is one ledger entry for a command sent to the backend
type CommandRecord struct {
	ID           string
	Bulb         string
	Attribute    Attribute
	Value        string
	Prerequisite bool
	LinkedFrom   string
	Succeeded    bool
	Error        string
	IssuedAt     time.Time
}

// Reading is the value the intent would leave on the bulb once applied
func (i Intent) Reading() Reading {
	if i.Attribute == AttrPower {
		return i.Power.Reading()
	}
	return Known(i.Value)
}

// IntentFor rebuilds an intent from a stored attribute value
func IntentFor(attr Attribute, value int64) Intent {
	if attr == AttrPower {
		return PowerIntent(PowerFromReading(Known(value)))
	}
	return Intent{Attribute: attr, Value: value}
}

// AttributeSnapshot is one attribute as displayed: the override when staged,
// else the confirmed value
type AttributeSnapshot struct {
	Value     string `json:"value"`
	Confirmed string `json:"confirmed"`
	Pending   bool   `json:"pending,omitempty"`
	Failed    bool   `json:"failed,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BulbSnapshot is the display state of a bulb, as served by the daemon
type BulbSnapshot struct {
	Name        string                          `json:"name"`
	Addr        string                          `json:"addr"`
	RGB         bool                            `json:"rgb"`
	Initialised bool                            `json:"initialised"`
	Attributes  map[Attribute]AttributeSnapshot `json:"attributes"`
	Links       []Link                          `json:"links"`
	UpdatedAt   *time.Time                      `json:"updatedAt,omitempty"`
}
