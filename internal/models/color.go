package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidColor = errors.New("invalid color")

const ColorMax = 0xFFFFFF

// Color is a 24-bit RGB value
type Color int64

// ParseColor accepts "#rrggbb" or "rrggbb"
func ParseColor(s string) (Color, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) != 6 {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidColor)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrInvalidColor)
	}
	return Color(v), nil
}

// String is the display form, e.g. #ff0000
func (c Color) String() string {
	return "#" + c.Hex()
}

// Hex is the wire form sent to the backend, without the leading #
func (c Color) Hex() string {
	return fmt.Sprintf("%06x", int64(c)&ColorMax)
}
