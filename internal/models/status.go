package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Status is the snapshot returned by GET /info
type Status struct {
	Power       *string `json:"power"`
	Brightness  FlexInt `json:"bright"`
	Temperature FlexInt `json:"ct"`
	RGB         FlexInt `json:"rgb"`
}

// FlexInt decodes a JSON number, a numeric string or null.
// The backend reports device props as strings, so both forms are seen.
type FlexInt struct {
	Reading
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		f.Reading = Unknown()
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		if raw == "" || raw == "None" {
			f.Reading = Unknown()
			return nil
		}
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	f.Reading = Known(v)
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.Known {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(f.Value, 10)), nil
}
