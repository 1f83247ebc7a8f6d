package websocket

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// flexID accepts a numeric identity encoded either as a JSON number or as a
// numeric string, since older client builds send ids both ways. It is the
// single normalization point; everything past decoding works with uint64.
type flexID uint64

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return err
		}
		*f = flexID(n)
		return nil
	}
	var n uint64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n)
	return nil
}

func (f flexID) Uint() uint { return uint(f) }

// envelope carries just the discriminator; the payload is re-decoded into
// the matching variant.
type envelope struct {
	Type string `json:"type"`
}

func frameType(data []byte) string {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ""
	}
	return env.Type
}
