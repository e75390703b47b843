package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FlexInt decodes the count shapes found in legacy records: numbers,
// numeric strings, and null. Unparseable text decodes to zero.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	if s[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexInt(n)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexInt(int(n))
	return nil
}

// FlexStrings decodes a value that may be stored as a single string, an
// array of strings, or an array of mixed scalars.
type FlexStrings []string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexStrings) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "" || s == "null" {
		*f = nil
		return nil
	}
	if s[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			var str string
			if err := json.Unmarshal(item, &str); err == nil {
				out = append(out, str)
				continue
			}
			out = append(out, strings.Trim(string(item), `"`))
		}
		*f = out
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	if one == "" {
		*f = nil
		return nil
	}
	*f = []string{one}
	return nil
}
