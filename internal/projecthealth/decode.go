package projecthealth

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CoerceCount converts an integer or an integer-valued string to int.
// Floats are accepted only when they hold a whole number, which is how
// encoding/json hands numbers over in an `any`.
func CoerceCount(field string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, typeErrorf(field, "%v is not an integer", n)
		}
		if n < -(1 << 63) || n >= 1<<63 {
			return 0, typeErrorf(field, "%v is out of range", n)
		}
		return int(n), nil
	case json.Number:
		return atoi(field, n.String())
	case string:
		return atoi(field, n)
	default:
		return 0, typeErrorf(field, "expected an integer, got %T", v)
	}
}

func atoi(field, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, typeErrorf(field, "%q is not an integer", s)
	}
	return n, nil
}

// Count is an integer that decodes from a JSON number or an integer string.
type Count struct {
	Value int
	Set   bool
}

func (c *Count) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*c = Count{}
		return nil
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return typeErrorf("", "malformed count")
	}
	n, err := CoerceCount("", raw)
	if err != nil {
		return err
	}
	*c = Count{Value: n, Set: true}
	return nil
}

// RiskFactors decodes a JSON array of strings. Set stays false for an absent
// or null value so callers can tell "omitted" from "empty".
type RiskFactors struct {
	Values []string
	Set    bool
}

func (r *RiskFactors) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*r = RiskFactors{}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return typeErrorf("riskFactors", "expected a list of strings")
	}

	values := make([]string, 0, len(items))
	for i, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			return typeErrorf("riskFactors", "element %d is not a string", i)
		}
		values = append(values, s)
	}
	*r = RiskFactors{Values: values, Set: true}
	return nil
}
