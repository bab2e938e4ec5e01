package gears

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/tgrall/gears-explorer/internal/errs"
)

// maxDecodeDepth bounds the pair decoding. Lists nested deeper are payload
// (reader arguments and the like) and stay as they are, even when they look
// like key/value pairs.
const maxDecodeDepth = 3

// Decode turns a flat [k1, v1, k2, v2, ...] reply into a map, recursing into
// values up to maxDecodeDepth levels. Non-list values are returned unchanged.
func Decode(raw interface{}) (interface{}, error) {
	return decodeAt(raw, 0)
}

func decodeAt(raw interface{}, depth int) (interface{}, error) {
	if depth >= maxDecodeDepth {
		return raw, nil
	}
	list, ok := raw.([]interface{})
	if !ok {
		return raw, nil
	}
	if len(list)%2 != 0 {
		return nil, errs.New("decode", errs.ErrParse,
			fmt.Errorf("odd number of elements (%d) in key/value list at depth %d", len(list), depth))
	}

	out := make(map[string]interface{}, len(list)/2)
	for i := 0; i < len(list); i += 2 {
		v, err := decodeAt(list[i+1], depth+1)
		if err != nil {
			return nil, err
		}
		out[asString(list[i])] = v
	}
	return out, nil
}

// RecordFromRaw decodes one per-shard RG.DUMPREGISTRATIONS entry.
// lastError is normalised with ErrorList and NumShards is left at zero.
func RecordFromRaw(raw interface{}) (Registration, error) {
	raw, lastError := splitLastError(raw)
	decoded, err := Decode(raw)
	if err != nil {
		return Registration{}, err
	}
	fields, ok := decoded.(map[string]interface{})
	if !ok {
		return Registration{}, errs.New("decode", errs.ErrParse, fmt.Errorf("registration is %T, not a key/value list", raw))
	}

	id, ok := fields["id"]
	if !ok || id == nil {
		return Registration{}, errs.New("decode", errs.ErrParse, fmt.Errorf("registration has no id"))
	}
	rec := Registration{
		ID:     asString(id),
		Reader: asString(fields["reader"]),
		Desc:   asString(fields["desc"]),
	}

	data, ok := fields["RegistrationData"].(map[string]interface{})
	if !ok {
		return Registration{}, errs.New("decode", errs.ErrParse, fmt.Errorf("registration %s has no RegistrationData", rec.ID))
	}
	rec.Data.Mode = asString(data["mode"])
	counters := []struct {
		name string
		dst  *int64
	}{
		{"numTriggered", &rec.Data.NumTriggered},
		{"numSuccess", &rec.Data.NumSuccess},
		{"numFailures", &rec.Data.NumFailures},
		{"numAborted", &rec.Data.NumAborted},
	}
	for _, c := range counters {
		n, err := asInt64(data[c.name])
		if err != nil {
			return Registration{}, errs.New("decode", errs.ErrParse, fmt.Errorf("registration %s %s: %w", rec.ID, c.name, err))
		}
		*c.dst = n
	}
	rec.Data.LastError = ErrorList(lastError)
	if args, ok := data["args"].(map[string]interface{}); ok {
		rec.Data.Args = args
	}
	return rec, nil
}

// splitLastError returns a copy of raw without RegistrationData.lastError,
// along with the lastError value itself. lastError is a free-form list of
// messages and never goes through pair decoding.
func splitLastError(raw interface{}) (interface{}, interface{}) {
	rec, ok := raw.([]interface{})
	if !ok {
		return raw, nil
	}
	out := append([]interface{}(nil), rec...)
	for i := 0; i+1 < len(out); i += 2 {
		if asString(out[i]) != "RegistrationData" {
			continue
		}
		data, ok := out[i+1].([]interface{})
		if !ok {
			return out, nil
		}
		var lastError interface{}
		kept := make([]interface{}, 0, len(data))
		for j := 0; j < len(data); j += 2 {
			if j+1 < len(data) && asString(data[j]) == "lastError" {
				lastError = data[j+1]
				continue
			}
			kept = append(kept, data[j:min(j+2, len(data))]...)
		}
		out[i+1] = kept
		return out, lastError
	}
	return out, nil
}

// ErrorList normalises a lastError value. nil and [nil] both mean "no
// error"; a single value becomes a one-element list; a list is kept in order.
func ErrorList(v interface{}) []string {
	out := []string{}
	switch e := v.(type) {
	case nil:
	case []interface{}:
		if len(e) == 1 && e[0] == nil {
			return out
		}
		for _, item := range e {
			if item == nil {
				continue
			}
			out = append(out, asString(item))
		}
	case []string:
		out = append(out, e...)
	default:
		out = append(out, asString(e))
	}
	return out
}

func asString(v interface{}) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	default:
		return fmt.Sprint(s)
	}
}

func asInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(n, 10, 64)
	case []byte:
		return strconv.ParseInt(string(n), 10, 64)
	default:
		return 0, fmt.Errorf("unexpected counter type %T", v)
	}
}
