package tool

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/tanpawarit/foodiespot-agent/agent/intent"
)

// argReader pulls typed values out of model-produced tool arguments. Models
// send numbers as JSON numbers or strings, so both are accepted. Only the
// first problem is kept.
type argReader struct {
	args  map[string]any
	first error
}

func (a *argReader) err() error {
	return a.first
}

func (a *argReader) fail(err error) {
	if a.first == nil {
		a.first = err
	}
}

func (a *argReader) has(key string) bool {
	v, ok := a.args[key]
	if !ok || v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) != ""
	}
	return true
}

func (a *argReader) text(key string, required bool) string {
	if !a.has(key) {
		if required {
			a.fail(fmt.Errorf("%s is required", key))
		}
		return ""
	}
	switch v := a.args[key].(type) {
	case string:
		return strings.TrimSpace(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func (a *argReader) id(key string, required bool) int64 {
	if !a.has(key) {
		if required {
			a.fail(fmt.Errorf("%s is required", key))
		}
		return 0
	}
	n, err := toInt64(a.args[key])
	if err != nil {
		a.fail(fmt.Errorf("%s must be a whole number", key))
		return 0
	}
	return n
}

func (a *argReader) count(key string, required bool) int {
	return int(a.id(key, required))
}

func (a *argReader) decimal(key string) float64 {
	switch v := a.args[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			a.fail(fmt.Errorf("%s must be a number", key))
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			a.fail(fmt.Errorf("%s must be a number", key))
		}
		return f
	default:
		a.fail(fmt.Errorf("%s must be a number", key))
		return 0
	}
}

func (a *argReader) date(key string, required bool, now time.Time) string {
	raw := a.text(key, required)
	if raw == "" {
		return ""
	}
	d, err := intent.NormalizeDate(raw, now)
	if err != nil {
		a.fail(errors.New("Invalid date format. Please use 'DD-MM-YYYY', 'today', or 'tomorrow'."))
		return ""
	}
	return d
}

func (a *argReader) clock(key string, required bool) string {
	raw := a.text(key, required)
	if raw == "" {
		return ""
	}
	t, err := intent.NormalizeTime(raw)
	if err != nil {
		a.fail(errors.New("Invalid time format. Please use HH:MM or a time like 7pm."))
		return ""
	}
	return t
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not whole", n)
		}
		return int64(n), nil
	case json.Number:
		return n.Int64()
	case string:
		return strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(n), "#"), 10, 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}
