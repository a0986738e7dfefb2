package automation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	OpEquals      = "equals"
	OpContains    = "contains"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
)

// compare evaluates one (field, operator, value) test against the event.
// Unknown operators evaluate to true.
func compare(ev Event, field, operator string, value any) bool {
	actual, found := ev.Lookup(field)

	switch operator {
	case OpEquals:
		if !found || actual == nil {
			return value == nil
		}
		return stringify(actual) == stringify(value)
	case OpContains:
		return strings.Contains(strings.ToLower(stringify(actual)), strings.ToLower(stringify(value)))
	case OpGreaterThan:
		return number(actual) > number(value)
	case OpLessThan:
		return number(actual) < number(value)
	default:
		return true
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// number coerces v to a float. Anything unparseable is NaN, which compares
// false against everything.
func number(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}
